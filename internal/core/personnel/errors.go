package personnel

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDateRange は退職日が入社日より後でない場合に返却されます。
	ErrInvalidDateRange = errors.New("personnel: invalid date range")
	// ErrInvalidDateArrive は入社日が未設定の場合に返却されます。
	ErrInvalidDateArrive = errors.New("personnel: invalid arrival date")
	// ErrCannotRemoveRoot は root を削除しようとした場合に返却されます。
	ErrCannotRemoveRoot = errors.New("personnel: cannot remove root")
	// ErrInvalidAdministrator は root でもメンバーでもない社員を管理者に指定した場合に返却されます。
	ErrInvalidAdministrator = errors.New("personnel: invalid administrator")
	// ErrEmployeNotInLigue は社員が指定されたリーグに所属していない場合に返却されます。
	ErrEmployeNotInLigue = errors.New("personnel: employe not in ligue")
	// ErrLigueNotEmpty は社員が残っているリーグを削除しようとした場合に返却されます。
	ErrLigueNotEmpty = errors.New("personnel: ligue not empty")
	// ErrLigueAlreadyExists はリーグ名が重複した場合に返却されます。
	ErrLigueAlreadyExists = errors.New("personnel: ligue already exists")
	// ErrInvalidNom はリーグ名が空の場合に返却されます。
	ErrInvalidNom = errors.New("personnel: invalid nom")
	// ErrLigueNotFound はリーグが存在しない場合に返却されます。
	ErrLigueNotFound = errors.New("personnel: ligue not found")
	// ErrEmployeNotFound は社員が存在しない場合に返却されます。
	ErrEmployeNotFound = errors.New("personnel: employe not found")
	// ErrRootAlreadyExists はパッセレルに 2 人目の root を登録しようとした場合に返却されます。
	ErrRootAlreadyExists = errors.New("personnel: root already exists")
	// ErrDuplicateID は読み込んだスナップショットに重複 ID がある場合に返却されます。
	ErrDuplicateID = errors.New("personnel: duplicate id")
	// ErrPersistence はパッセレル (永続化層) の失敗をすべて包みます。
	ErrPersistence = errors.New("personnel: persistence failure")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
