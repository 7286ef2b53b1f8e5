package personnel

import (
	"context"
	"time"
)

// NoID は未永続化のエンティティ、または root の所属リーグを表す番兵値です。
const NoID = -1

// Passerelle は永続化層との境界です。
//
// 削除系の操作は冪等ではありません。存在しない行を削除した場合は
// ErrEmployeNotFound / ErrLigueNotFound を返す必要があります。
type Passerelle interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	InsertLigue(ctx context.Context, ligue LigueRecord) (int, error)
	InsertEmploye(ctx context.Context, employe EmployeRecord, ligueID int) (int, error)
	RemoveLigue(ctx context.Context, ligueID int) error
	RemoveEmploye(ctx context.Context, employeID, ligueID int) error
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// EmployeRecord はパッセレルとやり取りする社員の値です。
type EmployeRecord struct {
	ID         int
	Nom        string
	Prenom     string
	Mail       string
	Password   string
	DateArrive time.Time
	DateDepart *time.Time
}

// LigueRecord はパッセレルとやり取りするリーグの値です。
// AdministrateurID が nil の場合は root が管理者です。
type LigueRecord struct {
	ID               int
	Nom              string
	AdministrateurID *int
	Employes         []EmployeRecord
}

// Snapshot は人事管理全体の永続化表現です。Root が nil の場合は未初期化のストアです。
type Snapshot struct {
	Root   *EmployeRecord
	Ligues []LigueRecord
}
