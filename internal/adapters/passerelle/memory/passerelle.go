// Package memory はプロセス内で完結するパッセレル実装です。テストとローカル起動で利用します。
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ogurasousui/personnel/internal/core/personnel"
)

type txContextKey struct{}

type ligueRow struct {
	id               int
	nom              string
	administrateurID *int
	employes         map[int]personnel.EmployeRecord
}

type state struct {
	sequence int
	root     *personnel.EmployeRecord
	ligues   map[int]*ligueRow
}

// Passerelle はメモリ上にリーグと社員を保持します。
// TransactionManager も実装し、失敗したトランザクションの変更は破棄されます。
type Passerelle struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
}

// New は空の Passerelle を生成します。
func New() *Passerelle {
	return &Passerelle{st: state{ligues: make(map[int]*ligueRow)}}
}

// WithinReadOnly は fn を実行します。読み取りのみのため退避は行いません。
func (p *Passerelle) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// WithinReadWrite は fn の実行中に失敗した場合、開始時点の状態へ戻します。
func (p *Passerelle) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is required")
	}
	if ctx.Value(txContextKey{}) != nil {
		return fn(ctx)
	}

	p.txMu.Lock()
	defer p.txMu.Unlock()

	p.mu.Lock()
	saved := p.st.clone()
	p.mu.Unlock()

	if err := fn(context.WithValue(ctx, txContextKey{}, true)); err != nil {
		p.mu.Lock()
		p.st = saved
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *Passerelle) Load(context.Context) (*personnel.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := &personnel.Snapshot{}
	if p.st.root != nil {
		root := cloneRecord(*p.st.root)
		snapshot.Root = &root
	}

	for _, row := range p.st.sortedLigues() {
		rec := personnel.LigueRecord{
			ID:               row.id,
			Nom:              row.nom,
			AdministrateurID: cloneInt(row.administrateurID),
			Employes:         make([]personnel.EmployeRecord, 0, len(row.employes)),
		}
		for _, e := range row.employes {
			rec.Employes = append(rec.Employes, cloneRecord(e))
		}
		slices.SortFunc(rec.Employes, func(a, b personnel.EmployeRecord) int {
			return cmp.Compare(a.ID, b.ID)
		})
		snapshot.Ligues = append(snapshot.Ligues, rec)
	}
	return snapshot, nil
}

// Save はストアの内容をスナップショットで置き換えます。
func (p *Passerelle) Save(_ context.Context, snapshot *personnel.Snapshot) error {
	if snapshot == nil {
		return errors.New("memory: snapshot is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := state{sequence: p.st.sequence, ligues: make(map[int]*ligueRow, len(snapshot.Ligues))}
	if snapshot.Root != nil {
		root := cloneRecord(*snapshot.Root)
		next.root = &root
		next.sequence = max(next.sequence, root.ID)
	}
	for _, l := range snapshot.Ligues {
		row := &ligueRow{
			id:               l.ID,
			nom:              l.Nom,
			administrateurID: cloneInt(l.AdministrateurID),
			employes:         make(map[int]personnel.EmployeRecord, len(l.Employes)),
		}
		for _, e := range l.Employes {
			row.employes[e.ID] = cloneRecord(e)
			next.sequence = max(next.sequence, e.ID)
		}
		next.ligues[l.ID] = row
		next.sequence = max(next.sequence, l.ID)
	}

	p.st = next
	return nil
}

func (p *Passerelle) InsertLigue(_ context.Context, l personnel.LigueRecord) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, row := range p.st.ligues {
		if strings.EqualFold(row.nom, l.Nom) {
			return personnel.NoID, personnel.ErrLigueAlreadyExists
		}
	}

	p.st.sequence++
	id := p.st.sequence
	p.st.ligues[id] = &ligueRow{
		id:               id,
		nom:              l.Nom,
		administrateurID: cloneInt(l.AdministrateurID),
		employes:         make(map[int]personnel.EmployeRecord),
	}
	return id, nil
}

// InsertEmploye は社員を登録します。ligueID が personnel.NoID の場合は root として登録します。
func (p *Passerelle) InsertEmploye(_ context.Context, e personnel.EmployeRecord, ligueID int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ligueID == personnel.NoID {
		if p.st.root != nil {
			return personnel.NoID, personnel.ErrRootAlreadyExists
		}
		p.st.sequence++
		root := cloneRecord(e)
		root.ID = p.st.sequence
		p.st.root = &root
		return root.ID, nil
	}

	row, ok := p.st.ligues[ligueID]
	if !ok {
		return personnel.NoID, personnel.ErrLigueNotFound
	}
	p.st.sequence++
	rec := cloneRecord(e)
	rec.ID = p.st.sequence
	row.employes[rec.ID] = rec
	return rec.ID, nil
}

func (p *Passerelle) RemoveLigue(_ context.Context, ligueID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row, ok := p.st.ligues[ligueID]
	if !ok {
		return personnel.ErrLigueNotFound
	}
	if len(row.employes) > 0 {
		return personnel.ErrLigueNotEmpty
	}
	delete(p.st.ligues, ligueID)
	return nil
}

// RemoveEmploye は社員を削除します。管理者だった場合はリーグの管理者を root に戻します。
func (p *Passerelle) RemoveEmploye(_ context.Context, employeID, ligueID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	row, ok := p.st.ligues[ligueID]
	if !ok {
		return personnel.ErrEmployeNotFound
	}
	if _, ok := row.employes[employeID]; !ok {
		return personnel.ErrEmployeNotFound
	}
	delete(row.employes, employeID)
	if row.administrateurID != nil && *row.administrateurID == employeID {
		row.administrateurID = nil
	}
	return nil
}

func (s state) clone() state {
	out := state{sequence: s.sequence, ligues: make(map[int]*ligueRow, len(s.ligues))}
	if s.root != nil {
		root := cloneRecord(*s.root)
		out.root = &root
	}
	for id, row := range s.ligues {
		copied := &ligueRow{
			id:               row.id,
			nom:              row.nom,
			administrateurID: cloneInt(row.administrateurID),
			employes:         make(map[int]personnel.EmployeRecord, len(row.employes)),
		}
		for eid, e := range row.employes {
			copied.employes[eid] = cloneRecord(e)
		}
		out.ligues[id] = copied
	}
	return out
}

func (s state) sortedLigues() []*ligueRow {
	rows := make([]*ligueRow, 0, len(s.ligues))
	for _, row := range s.ligues {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b *ligueRow) int {
		return cmp.Compare(a.id, b.id)
	})
	return rows
}

func cloneRecord(e personnel.EmployeRecord) personnel.EmployeRecord {
	if e.DateDepart != nil {
		depart := *e.DateDepart
		e.DateDepart = &depart
	}
	return e
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
