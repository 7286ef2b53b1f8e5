package personnel

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"
)

// Ligue は社員を束ねる組織単位で、メンバーの中から管理者を 1 人持ちます。
// 管理者が未指定の間は root が管理者です。
type Ligue struct {
	gp *GestionPersonnel

	id             int
	nom            string
	employes       map[*Employe]struct{}
	administrateur *Employe
	removed        bool
}

func newLigue(gp *GestionPersonnel, id int, nom string) *Ligue {
	return &Ligue{
		gp:             gp,
		id:             id,
		nom:            nom,
		employes:       make(map[*Employe]struct{}),
		administrateur: gp.root,
	}
}

func (l *Ligue) ID() int {
	l.gp.mu.RLock()
	defer l.gp.mu.RUnlock()
	return l.id
}

func (l *Ligue) Nom() string {
	l.gp.mu.RLock()
	defer l.gp.mu.RUnlock()
	return l.nom
}

// SetNom はリーグ名を変更します。空や他リーグとの重複は拒否します。
func (l *Ligue) SetNom(nom string) error {
	normalized, err := normalizeNom(nom)
	if err != nil {
		return err
	}

	l.gp.mu.Lock()
	defer l.gp.mu.Unlock()
	return l.setNom(normalized)
}

func (l *Ligue) setNom(normalized string) error {
	if l.removed {
		return ErrLigueNotFound
	}
	if other := l.gp.findLigueByNom(normalized); other != nil && other != l {
		return ErrLigueAlreadyExists
	}
	l.nom = normalized
	return nil
}

func (l *Ligue) String() string {
	return l.Nom()
}

// Administrateur は管理者を返します。nil になることはありません。
func (l *Ligue) Administrateur() *Employe {
	l.gp.mu.RLock()
	defer l.gp.mu.RUnlock()
	return l.administrateur
}

// SetAdministrateur は管理者を変更します。root かメンバーでなければ ErrInvalidAdministrator を返します。
func (l *Ligue) SetAdministrateur(e *Employe) error {
	l.gp.mu.Lock()
	defer l.gp.mu.Unlock()
	return l.setAdministrateur(e)
}

func (l *Ligue) setAdministrateur(e *Employe) error {
	if l.removed {
		return ErrLigueNotFound
	}
	if e == nil {
		return ErrInvalidAdministrator
	}
	if e != l.gp.root && !l.contains(e) {
		return ErrInvalidAdministrator
	}
	l.administrateur = e
	return nil
}

// Employes は所属社員を (nom, prenom) 順で返します。
func (l *Ligue) Employes() []*Employe {
	l.gp.mu.RLock()
	employes := make([]*Employe, 0, len(l.employes))
	for e := range l.employes {
		employes = append(employes, e)
	}
	l.gp.mu.RUnlock()

	SortEmployes(employes)
	return employes
}

// Contains は社員がリーグのメンバーである場合に true を返します。
func (l *Ligue) Contains(e *Employe) bool {
	l.gp.mu.RLock()
	defer l.gp.mu.RUnlock()
	return l.contains(e)
}

// AddEmploye は社員を作成して永続化し、リーグに登録します。
// 永続化に失敗した場合、社員はリーグに残りません。
func (l *Ligue) AddEmploye(ctx context.Context, in EmployeInput) (*Employe, error) {
	l.gp.mu.Lock()
	defer l.gp.mu.Unlock()

	if l.removed {
		return nil, ErrLigueNotFound
	}

	e, err := newEmploye(l.gp, l, NoID, in)
	if err != nil {
		return nil, err
	}

	var id int
	if err := l.gp.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		inserted, err := l.gp.passerelle.InsertEmploye(txCtx, e.record(), l.id)
		if err != nil {
			return err
		}
		id = inserted
		return nil
	}); err != nil {
		return nil, persistenceError("insert employe", err)
	}

	e.id = id
	l.employes[e] = struct{}{}
	l.gp.logger.Debug("employe added", zap.Int("ligue_id", l.id), zap.Int("employe_id", id))
	return e, nil
}

// Remove は社員をリーグから外し、永続化層からも削除します。
// owner は呼び出し時点の所属リーグで、一致しなければ ErrEmployeNotInLigue を返します。
func (l *Ligue) Remove(ctx context.Context, e *Employe, owner *Ligue) error {
	if e == nil {
		return ErrEmployeNotInLigue
	}

	l.gp.mu.Lock()
	defer l.gp.mu.Unlock()

	if e.isRoot() {
		return ErrCannotRemoveRoot
	}
	if owner != l {
		return ErrEmployeNotInLigue
	}
	return l.gp.removeEmploye(ctx, e, owner)
}

func (l *Ligue) contains(e *Employe) bool {
	_, ok := l.employes[e]
	return ok
}

func (l *Ligue) record() LigueRecord {
	rec := LigueRecord{
		ID:       l.id,
		Nom:      l.nom,
		Employes: make([]EmployeRecord, 0, len(l.employes)),
	}
	if l.administrateur != nil && l.administrateur != l.gp.root {
		adminID := l.administrateur.id
		rec.AdministrateurID = &adminID
	}
	for e := range l.employes {
		rec.Employes = append(rec.Employes, e.record())
	}
	slices.SortFunc(rec.Employes, func(a, b EmployeRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return rec
}
