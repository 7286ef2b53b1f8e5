package personnel

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// LigueRemovalPolicy は社員が残っているリーグの削除方針です。
type LigueRemovalPolicy int

const (
	// RemovalPolicyReject は ErrLigueNotEmpty で削除を拒否します (既定)。
	RemovalPolicyReject LigueRemovalPolicy = iota
	// RemovalPolicyCascade は所属社員をすべて削除してからリーグを削除します。
	RemovalPolicyCascade
)

func (p LigueRemovalPolicy) String() string {
	switch p {
	case RemovalPolicyCascade:
		return "cascade"
	default:
		return "reject"
	}
}

// ParseLigueRemovalPolicy は設定値から削除方針を解釈します。空文字は reject です。
func ParseLigueRemovalPolicy(raw string) (LigueRemovalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "reject":
		return RemovalPolicyReject, nil
	case "cascade":
		return RemovalPolicyCascade, nil
	default:
		return RemovalPolicyReject, fmt.Errorf("personnel: unknown ligue removal policy %q", raw)
	}
}

// RootDefaults は空のストアで root を作成する際の値です。
type RootDefaults struct {
	Nom      string
	Prenom   string
	Mail     string
	Password string
}

// DefaultRoot は RootDefaults が指定されない場合の root です。
var DefaultRoot = RootDefaults{Nom: "root", Password: "toor"}

// Option は GestionPersonnel の生成オプションです。
type Option func(*GestionPersonnel)

func WithClock(clock Clock) Option {
	return func(g *GestionPersonnel) {
		if clock != nil {
			g.clock = clock
		}
	}
}

func WithTransactionManager(tx TransactionManager) Option {
	return func(g *GestionPersonnel) {
		if tx != nil {
			g.tx = tx
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *GestionPersonnel) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithLigueRemovalPolicy(policy LigueRemovalPolicy) Option {
	return func(g *GestionPersonnel) {
		g.policy = policy
	}
}

func WithRootDefaults(root RootDefaults) Option {
	return func(g *GestionPersonnel) {
		g.rootDefaults = root
	}
}

// GestionPersonnel は root とすべてのリーグを保持する集約です。
//
// 単一の RWMutex がすべてのエンティティを保護し、
// 「検証 → メモリ更新 → パッセレル呼び出し → 失敗時のロールバック」は書き込みロック下で行われます。
type GestionPersonnel struct {
	mu sync.RWMutex

	passerelle   Passerelle
	tx           TransactionManager
	clock        Clock
	logger       *zap.Logger
	policy       LigueRemovalPolicy
	rootDefaults RootDefaults

	root   *Employe
	ligues map[*Ligue]struct{}
}

// Open はパッセレルから人事管理を読み込みます。root が存在しなければ作成します。
func Open(ctx context.Context, p Passerelle, opts ...Option) (*GestionPersonnel, error) {
	if p == nil {
		return nil, errors.New("personnel: passerelle is required")
	}

	g := &GestionPersonnel{
		passerelle:   p,
		tx:           noopTransactionManager{},
		clock:        realClock{},
		logger:       zap.NewNop(),
		policy:       RemovalPolicyReject,
		rootDefaults: DefaultRoot,
		ligues:       make(map[*Ligue]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	var snapshot *Snapshot
	if err := g.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		loaded, err := p.Load(txCtx)
		if err != nil {
			return err
		}
		snapshot = loaded
		return nil
	}); err != nil {
		return nil, persistenceError("load", err)
	}
	if snapshot == nil {
		snapshot = &Snapshot{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.restore(ctx, snapshot); err != nil {
		return nil, err
	}

	g.logger.Info("personnel loaded",
		zap.Int("ligues", len(g.ligues)),
		zap.Int("root_id", g.root.id),
		zap.Stringer("ligue_removal_policy", g.policy),
	)
	return g, nil
}

func (g *GestionPersonnel) restore(ctx context.Context, snapshot *Snapshot) error {
	employeIDs := make(map[int]struct{})
	ligueIDs := make(map[int]struct{})

	if snapshot.Root != nil {
		root, err := rehydrateEmploye(g, nil, *snapshot.Root)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
		g.root = root
	} else if err := g.createRoot(ctx); err != nil {
		return err
	}
	employeIDs[g.root.id] = struct{}{}

	for _, rec := range snapshot.Ligues {
		if _, dup := ligueIDs[rec.ID]; dup {
			return fmt.Errorf("ligue %d: %w", rec.ID, ErrDuplicateID)
		}
		ligueIDs[rec.ID] = struct{}{}

		nom, err := normalizeNom(rec.Nom)
		if err != nil {
			return fmt.Errorf("ligue %d: %w", rec.ID, err)
		}
		if g.findLigueByNom(nom) != nil {
			return fmt.Errorf("ligue %d: %w", rec.ID, ErrLigueAlreadyExists)
		}

		l := newLigue(g, rec.ID, nom)
		for _, er := range rec.Employes {
			if _, dup := employeIDs[er.ID]; dup {
				return fmt.Errorf("employe %d: %w", er.ID, ErrDuplicateID)
			}
			employeIDs[er.ID] = struct{}{}

			e, err := rehydrateEmploye(g, l, er)
			if err != nil {
				return fmt.Errorf("employe %d: %w", er.ID, err)
			}
			l.employes[e] = struct{}{}
		}

		if rec.AdministrateurID != nil {
			admin := l.findEmploye(*rec.AdministrateurID)
			if admin == nil {
				return fmt.Errorf("ligue %d administrateur %d: %w", rec.ID, *rec.AdministrateurID, ErrInvalidAdministrator)
			}
			l.administrateur = admin
		}

		g.ligues[l] = struct{}{}
	}

	return nil
}

func (g *GestionPersonnel) createRoot(ctx context.Context) error {
	root, err := newEmploye(g, nil, NoID, EmployeInput{
		Nom:        g.rootDefaults.Nom,
		Prenom:     g.rootDefaults.Prenom,
		Mail:       g.rootDefaults.Mail,
		Password:   g.rootDefaults.Password,
		DateArrive: g.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}

	var id int
	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		inserted, err := g.passerelle.InsertEmploye(txCtx, root.record(), NoID)
		if err != nil {
			return err
		}
		id = inserted
		return nil
	}); err != nil {
		return persistenceError("insert root", err)
	}

	root.id = id
	g.root = root
	g.logger.Info("root created", zap.Int("employe_id", id))
	return nil
}

// Root は root 社員を返します。初期化後に nil になることはありません。
func (g *GestionPersonnel) Root() *Employe {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.root
}

// LigueRemovalPolicy は設定されたリーグ削除方針を返します。
func (g *GestionPersonnel) LigueRemovalPolicy() LigueRemovalPolicy {
	return g.policy
}

// Ligues はすべてのリーグを名前順で返します。
func (g *GestionPersonnel) Ligues() []*Ligue {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedLigues()
}

// Ligue は ID でリーグを検索します。
func (g *GestionPersonnel) Ligue(id int) (*Ligue, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for l := range g.ligues {
		if l.id == id {
			return l, nil
		}
	}
	return nil, ErrLigueNotFound
}

// Employe は ID で社員 (root を含む) を検索します。
func (g *GestionPersonnel) Employe(id int) (*Employe, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.root != nil && g.root.id == id {
		return g.root, nil
	}
	for l := range g.ligues {
		if e := l.findEmploye(id); e != nil {
			return e, nil
		}
	}
	return nil, ErrEmployeNotFound
}

// CreateLigue はリーグを作成して永続化します。失敗時は何も登録しません。
func (g *GestionPersonnel) CreateLigue(ctx context.Context, nom string) (*Ligue, error) {
	normalized, err := normalizeNom(nom)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.findLigueByNom(normalized) != nil {
		return nil, ErrLigueAlreadyExists
	}

	l := newLigue(g, NoID, normalized)

	var id int
	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		inserted, err := g.passerelle.InsertLigue(txCtx, l.record())
		if err != nil {
			return err
		}
		id = inserted
		return nil
	}); err != nil {
		return nil, persistenceError("insert ligue", err)
	}

	l.id = id
	g.ligues[l] = struct{}{}
	g.logger.Debug("ligue created", zap.Int("ligue_id", id), zap.String("nom", normalized))
	return l, nil
}

// RemoveLigue はリーグを削除します。社員が残っている場合は削除方針に従います。
// 永続化はすべての社員の削除を含め 1 トランザクションで行い、成功後にメモリを更新します。
func (g *GestionPersonnel) RemoveLigue(ctx context.Context, l *Ligue) error {
	if l == nil {
		return ErrLigueNotFound
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.ligues[l]; !ok || l.removed {
		return ErrLigueNotFound
	}

	members := make([]*Employe, 0, len(l.employes))
	for e := range l.employes {
		members = append(members, e)
	}
	if len(members) > 0 && g.policy == RemovalPolicyReject {
		return ErrLigueNotEmpty
	}
	slices.SortFunc(members, func(a, b *Employe) int {
		return cmp.Compare(a.id, b.id)
	})

	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		for _, e := range members {
			if err := g.passerelle.RemoveEmploye(txCtx, e.id, l.id); err != nil {
				return fmt.Errorf("employe %d: %w", e.id, err)
			}
		}
		return g.passerelle.RemoveLigue(txCtx, l.id)
	}); err != nil {
		return persistenceError("remove ligue", err)
	}

	for _, e := range members {
		delete(l.employes, e)
	}
	l.administrateur = g.root
	l.removed = true
	delete(g.ligues, l)
	g.logger.Debug("ligue removed", zap.Int("ligue_id", l.id), zap.Int("employes_removed", len(members)))
	return nil
}

// Save はメモリ上の人事管理全体を永続化します。
func (g *GestionPersonnel) Save(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.save(ctx)
}

func (g *GestionPersonnel) save(ctx context.Context) error {
	snapshot := g.snapshot()
	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return g.passerelle.Save(txCtx, snapshot)
	}); err != nil {
		return persistenceError("save", err)
	}
	return nil
}

// RenameLigue はリーグ名を変更して保存します。
// 変更・保存・失敗時の復元は 1 つの書き込みロック区間で行われます。
func (g *GestionPersonnel) RenameLigue(ctx context.Context, l *Ligue, nom string) error {
	if l == nil {
		return ErrLigueNotFound
	}
	normalized, err := normalizeNom(nom)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	previous := l.nom
	if err := l.setNom(normalized); err != nil {
		return err
	}
	return g.saveOrRestore(ctx, "rename ligue", func() { l.nom = previous })
}

// SetAdministrateur は管理者を変更して保存します。保存に失敗した場合は元の管理者に戻します。
func (g *GestionPersonnel) SetAdministrateur(ctx context.Context, l *Ligue, e *Employe) error {
	if l == nil {
		return ErrLigueNotFound
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	previous := l.administrateur
	if err := l.setAdministrateur(e); err != nil {
		return err
	}
	return g.saveOrRestore(ctx, "set administrateur", func() { l.administrateur = previous })
}

// SetDateDepart は退職日を変更して保存します。保存に失敗した場合は元の退職日に戻します。
func (g *GestionPersonnel) SetDateDepart(ctx context.Context, e *Employe, d *time.Time) error {
	if e == nil {
		return ErrEmployeNotFound
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	previous := e.dateDepart
	if err := e.setDateDepart(d); err != nil {
		return err
	}
	return g.saveOrRestore(ctx, "set date depart", func() { e.dateDepart = previous })
}

// saveOrRestore は書き込みロック下で保存し、失敗した場合は restore でメモリを戻します。
func (g *GestionPersonnel) saveOrRestore(ctx context.Context, op string, restore func()) error {
	if err := g.save(ctx); err != nil {
		restore()
		g.logger.Warn("update rolled back", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

// Snapshot はメモリ上の状態をコピーとして返します。
func (g *GestionPersonnel) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot()
}

func (g *GestionPersonnel) snapshot() *Snapshot {
	root := g.root.record()
	snapshot := &Snapshot{Root: &root}
	for _, l := range g.sortedLigues() {
		snapshot.Ligues = append(snapshot.Ligues, l.record())
	}
	return snapshot
}

// removeEmploye は書き込みロック下で社員を削除します。
// 管理者の付け替えとロスター更新はパッセレルが失敗した場合に元へ戻します。
func (g *GestionPersonnel) removeEmploye(ctx context.Context, e *Employe, owner *Ligue) error {
	if e.isRoot() {
		return ErrCannotRemoveRoot
	}
	if owner == nil || e.ligue != owner || !owner.contains(e) {
		return ErrEmployeNotInLigue
	}

	wasAdmin := owner.administrateur == e
	if wasAdmin {
		owner.administrateur = g.root
	}
	delete(owner.employes, e)

	if err := g.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return g.passerelle.RemoveEmploye(txCtx, e.id, owner.id)
	}); err != nil {
		owner.employes[e] = struct{}{}
		if wasAdmin {
			owner.administrateur = e
		}
		g.logger.Warn("employe removal rolled back",
			zap.Int("employe_id", e.id),
			zap.Int("ligue_id", owner.id),
			zap.Error(err),
		)
		return persistenceError("remove employe", err)
	}

	g.logger.Debug("employe removed",
		zap.Int("employe_id", e.id),
		zap.Int("ligue_id", owner.id),
		zap.Bool("was_admin", wasAdmin),
	)
	return nil
}

func (g *GestionPersonnel) sortedLigues() []*Ligue {
	ligues := make([]*Ligue, 0, len(g.ligues))
	for l := range g.ligues {
		ligues = append(ligues, l)
	}
	slices.SortFunc(ligues, func(a, b *Ligue) int {
		if c := strings.Compare(a.nom, b.nom); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	return ligues
}

func (g *GestionPersonnel) findLigueByNom(nom string) *Ligue {
	for l := range g.ligues {
		if strings.EqualFold(l.nom, nom) {
			return l
		}
	}
	return nil
}

func (l *Ligue) findEmploye(id int) *Employe {
	for e := range l.employes {
		if e.id == id {
			return e
		}
	}
	return nil
}

func normalizeNom(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidNom
	}
	return trimmed, nil
}
