package personnel

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Employe はリーグに所属する社員です。リーグを持たない唯一の社員が root です。
// 直接生成はできず、Ligue.AddEmploye を経由します。
type Employe struct {
	gp    *GestionPersonnel
	ligue *Ligue

	id         int
	nom        string
	prenom     string
	mail       string
	password   string
	dateArrive time.Time
	dateDepart *time.Time
}

// EmployeInput は社員作成時の入力です。
type EmployeInput struct {
	Nom        string
	Prenom     string
	Mail       string
	Password   string
	DateArrive time.Time
	DateDepart *time.Time
}

func newEmploye(gp *GestionPersonnel, ligue *Ligue, id int, in EmployeInput) (*Employe, error) {
	if in.DateArrive.IsZero() {
		return nil, ErrInvalidDateArrive
	}
	arrive := normalizeDate(in.DateArrive)
	depart := normalizeDatePtr(in.DateDepart)
	if err := validateDates(arrive, depart); err != nil {
		return nil, err
	}

	return &Employe{
		gp:         gp,
		ligue:      ligue,
		id:         id,
		nom:        strings.TrimSpace(in.Nom),
		prenom:     strings.TrimSpace(in.Prenom),
		mail:       strings.TrimSpace(in.Mail),
		password:   in.Password,
		dateArrive: arrive,
		dateDepart: depart,
	}, nil
}

// rehydrateEmploye は永続化済みの社員を ID 付きで復元します。日付の検証は省略しません。
func rehydrateEmploye(gp *GestionPersonnel, ligue *Ligue, rec EmployeRecord) (*Employe, error) {
	return newEmploye(gp, ligue, rec.ID, EmployeInput{
		Nom:        rec.Nom,
		Prenom:     rec.Prenom,
		Mail:       rec.Mail,
		Password:   rec.Password,
		DateArrive: rec.DateArrive,
		DateDepart: rec.DateDepart,
	})
}

// ID は永続化層が採番した ID を返します。未永続化の場合は NoID です。
func (e *Employe) ID() int {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.id
}

func (e *Employe) Nom() string {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.nom
}

func (e *Employe) SetNom(nom string) {
	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()
	e.nom = strings.TrimSpace(nom)
}

func (e *Employe) Prenom() string {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.prenom
}

func (e *Employe) SetPrenom(prenom string) {
	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()
	e.prenom = strings.TrimSpace(prenom)
}

func (e *Employe) Mail() string {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.mail
}

func (e *Employe) SetMail(mail string) {
	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()
	e.mail = strings.TrimSpace(mail)
}

// CheckPassword はパスワードが完全一致する場合に true を返します。
func (e *Employe) CheckPassword(password string) bool {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.password == password
}

func (e *Employe) SetPassword(password string) {
	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()
	e.password = password
}

// Ligue は所属リーグを返します。root の場合は nil です。
func (e *Employe) Ligue() *Ligue {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.ligue
}

func (e *Employe) DateArrive() time.Time {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.dateArrive
}

// SetDateArrive は入社日を変更します。退職日より前でなければ ErrInvalidDateRange を返します。
func (e *Employe) SetDateArrive(d time.Time) error {
	if d.IsZero() {
		return ErrInvalidDateArrive
	}

	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()

	arrive := normalizeDate(d)
	if err := validateDates(arrive, e.dateDepart); err != nil {
		return err
	}
	e.dateArrive = arrive
	return nil
}

// DateDepart は退職日を返します。未設定の場合は nil です。
func (e *Employe) DateDepart() *time.Time {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return cloneTime(e.dateDepart)
}

// SetDateDepart は退職日を変更します。nil は退職日の解除です。
// 入社日より厳密に後でない場合は ErrInvalidDateRange を返し、状態は変更しません。
func (e *Employe) SetDateDepart(d *time.Time) error {
	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()
	return e.setDateDepart(d)
}

func (e *Employe) setDateDepart(d *time.Time) error {
	depart := normalizeDatePtr(d)
	if err := validateDates(e.dateArrive, depart); err != nil {
		return err
	}
	e.dateDepart = depart
	return nil
}

// IsAdminOf は社員が指定リーグの管理者である場合に true を返します。
func (e *Employe) IsAdminOf(l *Ligue) bool {
	if l == nil {
		return false
	}
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return l.administrateur == e
}

// IsRoot は社員が root である場合に true を返します。
func (e *Employe) IsRoot() bool {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.isRoot()
}

func (e *Employe) isRoot() bool {
	return e.gp.root == e
}

// Remove は社員を削除します。管理者だった場合、所属リーグの管理者は root に戻ります。
func (e *Employe) Remove(ctx context.Context) error {
	e.gp.mu.Lock()
	defer e.gp.mu.Unlock()
	return e.gp.removeEmploye(ctx, e, e.ligue)
}

// Compare は (nom, prenom) の辞書順で比較します。
func (e *Employe) Compare(other *Employe) int {
	nom, prenom := e.sortKey()
	otherNom, otherPrenom := other.sortKey()
	if c := strings.Compare(nom, otherNom); c != 0 {
		return c
	}
	return strings.Compare(prenom, otherPrenom)
}

func (e *Employe) sortKey() (string, string) {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()
	return e.nom, e.prenom
}

func (e *Employe) String() string {
	e.gp.mu.RLock()
	defer e.gp.mu.RUnlock()

	owner := "super-utilisateur"
	if !e.isRoot() && e.ligue != nil {
		owner = e.ligue.nom
	}
	return e.nom + " " + e.prenom + " " + e.mail + " (" + owner + ")"
}

// SortEmployes は社員を (nom, prenom) 順に並べ替えます。
func SortEmployes(employes []*Employe) {
	slices.SortStableFunc(employes, (*Employe).Compare)
}

func (e *Employe) record() EmployeRecord {
	return EmployeRecord{
		ID:         e.id,
		Nom:        e.nom,
		Prenom:     e.prenom,
		Mail:       e.mail,
		Password:   e.password,
		DateArrive: e.dateArrive,
		DateDepart: cloneTime(e.dateDepart),
	}
}

func validateDates(arrive time.Time, depart *time.Time) error {
	if depart == nil {
		return nil
	}
	if !arrive.Before(*depart) {
		return ErrInvalidDateRange
	}
	return nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := normalizeDate(*t)
	return &normalized
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
