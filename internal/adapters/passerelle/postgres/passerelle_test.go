package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/personnel/internal/core/personnel"
	pgdb "github.com/ogurasousui/personnel/internal/platform/db/postgres"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var (
	loadRootQuery     = regexp.QuoteMeta(`WHERE ligue_id IS NULL`)
	loadLiguesQuery   = regexp.QuoteMeta(`SELECT id, nom, administrateur_id`)
	loadEmployesQuery = regexp.QuoteMeta(`WHERE ligue_id IS NOT NULL`)
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPasserelle_Load(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)

	depart := day(2024, 3, 1)
	mock.ExpectQuery(loadRootQuery).
		WillReturnRows(pgxmock.NewRows([]string{"id", "nom", "prenom", "mail", "password", "date_arrive", "date_depart"}).
			AddRow(1, "root", "", "", "toor", day(2020, 1, 1), nil))
	mock.ExpectQuery(loadLiguesQuery).
		WillReturnRows(pgxmock.NewRows([]string{"id", "nom", "administrateur_id"}).
			AddRow(2, "Football", int64(3)).
			AddRow(4, "Rugby", nil))
	mock.ExpectQuery(loadEmployesQuery).
		WillReturnRows(pgxmock.NewRows([]string{"ligue_id", "id", "nom", "prenom", "mail", "password", "date_arrive", "date_depart"}).
			AddRow(2, 3, "Dupont", "Jean", "jean@example.com", "pw", day(2021, 1, 1), depart))

	snapshot, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if snapshot.Root == nil || snapshot.Root.ID != 1 || snapshot.Root.Password != "toor" {
		t.Fatalf("unexpected root: %+v", snapshot.Root)
	}
	if len(snapshot.Ligues) != 2 {
		t.Fatalf("expected 2 ligues, got %d", len(snapshot.Ligues))
	}
	football := snapshot.Ligues[0]
	if football.AdministrateurID == nil || *football.AdministrateurID != 3 {
		t.Fatalf("unexpected administrator: %+v", football.AdministrateurID)
	}
	if len(football.Employes) != 1 || football.Employes[0].DateDepart == nil || !football.Employes[0].DateDepart.Equal(depart) {
		t.Fatalf("unexpected employes: %+v", football.Employes)
	}
	if snapshot.Ligues[1].AdministrateurID != nil || len(snapshot.Ligues[1].Employes) != 0 {
		t.Fatalf("unexpected second ligue: %+v", snapshot.Ligues[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasserelle_LoadEmptyStore(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)

	mock.ExpectQuery(loadRootQuery).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(loadLiguesQuery).WillReturnRows(pgxmock.NewRows([]string{"id", "nom", "administrateur_id"}))
	mock.ExpectQuery(loadEmployesQuery).
		WillReturnRows(pgxmock.NewRows([]string{"ligue_id", "id", "nom", "prenom", "mail", "password", "date_arrive", "date_depart"}))

	snapshot, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snapshot.Root != nil || len(snapshot.Ligues) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snapshot)
	}
}

func TestPasserelle_InsertRoot(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)

	arrive := day(2020, 1, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO employes (ligue_id, nom, prenom, mail, password, date_arrive, date_depart)`)).
		WithArgs(nil, "root", "", "", "toor", arrive, nil).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1))

	id, err := p.InsertEmploye(context.Background(), personnel.EmployeRecord{Nom: "root", Password: "toor", DateArrive: arrive}, personnel.NoID)
	if err != nil {
		t.Fatalf("InsertEmploye returned error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
}

func TestPasserelle_InsertEmployeUnknownLigue(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO employes (ligue_id`)).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})

	_, err := p.InsertEmploye(context.Background(), personnel.EmployeRecord{Nom: "Dupont", DateArrive: day(2020, 1, 1)}, 42)
	if !errors.Is(err, personnel.ErrLigueNotFound) {
		t.Fatalf("expected ErrLigueNotFound, got %v", err)
	}
}

func TestPasserelle_InsertLigueDuplicate(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO ligues (nom, administrateur_id)`)).
		WithArgs("Football", nil).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: ligueNomUniqueConstraint})

	_, err := p.InsertLigue(context.Background(), personnel.LigueRecord{Nom: "Football"})
	if !errors.Is(err, personnel.ErrLigueAlreadyExists) {
		t.Fatalf("expected ErrLigueAlreadyExists, got %v", err)
	}
}

func TestPasserelle_RemoveEmploye(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)
	query := regexp.QuoteMeta(`DELETE FROM employes WHERE id = $1 AND ligue_id = $2`)

	mock.ExpectExec(query).WithArgs(3, 2).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(query).WithArgs(3, 2).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := p.RemoveEmploye(context.Background(), 3, 2); err != nil {
		t.Fatalf("RemoveEmploye returned error: %v", err)
	}
	if err := p.RemoveEmploye(context.Background(), 3, 2); !errors.Is(err, personnel.ErrEmployeNotFound) {
		t.Fatalf("expected ErrEmployeNotFound, got %v", err)
	}
}

func TestPasserelle_RemoveLigue(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, nil)
	query := regexp.QuoteMeta(`DELETE FROM ligues WHERE id = $1`)

	mock.ExpectExec(query).WithArgs(2).WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})
	mock.ExpectExec(query).WithArgs(2).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := p.RemoveLigue(context.Background(), 2); !errors.Is(err, personnel.ErrLigueNotEmpty) {
		t.Fatalf("expected ErrLigueNotEmpty, got %v", err)
	}
	if err := p.RemoveLigue(context.Background(), 2); !errors.Is(err, personnel.ErrLigueNotFound) {
		t.Fatalf("expected ErrLigueNotFound, got %v", err)
	}
}

func TestPasserelle_SaveWithinTransaction(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, pgdb.NewTransactionManager(mock, "", nil))

	adminID := 3
	arrive := day(2020, 1, 1)
	snapshot := &personnel.Snapshot{
		Root: &personnel.EmployeRecord{ID: 1, Nom: "root", Password: "toor", DateArrive: arrive},
		Ligues: []personnel.LigueRecord{{
			ID:               2,
			Nom:              "Football",
			AdministrateurID: &adminID,
			Employes:         []personnel.EmployeRecord{{ID: 3, Nom: "Dupont", DateArrive: arrive}},
		}},
	}

	upsertEmployes := regexp.QuoteMeta(`INSERT INTO employes (id, ligue_id, nom, prenom, mail, password, date_arrive, date_depart)`)

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM employes WHERE id <> ALL($1::integer[])`)).
		WithArgs([]int{1, 3}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM ligues WHERE id <> ALL($1::integer[])`)).
		WithArgs([]int{2}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ligues SET nom = '__tmp_' || id WHERE id = ANY($1::integer[])`)).
		WithArgs([]int{2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ligues (id, nom, administrateur_id)`)).
		WithArgs(2, "Football").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(upsertEmployes).
		WithArgs(1, nil, "root", "", "", "toor", arrive, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(upsertEmployes).
		WithArgs(3, 2, "Dupont", "", "", "", arrive, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ligues SET administrateur_id = $1 WHERE id = $2`)).
		WithArgs(3, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT setval('personnel_id_seq', $1::bigint)`)).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	if err := p.Save(context.Background(), snapshot); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasserelle_SaveSwapsLigueNames(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, pgdb.NewTransactionManager(mock, "", nil))

	arrive := day(2020, 1, 1)
	snapshot := &personnel.Snapshot{
		Root: &personnel.EmployeRecord{ID: 1, Nom: "root", Password: "toor", DateArrive: arrive},
		Ligues: []personnel.LigueRecord{
			{ID: 2, Nom: "Volley"},
			{ID: 3, Nom: "Football"},
		},
	}

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM employes WHERE id <> ALL($1::integer[])`)).
		WithArgs([]int{1}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM ligues WHERE id <> ALL($1::integer[])`)).
		WithArgs([]int{2, 3}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE ligues SET nom = '__tmp_' || id WHERE id = ANY($1::integer[])`)).
		WithArgs([]int{2, 3}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ligues (id, nom, administrateur_id)`)).
		WithArgs(2, "Volley").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ligues (id, nom, administrateur_id)`)).
		WithArgs(3, "Football").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO employes (id, ligue_id, nom, prenom, mail, password, date_arrive, date_depart)`)).
		WithArgs(1, nil, "root", "", "", "toor", arrive, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT setval('personnel_id_seq', $1::bigint)`)).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	if err := p.Save(context.Background(), snapshot); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasserelle_SaveRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	p := New(mock, pgdb.NewTransactionManager(mock, "", nil))

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM employes WHERE id <> ALL($1::integer[])`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if err := p.Save(context.Background(), &personnel.Snapshot{}); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTranslatePgError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"second root", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: rootUniqueConstraint}, personnel.ErrRootAlreadyExists},
		{"duplicate ligue", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: ligueNomUniqueConstraint}, personnel.ErrLigueAlreadyExists},
		{"date check", &pgconn.PgError{Code: checkViolationCode}, personnel.ErrInvalidDateRange},
	}
	for _, tc := range cases {
		if got := translatePgError(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	otherErr := errors.New("random")
	if translatePgError(otherErr) != otherErr {
		t.Fatalf("unexpected translation for generic error")
	}
}
