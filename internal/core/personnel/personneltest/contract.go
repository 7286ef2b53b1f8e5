// Package personneltest はパッセレル実装が満たすべき振る舞いを検証する共通テストを提供します。
package personneltest

import (
	"context"
	"testing"
	"time"

	"github.com/ogurasousui/personnel/internal/core/personnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory は空のストアに接続したパッセレルを返します。
// TransactionManager を実装している場合は personnel.Open にも渡されます。
type Factory func(t *testing.T) personnel.Passerelle

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RunPasserelleContract はパッセレルの共通契約を検証します。
//
// 削除は冪等ではなく、2 回目の削除は ErrEmployeNotFound / ErrLigueNotFound を返すことを要求します。
func RunPasserelleContract(t *testing.T, newPasserelle Factory) {
	t.Helper()

	t.Run("insert returns fresh ids", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		seen := map[int]bool{}
		rootID, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "root", DateArrive: day(2020, 1, 1)}, personnel.NoID)
		require.NoError(t, err)
		seen[rootID] = true

		_, err = p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "root2", DateArrive: day(2020, 1, 1)}, personnel.NoID)
		assert.ErrorIs(t, err, personnel.ErrRootAlreadyExists)

		for _, nom := range []string{"Football", "Rugby", "Tennis"} {
			id, err := p.InsertLigue(ctx, personnel.LigueRecord{Nom: nom})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, id, 0)
			assert.False(t, seen[id], "ligue id %d reused", id)
			seen[id] = true

			eid, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "Dupont", DateArrive: day(2020, 1, 1)}, id)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, eid, 0)
			assert.False(t, seen[eid], "employe id %d reused", eid)
			seen[eid] = true
		}
	})

	t.Run("load returns inserted graph", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		rootID, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "root", Password: "toor", DateArrive: day(2020, 1, 1)}, personnel.NoID)
		require.NoError(t, err)
		ligueID, err := p.InsertLigue(ctx, personnel.LigueRecord{Nom: "Football"})
		require.NoError(t, err)
		depart := day(2022, 2, 2)
		employeID, err := p.InsertEmploye(ctx, personnel.EmployeRecord{
			Nom:        "Dupont",
			Prenom:     "Jean",
			Mail:       "jean@example.com",
			Password:   "secret",
			DateArrive: day(2021, 1, 1),
			DateDepart: &depart,
		}, ligueID)
		require.NoError(t, err)

		snapshot, err := p.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, snapshot.Root)
		assert.Equal(t, rootID, snapshot.Root.ID)
		require.Len(t, snapshot.Ligues, 1)
		assert.Equal(t, "Football", snapshot.Ligues[0].Nom)
		assert.Nil(t, snapshot.Ligues[0].AdministrateurID)
		require.Len(t, snapshot.Ligues[0].Employes, 1)

		got := snapshot.Ligues[0].Employes[0]
		assert.Equal(t, employeID, got.ID)
		assert.Equal(t, "secret", got.Password)
		assert.True(t, got.DateArrive.Equal(day(2021, 1, 1)))
		require.NotNil(t, got.DateDepart)
		assert.True(t, got.DateDepart.Equal(depart))
	})

	t.Run("employe removal is not idempotent", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		_, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "root", DateArrive: day(2020, 1, 1)}, personnel.NoID)
		require.NoError(t, err)
		ligueID, err := p.InsertLigue(ctx, personnel.LigueRecord{Nom: "Football"})
		require.NoError(t, err)
		otherID, err := p.InsertLigue(ctx, personnel.LigueRecord{Nom: "Rugby"})
		require.NoError(t, err)
		employeID, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "Dupont", DateArrive: day(2020, 1, 1)}, ligueID)
		require.NoError(t, err)

		assert.ErrorIs(t, p.RemoveEmploye(ctx, employeID, otherID), personnel.ErrEmployeNotFound)
		require.NoError(t, p.RemoveEmploye(ctx, employeID, ligueID))
		assert.ErrorIs(t, p.RemoveEmploye(ctx, employeID, ligueID), personnel.ErrEmployeNotFound)
	})

	t.Run("ligue removal is not idempotent", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		ligueID, err := p.InsertLigue(ctx, personnel.LigueRecord{Nom: "Football"})
		require.NoError(t, err)
		employeID, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "Dupont", DateArrive: day(2020, 1, 1)}, ligueID)
		require.NoError(t, err)

		assert.ErrorIs(t, p.RemoveLigue(ctx, ligueID), personnel.ErrLigueNotEmpty)
		require.NoError(t, p.RemoveEmploye(ctx, employeID, ligueID))
		require.NoError(t, p.RemoveLigue(ctx, ligueID))
		assert.ErrorIs(t, p.RemoveLigue(ctx, ligueID), personnel.ErrLigueNotFound)
	})

	t.Run("removing administrator hands ligue to root", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		_, err := p.InsertEmploye(ctx, personnel.EmployeRecord{Nom: "root", DateArrive: day(2020, 1, 1)}, personnel.NoID)
		require.NoError(t, err)

		g, err := personnel.Open(ctx, p, transactionOption(p))
		require.NoError(t, err)
		l, err := g.CreateLigue(ctx, "Football")
		require.NoError(t, err)
		admin, err := l.AddEmploye(ctx, personnel.EmployeInput{Nom: "Dupont", Prenom: "Jean", DateArrive: day(2020, 1, 1)})
		require.NoError(t, err)
		require.NoError(t, l.SetAdministrateur(admin))
		require.NoError(t, g.Save(ctx))

		snapshot, err := p.Load(ctx)
		require.NoError(t, err)
		require.Len(t, snapshot.Ligues, 1)
		require.NotNil(t, snapshot.Ligues[0].AdministrateurID)
		assert.Equal(t, admin.ID(), *snapshot.Ligues[0].AdministrateurID)

		require.NoError(t, admin.Remove(ctx))
		assert.Same(t, g.Root(), l.Administrateur())

		snapshot, err = p.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, snapshot.Ligues[0].AdministrateurID)
		assert.Empty(t, snapshot.Ligues[0].Employes)
	})

	t.Run("save and reopen round trip", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		g, err := personnel.Open(ctx, p, transactionOption(p))
		require.NoError(t, err)
		l, err := g.CreateLigue(ctx, "Tennis")
		require.NoError(t, err)
		e, err := l.AddEmploye(ctx, personnel.EmployeInput{Nom: "Martin", Prenom: "Anne", Mail: "anne@example.com", Password: "pw", DateArrive: day(2021, 5, 1)})
		require.NoError(t, err)
		require.NoError(t, l.SetAdministrateur(e))
		depart := day(2024, 5, 1)
		require.NoError(t, e.SetDateDepart(&depart))
		require.NoError(t, g.Save(ctx))

		reopened, err := personnel.Open(ctx, p, transactionOption(p))
		require.NoError(t, err)
		assert.Equal(t, g.Root().ID(), reopened.Root().ID())

		ligues := reopened.Ligues()
		require.Len(t, ligues, 1)
		assert.Equal(t, "Tennis", ligues[0].Nom())
		admin := ligues[0].Administrateur()
		assert.Equal(t, e.ID(), admin.ID())
		assert.True(t, admin.CheckPassword("pw"))
		require.NotNil(t, admin.DateDepart())
		assert.True(t, admin.DateDepart().Equal(depart))
	})

	t.Run("save accepts swapped ligue names", func(t *testing.T) {
		p := newPasserelle(t)
		ctx := context.Background()

		g, err := personnel.Open(ctx, p, transactionOption(p))
		require.NoError(t, err)
		football, err := g.CreateLigue(ctx, "Football")
		require.NoError(t, err)
		volley, err := g.CreateLigue(ctx, "Volley")
		require.NoError(t, err)

		require.NoError(t, football.SetNom("Handball"))
		require.NoError(t, volley.SetNom("Football"))
		require.NoError(t, football.SetNom("Volley"))
		require.NoError(t, g.Save(ctx))

		snapshot, err := p.Load(ctx)
		require.NoError(t, err)
		names := map[int]string{}
		for _, l := range snapshot.Ligues {
			names[l.ID] = l.Nom
		}
		assert.Equal(t, map[int]string{football.ID(): "Volley", volley.ID(): "Football"}, names)
	})
}

func transactionOption(p personnel.Passerelle) personnel.Option {
	if tx, ok := p.(personnel.TransactionManager); ok {
		return personnel.WithTransactionManager(tx)
	}
	return func(*personnel.GestionPersonnel) {}
}
