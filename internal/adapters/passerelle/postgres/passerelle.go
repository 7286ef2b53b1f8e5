// Package postgres は PostgreSQL を利用したパッセレル実装です。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/personnel/internal/core/personnel"
	pgdb "github.com/ogurasousui/personnel/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"

	rootUniqueConstraint     = "employes_root_key"
	ligueNomUniqueConstraint = "ligues_nom_key"
)

// Passerelle は ligues / employes テーブルへリーグと社員を永続化します。
type Passerelle struct {
	pool pgdb.Queryer
	tx   *pgdb.TransactionManager
}

// New は Passerelle を生成します。tx が nil の場合は各文を個別に実行します。
func New(pool pgdb.Queryer, tx *pgdb.TransactionManager) *Passerelle {
	return &Passerelle{pool: pool, tx: tx}
}

// WithinReadOnly は読み取り専用トランザクション内で fn を実行します。
func (p *Passerelle) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return p.tx.WithinReadOnly(ctx, fn)
}

// WithinReadWrite は読み書きトランザクション内で fn を実行します。
func (p *Passerelle) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return p.tx.WithinReadWrite(ctx, fn)
}

// Load は root とすべてのリーグ、所属社員を読み込みます。
func (p *Passerelle) Load(ctx context.Context) (*personnel.Snapshot, error) {
	exec := pgdb.QueryerFromContext(ctx, p.pool)
	snapshot := &personnel.Snapshot{}

	root, err := scanEmploye(exec.QueryRow(ctx, `
        SELECT id, nom, prenom, mail, password, date_arrive, date_depart
          FROM employes
         WHERE ligue_id IS NULL
         LIMIT 1
    `))
	switch {
	case errors.Is(err, personnel.ErrEmployeNotFound):
	case err != nil:
		return nil, translatePgError(err)
	default:
		snapshot.Root = root
	}

	rows, err := exec.Query(ctx, `
        SELECT id, nom, administrateur_id
          FROM ligues
         ORDER BY id
    `)
	if err != nil {
		return nil, translatePgError(err)
	}
	index := make(map[int]int)
	for rows.Next() {
		var (
			rec   personnel.LigueRecord
			admin sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Nom, &admin); err != nil {
			rows.Close()
			return nil, translatePgError(err)
		}
		if admin.Valid {
			id := int(admin.Int64)
			rec.AdministrateurID = &id
		}
		index[rec.ID] = len(snapshot.Ligues)
		snapshot.Ligues = append(snapshot.Ligues, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translatePgError(err)
	}

	rows, err = exec.Query(ctx, `
        SELECT ligue_id, id, nom, prenom, mail, password, date_arrive, date_depart
          FROM employes
         WHERE ligue_id IS NOT NULL
         ORDER BY id
    `)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ligueID int
			rec     personnel.EmployeRecord
			depart  sql.NullTime
		)
		if err := rows.Scan(&ligueID, &rec.ID, &rec.Nom, &rec.Prenom, &rec.Mail, &rec.Password, &rec.DateArrive, &depart); err != nil {
			return nil, translatePgError(err)
		}
		rec.DateDepart = nullableTime(depart)

		i, ok := index[ligueID]
		if !ok {
			return nil, fmt.Errorf("postgres: employe %d references unknown ligue %d", rec.ID, ligueID)
		}
		snapshot.Ligues[i].Employes = append(snapshot.Ligues[i].Employes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translatePgError(err)
	}
	return snapshot, nil
}

// Save はストアの内容をスナップショットと一致させます。
// スナップショットに含まれない行は削除され、ID シーケンスは最大 ID 以上に進められます。
func (p *Passerelle) Save(ctx context.Context, snapshot *personnel.Snapshot) error {
	if snapshot == nil {
		return errors.New("postgres: snapshot is required")
	}
	return p.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return p.save(txCtx, snapshot)
	})
}

func (p *Passerelle) save(ctx context.Context, snapshot *personnel.Snapshot) error {
	exec := pgdb.QueryerFromContext(ctx, p.pool)

	employeIDs := make([]int, 0)
	ligueIDs := make([]int, 0, len(snapshot.Ligues))
	maxID := 0
	if snapshot.Root != nil {
		employeIDs = append(employeIDs, snapshot.Root.ID)
		maxID = max(maxID, snapshot.Root.ID)
	}
	for _, l := range snapshot.Ligues {
		ligueIDs = append(ligueIDs, l.ID)
		maxID = max(maxID, l.ID)
		for _, e := range l.Employes {
			employeIDs = append(employeIDs, e.ID)
			maxID = max(maxID, e.ID)
		}
	}

	if _, err := exec.Exec(ctx, `DELETE FROM employes WHERE id <> ALL($1::integer[])`, employeIDs); err != nil {
		return translatePgError(err)
	}
	if _, err := exec.Exec(ctx, `DELETE FROM ligues WHERE id <> ALL($1::integer[])`, ligueIDs); err != nil {
		return translatePgError(err)
	}
	// 名前の入れ替えが ligues_nom_key に当たらないよう、残るリーグを一時名に退避してから書き戻す。
	if _, err := exec.Exec(ctx, `UPDATE ligues SET nom = '__tmp_' || id WHERE id = ANY($1::integer[])`, ligueIDs); err != nil {
		return translatePgError(err)
	}

	for _, l := range snapshot.Ligues {
		if _, err := exec.Exec(ctx, `
            INSERT INTO ligues (id, nom, administrateur_id)
            VALUES ($1, $2, NULL)
            ON CONFLICT (id) DO UPDATE SET nom = EXCLUDED.nom, administrateur_id = NULL
        `, l.ID, l.Nom); err != nil {
			return translatePgError(err)
		}
	}

	if snapshot.Root != nil {
		if err := upsertEmploye(ctx, exec, *snapshot.Root, nil); err != nil {
			return err
		}
	}
	for _, l := range snapshot.Ligues {
		ligueID := l.ID
		for _, e := range l.Employes {
			if err := upsertEmploye(ctx, exec, e, &ligueID); err != nil {
				return err
			}
		}
	}

	for _, l := range snapshot.Ligues {
		if l.AdministrateurID == nil {
			continue
		}
		if _, err := exec.Exec(ctx, `UPDATE ligues SET administrateur_id = $1 WHERE id = $2`, *l.AdministrateurID, l.ID); err != nil {
			if isPgCode(err, foreignKeyViolationCode) {
				return personnel.ErrEmployeNotFound
			}
			return translatePgError(err)
		}
	}

	if maxID > 0 {
		if _, err := exec.Exec(ctx, `
            SELECT setval('personnel_id_seq', $1::bigint)
             WHERE $1::bigint >= (SELECT last_value FROM personnel_id_seq)
        `, maxID); err != nil {
			return translatePgError(err)
		}
	}
	return nil
}

// InsertLigue はリーグを登録し、採番された ID を返します。
func (p *Passerelle) InsertLigue(ctx context.Context, l personnel.LigueRecord) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, p.pool)
	var id int
	if err := exec.QueryRow(ctx, `
        INSERT INTO ligues (nom, administrateur_id)
        VALUES ($1, $2)
        RETURNING id
    `, l.Nom, nullableInt(l.AdministrateurID)).Scan(&id); err != nil {
		return personnel.NoID, translatePgError(err)
	}
	return id, nil
}

// InsertEmploye は社員を登録し、採番された ID を返します。ligueID が personnel.NoID の場合は root です。
func (p *Passerelle) InsertEmploye(ctx context.Context, e personnel.EmployeRecord, ligueID int) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, p.pool)
	var ligue any
	if ligueID != personnel.NoID {
		ligue = ligueID
	}

	var id int
	if err := exec.QueryRow(ctx, `
        INSERT INTO employes (ligue_id, nom, prenom, mail, password, date_arrive, date_depart)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `, ligue, e.Nom, e.Prenom, e.Mail, e.Password, e.DateArrive, nullableTimePtr(e.DateDepart)).Scan(&id); err != nil {
		if isPgCode(err, foreignKeyViolationCode) {
			return personnel.NoID, personnel.ErrLigueNotFound
		}
		return personnel.NoID, translatePgError(err)
	}
	return id, nil
}

// RemoveLigue は空のリーグを削除します。
func (p *Passerelle) RemoveLigue(ctx context.Context, ligueID int) error {
	exec := pgdb.QueryerFromContext(ctx, p.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM ligues WHERE id = $1`, ligueID)
	if err != nil {
		if isPgCode(err, foreignKeyViolationCode) {
			return personnel.ErrLigueNotEmpty
		}
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return personnel.ErrLigueNotFound
	}
	return nil
}

// RemoveEmploye はリーグに所属する社員を削除します。
// 管理者だった場合は外部キーの ON DELETE SET NULL により root が管理者になります。
func (p *Passerelle) RemoveEmploye(ctx context.Context, employeID, ligueID int) error {
	exec := pgdb.QueryerFromContext(ctx, p.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM employes WHERE id = $1 AND ligue_id = $2`, employeID, ligueID)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return personnel.ErrEmployeNotFound
	}
	return nil
}

func upsertEmploye(ctx context.Context, exec pgdb.Queryer, e personnel.EmployeRecord, ligueID *int) error {
	if _, err := exec.Exec(ctx, `
        INSERT INTO employes (id, ligue_id, nom, prenom, mail, password, date_arrive, date_depart)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE
           SET ligue_id = EXCLUDED.ligue_id,
               nom = EXCLUDED.nom,
               prenom = EXCLUDED.prenom,
               mail = EXCLUDED.mail,
               password = EXCLUDED.password,
               date_arrive = EXCLUDED.date_arrive,
               date_depart = EXCLUDED.date_depart
    `, e.ID, nullableInt(ligueID), e.Nom, e.Prenom, e.Mail, e.Password, e.DateArrive, nullableTimePtr(e.DateDepart)); err != nil {
		return translatePgError(err)
	}
	return nil
}

func scanEmploye(row pgx.Row) (*personnel.EmployeRecord, error) {
	var (
		rec    personnel.EmployeRecord
		depart sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Nom, &rec.Prenom, &rec.Mail, &rec.Password, &rec.DateArrive, &depart); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, personnel.ErrEmployeNotFound
		}
		return nil, err
	}
	rec.DateDepart = nullableTime(depart)
	return &rec, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolationCode:
		switch pgErr.ConstraintName {
		case rootUniqueConstraint:
			return personnel.ErrRootAlreadyExists
		case ligueNomUniqueConstraint:
			return personnel.ErrLigueAlreadyExists
		}
	case checkViolationCode:
		return personnel.ErrInvalidDateRange
	}
	return err
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
