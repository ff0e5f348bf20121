package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"user-registry/internal/domain"
	"user-registry/internal/repository"
	"user-registry/internal/repository/query"
)

type UserRepository struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
	queries
}

func NewUserRepository(db *sqlx.DB, logger logrus.FieldLogger) repository.UserRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserRepository{db: db, logger: logger, queries: queries{ext: db}}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL(r.db.DriverName())); err != nil {
		return fmt.Errorf("create users table: %w", classify(err))
	}
	return nil
}

func (r *UserRepository) Version(ctx context.Context) (string, error) {
	var version string
	if err := r.db.GetContext(ctx, &version, versionSQL(r.db.DriverName())); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return version, nil
}

func (r *UserRepository) List(ctx context.Context, p query.ListParams) ([]domain.User, int64, error) {
	sel, count, err := query.BuildList(p)
	if err != nil {
		return nil, 0, err
	}

	var rows []userRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(sel.SQL), sel.Args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", classify(err))
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind(count.SQL), count.Args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", classify(err))
	}

	users := make([]domain.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toDomain()
	}
	return users, total, nil
}

func (r *UserRepository) InTx(ctx context.Context, fn func(tx repository.UserTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStoreUnavailable, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.WithError(rbErr).Warn("rollback users transaction")
		}
	}()

	if err := fn(&userTx{queries: queries{ext: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", classify(err))
	}
	committed = true
	return nil
}

type userTx struct {
	queries
}

func (t *userTx) Insert(ctx context.Context, username, email string) (*domain.User, error) {
	user, err := t.getOne(ctx, query.BuildInsert(username, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: insert returned no row", domain.ErrPersistence)
		}
		return nil, fmt.Errorf("insert user: %w", classify(err))
	}
	return user, nil
}

func (t *userTx) Update(ctx context.Context, id int64, changes domain.UserChanges) (*domain.User, error) {
	if changes.IsEmpty() {
		return nil, domain.ErrNoUpdateFields
	}
	// the service checks first; this repeat keeps the executor's NotFound
	// contract for direct callers and costs one read inside the same tx
	ok, err := t.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	stmt, err := query.BuildUpdate(id, query.Assignments(changes))
	if err != nil {
		return nil, err
	}
	user, err := t.getOne(ctx, stmt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d vanished during update", domain.ErrPersistence, id)
		}
		return nil, fmt.Errorf("update user: %w", classify(err))
	}
	return user, nil
}

func (t *userTx) Delete(ctx context.Context, id int64) (int64, error) {
	// the service checks first; this repeat keeps the executor's NotFound
	// contract for direct callers and costs one read inside the same tx
	ok, err := t.Exists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrNotFound
	}

	stmt := query.BuildDelete(id)
	res, err := t.ext.ExecContext(ctx, t.ext.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user rows affected: %w", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: delete of user %d affected no row", domain.ErrPersistence, id)
	}
	return id, nil
}

// queries holds the reads shared by the pool-level repository and transactions.
type queries struct {
	ext sqlx.ExtContext
}

func (q queries) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := q.getOne(ctx, query.BuildGet(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", classify(err))
	}
	return user, nil
}

func (q queries) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := q.hasRow(ctx, query.BuildExists(id))
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", classify(err))
	}
	return ok, nil
}

func (q queries) FindConflict(ctx context.Context, c repository.ConflictQuery) (bool, error) {
	stmt, ok := query.BuildConflict(c.Username, c.Email, c.ExcludeID)
	if !ok {
		return false, nil
	}
	conflict, err := q.hasRow(ctx, stmt)
	if err != nil {
		return false, fmt.Errorf("check user conflict: %w", classify(err))
	}
	return conflict, nil
}

func (q queries) getOne(ctx context.Context, stmt query.Statement) (*domain.User, error) {
	var row userRow
	if err := sqlx.GetContext(ctx, q.ext, &row, q.ext.Rebind(stmt.SQL), stmt.Args...); err != nil {
		return nil, err
	}
	user := row.toDomain()
	return &user, nil
}

func (q queries) hasRow(ctx context.Context, stmt query.Statement) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q.ext, &one, q.ext.Rebind(stmt.SQL), stmt.Args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
