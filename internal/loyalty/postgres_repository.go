package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daap14/loyalty/internal/tier"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new Repository backed by the given connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// allColumns is the ordered list of columns scanned from loyalty_records.
const allColumns = `id, customer_id, balance, tier, enrollment_date, last_update_date,
	active, notes, version`

// storageErr tags a driver error as a storage failure while keeping it inspectable.
func storageErr(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, action, err)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r     Record
		level int16
	)
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.Balance, &level,
		&r.EnrollmentDate, &r.LastUpdateDate,
		&r.Active, &r.Notes, &r.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, storageErr("scanning loyalty record row", err)
	}
	r.Tier = tier.Level(level)
	r.EnrollmentDate = r.EnrollmentDate.UTC()
	r.LastUpdateDate = r.LastUpdateDate.UTC()
	return &r, nil
}

// FindByID retrieves a single record by its UUID.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM loyalty_records WHERE id = $1`, allColumns)
	return scanRecord(r.pool.QueryRow(ctx, query, id))
}

// FindByCustomer retrieves the record owned by a customer.
func (r *PostgresRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM loyalty_records WHERE customer_id = $1`, allColumns)
	return scanRecord(r.pool.QueryRow(ctx, query, customerID))
}

// FindAll retrieves every record ordered by enrollment date.
func (r *PostgresRepository) FindAll(ctx context.Context) ([]Record, error) {
	return r.list(ctx, "TRUE", "enrollment_date ASC, id ASC")
}

// FindByTier retrieves records currently at the given tier.
func (r *PostgresRepository) FindByTier(ctx context.Context, level tier.Level) ([]Record, error) {
	return r.list(ctx, "tier = $1", "enrollment_date ASC, id ASC", int16(level))
}

// FindByMinimumBalance retrieves records with at least minBalance points, richest first.
func (r *PostgresRepository) FindByMinimumBalance(ctx context.Context, minBalance int64) ([]Record, error) {
	return r.list(ctx, "balance >= $1", "balance DESC, enrollment_date ASC, id ASC", minBalance)
}

// FindByEnrollmentRange retrieves records enrolled within [from, to].
func (r *PostgresRepository) FindByEnrollmentRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	return r.list(ctx, "enrollment_date BETWEEN $1 AND $2", "enrollment_date ASC, id ASC", from, to)
}

// FindActive retrieves active records.
func (r *PostgresRepository) FindActive(ctx context.Context) ([]Record, error) {
	return r.list(ctx, "active", "enrollment_date ASC, id ASC")
}

// FindInactive retrieves deactivated records.
func (r *PostgresRepository) FindInactive(ctx context.Context) ([]Record, error) {
	return r.list(ctx, "NOT active", "enrollment_date ASC, id ASC")
}

// Insert creates a record. The unique index on customer_id turns a racing
// second enrollment into ErrDuplicateEnrollment.
func (r *PostgresRepository) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO loyalty_records (id, customer_id, balance, tier, enrollment_date,
		                             last_update_date, active, notes, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		RETURNING version`

	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.CustomerID, rec.Balance, int16(rec.Tier),
		rec.EnrollmentDate, rec.LastUpdateDate, rec.Active, rec.Notes,
	).Scan(&rec.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEnrollment
		}
		return storageErr("inserting loyalty record", err)
	}

	return nil
}

// Update writes the mutable fields of rec guarded by its version.
func (r *PostgresRepository) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE loyalty_records
		SET balance = $1, tier = $2, last_update_date = $3, active = $4, notes = $5,
		    version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING version`

	var version int64
	err := r.pool.QueryRow(ctx, query,
		rec.Balance, int16(rec.Tier), rec.LastUpdateDate, rec.Active, rec.Notes,
		rec.ID, rec.Version,
	).Scan(&version)
	if err == nil {
		rec.Version = version
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return storageErr("updating loyalty record", err)
	}

	// No row matched: either the record is gone or its version moved on.
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loyalty_records WHERE id = $1)`, rec.ID,
	).Scan(&exists); err != nil {
		return storageErr("checking loyalty record existence", err)
	}
	if !exists {
		return ErrRecordNotFound
	}
	return ErrConcurrentUpdate
}

// Delete removes a record by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM loyalty_records WHERE id = $1`, id)
	if err != nil {
		return storageErr("deleting loyalty record", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// list runs a filtered, ordered SELECT. where and orderBy are fixed strings
// supplied by this file, never caller input.
func (r *PostgresRepository) list(ctx context.Context, where, orderBy string, args ...any) ([]Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM loyalty_records WHERE %s ORDER BY %s`, allColumns, where, orderBy)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("listing loyalty records", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating loyalty record rows", err)
	}

	return records, nil
}
