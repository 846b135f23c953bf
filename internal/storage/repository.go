package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPriceSampleSQL = `INSERT INTO price_samples (
        candidate_id,
        price,
        observed_at
    ) VALUES ($1,$2,$3)
    ON CONFLICT (candidate_id, observed_at) DO UPDATE
    SET price = EXCLUDED.price;`

	listRecentSamplesSQL = `SELECT
        candidate_id,
        price,
        observed_at,
        created_at
    FROM price_samples
    WHERE candidate_id = $1
    ORDER BY observed_at DESC
    LIMIT $2;`

	listSamplesBetweenSQL = `SELECT
        candidate_id,
        price,
        observed_at,
        created_at
    FROM price_samples
    WHERE candidate_id = $1
      AND observed_at >= $2
      AND observed_at < $3
    ORDER BY observed_at;`

	countSamplesSQL = `SELECT COUNT(*) FROM price_samples;`

	insertAlertEventSQL = `INSERT INTO alert_events (
        alert_id,
        candidate_id,
        condition,
        threshold,
        price,
        change_pct,
        triggered_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id;`

	listRecentAlertEventsSQL = `SELECT
        id,
        alert_id,
        candidate_id,
        condition,
        threshold,
        price,
        change_pct,
        triggered_at,
        created_at
    FROM alert_events
    ORDER BY created_at DESC
    LIMIT $1;`

	insertTransactionSQL = `INSERT INTO transactions (
        id,
        principal_id,
        amount,
        payee,
        service_type,
        status,
        reason,
        created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	updateTransactionStatusSQL = `UPDATE transactions
    SET status = $2, reason = $3, settled_at = $4
    WHERE id = $1;`

	listRecentTransactionsSQL = `SELECT
        id,
        principal_id,
        amount,
        payee,
        service_type,
        status,
        reason,
        created_at,
        settled_at
    FROM transactions
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceSampleStore defines operations for price sample persistence.
type PriceSampleStore interface {
	InsertPriceSample(ctx context.Context, sample PriceSampleRecord) error
	ListRecentSamples(ctx context.Context, candidateID string, limit int) ([]PriceSampleRecord, error)
	ListSamplesBetween(ctx context.Context, candidateID string, from, to time.Time) ([]PriceSampleRecord, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertEventStore defines operations for alert auditing.
type AlertEventStore interface {
	InsertAlertEvent(ctx context.Context, event AlertEventRecord) (int64, error)
	ListRecentAlertEvents(ctx context.Context, limit int) ([]AlertEventRecord, error)
}

// TransactionLogStore defines operations for governor ledger persistence.
type TransactionLogStore interface {
	InsertTransactionRecord(ctx context.Context, tx TransactionRecord) error
	UpdateTransactionRecord(ctx context.Context, id, status, reason string, settledAt time.Time) error
	ListRecentTransactions(ctx context.Context, limit int) ([]TransactionRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to samples, alert events, and transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertPriceSample persists one observation.
func (s *Store) InsertPriceSample(ctx context.Context, sample PriceSampleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertPriceSampleSQL,
		sample.CandidateID,
		sample.Price.String(),
		sample.ObservedAt,
	); execErr != nil {
		return fmt.Errorf("insert price sample: %w", execErr)
	}
	return nil
}

// ListRecentSamples lists the newest samples for a candidate, newest first.
func (s *Store) ListRecentSamples(ctx context.Context, candidateID string, limit int) ([]PriceSampleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, candidateID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()
	return collectSamples(rows, limit)
}

// ListSamplesBetween lists samples within a time window, oldest first.
func (s *Store) ListSamplesBetween(ctx context.Context, candidateID string, from, to time.Time) ([]PriceSampleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, candidateID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()
	return collectSamples(rows, 0)
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlertEvent persists a fired alert.
func (s *Store) InsertAlertEvent(ctx context.Context, event AlertEventRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var id int64
	if scanErr := pool.QueryRow(ctx, insertAlertEventSQL,
		event.AlertID,
		event.CandidateID,
		event.Condition,
		event.Threshold.String(),
		event.Price.String(),
		event.ChangePct.String(),
		event.TriggeredAt,
	).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert alert event: %w", scanErr)
	}
	return id, nil
}

// ListRecentAlertEvents lists most recent fired alerts.
func (s *Store) ListRecentAlertEvents(ctx context.Context, limit int) ([]AlertEventRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentAlertEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alert events: %w", queryErr)
	}
	defer rows.Close()

	events := make([]AlertEventRecord, 0, limit)
	for rows.Next() {
		var rec AlertEventRecord
		var thresholdStr, priceStr, changeStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.AlertID,
			&rec.CandidateID,
			&rec.Condition,
			&thresholdStr,
			&priceStr,
			&changeStr,
			&rec.TriggeredAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rec.Threshold, err = decimal.NewFromString(thresholdStr); err != nil {
			return nil, fmt.Errorf("parse threshold: %w", err)
		}
		if rec.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if rec.ChangePct, err = decimal.NewFromString(changeStr); err != nil {
			return nil, fmt.Errorf("parse change pct: %w", err)
		}
		events = append(events, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// InsertTransactionRecord persists a ledger entry.
func (s *Store) InsertTransactionRecord(ctx context.Context, tx TransactionRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertTransactionSQL,
		tx.ID,
		tx.PrincipalID,
		tx.Amount.String(),
		tx.Payee,
		tx.ServiceType,
		tx.Status,
		tx.Reason,
		tx.CreatedAt,
	); execErr != nil {
		return fmt.Errorf("insert transaction: %w", execErr)
	}
	return nil
}

// UpdateTransactionRecord records a settlement outcome.
func (s *Store) UpdateTransactionRecord(ctx context.Context, id, status, reason string, settledAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateTransactionStatusSQL, id, status, reason, settledAt)
	if execErr != nil {
		return fmt.Errorf("update transaction: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListRecentTransactions lists the newest ledger entries.
func (s *Store) ListRecentTransactions(ctx context.Context, limit int) ([]TransactionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, queryErr := pool.Query(ctx, listRecentTransactionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent transactions: %w", queryErr)
	}
	defer rows.Close()

	txs := make([]TransactionRecord, 0, limit)
	for rows.Next() {
		var rec TransactionRecord
		var amountStr string
		var settledAt sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.PrincipalID,
			&amountStr,
			&rec.Payee,
			&rec.ServiceType,
			&rec.Status,
			&rec.Reason,
			&rec.CreatedAt,
			&settledAt,
		); err != nil {
			return nil, err
		}
		if rec.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if settledAt.Valid {
			ts := settledAt.Time
			rec.SettledAt = &ts
		}
		txs = append(txs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]PriceSampleRecord, error) {
	samples := make([]PriceSampleRecord, 0, sizeHint)
	for rows.Next() {
		var rec PriceSampleRecord
		var priceStr string
		if err := rows.Scan(&rec.CandidateID, &priceStr, &rec.ObservedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		rec.Price = price
		samples = append(samples, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}
