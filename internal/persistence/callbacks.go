package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CallbackStatus is the delivery state of a queued callback POST.
type CallbackStatus string

const (
	CallbackStatusPending    CallbackStatus = "pending"
	CallbackStatusDelivered  CallbackStatus = "delivered"
	CallbackStatusDeadLetter CallbackStatus = "dead_letter"
)

// CallbackDelivery is one row of the callback_deliveries table: a
// judge batch's results, still owed to a caller's callback URL.
type CallbackDelivery struct {
	ID            int64
	BatchID       string
	CallbackURL   string
	Payload       string
	Status        CallbackStatus
	Attempt       int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EnqueueCallback records a judge batch's callback as owed, due for the
// next retry sweep. internal/judge calls it only after its inline POST
// attempt has failed.
func (s *Store) EnqueueCallback(ctx context.Context, batchID, callbackURL, payload string, maxAttempts int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO callback_deliveries (batch_id, callback_url, payload, status, attempt, max_attempts, next_attempt_at)
		VALUES (?, ?, ?, ?, 0, ?, CURRENT_TIMESTAMP);
	`, batchID, callbackURL, payload, CallbackStatusPending, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("enqueue callback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue callback: last insert id: %w", err)
	}
	return id, nil
}

// DueCallbacks returns pending deliveries whose next_attempt_at has
// passed, for the cron sweep to retry.
func (s *Store) DueCallbacks(ctx context.Context, limit int) ([]CallbackDelivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, callback_url, payload, status, attempt, max_attempts,
			next_attempt_at, COALESCE(last_error, ''), created_at, updated_at
		FROM callback_deliveries
		WHERE status = ? AND next_attempt_at <= CURRENT_TIMESTAMP
		ORDER BY next_attempt_at ASC
		LIMIT ?;
	`, CallbackStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("due callbacks: %w", err)
	}
	defer rows.Close()

	var out []CallbackDelivery
	for rows.Next() {
		var d CallbackDelivery
		if err := rows.Scan(&d.ID, &d.BatchID, &d.CallbackURL, &d.Payload, &d.Status,
			&d.Attempt, &d.MaxAttempts, &d.NextAttemptAt, &d.LastError, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("due callbacks: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due callbacks: iterate: %w", err)
	}
	return out, nil
}

// MarkDelivered marks a callback delivery as successfully POSTed.
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE callback_deliveries SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;
	`, CallbackStatusDelivered, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return checkRowsAffected(res, "callback delivery", id)
}

// RecordFailure increments the attempt count and schedules the next
// retry with exponential backoff (baseBackoff * 2^(attempt-1)), or
// moves the row to dead_letter once max_attempts is reached.
func (s *Store) RecordFailure(ctx context.Context, id int64, baseBackoff time.Duration, deliveryErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record failure: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var attempt, maxAttempts int
	if err := tx.QueryRowContext(ctx, `
		SELECT attempt, max_attempts FROM callback_deliveries WHERE id = ?;
	`, id).Scan(&attempt, &maxAttempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("callback delivery %d not found", id)
		}
		return fmt.Errorf("record failure: read attempt: %w", err)
	}

	attempt++
	status := CallbackStatusPending
	if attempt >= maxAttempts {
		status = CallbackStatusDeadLetter
	}
	nextAttemptAt := time.Now().UTC().Add(backoffFor(baseBackoff, attempt))

	if _, err := tx.ExecContext(ctx, `
		UPDATE callback_deliveries
		SET attempt = ?, status = ?, next_attempt_at = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?;
	`, attempt, status, nextAttemptAt, deliveryErr.Error(), id); err != nil {
		return fmt.Errorf("record failure: update: %w", err)
	}

	return tx.Commit()
}

// backoffFor computes baseBackoff * 2^(attempt-1), capped at 30 minutes
// so a stuck callback URL doesn't push its retry out indefinitely.
func backoffFor(baseBackoff time.Duration, attempt int) time.Duration {
	const ceiling = 30 * time.Minute
	d := baseBackoff
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}

func checkRowsAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", what, id)
	}
	return nil
}
