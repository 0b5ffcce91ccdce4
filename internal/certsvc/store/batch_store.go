package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBatchNotFound = errors.New("batch not found")

type BatchStore struct {
	db *pgxpool.Pool
}

func NewBatchStore(db *pgxpool.Pool) *BatchStore {
	return &BatchStore{db: db}
}

// Create inserts the batch header and every parsed row in one transaction.
func (s *BatchStore) Create(ctx context.Context, b *models.Batch) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO batches (id, org_address, org_name, file_name, status, headers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, b.ID, b.OrgAddress, b.OrgName, b.FileName, string(b.Status), b.Headers, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	rows := &pgx.Batch{}
	for i, r := range b.Rows {
		rows.Queue(`
			INSERT INTO batch_rows (batch_id, idx, line, raw, valid, errors, normalized)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, b.ID, i, r.Line, r.Raw, r.Valid, errorList(r.Errors), r.Normalized)
	}
	if err := tx.SendBatch(ctx, rows).Close(); err != nil {
		return fmt.Errorf("failed to insert batch rows: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *BatchStore) Get(ctx context.Context, id string) (*models.Batch, error) {
	var (
		b      models.Batch
		status string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id::text, org_address, org_name, file_name, status, headers, created_at, updated_at
		FROM batches
		WHERE id = $1
	`, id).Scan(&b.ID, &b.OrgAddress, &b.OrgName, &b.FileName, &status, &b.Headers, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	b.Status = models.BatchStatus(status)

	rows, err := s.db.Query(ctx, `
		SELECT line, raw, valid, errors, normalized
		FROM batch_rows
		WHERE batch_id = $1
		ORDER BY idx
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r csvbatch.Row
		if err := rows.Scan(&r.Line, &r.Raw, &r.Valid, &r.Errors, &r.Normalized); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		if len(r.Errors) == 0 {
			r.Errors = nil
		}
		b.Rows = append(b.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch rows: %w", err)
	}

	return &b, nil
}

func (s *BatchStore) ListByOrg(ctx context.Context, org string, limit int) ([]models.Batch, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, org_address, org_name, file_name, status, headers, created_at, updated_at
		FROM batches
		WHERE org_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, org, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		var (
			b      models.Batch
			status string
		)
		if err := rows.Scan(&b.ID, &b.OrgAddress, &b.OrgName, &b.FileName, &status, &b.Headers, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.Status = models.BatchStatus(status)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *BatchStore) UpdateRow(ctx context.Context, batchID string, idx int, r csvbatch.Row) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE batch_rows
		SET raw = $3, valid = $4, errors = $5, normalized = $6
		WHERE batch_id = $1 AND idx = $2
	`, batchID, idx, r.Raw, r.Valid, errorList(r.Errors), r.Normalized)
	if err != nil {
		return fmt.Errorf("failed to update batch row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}

	_, err = s.db.Exec(ctx, `UPDATE batches SET updated_at = $2 WHERE id = $1`, batchID, time.Now().UTC())
	return err
}

// TransitionStatus moves a batch from one status to another and reports whether the
// batch was in the expected status.
func (s *BatchStore) TransitionStatus(ctx context.Context, id string, from, to models.BatchStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE batches
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to update batch status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *BatchStore) SetStatus(ctx context.Context, id string, status models.BatchStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE batches SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (s *BatchStore) AppendResult(ctx context.Context, batchID string, seq int, r csvbatch.Result) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO batch_results (batch_id, seq, line, normalized, cert_id, status, tx_hash, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (batch_id, seq) DO UPDATE
		SET cert_id = EXCLUDED.cert_id, status = EXCLUDED.status, tx_hash = EXCLUDED.tx_hash, error = EXCLUDED.error
	`, batchID, seq, r.Line, r.Normalized, r.CertID, r.Status, r.TxHash, r.Error)
	if err != nil {
		return fmt.Errorf("failed to append batch result: %w", err)
	}
	return nil
}

func (s *BatchStore) Results(ctx context.Context, batchID string) ([]csvbatch.Result, error) {
	rows, err := s.db.Query(ctx, `
		SELECT line, normalized, cert_id, status, tx_hash, error
		FROM batch_results
		WHERE batch_id = $1
		ORDER BY seq
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch results: %w", err)
	}
	defer rows.Close()

	var results []csvbatch.Result
	for rows.Next() {
		var r csvbatch.Result
		if err := rows.Scan(&r.Line, &r.Normalized, &r.CertID, &r.Status, &r.TxHash, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan batch result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// errorList keeps the jsonb column an array rather than null.
func errorList(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}
