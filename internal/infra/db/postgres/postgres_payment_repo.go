package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/model"
	"mealsnap-backend/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, order_id, payment_key, amount, status, method, metadata, failure_code, failure_message, approved_at, failed_at, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, order_id, payment_key, amount, status, method, metadata, failure_code, failure_message, approved_at, failed_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  payment_key=$4, amount=$5, status=$6, method=$7, metadata=$8, failure_code=$9, failure_message=$10, approved_at=$11, failed_at=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.OrderID, p.PaymentKey, p.Amount, p.Status, p.Method, p.Metadata, p.FailureCode, p.FailureMessage, p.ApprovedAt, p.FailedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// order_id unique constraint; the caller mints a new order id
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, paymentKey string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_key=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentKey)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, orderID, failureCode, failureMessage string) error {
	const q = `UPDATE payments SET status=$2, failure_code=$3, failure_message=$4, failed_at=NOW(), updated_at=NOW() WHERE order_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, model.PaymentStatusFailed, failureCode, failureMessage)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) MarkConfirmed(ctx context.Context, tx repository.Tx, orderID, paymentKey, method string, meta map[string]interface{}, approvedAt time.Time) error {
	// metadata merges: provider fields land next to the plan context the
	// checkout embedded, which activation reads back.
	const q = `UPDATE payments SET status=$2, payment_key=$3, method=$4, metadata=COALESCE(metadata,'{}'::jsonb) || $5::jsonb, approved_at=$6, updated_at=NOW() WHERE order_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, model.PaymentStatusDone, paymentKey, method, meta, approvedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) MarkCanceled(ctx context.Context, tx repository.Tx, paymentKey string, status model.PaymentStatus, meta map[string]interface{}) error {
	const q = `UPDATE payments SET status=$2, metadata=COALESCE(metadata,'{}'::jsonb) || $3::jsonb, updated_at=NOW() WHERE payment_key=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, paymentKey, status, meta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, model.PaymentStatusPending, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &p.PaymentKey, &p.Amount, &p.Status, &p.Method, &p.Metadata, &p.FailureCode, &p.FailureMessage, &p.ApprovedAt, &p.FailedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
