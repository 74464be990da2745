package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"idempotent-payments/internal/domain"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PaymentRepo is the durable record store. Lookups return (nil, nil) when the
// record does not exist. Create must reject a duplicate idempotency key with
// domain.ErrConflict on its own, without relying on a prior read.
type PaymentRepo interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Create(ctx context.Context, p domain.NewPayment) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment, changes domain.PaymentChanges) (*domain.Payment, error)
	// list payments with the given status created at or after since, oldest
	// first; a limit of zero or less returns every match
	FindByStatusSince(ctx context.Context, status domain.PaymentStatus, since time.Time, limit int) ([]domain.Payment, error)
}

const uniqueViolation = "23505"

const paymentColumns = `id, amount, status, idempotency_key, gateway_response, gateway_status_code, created_at, updated_at`

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p        domain.Payment
		status   string
		response []byte
		code     sql.NullInt64
	)
	err := row.Scan(
		&p.ID,
		&p.Amount,
		&status,
		&p.IdempotencyKey,
		&response,
		&code,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	if len(response) > 0 {
		p.GatewayResponse = json.RawMessage(response)
	}
	p.GatewayStatusCode = int(code.Int64)
	return &p, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *paymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by idempotency key: %w", err)
	}
	return p, nil
}

func (r *paymentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, np domain.NewPayment) (*domain.Payment, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &domain.Payment{
		ID:                uuid.New(),
		Amount:            np.Amount,
		Status:            np.Status,
		IdempotencyKey:    np.IdempotencyKey,
		GatewayResponse:   np.GatewayResponse,
		GatewayStatusCode: np.GatewayStatusCode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := `INSERT INTO payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(
		ctx, query,
		p.ID, p.Amount, string(p.Status), p.IdempotencyKey, nullableJSON(p.GatewayResponse), p.GatewayStatusCode, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("create payment %q: %w", np.IdempotencyKey, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepo) Update(ctx context.Context, p *domain.Payment, changes domain.PaymentChanges) (*domain.Payment, error) {
	var status, code any
	if changes.Status != nil {
		status = string(*changes.Status)
	}
	if changes.GatewayStatusCode != nil {
		code = *changes.GatewayStatusCode
	}

	query := `
		UPDATE payments
		SET status = COALESCE($2, status),
		    gateway_response = COALESCE($3::jsonb, gateway_response),
		    gateway_status_code = COALESCE($4, gateway_status_code),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + paymentColumns
	updated, err := scanPayment(r.db.QueryRowContext(
		ctx,
		query,
		p.ID,
		status,
		nullableJSON(changes.GatewayResponse),
		code,
		time.Now().UTC().Truncate(time.Microsecond),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return updated, nil
}

func (r *paymentRepo) FindByStatusSince(ctx context.Context, status domain.PaymentStatus, since time.Time, limit int) ([]domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE status = $1
		AND created_at >= $2
		ORDER BY created_at
		LIMIT $3
	`
	// LIMIT NULL is the same as no limit
	var rowLimit any
	if limit > 0 {
		rowLimit = limit
	}
	rows, err := r.db.QueryContext(ctx, query, string(status), since, rowLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
