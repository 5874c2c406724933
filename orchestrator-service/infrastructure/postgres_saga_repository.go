package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var _ domain.SagaRepository = (*PostgresSagaRepository)(nil)

// PostgresSagaRepository implements domain.SagaRepository using PostgreSQL
type PostgresSagaRepository struct {
	db *sqlx.DB
}

// NewPostgresSagaRepository creates a new PostgresSagaRepository
func NewPostgresSagaRepository(db *sqlx.DB) *PostgresSagaRepository {
	return &PostgresSagaRepository{db: db}
}

// postgresSaga represents a saga instance in the database
type postgresSaga struct {
	OrderID             int64      `db:"order_id"`
	State               string     `db:"state"`
	PaymentDate         *time.Time `db:"payment_date"`
	PaymentRetries      int        `db:"payment_retries"`
	DeliveryID          *string    `db:"delivery_id"`
	DeliveryDate        *time.Time `db:"delivery_date"`
	RequestCount        int        `db:"request_count"`
	PaymentTimeoutToken string     `db:"payment_timeout_token"`
	BookingToken        string     `db:"booking_token"`
	BookingState        string     `db:"booking_state"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
	Version             int        `db:"version"`
}

// FindByOrderID finds a saga by order ID; returns (nil, nil) when absent
func (r *PostgresSagaRepository) FindByOrderID(ctx context.Context, orderID models.OrderID) (*domain.CheckoutSaga, error) {
	query := `
		SELECT order_id, state, payment_date, payment_retries, delivery_id,
			   delivery_date, request_count, payment_timeout_token,
			   booking_token, booking_state, created_at, updated_at, version
		FROM checkout_sagas
		WHERE order_id = $1`

	var pgSaga postgresSaga
	err := r.db.GetContext(ctx, &pgSaga, query, orderID.Int64())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find saga")
	}

	return r.toDomain(&pgSaga), nil
}

// Save persists the saga: version 1 inserts, later versions compare-and-swap
// against the previously read version. Zero affected rows means another
// writer won the race and the caller sees ErrVersionConflict.
func (r *PostgresSagaRepository) Save(ctx context.Context, saga *domain.CheckoutSaga) error {
	if saga.Version.Value == 1 {
		return r.insertSaga(ctx, saga)
	}
	return r.updateSaga(ctx, saga)
}

func (r *PostgresSagaRepository) insertSaga(ctx context.Context, saga *domain.CheckoutSaga) error {
	query := `
		INSERT INTO checkout_sagas (
			order_id, state, payment_date, payment_retries, delivery_id,
			delivery_date, request_count, payment_timeout_token,
			booking_token, booking_state, created_at, updated_at, version
		) VALUES (
			:order_id, :state, :payment_date, :payment_retries, :delivery_id,
			:delivery_date, :request_count, :payment_timeout_token,
			:booking_token, :booking_state, :created_at, :updated_at, :version
		)
		ON CONFLICT (order_id) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, r.toPostgres(saga))
	if err != nil {
		return errors.Wrap(err, "failed to insert saga")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}

	if affected == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *PostgresSagaRepository) updateSaga(ctx context.Context, saga *domain.CheckoutSaga) error {
	query := `
		UPDATE checkout_sagas
		SET state = :state,
			payment_date = :payment_date,
			payment_retries = :payment_retries,
			delivery_id = :delivery_id,
			delivery_date = :delivery_date,
			request_count = :request_count,
			payment_timeout_token = :payment_timeout_token,
			booking_token = :booking_token,
			booking_state = :booking_state,
			updated_at = :updated_at,
			version = :version
		WHERE order_id = :order_id AND version = :old_version`

	pgSaga := r.toPostgres(saga)

	res, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"order_id":              pgSaga.OrderID,
		"state":                 pgSaga.State,
		"payment_date":          pgSaga.PaymentDate,
		"payment_retries":       pgSaga.PaymentRetries,
		"delivery_id":           pgSaga.DeliveryID,
		"delivery_date":         pgSaga.DeliveryDate,
		"request_count":         pgSaga.RequestCount,
		"payment_timeout_token": pgSaga.PaymentTimeoutToken,
		"booking_token":         pgSaga.BookingToken,
		"booking_state":         pgSaga.BookingState,
		"updated_at":            pgSaga.UpdatedAt,
		"version":               pgSaga.Version,
		"old_version":           pgSaga.Version - 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update saga")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}

	if affected == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

// toPostgres converts domain saga to postgres model
func (r *PostgresSagaRepository) toPostgres(saga *domain.CheckoutSaga) *postgresSaga {
	return &postgresSaga{
		OrderID:             saga.OrderID.Int64(),
		State:               string(saga.State),
		PaymentDate:         saga.PaymentDate,
		PaymentRetries:      saga.PaymentRetries,
		DeliveryID:          saga.DeliveryID,
		DeliveryDate:        saga.DeliveryDate,
		RequestCount:        saga.RequestCount,
		PaymentTimeoutToken: saga.PaymentTimeoutToken,
		BookingToken:        saga.BookingToken,
		BookingState:        string(saga.BookingState),
		CreatedAt:           saga.Timestamps.CreatedAt,
		UpdatedAt:           saga.Timestamps.UpdatedAt,
		Version:             saga.Version.Value,
	}
}

// toDomain converts postgres model to domain saga
func (r *PostgresSagaRepository) toDomain(pgSaga *postgresSaga) *domain.CheckoutSaga {
	return &domain.CheckoutSaga{
		OrderID:             models.OrderID(pgSaga.OrderID),
		State:               domain.CheckoutState(pgSaga.State),
		PaymentDate:         pgSaga.PaymentDate,
		PaymentRetries:      pgSaga.PaymentRetries,
		DeliveryID:          pgSaga.DeliveryID,
		DeliveryDate:        pgSaga.DeliveryDate,
		RequestCount:        pgSaga.RequestCount,
		PaymentTimeoutToken: pgSaga.PaymentTimeoutToken,
		BookingToken:        pgSaga.BookingToken,
		BookingState:        domain.BookingState(pgSaga.BookingState),
		Timestamps: models.Timestamps{
			CreatedAt: pgSaga.CreatedAt,
			UpdatedAt: pgSaga.UpdatedAt,
		},
		Version: models.Version{Value: pgSaga.Version},
	}
}
