package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/pixgateway/internal/domain/pix"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTransactionNotFound = errors.New("pix transaction not found")

// TransactionRecord is the last known state of a transaction as reported by
// provider webhooks.
type TransactionRecord struct {
	TransactionID  string
	Status         pix.Status
	AmountCents    *int64
	LastDeliveryID string
	Payload        json.RawMessage
	EventCount     int
	FirstSeenAt    time.Time
	UpdatedAt      time.Time
}

// TransactionStore keeps a webhook log and a per-transaction projection.
// Delivery ids are assigned per receipt, so the delivery id check only stops
// the same queued event from being written twice. A provider retry is logged
// as a new row. The projection never moves backwards: an event older than the
// stored state does not overwrite it.
type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) Name() string { return "postgres" }

func (s *TransactionStore) Deliver(ctx context.Context, evt pix.WebhookEvent) error {
	payload := evt.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO pix_webhook_events (delivery_id, transaction_id, status, payload, received_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (delivery_id) DO NOTHING`,
			evt.DeliveryID, evt.TransactionID, string(evt.Status), payload, evt.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("insert webhook event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO pix_transactions
				(transaction_id, status, amount_cents, last_delivery_id, payload, event_count, first_seen_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
			ON CONFLICT (transaction_id) DO UPDATE SET
				status = EXCLUDED.status,
				amount_cents = COALESCE(EXCLUDED.amount_cents, pix_transactions.amount_cents),
				last_delivery_id = EXCLUDED.last_delivery_id,
				payload = EXCLUDED.payload,
				event_count = pix_transactions.event_count + 1,
				updated_at = EXCLUDED.updated_at
			WHERE EXCLUDED.updated_at >= pix_transactions.updated_at`,
			evt.TransactionID, string(evt.Status), evt.AmountCents, evt.DeliveryID, payload, evt.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store webhook event %s: %w", evt.DeliveryID, err)
	}
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, transactionID string) (*TransactionRecord, error) {
	var rec TransactionRecord
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT transaction_id, status, amount_cents, last_delivery_id, payload, event_count, first_seen_at, updated_at
		FROM pix_transactions
		WHERE transaction_id = $1`, transactionID,
	).Scan(&rec.TransactionID, &status, &rec.AmountCents, &rec.LastDeliveryID, &rec.Payload, &rec.EventCount, &rec.FirstSeenAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", transactionID, err)
	}
	rec.Status = pix.Status(status)
	return &rec, nil
}
