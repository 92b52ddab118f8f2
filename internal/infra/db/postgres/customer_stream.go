package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/infra/security"
)

// notifyChannel must match the channel used by the trigger in migrations.
const notifyChannel = "customer_events"

// customerStream delivers change events via Postgres LISTEN/NOTIFY on a
// dedicated connection. Closing the stream closes the connection, which also
// unblocks a concurrent Next.
type customerStream struct {
	conn *pgxpool.Conn
	enc  *security.EncryptionService
	log  *zerolog.Logger

	closeOnce sync.Once
}

// notifyPayload mirrors the JSON built by the notify_customer_change trigger.
// BotToken is omitted by the trigger when the payload would exceed the NOTIFY
// size cap; consumers re-read the row in that case.
type notifyPayload struct {
	Op          string `json:"op"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	BotToken    string `json:"bot_token"`
}

func newCustomerStream(ctx context.Context, pool *pgxpool.Pool, enc *security.EncryptionService, logger *zerolog.Logger) (*customerStream, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, storeErr("acquire feed connection", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, storeErr("listen "+notifyChannel, err)
	}
	streamLog := logger.With().Str("component", "CustomerStream").Logger()
	return &customerStream{conn: conn, enc: enc, log: &streamLog}, nil
}

func (s *customerStream) Next(ctx context.Context) (model.ChangeEvent, error) {
	n, err := s.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return model.ChangeEvent{}, ctx.Err()
		}
		return model.ChangeEvent{}, fmt.Errorf("%w: %v", domain.ErrFeedDisconnected, err)
	}

	var p notifyPayload
	if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	op := model.ChangeOp(p.Op)
	switch op {
	case model.ChangeOpInsert, model.ChangeOpUpdate, model.ChangeOpReplace, model.ChangeOpDelete:
	default:
		return model.ChangeEvent{}, fmt.Errorf("%w: unknown op %q", domain.ErrMalformedEvent, p.Op)
	}
	if p.ID == "" {
		return model.ChangeEvent{}, fmt.Errorf("%w: missing customer id", domain.ErrMalformedEvent)
	}

	ev := model.ChangeEvent{
		Op:          op,
		CustomerID:  p.ID,
		DisplayName: p.DisplayName,
	}
	if p.BotToken != "" {
		token, err := s.enc.Decrypt(p.BotToken)
		if err != nil {
			// Leave the token empty; the watcher falls back to a row re-read.
			s.log.Warn().Err(err).Str("customer_id", p.ID).Msg("undecryptable token in feed event")
		} else {
			ev.Token = token
		}
	}
	return ev, nil
}

func (s *customerStream) Close() {
	s.closeOnce.Do(func() {
		// Close the underlying connection rather than releasing a LISTEN-ing
		// connection back into the pool; this also interrupts WaitForNotification.
		_ = s.conn.Conn().Close(context.Background())
		s.conn.Release()
	})
}
