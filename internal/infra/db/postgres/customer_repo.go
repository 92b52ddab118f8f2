package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/repository"
	"telegram-bot-fleet/internal/infra/security"
)

var _ repository.CustomerRepository = (*PostgresCustomerRepo)(nil)

// PostgresCustomerRepo reads customer bot credentials from Postgres. Tokens are
// stored AES-GCM encrypted and decrypted on the way out.
type PostgresCustomerRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
	log  *zerolog.Logger
}

func NewPostgresCustomerRepo(pool *pgxpool.Pool, enc *security.EncryptionService, logger *zerolog.Logger) *PostgresCustomerRepo {
	repoLog := logger.With().Str("component", "CustomerRepo").Logger()
	return &PostgresCustomerRepo{pool: pool, enc: enc, log: &repoLog}
}

func (r *PostgresCustomerRepo) ListAll(ctx context.Context) ([]*model.Customer, error) {
	const q = `
SELECT id, display_name, bot_token, updated_at
  FROM customers
 ORDER BY id;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, storeErr("list customers", err)
	}
	defer rows.Close()

	var out []*model.Customer
	for rows.Next() {
		var c model.Customer
		var encToken string
		if err := rows.Scan(&c.ID, &c.DisplayName, &encToken, &c.UpdatedAt); err != nil {
			return nil, storeErr("scan customer", err)
		}
		c.Token = r.decryptToken(c.ID, encToken)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list customers", err)
	}
	return out, nil
}

func (r *PostgresCustomerRepo) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	const q = `
SELECT id, display_name, bot_token, updated_at
  FROM customers WHERE id=$1;`
	var c model.Customer
	var encToken string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.DisplayName, &encToken, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("find customer", err)
	}
	c.Token = r.decryptToken(c.ID, encToken)
	return &c, nil
}

func (r *PostgresCustomerRepo) Watch(ctx context.Context) (repository.CustomerStream, error) {
	return newCustomerStream(ctx, r.pool, r.enc, r.log)
}

// decryptToken returns the plaintext token, or empty on a corrupted row so
// that reconciliation can record the bot as errored instead of dropping it.
func (r *PostgresCustomerRepo) decryptToken(customerID, encToken string) string {
	token, err := r.enc.Decrypt(encToken)
	if err != nil {
		r.log.Warn().Err(err).Str("customer_id", customerID).Msg("undecryptable bot token")
		return ""
	}
	return token
}

// storeErr classifies failures: a PgError means the server answered and the
// query itself is broken; everything else is the store being unreachable.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
