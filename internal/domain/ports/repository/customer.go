package repository

import (
	"context"

	"telegram-bot-fleet/internal/domain/model"
)

// -----------------------------
// Customers (credential store)
// -----------------------------

// CustomerRepository is the authoritative source of bot credentials.
type CustomerRepository interface {
	// ListAll returns every customer record. Fails with
	// domain.ErrStoreUnavailable (wrapped) when the store cannot be reached.
	ListAll(ctx context.Context) ([]*model.Customer, error)
	// FindByID returns a single customer or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Customer, error)
	// Watch opens the live change feed. The returned stream stays open until
	// Close or a feed-level failure surfaces through Next.
	Watch(ctx context.Context) (CustomerStream, error)
}

// CustomerStream is a lazy sequence of change events.
//
// Next blocks until an event arrives, the context is canceled, or the feed
// fails. A malformed payload yields domain.ErrMalformedEvent and the stream
// remains usable; any other error means the feed is dead and the stream must
// be reopened via Watch.
type CustomerStream interface {
	Next(ctx context.Context) (model.ChangeEvent, error)
	Close()
}
