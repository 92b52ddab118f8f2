package adapter

import (
	"context"

	"telegram-bot-fleet/internal/domain/model"
)

// BotHandle is one live bot connection. A handle is owned by exactly one pool
// record and is replaced wholesale on credential change, never mutated.
type BotHandle interface {
	// SendMessage delivers a text message to a chat. Delivery failures are
	// per-message; they do not invalidate the handle.
	SendMessage(ctx context.Context, chatID int64, text string) error
	// Validate performs an identity round trip and reports the bot's
	// current identity, or a classified error.
	Validate(ctx context.Context) (model.BotIdentity, error)
}

// BotFactory builds a connected, validated handle from a raw credential.
// Construction errors are classified: errors.Is(err, domain.ErrInvalidCredential)
// for rejected tokens, domain.ErrTransportFailure otherwise.
type BotFactory interface {
	New(ctx context.Context, token string) (BotHandle, model.BotIdentity, error)
}
