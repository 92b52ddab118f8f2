package application

import (
	"context"

	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/adapter"
)

// BotPool is the surface the HTTP layer and other consumers program against.
// Using an interface keeps those layers testable with light-weight mocks.
type BotPool interface {
	Get(customerID string) (adapter.BotHandle, error)
	SendMessage(ctx context.Context, customerID string, chatID int64, text string) error
	CheckStatus(ctx context.Context, customerID string) (model.BotStatus, error)
	Stats() model.PoolStats
	List() []model.BotView
	Reload(ctx context.Context) error
}

var _ BotPool = (*Pool)(nil)
