package web

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/application"
	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/adapter"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// mockPool implements application.BotPool for handler tests.
type mockPool struct {
	StatsFunc       func() model.PoolStats
	ListFunc        func() []model.BotView
	CheckStatusFunc func(ctx context.Context, customerID string) (model.BotStatus, error)
	ReloadFunc      func(ctx context.Context) error
	SendMessageFunc func(ctx context.Context, customerID string, chatID int64, text string) error
	GetFunc         func(customerID string) (adapter.BotHandle, error)
}

var _ application.BotPool = (*mockPool)(nil)

func (m *mockPool) Stats() model.PoolStats {
	if m.StatsFunc != nil {
		return m.StatsFunc()
	}
	return model.PoolStats{}
}

func (m *mockPool) List() []model.BotView {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil
}

func (m *mockPool) CheckStatus(ctx context.Context, customerID string) (model.BotStatus, error) {
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, customerID)
	}
	return model.BotStatusActive, nil
}

func (m *mockPool) Reload(ctx context.Context) error {
	if m.ReloadFunc != nil {
		return m.ReloadFunc(ctx)
	}
	return nil
}

func (m *mockPool) SendMessage(ctx context.Context, customerID string, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, customerID, chatID, text)
	}
	return nil
}

func (m *mockPool) Get(customerID string) (adapter.BotHandle, error) {
	if m.GetFunc != nil {
		return m.GetFunc(customerID)
	}
	return nil, domain.ErrNotFound
}
