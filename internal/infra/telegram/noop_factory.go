package telegram

import (
	"context"
	"fmt"
	"hash/fnv"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/adapter"
)

var _ adapter.BotFactory = (*NoopBotFactory)(nil)

// NoopBotFactory fabricates always-healthy handles for developer mode so the
// pool can be exercised without real Telegram credentials.
type NoopBotFactory struct{}

func NewNoopBotFactory() *NoopBotFactory { return &NoopBotFactory{} }

func (f *NoopBotFactory) New(_ context.Context, token string) (adapter.BotHandle, model.BotIdentity, error) {
	if token == "" {
		return nil, model.BotIdentity{}, fmt.Errorf("%w: empty token", domain.ErrInvalidCredential)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	identity := model.BotIdentity{
		ID:       int64(h.Sum32()),
		Username: fmt.Sprintf("noop_%08x_bot", h.Sum32()),
	}
	return &noopBotHandle{identity: identity}, identity, nil
}

type noopBotHandle struct {
	identity model.BotIdentity
}

func (h *noopBotHandle) SendMessage(context.Context, int64, string) error { return nil }

func (h *noopBotHandle) Validate(context.Context) (model.BotIdentity, error) {
	return h.identity, nil
}
