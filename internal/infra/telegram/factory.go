package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/adapter"
)

var _ adapter.BotFactory = (*RealBotFactory)(nil)

// RealBotFactory builds connected bot handles via the Telegram Bot API.
// Construction includes the getMe identity round trip performed by tgbotapi.
type RealBotFactory struct {
	client *http.Client
	log    *zerolog.Logger
}

func NewRealBotFactory(buildTimeout time.Duration, logger *zerolog.Logger) *RealBotFactory {
	if buildTimeout <= 0 {
		buildTimeout = 15 * time.Second
	}
	facLog := logger.With().Str("component", "BotFactory").Logger()
	return &RealBotFactory{
		client: &http.Client{Timeout: buildTimeout},
		log:    &facLog,
	}
}

func (f *RealBotFactory) New(ctx context.Context, token string) (adapter.BotHandle, model.BotIdentity, error) {
	if token == "" {
		return nil, model.BotIdentity{}, fmt.Errorf("%w: empty token", domain.ErrInvalidCredential)
	}
	if err := ctx.Err(); err != nil {
		return nil, model.BotIdentity{}, err
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, f.client)
	if err != nil {
		return nil, model.BotIdentity{}, classifyErr(err)
	}

	identity := model.BotIdentity{ID: bot.Self.ID, Username: bot.Self.UserName}
	f.log.Debug().Str("bot_username", identity.Username).Msg("bot handle built")
	return &realBotHandle{bot: bot}, identity, nil
}

// realBotHandle wraps one authenticated *tgbotapi.BotAPI.
type realBotHandle struct {
	bot *tgbotapi.BotAPI
}

func (h *realBotHandle) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		return classifyErr(err)
	}
	return nil
}

func (h *realBotHandle) Validate(ctx context.Context) (model.BotIdentity, error) {
	if err := ctx.Err(); err != nil {
		return model.BotIdentity{}, err
	}
	me, err := h.bot.GetMe()
	if err != nil {
		return model.BotIdentity{}, classifyErr(err)
	}
	return model.BotIdentity{ID: me.ID, Username: me.UserName}, nil
}

// classifyErr separates rejected credentials from transport trouble.
// Telegram answers 401 for a bad token and 404 for a token with a bad shape.
func classifyErr(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrInvalidCredential, apiErr.Message)
		default:
			return fmt.Errorf("%w: telegram api %d: %s", domain.ErrTransportFailure, apiErr.Code, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
}
