package telegram

import (
	"context"
	"errors"
	"net"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-bot-fleet/internal/domain"
)

func TestClassifyErr(t *testing.T) {
	t.Run("should classify 401 as invalid credential", func(t *testing.T) {
		err := classifyErr(&tgbotapi.Error{Code: 401, Message: "Unauthorized"})
		if !errors.Is(err, domain.ErrInvalidCredential) {
			t.Errorf("expected ErrInvalidCredential, got %v", err)
		}
	})

	t.Run("should classify 404 as invalid credential", func(t *testing.T) {
		err := classifyErr(&tgbotapi.Error{Code: 404, Message: "Not Found"})
		if !errors.Is(err, domain.ErrInvalidCredential) {
			t.Errorf("expected ErrInvalidCredential, got %v", err)
		}
	})

	t.Run("should classify other api codes as transport failure", func(t *testing.T) {
		err := classifyErr(&tgbotapi.Error{Code: 502, Message: "Bad Gateway"})
		if !errors.Is(err, domain.ErrTransportFailure) {
			t.Errorf("expected ErrTransportFailure, got %v", err)
		}
	})

	t.Run("should classify network errors as transport failure", func(t *testing.T) {
		err := classifyErr(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
		if !errors.Is(err, domain.ErrTransportFailure) {
			t.Errorf("expected ErrTransportFailure, got %v", err)
		}
	})
}

func TestRealBotFactory_New(t *testing.T) {
	t.Run("should reject an empty token without a network call", func(t *testing.T) {
		f := NewRealBotFactory(0, testLogger())
		_, _, err := f.New(context.Background(), "")
		if !errors.Is(err, domain.ErrInvalidCredential) {
			t.Errorf("expected ErrInvalidCredential, got %v", err)
		}
	})

	t.Run("should honor a canceled context", func(t *testing.T) {
		f := NewRealBotFactory(0, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := f.New(ctx, "123:token")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestNoopBotFactory(t *testing.T) {
	f := NewNoopBotFactory()

	t.Run("should build a stable identity per token", func(t *testing.T) {
		_, id1, err := f.New(context.Background(), "token-a")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		_, id2, _ := f.New(context.Background(), "token-a")
		if id1 != id2 {
			t.Errorf("expected same identity for same token, got %+v vs %+v", id1, id2)
		}
		_, other, _ := f.New(context.Background(), "token-b")
		if id1 == other {
			t.Error("expected different identities for different tokens")
		}
	})

	t.Run("should still reject empty tokens", func(t *testing.T) {
		_, _, err := f.New(context.Background(), "")
		if !errors.Is(err, domain.ErrInvalidCredential) {
			t.Errorf("expected ErrInvalidCredential, got %v", err)
		}
	})
}
