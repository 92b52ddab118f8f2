// File: internal/application/mocks_test.go
package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/adapter"
	"telegram-bot-fleet/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- credential store ----

// memCustomerRepo is a small in-memory store used by unit tests. Watch hands
// out streams fed by the test through pushEvent/failStream.
type memCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*model.Customer

	listErr  error // simulate store-unavailable on ListAll
	watchErr error // simulate subscription open failure

	ListAllFunc func(ctx context.Context) ([]*model.Customer, error)

	streamMu   sync.Mutex
	stream     *memStream
	watchCount int
}

func newMemCustomerRepo(customers ...*model.Customer) *memCustomerRepo {
	m := &memCustomerRepo{customers: make(map[string]*model.Customer)}
	for _, c := range customers {
		cp := *c
		m.customers[c.ID] = &cp
	}
	return m
}

func (m *memCustomerRepo) put(c *model.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.customers[c.ID] = &cp
}

func (m *memCustomerRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, id)
}

func (m *memCustomerRepo) ListAll(ctx context.Context) ([]*model.Customer, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*model.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCustomerRepo) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCustomerRepo) Watch(ctx context.Context) (repository.CustomerStream, error) {
	m.streamMu.Lock()
	defer m.streamMu.Unlock()
	m.watchCount++
	if m.watchErr != nil {
		err := m.watchErr
		m.watchErr = nil // fail once, then recover
		return nil, err
	}
	s := newMemStream()
	m.stream = s
	return s, nil
}

func (m *memCustomerRepo) currentStream() *memStream {
	m.streamMu.Lock()
	defer m.streamMu.Unlock()
	return m.stream
}

func (m *memCustomerRepo) watches() int {
	m.streamMu.Lock()
	defer m.streamMu.Unlock()
	return m.watchCount
}

// memStream delivers whatever the test pushes into it.
type memStream struct {
	events    chan model.ChangeEvent
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newMemStream() *memStream {
	return &memStream{
		events: make(chan model.ChangeEvent, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *memStream) Next(ctx context.Context) (model.ChangeEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return model.ChangeEvent{}, err
	case <-s.closed:
		return model.ChangeEvent{}, fmt.Errorf("%w: stream closed", domain.ErrFeedDisconnected)
	case <-ctx.Done():
		return model.ChangeEvent{}, ctx.Err()
	}
}

func (s *memStream) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *memStream) push(ev model.ChangeEvent) { s.events <- ev }
func (s *memStream) fail(err error)            { s.errs <- err }

// ---- bot factory ----

// mockBotFactory classifies tokens by convention: tokens containing "invalid"
// are rejected credentials, tokens containing "flaky" fail with a transport
// error. Everything else yields a healthy handle.
type mockBotFactory struct {
	mu     sync.Mutex
	builds map[string]int

	NewFunc func(ctx context.Context, token string) (adapter.BotHandle, model.BotIdentity, error)
}

func newMockBotFactory() *mockBotFactory {
	return &mockBotFactory{builds: make(map[string]int)}
}

func (f *mockBotFactory) New(ctx context.Context, token string) (adapter.BotHandle, model.BotIdentity, error) {
	f.mu.Lock()
	f.builds[token]++
	f.mu.Unlock()

	if f.NewFunc != nil {
		return f.NewFunc(ctx, token)
	}
	switch {
	case token == "" || strings.Contains(token, "invalid"):
		return nil, model.BotIdentity{}, fmt.Errorf("%w: Unauthorized", domain.ErrInvalidCredential)
	case strings.Contains(token, "flaky"):
		return nil, model.BotIdentity{}, fmt.Errorf("%w: connection refused", domain.ErrTransportFailure)
	}
	identity := model.BotIdentity{ID: int64(len(token)), Username: token + "_bot"}
	return newMockBotHandle(identity), identity, nil
}

func (f *mockBotFactory) buildCount(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds[token]
}

func (f *mockBotFactory) totalBuilds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.builds {
		n += c
	}
	return n
}

// mockBotHandle records sends and supports overrides per test.
type mockBotHandle struct {
	identity model.BotIdentity

	mu    sync.Mutex
	sends []int64

	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
	ValidateFunc    func(ctx context.Context) (model.BotIdentity, error)
}

func newMockBotHandle(identity model.BotIdentity) *mockBotHandle {
	return &mockBotHandle{identity: identity}
}

func (h *mockBotHandle) SendMessage(ctx context.Context, chatID int64, text string) error {
	h.mu.Lock()
	h.sends = append(h.sends, chatID)
	h.mu.Unlock()
	if h.SendMessageFunc != nil {
		return h.SendMessageFunc(ctx, chatID, text)
	}
	return nil
}

func (h *mockBotHandle) Validate(ctx context.Context) (model.BotIdentity, error) {
	if h.ValidateFunc != nil {
		return h.ValidateFunc(ctx)
	}
	return h.identity, nil
}

func (h *mockBotHandle) sendCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sends)
}

// ---- send limiter ----

type mockSendLimiter struct {
	AllowFunc func(ctx context.Context, customerID string) (bool, error)
}

func (m *mockSendLimiter) Allow(ctx context.Context, customerID string) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, customerID)
	}
	return true, nil
}

// ---- async helpers ----

// waitForEvent blocks until an event of the wanted type arrives or times out.
func waitForEvent(ch <-chan Event, want EventType, timeout time.Duration) (Event, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return Event{}, false
			}
			if ev.Type == want {
				return ev, true
			}
		case <-deadline:
			return Event{}, false
		}
	}
}

// waitUntil polls cond until it holds or the timeout expires.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
