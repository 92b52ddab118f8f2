package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/adapter"
	"telegram-bot-fleet/internal/domain/ports/repository"
	"telegram-bot-fleet/internal/infra/metrics"
)

// SendLimiter caps outbound message throughput per customer.
type SendLimiter interface {
	Allow(ctx context.Context, customerID string) (bool, error)
}

// PoolOptions tunes the pool's background behavior.
type PoolOptions struct {
	SyncInterval time.Duration
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	BuildTimeout time.Duration
}

// botRecord is one cache entry. Fields are only written while holding
// Pool.mu for writing, so readers under the read lock never see a torn
// record. The handle is replaced wholesale on credential change.
type botRecord struct {
	customerID  string
	displayName string
	botUsername string
	fingerprint string
	handle      adapter.BotHandle
	status      model.BotStatus
	lastErr     string
	lastUpdated time.Time
}

// Pool owns the cache of live bot handles, one per customer, and keeps it
// consistent with the credential store through the change feed plus a
// periodic full sync. All access from the rest of the application goes
// through its exported methods.
type Pool struct {
	store   repository.CustomerRepository
	factory adapter.BotFactory
	bus     *EventBus
	limiter SendLimiter
	watcher *Watcher
	opts    PoolOptions
	log     *zerolog.Logger

	mu      sync.RWMutex
	records map[string]*botRecord
	closed  bool

	// keyLocks serializes reconciliations per customer identity so two
	// rebuilds of the same record never overlap, while different
	// customers reconcile concurrently.
	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool wires the pool; Start must be called before use. limiter may be
// nil, in which case sends are not rate limited.
func NewPool(
	store repository.CustomerRepository,
	factory adapter.BotFactory,
	bus *EventBus,
	limiter SendLimiter,
	opts PoolOptions,
	logger *zerolog.Logger,
) *Pool {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 5 * time.Minute
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 15 * time.Second
	}
	poolLog := logger.With().Str("component", "BotPool").Logger()
	p := &Pool{
		store:    store,
		factory:  factory,
		bus:      bus,
		limiter:  limiter,
		opts:     opts,
		log:      &poolLog,
		records:  make(map[string]*botRecord),
		keyLocks: make(map[string]*sync.Mutex),
	}
	p.watcher = NewWatcher(store, p.applyEvent, bus, opts.BackoffMin, opts.BackoffMax, logger)
	return p
}

// Start loads all customers, builds their bots best-effort, then launches the
// change feed watcher and the periodic full-sync. It fails only when the
// initial bulk load itself cannot be obtained; individual bot build failures
// become error records surfaced via events.
func (p *Pool) Start(ctx context.Context) error {
	customers, err := p.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("initial customer load: %w", err)
	}
	for _, c := range customers {
		p.reconcileUpsert(ctx, c.ID, c.DisplayName, c.Token)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.watcher.Run(runCtx)
	}()
	go func() {
		defer p.wg.Done()
		p.syncLoop(runCtx)
	}()

	st := p.Stats()
	p.log.Info().
		Int("total", st.Total).
		Int("active", st.Active).
		Int("error", st.Error).
		Msg("bot pool started")
	return nil
}

// Get returns the live handle for an active record. It never blocks on
// network I/O.
func (p *Pool) Get(customerID string) (adapter.BotHandle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.status != model.BotStatusActive || rec.handle == nil {
		return nil, domain.ErrBotNotActive
	}
	return rec.handle, nil
}

// SendMessage delivers text through the customer's bot. A delivery failure is
// per-message and does not change the record's status.
func (p *Pool) SendMessage(ctx context.Context, customerID string, chatID int64, text string) error {
	if p.limiter != nil {
		ok, err := p.limiter.Allow(ctx, customerID)
		if err != nil {
			p.log.Warn().Err(err).Str("customer_id", customerID).Msg("rate limiter unavailable, allowing send")
		} else if !ok {
			metrics.IncRateLimitTriggered()
			metrics.ObserveSend("rate_limited", 0)
			return domain.ErrRateLimited
		}
	}

	handle, err := p.Get(customerID)
	if err != nil {
		metrics.ObserveSend("unavailable", 0)
		return err
	}

	start := time.Now()
	err = handle.SendMessage(ctx, chatID, text)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		metrics.ObserveSend("failed", latency)
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	metrics.ObserveSend("ok", latency)
	return nil
}

// CheckStatus revalidates the record's handle against Telegram and updates
// status/lastError from the result. This is the only path that can bring a
// record out of error without a credential change.
func (p *Pool) CheckStatus(ctx context.Context, customerID string) (model.BotStatus, error) {
	lock := p.keyLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	p.mu.RLock()
	rec, ok := p.records[customerID]
	var handle adapter.BotHandle
	var fp string
	var status model.BotStatus
	if ok {
		handle, fp, status = rec.handle, rec.fingerprint, rec.status
	}
	p.mu.RUnlock()

	if !ok {
		return "", domain.ErrNotFound
	}
	if handle == nil {
		// Nothing to validate; only a credential change can help.
		return status, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.opts.BuildTimeout)
	defer cancel()
	identity, vErr := handle.Validate(checkCtx)

	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok = p.records[customerID]
	if !ok || rec.fingerprint != fp {
		// Reconciled away or rebuilt while we validated; do not regress it.
		if !ok {
			return "", domain.ErrNotFound
		}
		return rec.status, nil
	}

	next := *rec
	next.lastUpdated = time.Now()
	if vErr != nil {
		next.status = model.BotStatusError
		next.lastErr = vErr.Error()
	} else {
		next.status = model.BotStatusActive
		next.lastErr = ""
		next.botUsername = identity.Username
	}
	p.records[customerID] = &next
	p.refreshGaugesLocked()
	return next.status, nil
}

// Stats returns counts by status plus the watcher's connection state.
func (p *Pool) Stats() model.PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := model.PoolStats{IsWatching: p.watcher.IsWatching()}
	for _, rec := range p.records {
		st.Total++
		switch rec.status {
		case model.BotStatusActive:
			st.Active++
		case model.BotStatusInactive:
			st.Inactive++
		case model.BotStatusError:
			st.Error++
		}
	}
	return st
}

// List returns a per-bot snapshot sorted by customer id.
func (p *Pool) List() []model.BotView {
	p.mu.RLock()
	views := make([]model.BotView, 0, len(p.records))
	for _, rec := range p.records {
		views = append(views, model.BotView{
			CustomerID:  rec.customerID,
			DisplayName: rec.displayName,
			BotUsername: rec.botUsername,
			Status:      rec.status,
			LastError:   rec.lastErr,
			LastUpdated: rec.lastUpdated,
		})
	}
	p.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool { return views[i].CustomerID < views[j].CustomerID })
	return views
}

// Reload forces an immediate full resynchronization against the store.
func (p *Pool) Reload(ctx context.Context) error {
	if p.isClosed() {
		return domain.ErrPoolStopped
	}
	return p.fullSync(ctx)
}

// Stop shuts down the watcher and sync timer, clears the cache and releases
// all handles. Idempotent and safe to call from any goroutine.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.watcher.Stop()
		p.wg.Wait()

		p.mu.Lock()
		p.closed = true
		p.records = make(map[string]*botRecord)
		p.refreshGaugesLocked()
		p.mu.Unlock()

		p.log.Info().Msg("bot pool stopped")
	})
}

// ---- reconciliation ----

// applyEvent translates one feed event into a reconciliation intent. Upsert
// events without an inline credential are resolved by re-reading the row.
func (p *Pool) applyEvent(ctx context.Context, ev model.ChangeEvent) {
	switch {
	case ev.Op == model.ChangeOpDelete:
		p.remove(ev.CustomerID)
	case ev.IsUpsert():
		name, token := ev.DisplayName, ev.Token
		if token == "" {
			c, err := p.store.FindByID(ctx, ev.CustomerID)
			if errors.Is(err, domain.ErrNotFound) {
				p.remove(ev.CustomerID)
				return
			}
			if err != nil {
				// Leave it to the next full sync rather than guessing.
				p.log.Warn().Err(err).Str("customer_id", ev.CustomerID).Msg("cannot resolve feed event")
				return
			}
			name, token = c.DisplayName, c.Token
		}
		p.reconcileUpsert(ctx, ev.CustomerID, name, token)
	}
}

// reconcileUpsert brings the record for customerID in line with the desired
// credential. Equal fingerprints are a no-op, which makes the feed path and
// the full-sync path idempotent against each other.
func (p *Pool) reconcileUpsert(ctx context.Context, customerID, displayName, token string) {
	lock := p.keyLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	if p.isClosed() {
		return
	}

	fp := fingerprintOf(token)

	p.mu.RLock()
	rec, exists := p.records[customerID]
	sameCredential := exists && rec.fingerprint == fp
	p.mu.RUnlock()

	if sameCredential {
		// No-op apart from keeping the label fresh.
		p.mu.Lock()
		if cur, ok := p.records[customerID]; ok && cur.displayName != displayName {
			next := *cur
			next.displayName = displayName
			p.records[customerID] = &next
		}
		p.mu.Unlock()
		metrics.IncReconciliation("noop")
		return
	}

	buildCtx, cancel := context.WithTimeout(ctx, p.opts.BuildTimeout)
	handle, identity, buildErr := p.factory.New(buildCtx, token)
	cancel()

	now := time.Now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	rec, exists = p.records[customerID]

	if buildErr != nil {
		next := &botRecord{
			customerID:  customerID,
			displayName: displayName,
			status:      model.BotStatusError,
			lastErr:     buildErr.Error(),
			lastUpdated: now,
		}
		if exists {
			// Keep the old handle so CheckStatus can probe it, and the old
			// fingerprint for diagnostics and transport-failure retries.
			next.handle = rec.handle
			next.botUsername = rec.botUsername
			next.fingerprint = rec.fingerprint
		}
		if errors.Is(buildErr, domain.ErrInvalidCredential) {
			// A bad credential is never retried until it changes; adopting
			// its fingerprint makes later identical intents no-ops.
			next.fingerprint = fp
		}
		p.records[customerID] = next
		p.refreshGaugesLocked()
		p.mu.Unlock()

		metrics.IncReconciliation("error")
		p.log.Error().Err(buildErr).Str("customer_id", customerID).Msg("bot build failed")
		p.bus.Publish(Event{Type: EventError, CustomerID: customerID, DisplayName: displayName, Err: buildErr.Error()})
		return
	}

	next := &botRecord{
		customerID:  customerID,
		displayName: displayName,
		botUsername: identity.Username,
		fingerprint: fp,
		handle:      handle,
		status:      model.BotStatusActive,
		lastUpdated: now,
	}
	p.records[customerID] = next
	p.refreshGaugesLocked()
	p.mu.Unlock()

	action := EventAdded
	if exists {
		action = EventUpdated
	}
	metrics.IncReconciliation(string(action))
	p.log.Info().
		Str("customer_id", customerID).
		Str("bot_username", identity.Username).
		Str("action", string(action)).
		Msg("bot reconciled")
	p.bus.Publish(Event{Type: action, CustomerID: customerID, DisplayName: displayName})
}

// remove drops the record for customerID if present.
func (p *Pool) remove(customerID string) {
	lock := p.keyLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	rec, ok := p.records[customerID]
	if ok {
		delete(p.records, customerID)
		p.refreshGaugesLocked()
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	metrics.IncReconciliation("removed")
	p.log.Info().Str("customer_id", customerID).Msg("bot removed")
	p.bus.Publish(Event{Type: EventRemoved, CustomerID: customerID, DisplayName: rec.displayName})
}

// fullSync reconciles every listed customer and removes cached entries whose
// identity no longer exists upstream. It is the safety net against missed or
// out-of-order feed events.
func (p *Pool) fullSync(ctx context.Context) error {
	customers, err := p.store.ListAll(ctx)
	if err != nil {
		metrics.IncFullSync(false)
		return fmt.Errorf("full sync list: %w", err)
	}

	seen := make(map[string]struct{}, len(customers))
	for _, c := range customers {
		seen[c.ID] = struct{}{}
		p.reconcileUpsert(ctx, c.ID, c.DisplayName, c.Token)
	}

	p.mu.RLock()
	var stale []string
	for id := range p.records {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	p.mu.RUnlock()
	for _, id := range stale {
		p.remove(id)
	}

	metrics.IncFullSync(true)
	p.log.Debug().Int("customers", len(customers)).Int("removed", len(stale)).Msg("full sync done")
	return nil
}

func (p *Pool) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.fullSync(ctx); err != nil {
				p.log.Error().Err(err).Msg("periodic full sync failed")
			}
		}
	}
}

// ---- internals ----

func (p *Pool) keyLock(customerID string) *sync.Mutex {
	p.keyMu.Lock()
	defer p.keyMu.Unlock()
	l, ok := p.keyLocks[customerID]
	if !ok {
		l = &sync.Mutex{}
		p.keyLocks[customerID] = l
	}
	return l
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Pool) refreshGaugesLocked() {
	var active, inactive, errored int
	for _, rec := range p.records {
		switch rec.status {
		case model.BotStatusActive:
			active++
		case model.BotStatusInactive:
			inactive++
		case model.BotStatusError:
			errored++
		}
	}
	metrics.SetBots(string(model.BotStatusActive), active)
	metrics.SetBots(string(model.BotStatusInactive), inactive)
	metrics.SetBots(string(model.BotStatusError), errored)
}

// fingerprintOf hashes a credential for change detection; the plaintext token
// never sits in the record.
func fingerprintOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
