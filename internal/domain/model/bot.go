package model

import "time"

// BotStatus is the lifecycle state of a cached bot connection.
type BotStatus string

const (
	BotStatusActive   BotStatus = "active"
	BotStatusInactive BotStatus = "inactive"
	BotStatusError    BotStatus = "error"
)

// BotIdentity is the resolved identity of a connected bot, as reported by
// the Telegram API during credential validation.
type BotIdentity struct {
	ID       int64
	Username string
}

// BotView is a read-only snapshot of one pool entry, safe to serialize.
type BotView struct {
	CustomerID  string    `json:"customer_id"`
	DisplayName string    `json:"display_name"`
	BotUsername string    `json:"bot_username,omitempty"`
	Status      BotStatus `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// PoolStats is the aggregate snapshot served to operators.
type PoolStats struct {
	Total      int  `json:"total"`
	Active     int  `json:"active"`
	Inactive   int  `json:"inactive"`
	Error      int  `json:"error"`
	IsWatching bool `json:"is_watching"`
}

// ChangeOp is the kind of mutation reported by the credential store feed.
type ChangeOp string

const (
	ChangeOpInsert  ChangeOp = "insert"
	ChangeOpUpdate  ChangeOp = "update"
	ChangeOpReplace ChangeOp = "replace"
	ChangeOpDelete  ChangeOp = "delete"
)

// ChangeEvent is one decoded entry from the store's change feed. Token may be
// empty on upserts when the feed could not carry the credential inline; the
// consumer re-reads the row in that case.
type ChangeEvent struct {
	Op          ChangeOp
	CustomerID  string
	DisplayName string
	Token       string
}

// IsUpsert reports whether the event should result in a live bot for the
// customer. Replace events are updates that rewrote the whole row.
func (e ChangeEvent) IsUpsert() bool {
	return e.Op == ChangeOpInsert || e.Op == ChangeOpUpdate || e.Op == ChangeOpReplace
}
