package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fairpay/backend/services/session-service/internal/models"
)

// Message types on the status feed.
const (
	TypeStatus  = "status"
	TypeRefresh = "refresh"
	TypeError   = "error"
)

// Envelope is the JSON frame exchanged with clients.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StatusSource is satisfied by *status.Poller.
type StatusSource interface {
	Latest() models.SessionStatus
	Refresh() models.SessionStatus
	Subscribe(fn func(models.SessionStatus)) (unsubscribe func())
}

// StatusFeed answers refresh requests and fans published snapshots out to every connection.
type StatusFeed struct {
	source  StatusSource
	manager *Manager
	logger  *zap.Logger
}

// NewStatusFeed builds the feed.
func NewStatusFeed(source StatusSource, manager *Manager, logger *zap.Logger) *StatusFeed {
	return &StatusFeed{source: source, manager: manager, logger: logger}
}

// Run forwards snapshots to the manager until ctx is done.
func (f *StatusFeed) Run(ctx context.Context) {
	unsubscribe := f.source.Subscribe(func(st models.SessionStatus) {
		msg, err := EncodeStatus(st)
		if err != nil {
			f.logger.Error("failed to encode status", zap.Error(err))
			return
		}
		f.manager.Broadcast(msg)
	})
	defer unsubscribe()
	<-ctx.Done()
}

// Initial returns the frame sent right after a client connects.
func (f *StatusFeed) Initial() ([]byte, error) {
	return EncodeStatus(f.source.Latest())
}

// Process handles a client frame. Only refresh is understood.
func (f *StatusFeed) Process(_ context.Context, _ string, raw []byte) ([]byte, error) {
	var in Envelope
	if err := json.Unmarshal(raw, &in); err != nil {
		return encode(TypeError, "malformed message")
	}
	if in.Type != TypeRefresh {
		return encode(TypeError, fmt.Sprintf("unknown message type %q", in.Type))
	}
	return EncodeStatus(f.source.Refresh())
}

// EncodeStatus wraps st in a status envelope.
func EncodeStatus(st models.SessionStatus) ([]byte, error) {
	return encode(TypeStatus, st)
}

func encode(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}

var _ MessageProcessor = (*StatusFeed)(nil)
