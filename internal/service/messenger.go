package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/acotrina/fise-coupon-service/internal/domain"
	"github.com/acotrina/fise-coupon-service/pkg/logger"
)

// Small consumer-side interfaces so the protocol layer can be tested with
// hand-written fakes instead of a live gateway and database.
type smsTransport interface {
	Send(ctx context.Context, to, text string) error
}

type historyStore interface {
	Append(ctx context.Context, phone, body string, direction domain.Direction) error
}

// Messenger sends protocol replies and records them in the durable message
// history. Observers (UI, diagnostics) learn about new history entries
// through the refresh channel.
type Messenger struct {
	transport smsTransport
	history   historyStore
	refresh   chan struct{}
}

func NewMessenger(transport smsTransport, history historyStore) *Messenger {
	return &Messenger{
		transport: transport,
		history:   history,
		refresh:   make(chan struct{}, 1),
	}
}

// Refresh is a level-triggered signal: at least one send or inbound append
// happened since the observer last drained it.
func (m *Messenger) Refresh() <-chan struct{} {
	return m.refresh
}

// Send delivers one text. Blank destinations are rejected before touching
// the transport. A transport failure is terminal for the caller's event; a
// history write failure is logged only, since the message is already on the
// wire.
func (m *Messenger) Send(ctx context.Context, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("messenger: blank destination")
	}

	if err := m.transport.Send(ctx, to, text); err != nil {
		return fmt.Errorf("messenger: %w", err)
	}

	if err := m.history.Append(ctx, to, text, domain.DirectionOut); err != nil {
		logger.Warnf("Failed to record outbound message to %s in history: %v", to, err)
	}

	m.notify()
	return nil
}

// RecordInbound appends a received body to the same history, tagged
// inbound, and raises the refresh signal.
func (m *Messenger) RecordInbound(ctx context.Context, from, body string) {
	if err := m.history.Append(ctx, from, body, domain.DirectionIn); err != nil {
		logger.Warnf("Failed to record inbound message from %s in history: %v", from, err)
	}
	m.notify()
}

func (m *Messenger) notify() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}
