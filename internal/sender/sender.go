// Package sender abstracts outbound delivery channels.
//
// Production would bind real email and SMS providers here; this build ships
// simulated senders whose failure behavior is configurable, which is all the
// delivery state machine needs to be exercised end to end.
package sender

import (
	"context"
	"fmt"
)

// Request is one outbound message.
type Request struct {
	SendResultID int64
	UserID       int64
	Title        string
	Body         string
}

// Sender delivers messages on one channel. A returned error means the
// attempt failed; there is no partial-success state.
type Sender interface {
	Channel() string
	Send(ctx context.Context, req Request) error
}

// Registry maps channel symbols to their senders.
type Registry struct {
	byChannel map[string]Sender
}

// NewRegistry builds a registry. Registering two senders for the same
// channel is a programming error and fails construction.
func NewRegistry(senders ...Sender) (*Registry, error) {
	r := &Registry{byChannel: make(map[string]Sender, len(senders))}
	for _, s := range senders {
		if _, dup := r.byChannel[s.Channel()]; dup {
			return nil, fmt.Errorf("sender: duplicate sender for channel %q", s.Channel())
		}
		r.byChannel[s.Channel()] = s
	}
	return r, nil
}

// For returns the sender for a channel symbol.
func (r *Registry) For(channel string) (Sender, error) {
	s, ok := r.byChannel[channel]
	if !ok {
		return nil, fmt.Errorf("sender: no sender for channel %q", channel)
	}
	return s, nil
}
