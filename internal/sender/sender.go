package sender

import (
	"context"

	"github.com/havenloop/dispatch-api/internal/model"
)

// Mode selects the sender strategy for a channel once at startup. There
// is no global "is this channel live yet" toggle; a channel not yet
// provisioned for production traffic runs a Simulated sender behind the
// same interface.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

// Sender is the uniform send contract every channel implements.
type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, address, subject, body string) (providerID string, err error)
}

// Registry maps channels to their configured senders.
type Registry map[model.Channel]Sender

func NewRegistry(senders ...Sender) Registry {
	reg := make(Registry, len(senders))
	for _, s := range senders {
		reg[s.Channel()] = s
	}
	return reg
}

func (r Registry) For(ch model.Channel) (Sender, bool) {
	s, ok := r[ch]
	return s, ok
}
