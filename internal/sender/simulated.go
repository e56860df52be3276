package sender

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/havenloop/dispatch-api/internal/model"
)

// SimulatedSend is one recorded attempt, inspectable by tests and by the
// operator before a channel is provisioned for live traffic.
type SimulatedSend struct {
	Channel model.Channel
	Address string
	Subject string
	Body    string
	At      time.Time
}

// Simulated satisfies the Sender contract without touching a gateway.
// Provider ids are deterministic (sim-<channel>-<n>) so repeated runs are
// comparable.
type Simulated struct {
	channel model.Channel

	mu    sync.Mutex
	seq   int
	sends []SimulatedSend

	// failFor makes specific addresses fail, for exercising retry paths.
	failFor map[string]error
}

func NewSimulated(channel model.Channel) *Simulated {
	return &Simulated{
		channel: channel,
		failFor: make(map[string]error),
	}
}

func (s *Simulated) Channel() model.Channel {
	return s.channel
}

func (s *Simulated) Send(ctx context.Context, address, subject, body string) (string, error) {
	if err := ValidateAddress(s.channel, address); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failFor[address]; ok {
		return "", err
	}

	s.seq++
	s.sends = append(s.sends, SimulatedSend{
		Channel: s.channel,
		Address: address,
		Subject: subject,
		Body:    body,
		At:      time.Now(),
	})
	return fmt.Sprintf("sim-%s-%06d", s.channel, s.seq), nil
}

// FailAddress makes every send to address return err.
func (s *Simulated) FailAddress(address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[address] = err
}

// Sends returns a copy of the recorded attempts.
func (s *Simulated) Sends() []SimulatedSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SimulatedSend, len(s.sends))
	copy(out, s.sends)
	return out
}
