package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/dispatch-api/internal/model"
)

func TestSimulated_DeterministicProviderIDs(t *testing.T) {
	sim := NewSimulated(model.ChannelSMS)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		id, err := sim.Send(ctx, "+15551234567", "", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("sim-sms-%06d", i), id)
	}

	sends := sim.Sends()
	require.Len(t, sends, 3)
	assert.Equal(t, "message 1", sends[0].Body)
	assert.Equal(t, model.ChannelSMS, sends[0].Channel)
}

func TestSimulated_ValidatesAddress(t *testing.T) {
	sim := NewSimulated(model.ChannelEmail)

	_, err := sim.Send(context.Background(), "not-an-email", "Subject", "Body")
	assert.Error(t, err)
	assert.Empty(t, sim.Sends())
}

func TestSimulated_FailAddress(t *testing.T) {
	sim := NewSimulated(model.ChannelEmail)
	boom := errors.New("mailbox full")
	sim.FailAddress("broken@example.com", boom)

	_, err := sim.Send(context.Background(), "broken@example.com", "Subject", "Body")
	assert.ErrorIs(t, err, boom)

	id, err := sim.Send(context.Background(), "fine@example.com", "Subject", "Body")
	require.NoError(t, err)
	assert.Equal(t, "sim-email-000001", id)

	// Failed attempts are not recorded as sends.
	assert.Len(t, sim.Sends(), 1)
}

func TestSimulated_ConcurrentSends(t *testing.T) {
	sim := NewSimulated(model.ChannelSMS)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sim.Send(ctx, "+15551234567", "", "ping")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sends := sim.Sends()
	assert.Len(t, sends, 20)
}
