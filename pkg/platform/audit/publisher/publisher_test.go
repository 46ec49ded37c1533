package publisher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficase/pkg/platform/audit"
	"trafficase/pkg/platform/audit/sink/memory"
)

func testConfig() Config {
	return Config{
		QueueSize:      100,
		BatchSize:      10,
		MaxAttempts:    2,
		RetryBackoff:   time.Millisecond,
		FlushInterval:  5 * time.Millisecond,
		DeadLetterSize: 100,
	}
}

func TestPublisher_DeliversToSink(t *testing.T) {
	sink := memory.New()
	pub := New(sink, testConfig())
	defer pub.Close()

	pub.Emit(context.Background(), audit.Event{
		Action:  string(audit.EventOffenseRecorded),
		Subject: "offense/1",
	})

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 1
	}, time.Second, 5*time.Millisecond)

	event := sink.Events()[0]
	assert.Equal(t, "offense_recorded", event.Action)
	assert.False(t, event.Timestamp.IsZero(), "timestamp is stamped on emit")
}

func TestPublisher_DrainsOnClose(t *testing.T) {
	sink := memory.New()
	cfg := testConfig()
	cfg.FlushInterval = time.Hour // only Close may flush
	pub := New(sink, cfg)

	for i := 0; i < 25; i++ {
		pub.Emit(context.Background(), audit.Event{
			Action:  string(audit.EventPaymentRecorded),
			Subject: "payment/9",
		})
	}
	require.NoError(t, pub.Close())

	assert.Len(t, sink.Events(), 25, "all buffered events are drained on close")
}

// failingSink rejects every publish.
type failingSink struct {
	calls atomic.Int32
}

func (f *failingSink) Publish(context.Context, []audit.Event) error {
	f.calls.Add(1)
	return errors.New("broker unavailable")
}

func (f *failingSink) Close() error { return nil }

func TestPublisher_DeadLettersAfterRetriesExhausted(t *testing.T) {
	sink := &failingSink{}
	pub := New(sink, testConfig())

	pub.Emit(context.Background(), audit.Event{
		Action:  string(audit.EventAppealRecorded),
		Subject: "appeal/4",
	})

	require.Eventually(t, func() bool {
		return sink.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Close())

	dead := pub.DeadLetters()
	require.NotEmpty(t, dead)
	assert.Equal(t, "appeal/4", dead[0].Subject)
}

func TestPublisher_EmitNeverBlocks(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2
	cfg.FlushInterval = time.Hour
	pub := New(&failingSink{}, cfg)
	defer pub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			pub.Emit(context.Background(), audit.Event{Action: "spam"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full buffer")
	}
}
