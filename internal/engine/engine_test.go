package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hashwork/internal/jobchannel"
	"hashwork/internal/workgen"
	"hashwork/pkg/mining"
)

func TestOneShotEngineDeliversOnceThenExhausts(t *testing.T) {
	work := &mining.Assignment{Job: &mining.Job{Version: 1}}
	eng := NewOneShotEngine(work)

	assert.False(t, eng.IsExhausted())

	got, state := eng.NextWork(context.Background())
	assert.Same(t, work, got)
	assert.Equal(t, Break, state)
	assert.True(t, eng.IsExhausted())

	got, state = eng.NextWork(context.Background())
	assert.Nil(t, got)
	assert.Equal(t, Exhausted, state)
}

func TestStreamEngineReflectsGeneratorExhaustion(t *testing.T) {
	jc := jobchannel.New()
	jc.Close()
	gen := workgen.New(jc, 4)
	eng := NewStreamEngine(gen)

	assert.False(t, eng.IsExhausted())
	_, state := eng.NextWork(context.Background())
	assert.Equal(t, Exhausted, state)
	assert.True(t, eng.IsExhausted())
}

func TestChannelBroadcastIsLatestWins(t *testing.T) {
	ch := NewChannel()
	engA := NewOneShotEngine(&mining.Assignment{})
	engB := NewOneShotEngine(&mining.Assignment{})

	ch.Broadcast(engA)
	ch.Broadcast(engB)

	recv := NewReceiver(ch)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := recv.GetEngine(ctx)
	assert.NoError(t, err)
	assert.Same(t, Engine(engB), got)
}

func TestReceiverKeepsHeldEngineUntilExhausted(t *testing.T) {
	ch := NewChannel()
	work := &mining.Assignment{}
	eng := NewOneShotEngine(work)
	ch.Broadcast(eng)

	recv := NewReceiver(ch)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := recv.GetEngine(ctx)
	assert.NoError(t, err)
	first.NextWork(ctx)

	// No new broadcast has happened; GetEngine must block now that the held
	// engine is exhausted.
	done := make(chan struct{})
	go func() {
		recv.GetEngine(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("GetEngine should block once the held engine is exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	ch.Broadcast(NewOneShotEngine(&mining.Assignment{}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("GetEngine did not unblock after a fresh broadcast")
	}
}

func TestNotifyExhaustedSignalsRescheduleChannel(t *testing.T) {
	ch := NewChannel()
	recv := NewReceiver(ch)
	recv.NotifyExhausted()

	select {
	case <-ch.Reschedule():
	case <-time.After(time.Second):
		t.Fatal("expected a reschedule notification")
	}
}
