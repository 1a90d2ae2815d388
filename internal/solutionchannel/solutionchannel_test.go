package solutionchannel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hashwork/pkg/mining"
)

func TestSendNeverBlocksOnAbsentConsumer(t *testing.T) {
	ch := New()
	defer ch.Close()

	sender := ch.NewSender()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sender.Send(mining.UniqueSolution{Solution: mining.Solution{Nonce: uint32(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked despite nothing draining Receive")
	}
}

func TestFIFOOrderingPerSender(t *testing.T) {
	ch := New()
	sender := ch.NewSender()

	for i := 0; i < 5; i++ {
		sender.Send(mining.UniqueSolution{Solution: mining.Solution{Nonce: uint32(i)}})
	}

	for i := 0; i < 5; i++ {
		sol := <-ch.Receive()
		assert.Equal(t, uint32(i), sol.Solution.Nonce)
	}
	ch.Close()
}

func TestCloseDrainsQueueBeforeClosingOut(t *testing.T) {
	ch := New()
	sender := ch.NewSender()
	sender.Send(mining.UniqueSolution{Solution: mining.Solution{Nonce: 1}})
	sender.Send(mining.UniqueSolution{Solution: mining.Solution{Nonce: 2}})
	ch.Close()

	var got []uint32
	for sol := range ch.Receive() {
		got = append(got, sol.Solution.Nonce)
	}
	assert.Equal(t, []uint32{1, 2}, got)
}
