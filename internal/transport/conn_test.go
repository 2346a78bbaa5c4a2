package transport

import (
	"io"
	"net"
	"testing"
	"time"
)

func pipeConn() (*Conn, net.Conn) {
	client, server := net.Pipe()
	c := newConn(server)
	go c.Sender()
	return c, client
}

func readN(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("readN: %v", err)
	}
	return buf
}

func TestFlushRespectsBurstSize(t *testing.T) {
	c, client := pipeConn()
	defer c.Close()

	payload := make([]byte, burstSize+100)
	for i := range payload {
		payload[i] = 'x'
	}
	c.Send(payload)

	done := make(chan []byte, 1)
	go func() { done <- readN(t, client, burstSize) }()
	c.Flush()
	select {
	case got := <-done:
		if len(got) != burstSize {
			t.Fatalf("flushed %d bytes, want exactly %d", len(got), burstSize)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for burst-sized flush")
	}
}

func TestFlushAllDrainsEverything(t *testing.T) {
	c, client := pipeConn()
	defer c.Close()

	total := burstSize*2 + 50
	payload := make([]byte, total)
	c.Send(payload)

	done := make(chan []byte, 1)
	go func() { done <- readN(t, client, total) }()
	c.FlushAll()
	select {
	case got := <-done:
		if len(got) != total {
			t.Fatalf("FlushAll drained %d bytes, want %d", len(got), total)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for FlushAll")
	}
}

func TestSendCapsPending(t *testing.T) {
	c, client := pipeConn()
	defer client.Close()
	defer c.Close()

	c.Send(make([]byte, maxPending+1000))
	c.mu.Lock()
	n := len(c.pending)
	c.mu.Unlock()
	if n != maxPending {
		t.Fatalf("pending = %d, want capped at %d", n, maxPending)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c, client := pipeConn()
	defer client.Close()
	c.Close()
	c.Close() // must not panic or double-send the nil sentinel
	if c.Alive() {
		t.Fatalf("connection should report not alive after Close")
	}
}

func TestRegistryAddGetFree(t *testing.T) {
	reg := NewRegistry()
	c, client := pipeConn()
	defer client.Close()
	defer c.Close()

	h := reg.Add(c)
	got, ok := reg.Get(h)
	if !ok || got != c {
		t.Fatalf("Get(%v) = (%v,%v), want (%v,true)", h, got, ok, c)
	}
	reg.Free(h)
	if _, ok := reg.Get(h); ok {
		t.Fatalf("expected handle to be stale after Free")
	}
}
