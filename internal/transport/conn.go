package transport

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/limpingninja/ci2go/internal/handle"
	"github.com/limpingninja/ci2go/internal/object"
)

const (
	maxPending = 1 << 16 // send_device's output-buffer cap
	burstSize  = 1 << 12 // per-tick flush burst
	maxLine    = 1 << 12 // input buffer cap before a connection is kicked
	sendQueue  = 1 << 8  // writer goroutine's channel depth
)

// EventKind tags what a Conn's reader goroutine put on the driver's
// event channel.
type EventKind int

const (
	EventConnect EventKind = iota
	EventLine
	EventDisconnect
)

// Event is one unit of input handed from a connection's reader goroutine
// to the driver's tick loop (spec.md §5: each connection owns a reader
// and a writer goroutine, and neither ever touches the object graph —
// only Driver.Tick does).
type Event struct {
	Conn *Conn
	Kind EventKind
	Line string
}

// Conn is one client telnet session. Socket I/O runs on its own
// reader/writer goroutine pair, mirroring the split between the teacher's
// vendored IRC daemon's Client.Processor (blocking read, line-splitting,
// sink channel) and Client.MsgSender (draining an output channel). Every
// negotiated capability and the attached object handle live here for the
// driver's tick to read without synchronization, since only the tick
// goroutine ever touches them after the reader hands off an Event.
type Conn struct {
	Ref  handle.Handle
	conn net.Conn

	mu      sync.Mutex
	alive   bool
	pending []byte
	outBuf  chan []byte

	ConnectTime  time.Time
	LastActivity time.Time

	// Attached is the object whose input_func/verb queue receives this
	// connection's input lines (spec.md §4.6).
	Attached object.Handle

	Telnet Telnet
}

func newConn(nc net.Conn) *Conn {
	return &Conn{
		conn:         nc,
		alive:        true,
		outBuf:       make(chan []byte, sendQueue),
		ConnectTime:  time.Now(),
		LastActivity: time.Now(),
	}
}

func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Processor blockingly reads everything the client sends, runs it
// through the telnet state machine, splits clean application bytes into
// lines, and emits one Event per line on sink.
func (c *Conn) Processor(sink chan<- Event) {
	sink <- Event{Conn: c, Kind: EventConnect}
	c.conn.Write(c.Telnet.Greeting())

	var held []byte
	buf := make([]byte, 2048)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			break
		}
		c.LastActivity = time.Now()
		text, reply := c.Telnet.Feed(buf[:n])
		if len(reply) > 0 {
			c.conn.Write(reply)
		}
		held = append(held, text...)
		for {
			i := bytes.IndexByte(held, '\n')
			if i < 0 {
				break
			}
			line := string(bytes.TrimRight(held[:i], "\r"))
			sink <- Event{Conn: c, Kind: EventLine, Line: line}
			held = held[i+1:]
		}
		if len(held) > maxLine {
			break
		}
	}
	c.Close()
	sink <- Event{Conn: c, Kind: EventDisconnect}
}

// Sender drains queued output bursts to the socket until Close sends the
// nil sentinel.
func (c *Conn) Sender() {
	for data := range c.outBuf {
		if data == nil {
			c.conn.Close()
			return
		}
		c.conn.Write(data)
	}
}

// Send implements send_device(obj, str): appends to the connection's
// staged output buffer, capped at maxPending (spec.md §4.6). Bytes are
// not written to the socket until Flush/FlushAll moves them to the
// writer goroutine.
func (c *Conn) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return
	}
	room := maxPending - len(c.pending)
	if room <= 0 {
		return
	}
	if len(data) > room {
		data = data[:room]
	}
	c.pending = append(c.pending, data...)
}

// Flush implements the main loop's per-tick output drain: pushes up to
// burstSize queued bytes to the writer goroutine (spec.md §4.7 step 1).
func (c *Conn) Flush() {
	c.mu.Lock()
	if len(c.pending) == 0 || !c.alive {
		c.mu.Unlock()
		return
	}
	n := len(c.pending)
	if n > burstSize {
		n = burstSize
	}
	chunk := append([]byte(nil), c.pending[:n]...)
	c.pending = c.pending[n:]
	c.mu.Unlock()

	select {
	case c.outBuf <- chunk:
	default:
		c.Close()
	}
}

// FlushAll implements flush_device(obj): forces an immediate full drain
// of the staged buffer, ignoring the per-tick burst cap.
func (c *Conn) FlushAll() {
	for {
		c.mu.Lock()
		empty := len(c.pending) == 0
		c.mu.Unlock()
		if empty {
			return
		}
		c.Flush()
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alive {
		c.outBuf <- nil
		c.alive = false
	}
}

func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}
