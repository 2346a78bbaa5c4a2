package transport

import (
	"net"

	"golang.org/x/net/netutil"
)

// Listener accepts telnet connections, capped to a configured number of
// concurrent sessions (spec.md §4.6 "up to a configured cap of client
// sockets").
type Listener struct {
	ln net.Listener
}

// Listen opens addr for telnet connections. maxConns <= 0 means
// unlimited.
func Listen(addr string, maxConns int) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return &Listener{ln: ln}, nil
}

// Serve accepts connections until the listener is closed, registering
// each one in reg and spawning its reader/writer goroutine pair. Events
// are delivered to sink for the driver's tick loop to consume.
func (l *Listener) Serve(reg *Registry, sink chan<- Event) error {
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			return err
		}
		c := newConn(nc)
		reg.Add(c)
		go c.Sender()
		go c.Processor(sink)
	}
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }
