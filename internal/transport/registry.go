package transport

import "github.com/limpingninja/ci2go/internal/handle"

// Registry is the driver's connection arena, giving every live Conn a
// stable Handle the same way internal/object.Table does for objects.
type Registry struct {
	arena *handle.Arena[*Conn]
}

func NewRegistry() *Registry {
	return &Registry{arena: handle.New[*Conn]()}
}

func (r *Registry) Add(c *Conn) handle.Handle {
	h := r.arena.Alloc(c)
	c.Ref = h
	return h
}

func (r *Registry) Get(h handle.Handle) (*Conn, bool) {
	return r.arena.Get(h)
}

func (r *Registry) Free(h handle.Handle) {
	r.arena.Free(h)
}

// Each visits every registered connection, live or not; callers filter
// on Alive() if they only want live ones.
func (r *Registry) Each(fn func(handle.Handle, *Conn)) {
	r.arena.Each(fn)
}
