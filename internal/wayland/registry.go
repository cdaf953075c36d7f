package wayland

import "sync"

const (
	registryReqBind         uint16 = 0
	registryEvtGlobal       uint16 = 0
	registryEvtGlobalRemove uint16 = 1
)

// Global is one interface the compositor advertises.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Registry tracks the compositor's advertised globals.
type Registry struct {
	conn *Conn
	id   uint32

	mu      sync.Mutex
	globals map[uint32]Global
}

// GetRegistry requests the registry object. Follow with a Roundtrip
// so the initial burst of global events has arrived before Find.
func (c *Conn) GetRegistry() (*Registry, error) {
	r := &Registry{conn: c, globals: make(map[uint32]Global)}
	r.id = c.NewID(r.handle)
	if err := c.Send(NewRequest(DisplayID, displayGetRegistry).PutUint32(r.id)); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) handle(opcode uint16, args *Args) error {
	switch opcode {
	case registryEvtGlobal:
		name, err := args.Uint32()
		if err != nil {
			return err
		}
		iface, err := args.String()
		if err != nil {
			return err
		}
		version, err := args.Uint32()
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.globals[name] = Global{Name: name, Interface: iface, Version: version}
		r.mu.Unlock()
	case registryEvtGlobalRemove:
		name, err := args.Uint32()
		if err != nil {
			return err
		}
		r.mu.Lock()
		delete(r.globals, name)
		r.mu.Unlock()
	}
	return nil
}

// Find returns the advertised global for an interface name.
func (r *Registry) Find(iface string) (Global, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.globals {
		if g.Interface == iface {
			return g, true
		}
	}
	return Global{}, false
}

// Bind binds a global at the given version, registering h for the new
// object's events. It returns the new object's ID.
func (r *Registry) Bind(g Global, version uint32, h HandlerFunc) (uint32, error) {
	id := r.conn.NewID(h)
	req := NewRequest(r.id, registryReqBind).
		PutUint32(g.Name).
		PutString(g.Interface).
		PutUint32(version).
		PutUint32(id)
	if err := r.conn.Send(req); err != nil {
		return 0, err
	}
	return id, nil
}
