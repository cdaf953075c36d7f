// Package wayland is a minimal client for the Wayland wire protocol,
// covering what the toplevel-tracking adapters need: the compositor
// socket, registry binds and event dispatch for bound objects. The
// toplevel protocol interfaces themselves live with the adapters
// that speak them.
package wayland

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DisplayID is the wl_display singleton, object 1 on every connection.
const DisplayID uint32 = 1

// Client-created object IDs stay below this; IDs the compositor
// creates through new_id event arguments start here.
const serverIDBase uint32 = 0xff000000

const (
	displaySync        uint16 = 0
	displayGetRegistry uint16 = 1
	displayEvtError    uint16 = 0
	displayEvtDeleteID uint16 = 1

	callbackEvtDone uint16 = 0
)

// HandlerFunc receives every event addressed to one object.
type HandlerFunc func(opcode uint16, args *Args) error

// Conn is one client connection to a Wayland compositor. A reader
// goroutine frames incoming messages; Dispatch and Roundtrip consume
// them on the caller's goroutine, so handlers run strictly in event
// order.
type Conn struct {
	sock net.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   uint32
	freeIDs  []uint32
	handlers map[uint32]HandlerFunc

	msgs      chan Message
	readErr   chan error
	quit      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the compositor named by WAYLAND_DISPLAY, falling
// back to wayland-0, resolved under XDG_RUNTIME_DIR unless the name
// is an absolute path.
func Dial(log zerolog.Logger) (*Conn, error) {
	path, err := socketPath()
	if err != nil {
		return nil, err
	}
	sock, err := net.Dial("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to wayland display at %s", path)
	}
	log.Debug().Str("socket", path).Msg("connected to wayland display")
	return NewConn(sock, log), nil
}

func socketPath() (string, error) {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}
	if filepath.IsAbs(display) {
		return display, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set, cannot locate the wayland socket")
	}
	return filepath.Join(runtimeDir, display), nil
}

// NewConn wraps an already established compositor connection, for
// callers that own their transport.
func NewConn(sock net.Conn, log zerolog.Logger) *Conn {
	c := &Conn{
		sock:     sock,
		log:      log,
		nextID:   2,
		handlers: make(map[uint32]HandlerFunc),
		msgs:     make(chan Message, 32),
		readErr:  make(chan error, 1),
		quit:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close shuts the connection down and unblocks any Dispatch call.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.sock.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	for {
		msg, err := ReadMessage(c.sock)
		if err != nil {
			select {
			case c.readErr <- err:
			case <-c.quit:
			}
			return
		}
		select {
		case c.msgs <- msg:
		case <-c.quit:
			return
		}
	}
}

// NewID allocates a client-side object ID and registers its handler.
// Released IDs are reused most recently freed first.
func (c *Conn) NewID(h HandlerFunc) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var id uint32
	if n := len(c.freeIDs); n > 0 {
		id = c.freeIDs[n-1]
		c.freeIDs = c.freeIDs[:n-1]
	} else {
		id = c.nextID
		c.nextID++
	}
	if h != nil {
		c.handlers[id] = h
	}
	return id
}

// Register attaches a handler to an object the compositor created
// through a new_id event argument.
func (c *Conn) Register(id uint32, h HandlerFunc) {
	c.mu.Lock()
	c.handlers[id] = h
	c.mu.Unlock()
}

// Deregister drops the handler for a compositor-created object. IDs
// the client allocated are instead reclaimed when the compositor
// confirms destruction with a delete_id event.
func (c *Conn) Deregister(id uint32) {
	c.mu.Lock()
	delete(c.handlers, id)
	c.mu.Unlock()
}

// Send writes one request to the compositor.
func (c *Conn) Send(req *Request) error {
	buf, err := req.Encode()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.sock.Write(buf); err != nil {
		return errors.Wrap(err, "wayland write failed")
	}
	return nil
}

// Dispatch processes the next incoming event. It blocks until an
// event arrives, the connection fails, or ctx ends.
func (c *Conn) Dispatch(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return errors.New("wayland connection closed")
	case err := <-c.readErr:
		return errors.Wrap(err, "wayland connection lost")
	case msg := <-c.msgs:
		return c.dispatch(msg)
	}
}

// Roundtrip sends a sync request and dispatches events until the
// compositor answers it, guaranteeing all prior requests have been
// processed.
func (c *Conn) Roundtrip(ctx context.Context) error {
	done := false
	id := c.NewID(func(opcode uint16, _ *Args) error {
		if opcode == callbackEvtDone {
			done = true
		}
		return nil
	})
	if err := c.Send(NewRequest(DisplayID, displaySync).PutUint32(id)); err != nil {
		return err
	}
	for !done {
		if err := c.Dispatch(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) dispatch(msg Message) error {
	if msg.Object == DisplayID {
		return c.displayEvent(msg)
	}
	c.mu.Lock()
	h := c.handlers[msg.Object]
	c.mu.Unlock()
	if h == nil {
		c.log.Debug().
			Uint32("object", msg.Object).
			Uint16("opcode", msg.Opcode).
			Msg("event for unknown object")
		return nil
	}
	return h(msg.Opcode, msg.Args())
}

func (c *Conn) displayEvent(msg Message) error {
	args := msg.Args()
	switch msg.Opcode {
	case displayEvtError:
		object, err := args.Uint32()
		if err != nil {
			return err
		}
		code, err := args.Uint32()
		if err != nil {
			return err
		}
		text, err := args.String()
		if err != nil {
			return err
		}
		return errors.Errorf("display error on object %d: %s (code %d)", object, text, code)
	case displayEvtDeleteID:
		id, err := args.Uint32()
		if err != nil {
			return err
		}
		c.release(id)
	}
	return nil
}

func (c *Conn) release(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, id)
	if id < serverIDBase {
		c.freeIDs = append(c.freeIDs, id)
	}
}
