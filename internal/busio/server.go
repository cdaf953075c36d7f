package busio

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/internal/hub"
	"github.com/winctx/winctx/pkg/window"
)

// NotifyFunc receives window data pushed into the service from the
// compositor side (the KWin script calls NotifyActiveWindow).
type NotifyFunc func(caption, resourceClass, resourceName string)

// Server publishes one adapter family's window context on the session
// bus: the GetActiveWindow method, and the ActiveWindowChanged signal
// emitted for every hub update.
type Server struct {
	hub    *hub.Hub
	kind   window.Kind
	id     Identity
	log    zerolog.Logger
	notify NotifyFunc

	conn      *dbus.Conn
	cancelSub func()
	done      chan struct{}
}

// NewServer prepares a bus service for the given family.
func NewServer(h *hub.Hub, kind window.Kind, log zerolog.Logger) (*Server, error) {
	id, ok := IdentityFor(kind)
	if !ok {
		return nil, errors.Errorf("adapter family %s has no bus service", kind)
	}
	return &Server{
		hub:  h,
		kind: kind,
		id:   id,
		log:  log,
		done: make(chan struct{}),
	}, nil
}

// SetNotifyHandler registers the NotifyActiveWindow method handler.
// Must be called before Start.
func (s *Server) SetNotifyHandler(fn NotifyFunc) {
	s.notify = fn
}

// Start claims the bus name and exports the context object. Failing
// to become the primary owner is an error: a second instance of the
// same family must not silently shadow the first.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return errors.Wrap(err, "failed to connect to session bus")
	}

	reply, err := conn.RequestName(s.id.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return errors.Wrapf(err, "failed to request bus name %s", s.id.BusName)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return errors.Errorf("bus name %s already taken", s.id.BusName)
	}

	obj := contextObject{srv: s}
	if s.notify != nil {
		err = conn.Export(notifyObject{contextObject: obj}, s.id.Path, s.id.Interface)
	} else {
		err = conn.Export(obj, s.id.Path, s.id.Interface)
	}
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to export context object")
	}

	if err := conn.Export(introspect.NewIntrospectable(s.introspection()), s.id.Path, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to export introspection")
	}

	s.conn = conn

	updates, cancel := s.hub.Subscribe()
	s.cancelSub = cancel
	go s.emitLoop(updates)

	s.log.Info().
		Str("bus_name", s.id.BusName).
		Str("path", string(s.id.Path)).
		Msg("context service on the session bus")
	return nil
}

// Close stops signal emission and releases the bus name.
func (s *Server) Close() error {
	if s.cancelSub != nil {
		s.cancelSub()
		<-s.done
	}
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.ReleaseName(s.id.BusName); err != nil {
		s.log.Warn().Err(err).Msg("failed to release bus name")
	}
	return s.conn.Close()
}

func (s *Server) emitLoop(updates <-chan window.Context) {
	defer close(s.done)
	for ctx := range updates {
		err := s.conn.Emit(s.id.Path, s.id.Interface+"."+SignalActiveWindowChanged,
			ctx.AppID, ctx.AppClass, ctx.Title)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to emit context change signal")
		}
	}
}

func (s *Server) introspection() *introspect.Node {
	methods := []introspect.Method{
		{
			Name: MethodGetActiveWindow,
			Args: []introspect.Arg{
				{Name: "context", Type: "a{sv}", Direction: "out"},
			},
		},
	}
	if s.notify != nil {
		methods = append(methods, introspect.Method{
			Name: MethodNotifyActiveWindow,
			Args: []introspect.Arg{
				{Name: "caption", Type: "s", Direction: "in"},
				{Name: "resource_class", Type: "s", Direction: "in"},
				{Name: "resource_name", Type: "s", Direction: "in"},
			},
		})
	}
	return &introspect.Node{
		Name: string(s.id.Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    s.id.Interface,
				Methods: methods,
				Signals: []introspect.Signal{
					{
						Name: SignalActiveWindowChanged,
						Args: []introspect.Arg{
							{Name: "app_id", Type: "s"},
							{Name: "app_class", Type: "s"},
							{Name: "window_title", Type: "s"},
						},
					},
				},
			},
		},
	}
}

// contextObject is the exported bus object.
type contextObject struct {
	srv *Server
}

// GetActiveWindow returns the current context as a string-variant
// dictionary. Before the first focus event it reports the family's
// placeholder values; the fresh flag tells callers whether the value
// still tracks the live event source.
func (o contextObject) GetActiveWindow() (map[string]dbus.Variant, *dbus.Error) {
	ctx, ok := o.srv.hub.Current()
	if !ok {
		ctx = window.Placeholder(o.srv.kind)
	}
	return map[string]dbus.Variant{
		keyAppID:    dbus.MakeVariant(ctx.AppID),
		keyAppClass: dbus.MakeVariant(ctx.AppClass),
		keyTitle:    dbus.MakeVariant(ctx.Title),
		keyFresh:    dbus.MakeVariant(o.srv.hub.Fresh()),
	}, nil
}

// notifyObject additionally accepts pushed window data.
type notifyObject struct {
	contextObject
}

func (o notifyObject) NotifyActiveWindow(caption, resourceClass, resourceName string) *dbus.Error {
	o.srv.notify(caption, resourceClass, resourceName)
	return nil
}
