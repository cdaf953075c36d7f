package busio

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/winctx/winctx/pkg/window"
)

// Options tunes bus calls made by the client.
type Options struct {
	CallTimeout   time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// DefaultOptions match the service defaults.
func DefaultOptions() Options {
	return Options{
		CallTimeout:   3 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CallTimeout <= 0 {
		o.CallTimeout = def.CallTimeout
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = def.RetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
	return o
}

// Client consumes one family's context service over the session bus.
// It implements window.Provider.
type Client struct {
	kind window.Kind
	id   Identity
	opts Options
	log  zerolog.Logger
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the session bus and binds the family's service
// object. The service itself is only contacted on the first call.
func Dial(kind window.Kind, opts Options, log zerolog.Logger) (*Client, error) {
	id, ok := IdentityFor(kind)
	if !ok {
		return nil, errors.Errorf("adapter family %s has no bus service", kind)
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}
	return &Client{
		kind: kind,
		id:   id,
		opts: opts.withDefaults(),
		log:  log,
		conn: conn,
		obj:  conn.Object(id.BusName, id.Path),
	}, nil
}

// Kind identifies the adapter family this client consumes.
func (c *Client) Kind() window.Kind { return c.kind }

// Close drops the bus connection.
func (c *Client) Close() error { return c.conn.Close() }

// Current calls GetActiveWindow. Placeholder values mean the service
// has not seen a focus event yet and map to ok=false. A reply whose
// fresh flag is cleared is returned together with window.ErrStale.
func (c *Client) Current(ctx context.Context) (window.Context, bool, error) {
	var reply map[string]dbus.Variant
	err := withRetry(ctx, c.opts.RetryAttempts, c.opts.RetryBackoff, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
		return c.obj.CallWithContext(callCtx, c.id.Interface+"."+MethodGetActiveWindow, 0).Store(&reply)
	})
	if err != nil {
		if IsBackendMissing(err) {
			return window.Context{}, false, errors.Wrapf(err, "context service %s is not on the bus", c.id.BusName)
		}
		return window.Context{}, false, errors.Wrap(err, "GetActiveWindow call failed")
	}

	wctx := window.Context{
		AppID:      stringValue(reply, keyAppID),
		AppClass:   stringValue(reply, keyAppClass),
		Title:      stringValue(reply, keyTitle),
		ObservedAt: time.Now(),
		Source:     c.kind,
	}
	if wctx.AppID == "" && wctx.AppClass == "" && wctx.Title == "" {
		return window.Context{}, false, nil
	}
	if window.IsPlaceholder(wctx.AppClass) || window.IsPlaceholder(wctx.Title) {
		return window.Context{}, false, nil
	}
	if fresh, ok := boolValue(reply, keyFresh); ok && !fresh {
		return wctx, true, window.ErrStale
	}
	return wctx, true, nil
}

// Watch subscribes to ActiveWindowChanged and delivers each change to
// fn until ctx ends.
func (c *Client) Watch(ctx context.Context, fn func(window.Context)) error {
	match := []dbus.MatchOption{
		dbus.WithMatchInterface(c.id.Interface),
		dbus.WithMatchMember(SignalActiveWindowChanged),
		dbus.WithMatchObjectPath(c.id.Path),
	}
	if err := c.conn.AddMatchSignal(match...); err != nil {
		return errors.Wrap(err, "failed to subscribe to context signals")
	}
	defer func() {
		if err := c.conn.RemoveMatchSignal(match...); err != nil {
			c.log.Warn().Err(err).Msg("failed to remove signal match")
		}
	}()

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	c.log.Debug().Str("bus_name", c.id.BusName).Msg("watching for context changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return errors.New("bus connection closed")
			}
			wctx, ok := contextFromSignal(sig, c.kind)
			if !ok {
				continue
			}
			fn(wctx)
		}
	}
}

func contextFromSignal(sig *dbus.Signal, kind window.Kind) (window.Context, bool) {
	if len(sig.Body) != 3 {
		return window.Context{}, false
	}
	appID, ok1 := sig.Body[0].(string)
	appClass, ok2 := sig.Body[1].(string)
	title, ok3 := sig.Body[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return window.Context{}, false
	}
	return window.Context{
		AppID:      appID,
		AppClass:   appClass,
		Title:      title,
		ObservedAt: time.Now(),
		Source:     kind,
	}, true
}

func stringValue(reply map[string]dbus.Variant, key string) string {
	v, ok := reply[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func boolValue(reply map[string]dbus.Variant, key string) (bool, bool) {
	v, ok := reply[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}
