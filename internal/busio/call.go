package busio

import (
	"context"
	"errors"
	"time"

	"github.com/godbus/dbus/v5"
)

// D-Bus error names that mean the peer is absent rather than busy.
const (
	errServiceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"
	errNameHasNoOwner = "org.freedesktop.DBus.Error.NameHasNoOwner"
	errUnknownMethod  = "org.freedesktop.DBus.Error.UnknownMethod"
	errUnknownObject  = "org.freedesktop.DBus.Error.UnknownObject"
)

// IsBackendMissing reports whether err means the called service or
// method does not exist on the bus at all. Such errors are permanent
// until the user installs or enables the missing piece, so they are
// not retried.
func IsBackendMissing(err error) bool {
	var dbErr dbus.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	switch dbErr.Name {
	case errServiceUnknown, errNameHasNoOwner, errUnknownMethod, errUnknownObject:
		return true
	}
	return false
}

// withRetry runs fn up to attempts times with linear backoff between
// tries. It stops early when ctx ends or when the error is permanent.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * backoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if IsBackendMissing(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
