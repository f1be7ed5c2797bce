package channel

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by transports.
var (
	ErrClosed            = errors.New("channel: transport closed")
	ErrTimeout           = errors.New("channel: request timeout")
	ErrNoService         = errors.New("channel: no service responding")
	ErrInterfaceNotFound = errors.New("channel: network interface not found")
	ErrUnsupportedScheme = errors.New("channel: unsupported endpoint scheme")
)

// StatusError is returned when a service answers with a non-zero status.
type StatusError struct {
	APIID int32
	Code  int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc api %d: status %d (%s)", e.APIID, e.Code, StatusText(e.Code))
}

// CheckStatus converts a non-OK response status into a *StatusError.
func CheckStatus(resp Response) error {
	if resp.Header.Status.Code == StatusOK {
		return nil
	}
	return &StatusError{
		APIID: resp.Header.Identity.APIID,
		Code:  resp.Header.Status.Code,
	}
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int32) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// ctxErr maps a context failure onto channel errors.
// Deadline expiry becomes ErrTimeout so callers can test for it uniformly.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return ctx.Err()
}
