package decoder

import (
	"errors"
	"fmt"

	"github.com/goran-ethernal/MarketIndexor/pkg/events"
)

// ErrUnrecognizedEvent is returned for logs whose contract or signature is not indexed.
// It is not a failure; callers skip such logs.
var ErrUnrecognizedEvent = errors.New("unrecognized event")

// MalformedLogError is returned when a log carries a known signature but its topics
// or data cannot be decoded.
type MalformedLogError struct {
	Role        events.Role
	Event       events.Kind
	BlockNumber uint64
	LogIndex    uint
	Err         error
}

func (e *MalformedLogError) Error() string {
	return fmt.Sprintf("malformed %s log from %s at block %d index %d: %v",
		e.Event, e.Role, e.BlockNumber, e.LogIndex, e.Err)
}

func (e *MalformedLogError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is or wraps a *MalformedLogError.
func IsMalformed(err error) bool {
	var malformed *MalformedLogError
	return errors.As(err, &malformed)
}
