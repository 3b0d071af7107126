package modbus

import (
	"errors"
	"os"

	"github.com/goburrow/serial"
)

var (
	// ErrClosedConnection use of closed connection
	ErrClosedConnection = errors.New("modbus: use of closed connection")
	// ErrFormat frame is malformed, too short or fails the checksum
	ErrFormat = errors.New("modbus: invalid frame format")
	// ErrNotSupported function code unknown to the framer
	ErrNotSupported = errors.New("modbus: function code not supported")
	// ErrResponseMismatch response does not correlate with the request
	ErrResponseMismatch = errors.New("modbus: response does not match request")
)

// errEmptyRead a read returned no data and no error, taken as a timeout.
var errEmptyRead error = emptyReadError{}

type emptyReadError struct{}

func (emptyReadError) Error() string   { return "modbus: read returned no data" }
func (emptyReadError) Timeout() bool   { return true }
func (emptyReadError) Temporary() bool { return true }

// IsTimeout reports whether err is a read or write timeout of a stream.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// isFramingError reports whether err comes from an unusable frame rather
// than from the stream.
func isFramingError(err error) bool {
	return errors.Is(err, ErrFormat) || errors.Is(err, ErrNotSupported)
}
