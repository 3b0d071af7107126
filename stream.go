package modbus

import (
	"io"
	"net"
	"time"
)

// StreamResource a byte stream to a modbus peer. Reads must give up after a
// timeout and report it with an error that satisfies IsTimeout.
type StreamResource interface {
	io.ReadWriter
	// DiscardInBuffer drops whatever the peer sent and nobody read yet.
	DiscardInBuffer() error
}

// netStream adapts a net.Conn, applying read and write deadlines per call.
type netStream struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

var _ StreamResource = (*netStream)(nil)

// NewNetStream wraps conn as a StreamResource. Zero timeouts disable the deadlines.
func NewNetStream(conn net.Conn, readTimeout, writeTimeout time.Duration) StreamResource {
	return &netStream{conn, readTimeout, writeTimeout}
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func (sf *netStream) Read(b []byte) (int, error) {
	if err := sf.conn.SetReadDeadline(deadline(sf.readTimeout)); err != nil {
		return 0, err
	}
	return sf.conn.Read(b)
}

func (sf *netStream) Write(b []byte) (int, error) {
	if err := sf.conn.SetWriteDeadline(deadline(sf.writeTimeout)); err != nil {
		return 0, err
	}
	return sf.conn.Write(b)
}

// discardWindow how long DiscardInBuffer waits for more bytes before it
// considers the connection drained.
const discardWindow = 5 * time.Millisecond

// DiscardInBuffer flushes pending data in the connection,
// returns io.EOF if connection is closed.
func (sf *netStream) DiscardInBuffer() error {
	var b [tcpAduMaxSize]byte
	for {
		// a deadline in the past fails the read before it looks at the buffer
		if err := sf.conn.SetReadDeadline(time.Now().Add(discardWindow)); err != nil {
			return err
		}
		if _, err := sf.conn.Read(b[:]); err != nil {
			if IsTimeout(err) {
				return nil
			}
			return err
		}
	}
}

// Close closes the connection.
func (sf *netStream) Close() error {
	return sf.conn.Close()
}
