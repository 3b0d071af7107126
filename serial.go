package modbus

import (
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

const (
	// SerialDefaultTimeout Serial Default timeout
	SerialDefaultTimeout = 1 * time.Second
	// SerialDefaultAutoReconnect Serial Default auto reconnect count
	SerialDefaultAutoReconnect = 0
	// SerialMaxAutoReconnect upper bound of SetAutoReconnect
	SerialMaxAutoReconnect = 6
)

// SerialPort is a StreamResource over a serial line, opened with the
// configuration it embeds. Once connected, a port dropped by an I/O error or
// by DiscardInBuffer is reopened on next use, only Close ends it.
type SerialPort struct {
	// Serial port configuration.
	serial.Config
	mu   sync.Mutex
	port io.ReadWriteCloser
	// set by Connect, cleared by Close
	active bool
	// if > 0, a failed write or read drops the port and reopens it,
	// trying at most autoReconnect times.
	// if == 0 auto reconnect not active, a dropped port is reopened once
	autoReconnect byte
	open          func(*serial.Config) (io.ReadWriteCloser, error)
}

var _ StreamResource = (*SerialPort)(nil)

// NewSerialPort returns a closed port, call Connect before use.
func NewSerialPort(config serial.Config) *SerialPort {
	if config.Timeout <= 0 {
		config.Timeout = SerialDefaultTimeout
	}
	return &SerialPort{
		Config:        config,
		autoReconnect: SerialDefaultAutoReconnect,
		open: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return serial.Open(c)
		},
	}
}

// Connect try to connect the remote server
func (sf *SerialPort) Connect() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.port != nil {
		return nil
	}
	if err := sf.connect(); err != nil {
		return err
	}
	sf.active = true
	return nil
}

// Caller must hold the mutex before calling this method.
func (sf *SerialPort) connect() error {
	port, err := sf.open(&sf.Config)
	if err != nil {
		return err
	}
	sf.port = port
	return nil
}

// Caller must hold the mutex before calling this method.
func (sf *SerialPort) reconnect() error {
	var err error
	for tryCnt := byte(0); tryCnt <= sf.autoReconnect; tryCnt++ {
		if err = sf.connect(); err == nil {
			return nil
		}
	}
	return err
}

// Caller must hold the mutex before calling this method.
func (sf *SerialPort) drop() error {
	if sf.port == nil {
		return nil
	}
	err := sf.port.Close()
	sf.port = nil
	return err
}

// IsConnected returns a bool signifying whether the client is connected or not.
func (sf *SerialPort) IsConnected() bool {
	sf.mu.Lock()
	b := sf.port != nil
	sf.mu.Unlock()
	return b
}

// SetAutoReconnect set auto reconnect count
// if cnt == 0, disable auto reconnect
// if cnt > 0 ,enable auto reconnect,but max 6
func (sf *SerialPort) SetAutoReconnect(cnt byte) {
	sf.mu.Lock()
	sf.autoReconnect = cnt
	if sf.autoReconnect > SerialMaxAutoReconnect {
		sf.autoReconnect = SerialMaxAutoReconnect
	}
	sf.mu.Unlock()
}

// current returns the open port, reopening a dropped one.
func (sf *SerialPort) current() (io.ReadWriteCloser, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.port == nil {
		if !sf.active {
			return nil, ErrClosedConnection
		}
		if err := sf.reconnect(); err != nil {
			return nil, err
		}
	}
	return sf.port, nil
}

// onError drops port after a failed I/O when auto reconnect is enabled.
func (sf *SerialPort) onError(port io.ReadWriteCloser, err error) {
	if IsTimeout(err) {
		return
	}
	sf.mu.Lock()
	if sf.autoReconnect > 0 && sf.port == port {
		_ = sf.drop()
	}
	sf.mu.Unlock()
}

// Read reads from the port, serial.ErrTimeout after Config.Timeout of silence.
func (sf *SerialPort) Read(b []byte) (int, error) {
	port, err := sf.current()
	if err != nil {
		return 0, err
	}
	n, err := port.Read(b)
	if err != nil {
		sf.onError(port, err)
	}
	return n, err
}

// Write writes to the port. With auto reconnect a failed write is tried once
// more on a reopened port.
func (sf *SerialPort) Write(b []byte) (int, error) {
	port, err := sf.current()
	if err != nil {
		return 0, err
	}
	n, err := port.Write(b)
	if err == nil {
		return n, nil
	}
	sf.onError(port, err)
	sf.mu.Lock()
	retry := sf.autoReconnect > 0
	sf.mu.Unlock()
	if !retry {
		return n, err
	}
	if port, err = sf.current(); err != nil {
		return 0, err
	}
	n, err = port.Write(b)
	if err != nil {
		sf.onError(port, err)
	}
	return n, err
}

// DiscardInBuffer drops unread input by reopening the port, the tty input
// queue goes with the old descriptor. A failed reopen is retried on next use.
func (sf *SerialPort) DiscardInBuffer() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if !sf.active {
		return ErrClosedConnection
	}
	err := sf.drop()
	if e := sf.reconnect(); err == nil {
		err = e
	}
	return err
}

// Close close current connection, the port is not reopened after.
func (sf *SerialPort) Close() error {
	sf.mu.Lock()
	sf.active = false
	err := sf.drop()
	sf.mu.Unlock()
	return err
}
