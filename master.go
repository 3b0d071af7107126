package modbus

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// TCP master default timeout
const (
	TCPDefaultTimeout = 1 * time.Second
)

// Master sends requests to slaves, one transaction at a time.
type Master struct {
	mu     sync.Mutex
	stream StreamResource
	tx     *transaction
	clogs
}

func newMaster(stream StreamResource, prefix string, o *options) *Master {
	m := &Master{
		stream: stream,
		clogs:  newClogWithPrefix(prefix),
	}
	o.setupLogger(&m.clogs)
	return m
}

// NewRTUMaster a master speaking modbus RTU over stream.
func NewRTUMaster(stream StreamResource, opts ...Option) *Master {
	o := newOptions(opts...)
	m := newMaster(stream, "modbusRTUMaster =>", &o)
	m.tx = newTransaction(newRTUTransport(stream, o.registry, &m.clogs), &o, &m.clogs)
	return m
}

// NewASCIIMaster a master speaking modbus ASCII over stream.
func NewASCIIMaster(stream StreamResource, opts ...Option) *Master {
	o := newOptions(opts...)
	m := newMaster(stream, "modbusASCIIMaster =>", &o)
	m.tx = newTransaction(newASCIITransport(stream, &m.clogs), &o, &m.clogs)
	return m
}

// NewTCPMaster a master speaking modbus TCP over conn.
func NewTCPMaster(conn net.Conn, opts ...Option) *Master {
	o := newOptions(opts...)
	readTimeout, writeTimeout := o.timeouts(TCPDefaultTimeout, TCPDefaultWriteTimeout)
	stream := NewNetStream(conn, readTimeout, writeTimeout)
	m := newMaster(stream, "modbusTCPMaster =>", &o)
	m.tx = newTransaction(newTCPTransport(stream, o.retryOnOldResponseThreshold, &m.clogs), &o, &m.clogs)
	return m
}

// DialTCPMaster connects to address and returns a TCP master on the connection.
func DialTCPMaster(ctx context.Context, address string, opts ...Option) (*Master, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewTCPMaster(conn, opts...), nil
}

// Send sends req and returns the validated response. A request to the
// broadcast address is only written, the response is nil.
func (sf *Master) Send(ctx context.Context, req Request) (Message, error) {
	if req.SlaveAddress() > AddressMax {
		return nil, fmt.Errorf("modbus: slaveID '%v' must be between '%v' and '%v'",
			req.SlaveAddress(), AddressBroadCast, AddressMax)
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if req.SlaveAddress() == AddressBroadCast {
		return nil, sf.tx.broadcast(req)
	}
	return sf.tx.unicast(ctx, req)
}

// Close closes the underlying stream when it can be closed.
func (sf *Master) Close() error {
	if c, ok := sf.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
