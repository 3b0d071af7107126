package modbus

import (
	"context"
	"errors"
	"io"
	"time"
)

// requestTransport slave side of a serial framing.
type requestTransport interface {
	readRequest(ctx context.Context, unitID byte) ([]byte, error)
	checksumsMatch(m Message, adu []byte) bool
	discardInBuffer() error
	write(m Message) error
}

// SerialSlave serves one Slave on a serial line, RTU or ASCII.
type SerialSlave struct {
	stream       StreamResource
	slave        *Slave
	transport    requestTransport
	checksumSize int
	waitToRetry  time.Duration
	clogs
}

func newSerialSlave(stream StreamResource, slave *Slave, prefix string, o *options) *SerialSlave {
	sf := &SerialSlave{
		stream:      stream,
		slave:       slave,
		waitToRetry: o.waitToRetry,
		clogs:       newClogWithPrefix(prefix),
	}
	o.setupLogger(&sf.clogs)
	return sf
}

// NewRTUSlave 创建一个rtu slave
func NewRTUSlave(stream StreamResource, slave *Slave, opts ...Option) *SerialSlave {
	o := newOptions(opts...)
	sf := newSerialSlave(stream, slave, "modbusRTUSlave =>", &o)
	sf.transport = newRTUTransport(stream, o.registry, &sf.clogs)
	sf.checksumSize = 2
	return sf
}

// NewASCIISlave 创建一个ascii slave
func NewASCIISlave(stream StreamResource, slave *Slave, opts ...Option) *SerialSlave {
	o := newOptions(opts...)
	sf := newSerialSlave(stream, slave, "modbusASCIISlave =>", &o)
	sf.transport = newASCIITransport(stream, &sf.clogs)
	sf.checksumSize = 1
	return sf
}

// Listen serves requests until ctx is done or the stream is closed. It
// returns ctx.Err() on cancellation and nil once the stream reports io.EOF
// or ErrClosedConnection. Errors of a single frame are logged and the loop
// goes on with the next frame.
func (sf *SerialSlave) Listen(ctx context.Context) error {
	sf.Debugf("slave '%v' listening", sf.slave.UnitID())
	for {
		adu, err := sf.transport.readRequest(ctx, sf.slave.UnitID())
		if err != nil {
			if e := ctx.Err(); e != nil {
				return e
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ErrClosedConnection) {
				sf.Debugf("stream closed, %v", err)
				return nil
			}
			sf.onError(ctx, err)
			continue
		}
		if err = sf.serve(adu); err != nil {
			sf.onError(ctx, err)
		}
	}
}

// onError drops the input after an I/O error and pauses a moment.
func (sf *SerialSlave) onError(ctx context.Context, err error) {
	sf.Errorf("serve, %v", err)
	if e := sf.transport.discardInBuffer(); e != nil {
		sf.Errorf("discard in buffer, %v", e)
	}
	_ = sleep(ctx, sf.waitToRetry)
}

// serve answers one request frame, adu still carries its checksum.
func (sf *SerialSlave) serve(adu []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			sf.Errorf("panic happen, %v", r)
		}
	}()

	req, err := DecodeRequest(adu[:len(adu)-sf.checksumSize])
	if err != nil {
		sf.Debugf("drop request [% x], %v", adu, err)
		return nil
	}
	if !sf.transport.checksumsMatch(req, adu) {
		sf.Debugf("drop request [% x], checksum does not match the decoded message", adu)
		return sf.transport.discardInBuffer()
	}
	if req.SlaveAddress() != sf.slave.UnitID() && req.SlaveAddress() != AddressBroadCast {
		return nil
	}

	rsp := sf.slave.ApplyRequest(req)
	if req.SlaveAddress() == AddressBroadCast {
		return nil
	}
	return sf.transport.write(rsp)
}

// Close closes the stream when it can be closed, Listen returns after.
func (sf *SerialSlave) Close() error {
	if c, ok := sf.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
