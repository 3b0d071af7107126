package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// rtuTransport frames messages as address + PDU + CRC16 on a serial stream.
// On the slave side it recovers request boundaries from a noisy line.
type rtuTransport struct {
	stream   StreamResource
	registry FunctionRegistry
	// unconsumed bytes of the request scan
	pending []byte
	// the last response read failed, input may hold its leftovers
	dirty bool
	*clogs
}

var _ frameTransport = (*rtuTransport)(nil)

func newRTUTransport(stream StreamResource, registry FunctionRegistry, l *clogs) *rtuTransport {
	return &rtuTransport{
		stream:   stream,
		registry: registry,
		pending:  make([]byte, 0, 2*rtuAduMaxSize),
		clogs:    l,
	}
}

// encode slaveID & PDU to a RTU frame and send it
//  Address         : 1 byte
//  Function        : 1 byte
//  Data            : 0 up to 252 bytes
//  CRC             : 2 byte
func (sf *rtuTransport) write(m Message) error {
	pdu := m.ProtocolDataUnit()
	if len(pdu) < pduMinSize || len(pdu) > pduMaxSize {
		return fmt.Errorf("%w: pdu size '%v' must be between '%v' and '%v'",
			ErrFormat, len(pdu), pduMinSize, pduMaxSize)
	}
	frame := rtuPool.get()
	defer rtuPool.put(frame)

	frame.adu = append(frame.adu, m.SlaveAddress())
	frame.adu = append(frame.adu, pdu...)
	frame.adu = appendCRC(frame.adu)
	sf.Debugf("TX Raw[% x]", frame.adu)
	_, err := sf.stream.Write(frame.adu)
	return err
}

// writeMessage drops the leftovers of a failed read first so the next read
// sees only the answer.
func (sf *rtuTransport) writeMessage(m Message) error {
	if sf.dirty {
		if err := sf.discardInBuffer(); err != nil {
			sf.Errorf("discard in buffer, %v", err)
		}
		sf.dirty = false
	}
	return sf.write(m)
}

func (sf *rtuTransport) discardInBuffer() error {
	sf.pending = sf.pending[:0]
	return sf.stream.DiscardInBuffer()
}

func (sf *rtuTransport) readResponse(req Request) (rsp Message, err error) {
	defer func() { sf.dirty = err != nil }()

	adu := make([]byte, rtuResponseFrameStartLength, rtuAduMaxSize)
	if _, err = io.ReadFull(sf.stream, adu); err != nil {
		return nil, err
	}
	n, err := sf.registry.ResponseBytesToRead(adu)
	if err != nil {
		return nil, err
	}
	if rtuResponseFrameStartLength+n > rtuAduMaxSize {
		return nil, fmt.Errorf("%w: response size '%v' greater than '%v'",
			ErrFormat, rtuResponseFrameStartLength+n, rtuAduMaxSize)
	}
	adu = adu[:rtuResponseFrameStartLength+n]
	if _, err = io.ReadFull(sf.stream, adu[rtuResponseFrameStartLength:]); err != nil {
		return nil, err
	}
	sf.Debugf("RX Raw[% x]", adu)
	if !checkCRC(adu) {
		return nil, fmt.Errorf("%w: response crc '%#04x' does not match expected '%#04x'", ErrFormat,
			binary.LittleEndian.Uint16(adu[len(adu)-2:]), CRC16(adu[:len(adu)-2]))
	}
	return DecodeResponse(adu[:len(adu)-2], req.FunctionCode())
}

func (sf *rtuTransport) onValidateResponse(req Request, rsp Message) (bool, error) {
	return true, req.ValidateResponse(rsp)
}

// checksumsMatch recomputes the crc over the re-encoded message.
func (sf *rtuTransport) checksumsMatch(m Message, adu []byte) bool {
	if len(adu) < rtuAduMinSize {
		return false
	}
	return binary.LittleEndian.Uint16(adu[len(adu)-2:]) == CRC16(MessageFrame(m))
}

// fill appends whatever one read of the stream returns to pending.
func (sf *rtuTransport) fill() error {
	var buf [rtuAduMaxSize]byte
	n, err := sf.stream.Read(buf[:])
	sf.pending = append(sf.pending, buf[:n]...)
	if n > 0 && err != nil && IsTimeout(err) {
		return nil
	}
	if n == 0 && err == nil {
		return errEmptyRead
	}
	return err
}

func (sf *rtuTransport) skip(n int) {
	sf.pending = append(sf.pending[:0], sf.pending[n:]...)
}

// readRequest scans the stream for the next request addressed to unitID or
// broadcast, returning the whole frame crc included. A window of 7 bytes
// slides one byte at a time over the input. A window that starts with a
// matching address and a known function code is completed to the length its
// function requires and kept if the crc matches. Anything else is noise. Read
// timeouts never end the scan, a timeout while completing a candidate drops
// that candidate. The scan stops on ctx or on a stream error.
func (sf *rtuTransport) readRequest(ctx context.Context, unitID byte) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(sf.pending) < rtuRequestFrameStartLength {
			if err := sf.fill(); err != nil && !IsTimeout(err) {
				return nil, err
			}
			continue
		}

		address, fc := sf.pending[0], sf.pending[1]
		if (address != unitID && address != AddressBroadCast) || !sf.registry.isRequestFunction(fc) {
			sf.skip(1)
			continue
		}

		length, err := sf.registry.requestFrameLength(sf.pending)
		for err == nil && len(sf.pending) < length {
			if err = sf.fill(); err != nil {
				break
			}
			length, err = sf.registry.requestFrameLength(sf.pending)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !IsTimeout(err) && !isFramingError(err) {
				return nil, err
			}
			sf.Debugf("drop candidate [% x], %v", sf.pending[:2], err)
			sf.skip(1)
			continue
		}

		if !checkCRC(sf.pending[:length]) {
			sf.skip(1)
			continue
		}
		adu := append([]byte(nil), sf.pending[:length]...)
		sf.skip(length)
		sf.Debugf("RX Raw[% x]", adu)
		return adu, nil
	}
}
