package modbus

import (
	"encoding/binary"
	"fmt"
	"io"
)

// protocolTCPHeader independent of underlying communication layers.
type protocolTCPHeader struct {
	transactionID uint16
	protocolID    uint16
	length        uint16
	slaveID       uint8
}

// encodeTCPFrame appends the MBAP header and the PDU of m to adu
//  Transaction identifier: 2 bytes
//  Protocol identifier   : 2 bytes
//  Length                : 2 bytes
//  Unit identifier       : 1 byte
//  Function code         : 1 byte
//  Data                  : n bytes
func encodeTCPFrame(adu []byte, transactionID uint16, m Message) ([]byte, error) {
	pdu := m.ProtocolDataUnit()
	if len(pdu) < pduMinSize || len(pdu) > pduMaxSize {
		return nil, fmt.Errorf("%w: pdu size '%v' must be between '%v' and '%v'",
			ErrFormat, len(pdu), pduMinSize, pduMaxSize)
	}
	var head [tcpHeaderMbapSize]byte
	binary.BigEndian.PutUint16(head[0:], transactionID)
	binary.BigEndian.PutUint16(head[2:], tcpProtocolIdentifier)
	binary.BigEndian.PutUint16(head[4:], uint16(1+len(pdu)))
	head[6] = m.SlaveAddress()
	adu = append(adu, head[:]...)
	return append(adu, pdu...), nil
}

// readTCPFrame reads one MBAP framed message, returning its header and
// unit id + PDU.
func readTCPFrame(r io.Reader) (protocolTCPHeader, []byte, error) {
	var data [tcpAduMaxSize]byte
	var head protocolTCPHeader

	if _, err := io.ReadFull(r, data[:tcpHeaderMbapSize]); err != nil {
		return head, nil, err
	}
	head = protocolTCPHeader{
		binary.BigEndian.Uint16(data[0:]),
		binary.BigEndian.Uint16(data[2:]),
		binary.BigEndian.Uint16(data[4:]),
		data[6],
	}
	switch {
	case head.protocolID != tcpProtocolIdentifier:
		return head, nil, fmt.Errorf("%w: protocol identifier '%v' must be '%v'",
			ErrFormat, head.protocolID, tcpProtocolIdentifier)
	case head.length <= 1:
		return head, nil, fmt.Errorf("%w: length in header '%v' must hold unit id and function code",
			ErrFormat, head.length)
	case int(head.length) > tcpAduMaxSize-tcpHeaderMbapSize+1:
		return head, nil, fmt.Errorf("%w: length in header '%v' must not greater than '%v'",
			ErrFormat, head.length, tcpAduMaxSize-tcpHeaderMbapSize+1)
	}
	length := int(head.length) + tcpHeaderMbapSize - 1
	if _, err := io.ReadFull(r, data[tcpHeaderMbapSize:length]); err != nil {
		return head, nil, err
	}
	return head, append([]byte(nil), data[tcpHeaderMbapSize-1:length]...), nil
}

// tcpTransport master side of modbus TCP. Every write gets a new transaction
// id, a late response to an earlier write is skipped when it lags by less
// than the threshold.
type tcpTransport struct {
	stream                      StreamResource
	transactionID               uint16
	responseID                  uint16
	retryOnOldResponseThreshold uint16
	*clogs
}

var _ frameTransport = (*tcpTransport)(nil)

func newTCPTransport(stream StreamResource, threshold uint16, l *clogs) *tcpTransport {
	return &tcpTransport{
		stream:                      stream,
		retryOnOldResponseThreshold: threshold,
		clogs:                       l,
	}
}

func (sf *tcpTransport) writeMessage(m Message) error {
	frame := tcpPool.get()
	defer tcpPool.put(frame)

	sf.transactionID++
	adu, err := encodeTCPFrame(frame.adu, sf.transactionID, m)
	if err != nil {
		return err
	}
	sf.Debugf("TX Raw[% x]", adu)
	_, err = sf.stream.Write(adu)
	return err
}

func (sf *tcpTransport) readResponse(req Request) (Message, error) {
	head, frame, err := readTCPFrame(sf.stream)
	if err != nil {
		if isFramingError(err) {
			_ = sf.stream.DiscardInBuffer()
		}
		return nil, err
	}
	sf.Debugf("RX Raw[% x] transaction '%v'", frame, head.transactionID)
	sf.responseID = head.transactionID
	return DecodeResponse(frame, req.FunctionCode())
}

func (sf *tcpTransport) onValidateResponse(req Request, rsp Message) (bool, error) {
	if sf.responseID != sf.transactionID {
		if lag := sf.transactionID - sf.responseID; lag < sf.retryOnOldResponseThreshold {
			sf.Debugf("skip stale response transaction '%v', want '%v'", sf.responseID, sf.transactionID)
			return false, nil
		}
		return false, mismatch("response transaction id '%v' does not match request '%v'",
			sf.responseID, sf.transactionID)
	}
	return true, req.ValidateResponse(rsp)
}
