package modbus

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
)

// protocol frame: asciiStart + ( slaveID + functionCode + data + lrc ) + CR + LF.
const (
	asciiStart = ':'
	asciiEnd   = "\r\n"
	hexTable   = "0123456789ABCDEF"
)

// asciiTransport frames messages as hex text with an LRC between ':' and CRLF.
type asciiTransport struct {
	stream StreamResource
	reader *bufio.Reader
	// the last response read failed, input may hold its leftovers
	dirty bool
	*clogs
}

var _ frameTransport = (*asciiTransport)(nil)

func newASCIITransport(stream StreamResource, l *clogs) *asciiTransport {
	return &asciiTransport{
		stream: stream,
		reader: bufio.NewReaderSize(stream, 2*asciiCharacterMaxSize),
		clogs:  l,
	}
}

// encode slaveID & PDU to a ASCII frame and send it
//  Start           : 1 char
//  slaveID         : 2 chars
//  ---- data Unit ----
//  Function        : 2 chars
//  Data            : 0 up to 2x252 chars
//  ---- checksum ----
//  LRC             : 2 chars
//  End             : 2 chars
func (sf *asciiTransport) write(m Message) error {
	pdu := m.ProtocolDataUnit()
	if length := len(pdu) + 2; length > asciiAduMaxSize {
		return fmt.Errorf("%w: length of data '%v' must not be bigger than '%v'", ErrFormat, length, asciiAduMaxSize)
	}
	slaveID := m.SlaveAddress()
	// Exclude the beginning colon and terminating CRLF pair characters
	var l lrc
	lrcVal := l.reset().push(slaveID).push(pdu...).value()

	frame := asciiPool.get()
	defer asciiPool.put(frame)

	frame.adu = append(frame.adu, asciiStart, hexTable[slaveID>>4], hexTable[slaveID&0x0f])
	for _, v := range pdu {
		frame.adu = append(frame.adu, hexTable[v>>4], hexTable[v&0x0f])
	}
	frame.adu = append(frame.adu, hexTable[lrcVal>>4], hexTable[lrcVal&0x0f])
	frame.adu = append(frame.adu, asciiEnd...)
	sf.Debugf("TX Raw[%q]", frame.adu)
	_, err := sf.stream.Write(frame.adu)
	return err
}

func (sf *asciiTransport) writeMessage(m Message) error {
	if sf.dirty {
		if err := sf.discardInBuffer(); err != nil {
			sf.Errorf("discard in buffer, %v", err)
		}
		sf.dirty = false
	}
	return sf.write(m)
}

func (sf *asciiTransport) discardInBuffer() error {
	err := sf.stream.DiscardInBuffer()
	sf.reader.Reset(sf.stream)
	return err
}

// readFrame returns the bytes between ':' and CRLF, still hex encoded.
func (sf *asciiTransport) readFrame() ([]byte, error) {
	for {
		b, err := sf.reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == asciiStart {
			break
		}
	}
	line, err := sf.reader.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: frame longer than '%v' characters", ErrFormat, 2*asciiCharacterMaxSize)
	}
	if err != nil {
		return nil, err
	}
	sf.Debugf("RX Raw[%q]", line)
	return append([]byte(nil), line...), nil
}

// decodeASCIIFrame turns the hex text of a frame, CRLF included, into
// address + PDU + LRC and verifies the LRC.
func decodeASCIIFrame(text []byte) ([]byte, error) {
	if len(text) < 2*asciiAduMinSize+len(asciiEnd) {
		return nil, fmt.Errorf("%w: frame length '%v' does not meet minimum '%v'",
			ErrFormat, len(text), 2*asciiAduMinSize+len(asciiEnd))
	}
	if string(text[len(text)-len(asciiEnd):]) != asciiEnd {
		return nil, fmt.Errorf("%w: frame '%q' is not ended with CRLF", ErrFormat, text)
	}
	dat := text[:len(text)-len(asciiEnd)]
	if len(dat)%2 != 0 {
		return nil, fmt.Errorf("%w: frame length '%v' is not an even number", ErrFormat, len(dat))
	}
	adu := make([]byte, hex.DecodedLen(len(dat)))
	if _, err := hex.Decode(adu, dat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if lrcVal := LRC(adu[:len(adu)-1]); adu[len(adu)-1] != lrcVal {
		return nil, fmt.Errorf("%w: lrc '%x' does not match expected '%x'", ErrFormat, adu[len(adu)-1], lrcVal)
	}
	return adu, nil
}

func (sf *asciiTransport) readResponse(req Request) (rsp Message, err error) {
	defer func() { sf.dirty = err != nil }()

	text, err := sf.readFrame()
	if err != nil {
		return nil, err
	}
	adu, err := decodeASCIIFrame(text)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(adu[:len(adu)-1], req.FunctionCode())
}

func (sf *asciiTransport) onValidateResponse(req Request, rsp Message) (bool, error) {
	return true, req.ValidateResponse(rsp)
}

// checksumsMatch recomputes the lrc over the re-encoded message.
func (sf *asciiTransport) checksumsMatch(m Message, adu []byte) bool {
	return len(adu) >= asciiAduMinSize && adu[len(adu)-1] == LRC(MessageFrame(m))
}

// readRequest returns the next well formed request frame addressed to unitID
// or broadcast, as address + PDU + LRC. Timeouts and malformed frames are
// skipped, the scan stops on ctx or on a stream error.
func (sf *asciiTransport) readRequest(ctx context.Context, unitID byte) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := sf.readFrame()
		if err != nil {
			if IsTimeout(err) || isFramingError(err) {
				continue
			}
			return nil, err
		}
		adu, err := decodeASCIIFrame(text)
		if err != nil {
			sf.Debugf("drop frame, %v", err)
			continue
		}
		if adu[0] != unitID && adu[0] != AddressBroadCast {
			continue
		}
		return adu, nil
	}
}
