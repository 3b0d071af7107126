package modbus

import (
	"encoding/binary"
	"fmt"
)

// Message is a modbus request or response independent of the transport.
type Message interface {
	// SlaveAddress the unit the message is addressed to, 0 is broadcast.
	SlaveAddress() byte
	// FunctionCode with the exception bit set for exception responses.
	FunctionCode() byte
	// ProtocolDataUnit the function code followed by the function data.
	ProtocolDataUnit() []byte
	// MinimumFrameSize the least number of bytes of address + PDU.
	MinimumFrameSize() int
}

// Request is a Message the master sends, able to judge its response.
type Request interface {
	Message
	// ValidateResponse checks the response echoes what was asked for.
	ValidateResponse(response Message) error
}

// MessageFrame returns address ++ PDU, the part covered by CRC/LRC.
func MessageFrame(m Message) []byte {
	pdu := m.ProtocolDataUnit()
	frame := make([]byte, 0, len(pdu)+1)
	frame = append(frame, m.SlaveAddress())
	return append(frame, pdu...)
}

type header struct {
	slaveAddress byte
	functionCode byte
}

// SlaveAddress implements Message.
func (h header) SlaveAddress() byte { return h.slaveAddress }

// FunctionCode implements Message.
func (h header) FunctionCode() byte { return h.functionCode }

type decodeFunc func(frame []byte) (Message, error)

var requestDecoders = map[byte]decodeFunc{
	FuncCodeReadCoils:                  decodeReadBitsRequest,
	FuncCodeReadDiscreteInputs:         decodeReadBitsRequest,
	FuncCodeReadHoldingRegisters:       decodeReadRegistersRequest,
	FuncCodeReadInputRegisters:         decodeReadRegistersRequest,
	FuncCodeWriteSingleCoil:            decodeWriteSingleRequest,
	FuncCodeWriteSingleRegister:        decodeWriteSingleRequest,
	FuncCodeWriteMultipleCoils:         decodeWriteMultipleRequest,
	FuncCodeWriteMultipleRegisters:     decodeWriteMultipleRequest,
	FuncCodeReadWriteMultipleRegisters: decodeReadWriteMultipleRegistersRequest,
	FuncCodeDiagnostics:                decodeDiagnosticsRequest,
	FuncCodeMaskWriteRegister:          decodeMaskWriteRegisterRequest,
	FuncCodeReadFileRecord:             decodeReadFileRecordRequest,
}

var responseDecoders = map[byte]decodeFunc{
	FuncCodeReadCoils:                  decodeReadBitsResponse,
	FuncCodeReadDiscreteInputs:         decodeReadBitsResponse,
	FuncCodeReadHoldingRegisters:       decodeReadRegistersResponse,
	FuncCodeReadInputRegisters:         decodeReadRegistersResponse,
	FuncCodeReadWriteMultipleRegisters: decodeReadRegistersResponse,
	FuncCodeWriteSingleCoil:            decodeWriteSingleRequest,
	FuncCodeWriteSingleRegister:        decodeWriteSingleRequest,
	FuncCodeWriteMultipleCoils:         decodeWriteMultipleResponse,
	FuncCodeWriteMultipleRegisters:     decodeWriteMultipleResponse,
	FuncCodeDiagnostics:                decodeDiagnosticsRequest,
	FuncCodeMaskWriteRegister:          decodeMaskWriteRegisterRequest,
	FuncCodeReadFileRecord:             decodeReadFileRecordResponse,
}

// IsKnownFunctionCode reports whether the frame model has a layout for fc.
func IsKnownFunctionCode(fc byte) bool {
	_, ok := requestDecoders[fc]
	return ok
}

// DecodeRequest parses address ++ PDU of a request, checksum excluded.
// Unknown function codes decode to RawMessage.
func DecodeRequest(frame []byte) (Message, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: request frame size '%v' too short", ErrFormat, len(frame))
	}
	if decode, ok := requestDecoders[frame[1]]; ok {
		return decode(frame)
	}
	return decodeRawMessage(frame)
}

// DecodeResponse parses address ++ PDU of a response to a request with
// function code fc. An exception response decodes to ExceptionResponse
// regardless of fc.
func DecodeResponse(frame []byte, fc byte) (Message, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: response frame size '%v' too short", ErrFormat, len(frame))
	}
	if frame[1]&exceptionOffset != 0 {
		return decodeExceptionResponse(frame)
	}
	if decode, ok := responseDecoders[fc]; ok {
		return decode(frame)
	}
	return decodeRawMessage(frame)
}

func checkMinimumSize(frame []byte, min int) error {
	if len(frame) < min {
		return fmt.Errorf("%w: function '%v' frame size '%v' less than minimum '%v'",
			ErrFormat, frame[1], len(frame), min)
	}
	return nil
}

// byteCountData returns the data announced by the byte count at frame[offset].
func byteCountData(frame []byte, offset int) ([]byte, error) {
	n := int(frame[offset])
	if len(frame) < offset+1+n {
		return nil, fmt.Errorf("%w: byte count '%v' exceeds frame size '%v'", ErrFormat, n, len(frame))
	}
	return append([]byte(nil), frame[offset+1:offset+1+n]...), nil
}

func mismatch(format string, v ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrResponseMismatch}, v...)...)
}

// uint162Bytes creates a sequence of uint16 data.
func uint162Bytes(value ...uint16) []byte {
	data := make([]byte, 2*len(value))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}

// bytes2Uint16 bytes convert to uint16 for register.
func bytes2Uint16(buf []byte) []uint16 {
	data := make([]uint16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		data = append(data, binary.BigEndian.Uint16(buf[i:]))
	}
	return data
}
