package modbus

import (
	"fmt"
)

// RTU frame starts read before the remaining length is known.
const (
	rtuResponseFrameStartLength = 4 // address(1) + funcCode(1) + byte count or data(2)
	rtuRequestFrameStartLength  = 7 // address(1) + funcCode(1) + data(5)
	rtuReadWriteByteCountOffset = 10
)

// CustomFunction teaches the framer the length of a user defined function.
// Both counters return how many bytes follow the frame start, crc included.
type CustomFunction struct {
	// RequestBytesToRead is given the first 7 bytes of a request.
	RequestBytesToRead func(frameStart []byte) int
	// ResponseBytesToRead is given the first 4 bytes of a response.
	ResponseBytesToRead func(frameStart []byte) int
}

// FunctionRegistry maps custom function codes to their framing rules.
// It is built once and shared by the transports it is handed to.
type FunctionRegistry map[byte]CustomFunction

// Register adds or replaces the framing rules of fc.
func (sf FunctionRegistry) Register(fc byte, f CustomFunction) FunctionRegistry {
	sf[fc] = f
	return sf
}

func (sf FunctionRegistry) lookup(fc byte) (CustomFunction, bool) {
	if sf == nil {
		return CustomFunction{}, false
	}
	f, ok := sf[fc]
	return f, ok
}

// isRequestFunction reports whether a request with fc can be framed.
func (sf FunctionRegistry) isRequestFunction(fc byte) bool {
	if f, ok := sf.lookup(fc); ok && f.RequestBytesToRead != nil {
		return true
	}
	return IsKnownFunctionCode(fc)
}

// ResponseBytesToRead returns the number of bytes of an RTU response that
// follow its 4 byte frame start.
func (sf FunctionRegistry) ResponseBytesToRead(frameStart []byte) (int, error) {
	if len(frameStart) < rtuResponseFrameStartLength {
		return 0, fmt.Errorf("%w: response frame start size '%v'", ErrFormat, len(frameStart))
	}
	fc := frameStart[1]
	if fc&exceptionOffset != 0 {
		return 1, nil
	}
	if f, ok := sf.lookup(fc); ok && f.ResponseBytesToRead != nil {
		n := f.ResponseBytesToRead(frameStart)
		if n < 0 || rtuResponseFrameStartLength+n > rtuAduMaxSize {
			return 0, fmt.Errorf("%w: response function '%v' bytes to read '%v'", ErrFormat, fc, n)
		}
		return n, nil
	}
	switch fc {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters,
		FuncCodeReadWriteMultipleRegisters, FuncCodeReadFileRecord:
		return int(frameStart[2]) + 1, nil
	case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters,
		FuncCodeDiagnostics:
		return 4, nil
	case FuncCodeMaskWriteRegister:
		return 6, nil
	default:
		return 0, fmt.Errorf("%w: response function '%v'", ErrNotSupported, fc)
	}
}

// requestFrameLength returns the RTU request length, crc included, as far as
// frameStart reveals it. The read/write multiple registers request needs 11
// bytes to show its byte count, so for it the result grows once more bytes
// are given.
func (sf FunctionRegistry) requestFrameLength(frameStart []byte) (int, error) {
	if len(frameStart) < rtuRequestFrameStartLength {
		return rtuRequestFrameStartLength, nil
	}
	fc := frameStart[1]
	var length int
	if f, ok := sf.lookup(fc); ok && f.RequestBytesToRead != nil {
		length = rtuRequestFrameStartLength + f.RequestBytesToRead(frameStart[:rtuRequestFrameStartLength])
	} else {
		switch fc {
		case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
			FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters,
			FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
			FuncCodeDiagnostics:
			length = 8
		case FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
			length = 9 + int(frameStart[6])
		case FuncCodeReadFileRecord:
			length = 5 + int(frameStart[2])
		case FuncCodeMaskWriteRegister:
			length = 10
		case FuncCodeReadWriteMultipleRegisters:
			if len(frameStart) <= rtuReadWriteByteCountOffset {
				length = rtuReadWriteByteCountOffset + 1
			} else {
				length = 13 + int(frameStart[rtuReadWriteByteCountOffset])
			}
		default:
			return 0, fmt.Errorf("%w: request function '%v'", ErrNotSupported, fc)
		}
	}
	if length > rtuAduMaxSize || length < rtuAduMinSize {
		return 0, fmt.Errorf("%w: request frame size '%v' out of range", ErrFormat, length)
	}
	return length, nil
}

// RequestBytesToRead returns the number of bytes of an RTU request still
// missing after frameStart, at least 7 bytes. A read/write multiple
// registers request first asks for the bytes up to its byte count.
func (sf FunctionRegistry) RequestBytesToRead(frameStart []byte) (int, error) {
	length, err := sf.requestFrameLength(frameStart)
	if err != nil {
		return 0, err
	}
	if n := length - len(frameStart); n > 0 {
		return n, nil
	}
	return 0, nil
}
