package mb

import (
	modbus "github.com/thinkgos/mbus"
)

// Handler receives gathered values, valBuf is the raw response data: packed
// bits for coils and discrete inputs, big endian registers otherwise.
// Handler methods run on the poll goroutine.
type Handler interface {
	ProcReadCoils(slaveID byte, address, quality uint16, valBuf []byte)
	ProcReadDiscretes(slaveID byte, address, quality uint16, valBuf []byte)
	ProcReadHoldingRegisters(slaveID byte, address, quality uint16, valBuf []byte)
	ProcReadInputRegisters(slaveID byte, address, quality uint16, valBuf []byte)
	ProcResult(err error, result *Result)
}

// NopProc implement interface Handler
type NopProc struct{}

var _ Handler = NopProc{}

// ProcReadCoils implement interface Handler
func (NopProc) ProcReadCoils(byte, uint16, uint16, []byte) {}

// ProcReadDiscretes implement interface Handler
func (NopProc) ProcReadDiscretes(byte, uint16, uint16, []byte) {}

// ProcReadHoldingRegisters implement interface Handler
func (NopProc) ProcReadHoldingRegisters(byte, uint16, uint16, []byte) {}

// ProcReadInputRegisters implement interface Handler
func (NopProc) ProcReadInputRegisters(byte, uint16, uint16, []byte) {}

// ProcResult implement interface Handler
func (NopProc) ProcResult(error, *Result) {}

// ProcFunc one callback for every kind of gathered value, funcCode tells
// them apart.
type ProcFunc func(slaveID, funcCode byte, address, quality uint16, valBuf []byte)

// FuncProc adapts callbacks to Handler, nil callbacks are skipped.
type FuncProc struct {
	Values ProcFunc
	Result func(err error, result *Result)
}

var _ Handler = FuncProc{}

func (sf FuncProc) values(slaveID, funcCode byte, address, quality uint16, valBuf []byte) {
	if sf.Values != nil {
		sf.Values(slaveID, funcCode, address, quality, valBuf)
	}
}

// ProcReadCoils implement interface Handler
func (sf FuncProc) ProcReadCoils(slaveID byte, address, quality uint16, valBuf []byte) {
	sf.values(slaveID, modbus.FuncCodeReadCoils, address, quality, valBuf)
}

// ProcReadDiscretes implement interface Handler
func (sf FuncProc) ProcReadDiscretes(slaveID byte, address, quality uint16, valBuf []byte) {
	sf.values(slaveID, modbus.FuncCodeReadDiscreteInputs, address, quality, valBuf)
}

// ProcReadHoldingRegisters implement interface Handler
func (sf FuncProc) ProcReadHoldingRegisters(slaveID byte, address, quality uint16, valBuf []byte) {
	sf.values(slaveID, modbus.FuncCodeReadHoldingRegisters, address, quality, valBuf)
}

// ProcReadInputRegisters implement interface Handler
func (sf FuncProc) ProcReadInputRegisters(slaveID byte, address, quality uint16, valBuf []byte) {
	sf.values(slaveID, modbus.FuncCodeReadInputRegisters, address, quality, valBuf)
}

// ProcResult implement interface Handler
func (sf FuncProc) ProcResult(err error, result *Result) {
	if sf.Result != nil {
		sf.Result(err, result)
	}
}
