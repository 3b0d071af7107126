package modbus

import (
	"encoding/binary"
	"sync"
)

// DataStore the four modbus tables of a slave. Failures are reported as
// *ExceptionError and go back to the master as an exception response.
type DataStore interface {
	ReadCoils(address, quality uint16) ([]byte, error)
	WriteCoils(address, quality uint16, valBuf []byte) error
	ReadDiscretes(address, quality uint16) ([]byte, error)
	ReadInputsBytes(address, quality uint16) ([]byte, error)
	ReadHoldingsBytes(address, quality uint16) ([]byte, error)
	WriteHoldingsBytes(address, quality uint16, valBuf []byte) error
	MaskWriteHolding(address, andMask, orMask uint16) error
}

var _ DataStore = (*NodeRegister)(nil)

// NodeRegister in memory DataStore, safe for concurrent use.
// Bits are packed lsb first, registers are kept as uint16.
type NodeRegister struct {
	rw                                  sync.RWMutex
	coilsAddrStart, coilsQuantity       uint16
	coils                               []uint8
	discreteAddrStart, discreteQuantity uint16
	discrete                            []uint8
	inputAddrStart                      uint16
	input                               []uint16
	holdingAddrStart                    uint16
	holding                             []uint16
}

// NewNodeRegister creates the tables, each with a start address and a quantity.
func NewNodeRegister(
	coilsAddrStart, coilsQuantity,
	discreteAddrStart, discreteQuantity,
	inputAddrStart, inputQuantity,
	holdingAddrStart, holdingQuantity uint16) *NodeRegister {
	coilsBytes := (int(coilsQuantity) + 7) / 8
	discreteBytes := (int(discreteQuantity) + 7) / 8

	b := make([]byte, coilsBytes+discreteBytes)
	w := make([]uint16, int(inputQuantity)+int(holdingQuantity))
	return &NodeRegister{
		coilsAddrStart:    coilsAddrStart,
		coilsQuantity:     coilsQuantity,
		coils:             b[:coilsBytes],
		discreteAddrStart: discreteAddrStart,
		discreteQuantity:  discreteQuantity,
		discrete:          b[coilsBytes:],
		inputAddrStart:    inputAddrStart,
		input:             w[:inputQuantity],
		holdingAddrStart:  holdingAddrStart,
		holding:           w[inputQuantity:],
	}
}

// CoilsAddrParam coils start address and quantity
func (sf *NodeRegister) CoilsAddrParam() (start, quantity uint16) {
	return sf.coilsAddrStart, sf.coilsQuantity
}

// DiscreteParam discrete inputs start address and quantity
func (sf *NodeRegister) DiscreteParam() (start, quantity uint16) {
	return sf.discreteAddrStart, sf.discreteQuantity
}

// InputAddrParam input registers start address and quantity
func (sf *NodeRegister) InputAddrParam() (start, quantity uint16) {
	return sf.inputAddrStart, uint16(len(sf.input))
}

// HoldingAddrParam holding registers start address and quantity
func (sf *NodeRegister) HoldingAddrParam() (start, quantity uint16) {
	return sf.holdingAddrStart, uint16(len(sf.holding))
}

// inRange reports whether [address, address+quality) lies in a table.
func inRange(address, quality, start, size uint16) bool {
	return address >= start && int(address)+int(quality) <= int(start)+int(size)
}

// getBits 读取切片的位的值, nBits <= 8, nBits + start <= len(buf)*8
func getBits(buf []byte, start, nBits uint16) uint8 {
	byteOffset := start / 8         // byte holding the first bit
	preBits := start - byteOffset*8 // bits to skip in that byte

	mask := (uint16(1) << nBits) - 1
	word := uint16(buf[byteOffset])
	if preBits+nBits > 8 {
		word |= uint16(buf[byteOffset+1]) << 8
	}
	word >>= preBits
	word &= mask
	return uint8(word)
}

// setBits 设置切片的位的值, nBits <= 8, nBits + start <= len(buf)*8
func setBits(buf []byte, start, nBits uint16, value byte) {
	byteOffset := start / 8
	preBits := start - byteOffset*8
	newValue := uint16(value) << preBits
	mask := uint16((1 << nBits) - 1)
	mask <<= preBits
	newValue &= mask
	word := uint16(buf[byteOffset])
	if (preBits + nBits) > 8 {
		word |= uint16(buf[byteOffset+1]) << 8
	}

	word = (word & (^mask)) | newValue
	buf[byteOffset] = uint8(word & 0xFF)
	if (preBits + nBits) > 8 {
		buf[byteOffset+1] = uint8(word >> 8)
	}
}

// readBitTable packs quality bits of table starting at bit start.
func readBitTable(table []byte, start, quality uint16) []byte {
	result := make([]byte, 0, (int(quality)+7)/8)
	for n := int(quality); n > 0; n -= 8 {
		num := n
		if num > 8 {
			num = 8
		}
		result = append(result, getBits(table, start, uint16(num)))
		start += 8
	}
	return result
}

// writeBitTable stores quality packed bits of valBuf into table at bit start.
func writeBitTable(table []byte, start, quality uint16, valBuf []byte) {
	for idx, n := 0, int(quality); n > 0; idx, n = idx+1, n-8 {
		num := n
		if num > 8 {
			num = 8
		}
		setBits(table, start, uint16(num), valBuf[idx])
		start += 8
	}
}

// WriteCoils writes packed coil values
func (sf *NodeRegister) WriteCoils(address, quality uint16, valBuf []byte) error {
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if len(valBuf)*8 < int(quality) || !inRange(address, quality, sf.coilsAddrStart, sf.coilsQuantity) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	writeBitTable(sf.coils, address-sf.coilsAddrStart, quality, valBuf)
	return nil
}

// WriteSingleCoil writes one coil
func (sf *NodeRegister) WriteSingleCoil(address uint16, val bool) error {
	newVal := byte(0)
	if val {
		newVal = 1
	}
	return sf.WriteCoils(address, 1, []byte{newVal})
}

// ReadCoils returns packed coil values
func (sf *NodeRegister) ReadCoils(address, quality uint16) ([]byte, error) {
	sf.rw.RLock()
	defer sf.rw.RUnlock()
	if !inRange(address, quality, sf.coilsAddrStart, sf.coilsQuantity) {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	return readBitTable(sf.coils, address-sf.coilsAddrStart, quality), nil
}

// ReadSingleCoil reads one coil
func (sf *NodeRegister) ReadSingleCoil(address uint16) (bool, error) {
	v, err := sf.ReadCoils(address, 1)
	if err != nil {
		return false, err
	}
	return v[0] > 0, nil
}

// WriteDiscretes writes packed discrete input values, the local side of a
// read only table
func (sf *NodeRegister) WriteDiscretes(address, quality uint16, valBuf []byte) error {
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if len(valBuf)*8 < int(quality) || !inRange(address, quality, sf.discreteAddrStart, sf.discreteQuantity) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	writeBitTable(sf.discrete, address-sf.discreteAddrStart, quality, valBuf)
	return nil
}

// WriteSingleDiscrete writes one discrete input
func (sf *NodeRegister) WriteSingleDiscrete(address uint16, val bool) error {
	newVal := byte(0)
	if val {
		newVal = 1
	}
	return sf.WriteDiscretes(address, 1, []byte{newVal})
}

// ReadDiscretes returns packed discrete input values
func (sf *NodeRegister) ReadDiscretes(address, quality uint16) ([]byte, error) {
	sf.rw.RLock()
	defer sf.rw.RUnlock()
	if !inRange(address, quality, sf.discreteAddrStart, sf.discreteQuantity) {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	return readBitTable(sf.discrete, address-sf.discreteAddrStart, quality), nil
}

// ReadSingleDiscrete reads one discrete input
func (sf *NodeRegister) ReadSingleDiscrete(address uint16) (bool, error) {
	v, err := sf.ReadDiscretes(address, 1)
	if err != nil {
		return false, err
	}
	return v[0] > 0, nil
}

func putRegisters(table []uint16, valBuf []byte) {
	for i := range table {
		table[i] = binary.BigEndian.Uint16(valBuf[i*2:])
	}
}

// WriteHoldingsBytes writes big endian register bytes
func (sf *NodeRegister) WriteHoldingsBytes(address, quality uint16, valBuf []byte) error {
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if len(valBuf) != int(quality)*2 || !inRange(address, quality, sf.holdingAddrStart, uint16(len(sf.holding))) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.holdingAddrStart
	putRegisters(sf.holding[start:start+quality], valBuf)
	return nil
}

// WriteHoldings writes registers
func (sf *NodeRegister) WriteHoldings(address uint16, valBuf []uint16) error {
	quality := uint16(len(valBuf))
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if !inRange(address, quality, sf.holdingAddrStart, uint16(len(sf.holding))) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.holdingAddrStart
	copy(sf.holding[start:start+quality], valBuf)
	return nil
}

// ReadHoldingsBytes returns big endian register bytes
func (sf *NodeRegister) ReadHoldingsBytes(address, quality uint16) ([]byte, error) {
	sf.rw.RLock()
	defer sf.rw.RUnlock()
	if !inRange(address, quality, sf.holdingAddrStart, uint16(len(sf.holding))) {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.holdingAddrStart
	return uint162Bytes(sf.holding[start : start+quality]...), nil
}

// ReadHoldings returns registers
func (sf *NodeRegister) ReadHoldings(address, quality uint16) ([]uint16, error) {
	sf.rw.RLock()
	defer sf.rw.RUnlock()
	if !inRange(address, quality, sf.holdingAddrStart, uint16(len(sf.holding))) {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.holdingAddrStart
	return append([]uint16(nil), sf.holding[start:start+quality]...), nil
}

// WriteInputsBytes writes big endian register bytes, the local side of a
// read only table
func (sf *NodeRegister) WriteInputsBytes(address, quality uint16, regBuf []byte) error {
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if len(regBuf) != int(quality)*2 || !inRange(address, quality, sf.inputAddrStart, uint16(len(sf.input))) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.inputAddrStart
	putRegisters(sf.input[start:start+quality], regBuf)
	return nil
}

// WriteInputs writes registers
func (sf *NodeRegister) WriteInputs(address uint16, valBuf []uint16) error {
	quality := uint16(len(valBuf))
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if !inRange(address, quality, sf.inputAddrStart, uint16(len(sf.input))) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.inputAddrStart
	copy(sf.input[start:start+quality], valBuf)
	return nil
}

// ReadInputsBytes returns big endian register bytes
func (sf *NodeRegister) ReadInputsBytes(address, quality uint16) ([]byte, error) {
	sf.rw.RLock()
	defer sf.rw.RUnlock()
	if !inRange(address, quality, sf.inputAddrStart, uint16(len(sf.input))) {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.inputAddrStart
	return uint162Bytes(sf.input[start : start+quality]...), nil
}

// ReadInputs returns registers
func (sf *NodeRegister) ReadInputs(address, quality uint16) ([]uint16, error) {
	sf.rw.RLock()
	defer sf.rw.RUnlock()
	if !inRange(address, quality, sf.inputAddrStart, uint16(len(sf.input))) {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	start := address - sf.inputAddrStart
	return append([]uint16(nil), sf.input[start:start+quality]...), nil
}

// MaskWriteHolding (val & andMask) | (orMask & ^andMask)
func (sf *NodeRegister) MaskWriteHolding(address, andMask, orMask uint16) error {
	sf.rw.Lock()
	defer sf.rw.Unlock()
	if !inRange(address, 1, sf.holdingAddrStart, uint16(len(sf.holding))) {
		return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataAddress}
	}
	idx := address - sf.holdingAddrStart
	sf.holding[idx] = (sf.holding[idx] & andMask) | (orMask & ^andMask)
	return nil
}
