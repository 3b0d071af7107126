package modbus

import (
	"context"
	"fmt"
)

// check implements Client interface.
var _ Client = (*client)(nil)

// ClientOption custom option
type ClientOption func(c *client)

// WithAddressMin set custom address min value, default AddressMin.
// values below AddressMin are raised to AddressMin, 0 is the broadcast address.
func WithAddressMin(v byte) ClientOption {
	return func(c *client) {
		if v < AddressMin {
			v = AddressMin
		}
		c.addressMin = v
	}
}

// WithAddressMax set custom address max value, default AddressMax.
// values above AddressMax are lowered to AddressMax.
func WithAddressMax(v byte) ClientOption {
	return func(c *client) {
		if v > AddressMax {
			v = AddressMax
		}
		c.addressMax = v
	}
}

// client implements Client interface.
type client struct {
	*Master
	addressMin byte
	addressMax byte
}

// NewClient creates a new modbus client on the master.
// default proto address limit is 1~247 AddressMax
// you can change with custom option.
// when your device have address upon addressMax
func NewClient(m *Master, opts ...ClientOption) Client {
	c := &client{m, AddressMin, AddressMax}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (sf *client) checkUnicast(slaveID byte) error {
	if slaveID < sf.addressMin || slaveID > sf.addressMax {
		return fmt.Errorf("modbus: slaveID '%v' must be between '%v' and '%v'",
			slaveID, sf.addressMin, sf.addressMax)
	}
	return nil
}

func (sf *client) checkWrite(slaveID byte) error {
	if slaveID > sf.addressMax {
		return fmt.Errorf("modbus: slaveID '%v' must be between '%v' and '%v'",
			slaveID, AddressBroadCast, sf.addressMax)
	}
	return nil
}

func checkQuantity(what string, quantity uint16, min, max int) error {
	if int(quantity) < min || int(quantity) > max {
		return fmt.Errorf("modbus: %s '%v' must be between '%v' and '%v'", what, quantity, min, max)
	}
	return nil
}

func (sf *client) readBits(ctx context.Context, req ReadBitsRequest) ([]byte, error) {
	if err := sf.checkUnicast(req.SlaveAddress()); err != nil {
		return nil, err
	}
	if err := checkQuantity("quantity", req.NumberOfPoints(), ReadBitsQuantityMin, ReadBitsQuantityMax); err != nil {
		return nil, err
	}
	response, err := sf.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return response.(ReadBitsResponse).Data(), nil
}

// ReadCoils
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x01)
//  Starting address      : 2 bytes
//  Quantity of coils     : 2 bytes
// Response:
//  Function code         : 1 byte (0x01)
//  Byte count            : 1 byte
//  Coil status           : N* bytes (=N or N+1)
//  return coils status
func (sf *client) ReadCoils(ctx context.Context, slaveID byte, address, quantity uint16) ([]byte, error) {
	return sf.readBits(ctx, NewReadCoilsRequest(slaveID, address, quantity))
}

// ReadDiscreteInputs
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x02)
//  Starting address      : 2 bytes
//  Quantity of inputs    : 2 bytes
// Response:
//  Function code         : 1 byte (0x02)
//  Byte count            : 1 byte
//  Input status          : N* bytes (=N or N+1)
//  return result data
func (sf *client) ReadDiscreteInputs(ctx context.Context, slaveID byte, address, quantity uint16) ([]byte, error) {
	return sf.readBits(ctx, NewReadDiscreteInputsRequest(slaveID, address, quantity))
}

// WriteSingleCoil
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x05)
//  Output address        : 2 bytes
//  Output value          : 2 bytes
// Response:
//  Function code         : 1 byte (0x05)
//  Output address        : 2 bytes
//  Output value          : 2 bytes
func (sf *client) WriteSingleCoil(ctx context.Context, slaveID byte, address uint16, isOn bool) error {
	if err := sf.checkWrite(slaveID); err != nil {
		return err
	}
	_, err := sf.Send(ctx, NewWriteSingleCoilRequest(slaveID, address, isOn))
	return err
}

// WriteMultipleCoils
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x0F)
//  Starting address      : 2 bytes
//  Quantity of outputs   : 2 bytes
//  Byte count            : 1 byte
//  Outputs value         : N* bytes
// Response:
//  Function code         : 1 byte (0x0F)
//  Starting address      : 2 bytes
//  Quantity of outputs   : 2 bytes
func (sf *client) WriteMultipleCoils(ctx context.Context, slaveID byte, address, quantity uint16, value []byte) error {
	if err := sf.checkWrite(slaveID); err != nil {
		return err
	}
	if err := checkQuantity("quantity", quantity, WriteBitsQuantityMin, WriteBitsQuantityMax); err != nil {
		return err
	}
	if len(value)*8 < int(quantity) {
		return fmt.Errorf("modbus: value bits size '%v' does not greater or equal to quantity '%v'", len(value)*8, quantity)
	}
	_, err := sf.Send(ctx, NewWriteMultipleCoilsRequest(slaveID, address, quantity, value))
	return err
}

/*********************************16-bits**************************************/

func (sf *client) readRegisters(ctx context.Context, req ReadRegistersRequest) ([]byte, error) {
	if err := sf.checkUnicast(req.SlaveAddress()); err != nil {
		return nil, err
	}
	if err := checkQuantity("quantity", req.NumberOfPoints(), ReadRegQuantityMin, ReadRegQuantityMax); err != nil {
		return nil, err
	}
	response, err := sf.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return response.(ReadRegistersResponse).Data(), nil
}

// ReadInputRegistersBytes
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x04)
//  Starting address      : 2 bytes
//  Quantity of registers : 2 bytes
// Response:
//  Function code         : 1 byte (0x04)
//  Byte count            : 1 byte
//  Input registers       : Nx2 bytes
func (sf *client) ReadInputRegistersBytes(ctx context.Context, slaveID byte, address, quantity uint16) ([]byte, error) {
	return sf.readRegisters(ctx, NewReadInputRegistersRequest(slaveID, address, quantity))
}

// ReadInputRegisters same as ReadInputRegistersBytes, decoded as registers.
func (sf *client) ReadInputRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	b, err := sf.ReadInputRegistersBytes(ctx, slaveID, address, quantity)
	if err != nil {
		return nil, err
	}
	return bytes2Uint16(b), nil
}

// ReadHoldingRegistersBytes
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x03)
//  Starting address      : 2 bytes
//  Quantity of registers : 2 bytes
// Response:
//  Function code         : 1 byte (0x03)
//  Byte count            : 1 byte
//  Register value        : Nx2 bytes
func (sf *client) ReadHoldingRegistersBytes(ctx context.Context, slaveID byte, address, quantity uint16) ([]byte, error) {
	return sf.readRegisters(ctx, NewReadHoldingRegistersRequest(slaveID, address, quantity))
}

// ReadHoldingRegisters same as ReadHoldingRegistersBytes, decoded as registers.
func (sf *client) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, quantity uint16) ([]uint16, error) {
	b, err := sf.ReadHoldingRegistersBytes(ctx, slaveID, address, quantity)
	if err != nil {
		return nil, err
	}
	return bytes2Uint16(b), nil
}

// WriteSingleRegister
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x06)
//  Register address      : 2 bytes
//  Register value        : 2 bytes
// Response:
//  Function code         : 1 byte (0x06)
//  Register address      : 2 bytes
//  Register value        : 2 bytes
func (sf *client) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	if err := sf.checkWrite(slaveID); err != nil {
		return err
	}
	_, err := sf.Send(ctx, NewWriteSingleRegisterRequest(slaveID, address, value))
	return err
}

// WriteMultipleRegistersBytes
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x10)
//  Starting address      : 2 bytes
//  Quantity of outputs   : 2 bytes
//  Byte count            : 1 byte
//  Registers value       : N* bytes
// Response:
//  Function code         : 1 byte (0x10)
//  Starting address      : 2 bytes
//  Quantity of registers : 2 bytes
func (sf *client) WriteMultipleRegistersBytes(ctx context.Context, slaveID byte, address, quantity uint16, value []byte) error {
	if err := sf.checkWrite(slaveID); err != nil {
		return err
	}
	if err := checkQuantity("quantity", quantity, WriteRegQuantityMin, WriteRegQuantityMax); err != nil {
		return err
	}
	if len(value) != int(quantity)*2 {
		return fmt.Errorf("modbus: value length '%v' does not twice as quantity '%v'", len(value), quantity)
	}
	_, err := sf.Send(ctx, NewWriteMultipleRegistersBytesRequest(slaveID, address, quantity, value))
	return err
}

// WriteMultipleRegisters same as WriteMultipleRegistersBytes with register values.
func (sf *client) WriteMultipleRegisters(ctx context.Context, slaveID byte, address, quantity uint16, value []uint16) error {
	return sf.WriteMultipleRegistersBytes(ctx, slaveID, address, quantity, uint162Bytes(value...))
}

// MaskWriteRegister
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x16)
//  Reference address     : 2 bytes
//  AND-mask              : 2 bytes
//  OR-mask               : 2 bytes
// Response:
//  Function code         : 1 byte (0x16)
//  Reference address     : 2 bytes
//  AND-mask              : 2 bytes
//  OR-mask               : 2 bytes
func (sf *client) MaskWriteRegister(ctx context.Context, slaveID byte, address, andMask, orMask uint16) error {
	if err := sf.checkWrite(slaveID); err != nil {
		return err
	}
	_, err := sf.Send(ctx, NewMaskWriteRegisterRequest(slaveID, address, andMask, orMask))
	return err
}

// ReadWriteMultipleRegistersBytes
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x17)
//  Read starting address : 2 bytes
//  Quantity to read      : 2 bytes
//  Write starting address: 2 bytes
//  Quantity to write     : 2 bytes
//  Write byte count      : 1 byte
//  Write registers value : N* bytes
// Response:
//  Function code         : 1 byte (0x17)
//  Byte count            : 1 byte
//  Read registers value  : Nx2 bytes
func (sf *client) ReadWriteMultipleRegistersBytes(ctx context.Context, slaveID byte, readAddress, readQuantity,
	writeAddress, writeQuantity uint16, value []byte) ([]byte, error) {
	if err := sf.checkUnicast(slaveID); err != nil {
		return nil, err
	}
	if err := checkQuantity("quantity to read", readQuantity,
		ReadWriteOnReadRegQuantityMin, ReadWriteOnReadRegQuantityMax); err != nil {
		return nil, err
	}
	if err := checkQuantity("quantity to write", writeQuantity,
		ReadWriteOnWriteRegQuantityMin, ReadWriteOnWriteRegQuantityMax); err != nil {
		return nil, err
	}
	if len(value) != int(writeQuantity)*2 {
		return nil, fmt.Errorf("modbus: value length '%v' does not twice as write quantity '%v'",
			len(value), writeQuantity)
	}
	response, err := sf.Send(ctx, NewReadWriteMultipleRegistersRequest(slaveID,
		readAddress, readQuantity, writeAddress, bytes2Uint16(value)))
	if err != nil {
		return nil, err
	}
	return response.(ReadRegistersResponse).Data(), nil
}

// ReadWriteMultipleRegisters same as ReadWriteMultipleRegistersBytes, decoded as registers.
func (sf *client) ReadWriteMultipleRegisters(ctx context.Context, slaveID byte, readAddress, readQuantity,
	writeAddress, writeQuantity uint16, value []byte) ([]uint16, error) {
	b, err := sf.ReadWriteMultipleRegistersBytes(ctx, slaveID, readAddress, readQuantity,
		writeAddress, writeQuantity, value)
	if err != nil {
		return nil, err
	}
	return bytes2Uint16(b), nil
}

// ReturnQueryData
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x08)
//  Sub-function          : 2 bytes (0x0000)
//  Data                  : 2 bytes
// Response: echo of the request
func (sf *client) ReturnQueryData(ctx context.Context, slaveID byte, data uint16) error {
	if err := sf.checkUnicast(slaveID); err != nil {
		return err
	}
	_, err := sf.Send(ctx, NewReturnQueryDataRequest(slaveID, data))
	return err
}

// ReadFileRecord
// Request:
//  Slave Id              : 1 byte
//  Function code         : 1 byte (0x14)
//  Byte count            : 1 byte
//  Sub-requests          : 7 bytes each
// Response:
//  Function code         : 1 byte (0x14)
//  Response data length  : 1 byte
//  Sub-responses         : N bytes
func (sf *client) ReadFileRecord(ctx context.Context, slaveID byte, refs ...FileRecordReference) ([]byte, error) {
	if err := sf.checkUnicast(slaveID); err != nil {
		return nil, err
	}
	if len(refs) == 0 || len(refs)*7 > 0xF5 {
		return nil, fmt.Errorf("modbus: file record sub-requests '%v' must be between '%v' and '%v'",
			len(refs), 1, 0xF5/7)
	}
	response, err := sf.Send(ctx, NewReadFileRecordRequest(slaveID, refs...))
	if err != nil {
		return nil, err
	}
	return response.(ReadFileRecordResponse).Data(), nil
}
