package modbus

import (
	"bytes"
	"encoding/binary"
)

// Request:
//  Function code         : 1 byte (0x01 or 0x02)
//  Starting address      : 2 bytes
//  Quantity of bits      : 2 bytes

// ReadBitsRequest reads coils or discrete inputs.
type ReadBitsRequest struct {
	header
	startAddress   uint16
	numberOfPoints uint16
}

// NewReadCoilsRequest FC 0x01.
func NewReadCoilsRequest(slaveAddress byte, startAddress, numberOfPoints uint16) ReadBitsRequest {
	return ReadBitsRequest{header{slaveAddress, FuncCodeReadCoils}, startAddress, numberOfPoints}
}

// NewReadDiscreteInputsRequest FC 0x02.
func NewReadDiscreteInputsRequest(slaveAddress byte, startAddress, numberOfPoints uint16) ReadBitsRequest {
	return ReadBitsRequest{header{slaveAddress, FuncCodeReadDiscreteInputs}, startAddress, numberOfPoints}
}

func decodeReadBitsRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 6); err != nil {
		return nil, err
	}
	return ReadBitsRequest{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		binary.BigEndian.Uint16(frame[4:]),
	}, nil
}

// StartAddress first bit.
func (sf ReadBitsRequest) StartAddress() uint16 { return sf.startAddress }

// NumberOfPoints number of bits.
func (sf ReadBitsRequest) NumberOfPoints() uint16 { return sf.numberOfPoints }

// MinimumFrameSize implements Message.
func (sf ReadBitsRequest) MinimumFrameSize() int { return 6 }

// ProtocolDataUnit implements Message.
func (sf ReadBitsRequest) ProtocolDataUnit() []byte {
	return append([]byte{sf.functionCode}, uint162Bytes(sf.startAddress, sf.numberOfPoints)...)
}

// ValidateResponse implements Request.
func (sf ReadBitsRequest) ValidateResponse(response Message) error {
	rsp, ok := response.(ReadBitsResponse)
	if !ok {
		return mismatch("unexpected response %T", response)
	}
	if want := (int(sf.numberOfPoints) + 7) / 8; rsp.ByteCount() != want {
		return mismatch("response byte size '%v' does not match quantity to bytes '%v'", rsp.ByteCount(), want)
	}
	return nil
}

// Response:
//  Function code         : 1 byte (0x01 or 0x02)
//  Byte count            : 1 byte
//  Bit status            : N* bytes (=N or N+1)

// ReadBitsResponse coil or discrete input status, packed lsb first.
type ReadBitsResponse struct {
	header
	data []byte
}

// NewReadBitsResponse answers a ReadBitsRequest with packed bit status.
func NewReadBitsResponse(slaveAddress, functionCode byte, data []byte) ReadBitsResponse {
	return ReadBitsResponse{header{slaveAddress, functionCode}, append([]byte(nil), data...)}
}

func decodeReadBitsResponse(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 3); err != nil {
		return nil, err
	}
	data, err := byteCountData(frame, 2)
	if err != nil {
		return nil, err
	}
	return ReadBitsResponse{header{frame[0], frame[1]}, data}, nil
}

// ByteCount number of data bytes.
func (sf ReadBitsResponse) ByteCount() int { return len(sf.data) }

// Data packed bit status.
func (sf ReadBitsResponse) Data() []byte { return sf.data }

// Bits unpacks every byte of Data, eight bits per byte, lsb first.
func (sf ReadBitsResponse) Bits() []bool {
	bits := make([]bool, 0, len(sf.data)*8)
	for _, b := range sf.data {
		for i := uint(0); i < 8; i++ {
			bits = append(bits, b&(1<<i) != 0)
		}
	}
	return bits
}

// MinimumFrameSize implements Message.
func (sf ReadBitsResponse) MinimumFrameSize() int { return 3 }

// ProtocolDataUnit implements Message.
func (sf ReadBitsResponse) ProtocolDataUnit() []byte {
	pdu := make([]byte, 0, len(sf.data)+2)
	pdu = append(pdu, sf.functionCode, byte(len(sf.data)))
	return append(pdu, sf.data...)
}

// Request:
//  Function code         : 1 byte (0x03 or 0x04)
//  Starting address      : 2 bytes
//  Quantity of registers : 2 bytes

// ReadRegistersRequest reads holding or input registers.
type ReadRegistersRequest struct {
	header
	startAddress   uint16
	numberOfPoints uint16
}

// NewReadHoldingRegistersRequest FC 0x03.
func NewReadHoldingRegistersRequest(slaveAddress byte, startAddress, numberOfPoints uint16) ReadRegistersRequest {
	return ReadRegistersRequest{header{slaveAddress, FuncCodeReadHoldingRegisters}, startAddress, numberOfPoints}
}

// NewReadInputRegistersRequest FC 0x04.
func NewReadInputRegistersRequest(slaveAddress byte, startAddress, numberOfPoints uint16) ReadRegistersRequest {
	return ReadRegistersRequest{header{slaveAddress, FuncCodeReadInputRegisters}, startAddress, numberOfPoints}
}

func decodeReadRegistersRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 6); err != nil {
		return nil, err
	}
	return ReadRegistersRequest{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		binary.BigEndian.Uint16(frame[4:]),
	}, nil
}

// StartAddress first register.
func (sf ReadRegistersRequest) StartAddress() uint16 { return sf.startAddress }

// NumberOfPoints number of registers.
func (sf ReadRegistersRequest) NumberOfPoints() uint16 { return sf.numberOfPoints }

// MinimumFrameSize implements Message.
func (sf ReadRegistersRequest) MinimumFrameSize() int { return 6 }

// ProtocolDataUnit implements Message.
func (sf ReadRegistersRequest) ProtocolDataUnit() []byte {
	return append([]byte{sf.functionCode}, uint162Bytes(sf.startAddress, sf.numberOfPoints)...)
}

// ValidateResponse implements Request.
func (sf ReadRegistersRequest) ValidateResponse(response Message) error {
	rsp, ok := response.(ReadRegistersResponse)
	if !ok {
		return mismatch("unexpected response %T", response)
	}
	if want := int(sf.numberOfPoints) * 2; rsp.ByteCount() != want {
		return mismatch("response byte size '%v' does not match quantity to bytes '%v'", rsp.ByteCount(), want)
	}
	return nil
}

// Response:
//  Function code         : 1 byte (0x03, 0x04 or 0x17)
//  Byte count            : 1 byte
//  Register value        : Nx2 bytes

// ReadRegistersResponse register values, big endian.
type ReadRegistersResponse struct {
	header
	data []byte
}

// NewReadRegistersResponse answers a register read with raw big endian bytes.
func NewReadRegistersResponse(slaveAddress, functionCode byte, data []byte) ReadRegistersResponse {
	return ReadRegistersResponse{header{slaveAddress, functionCode}, append([]byte(nil), data...)}
}

func decodeReadRegistersResponse(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 3); err != nil {
		return nil, err
	}
	data, err := byteCountData(frame, 2)
	if err != nil {
		return nil, err
	}
	return ReadRegistersResponse{header{frame[0], frame[1]}, data}, nil
}

// ByteCount number of data bytes.
func (sf ReadRegistersResponse) ByteCount() int { return len(sf.data) }

// Data raw register bytes.
func (sf ReadRegistersResponse) Data() []byte { return sf.data }

// Registers decodes Data as big endian 16-bit registers.
func (sf ReadRegistersResponse) Registers() []uint16 { return bytes2Uint16(sf.data) }

// MinimumFrameSize implements Message.
func (sf ReadRegistersResponse) MinimumFrameSize() int { return 3 }

// ProtocolDataUnit implements Message.
func (sf ReadRegistersResponse) ProtocolDataUnit() []byte {
	pdu := make([]byte, 0, len(sf.data)+2)
	pdu = append(pdu, sf.functionCode, byte(len(sf.data)))
	return append(pdu, sf.data...)
}

// Request and echoed response:
//  Function code         : 1 byte (0x05 or 0x06)
//  Output address        : 2 bytes
//  Output value          : 2 bytes

// WriteSingleRequest writes one coil or one holding register.
type WriteSingleRequest struct {
	header
	startAddress uint16
	value        uint16
}

// NewWriteSingleCoilRequest FC 0x05, ON is 0xFF00.
func NewWriteSingleCoilRequest(slaveAddress byte, address uint16, isOn bool) WriteSingleRequest {
	var value uint16
	if isOn { // The requested ON/OFF state can only be 0xFF00 and 0x0000
		value = 0xFF00
	}
	return WriteSingleRequest{header{slaveAddress, FuncCodeWriteSingleCoil}, address, value}
}

// NewWriteSingleRegisterRequest FC 0x06.
func NewWriteSingleRegisterRequest(slaveAddress byte, address, value uint16) WriteSingleRequest {
	return WriteSingleRequest{header{slaveAddress, FuncCodeWriteSingleRegister}, address, value}
}

func decodeWriteSingleRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 6); err != nil {
		return nil, err
	}
	return WriteSingleRequest{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		binary.BigEndian.Uint16(frame[4:]),
	}, nil
}

// StartAddress output address.
func (sf WriteSingleRequest) StartAddress() uint16 { return sf.startAddress }

// Value output value.
func (sf WriteSingleRequest) Value() uint16 { return sf.value }

// MinimumFrameSize implements Message.
func (sf WriteSingleRequest) MinimumFrameSize() int { return 6 }

// ProtocolDataUnit implements Message.
func (sf WriteSingleRequest) ProtocolDataUnit() []byte {
	return append([]byte{sf.functionCode}, uint162Bytes(sf.startAddress, sf.value)...)
}

// ValidateResponse implements Request, the response must echo the request.
func (sf WriteSingleRequest) ValidateResponse(response Message) error {
	rsp, ok := response.(WriteSingleRequest)
	if !ok {
		return mismatch("unexpected response %T", response)
	}
	if rsp.startAddress != sf.startAddress {
		return mismatch("response address '%v' does not match request '%v'", rsp.startAddress, sf.startAddress)
	}
	if rsp.value != sf.value {
		return mismatch("response value '%v' does not match request '%v'", rsp.value, sf.value)
	}
	return nil
}

// Request:
//  Function code         : 1 byte (0x0F or 0x10)
//  Starting address      : 2 bytes
//  Quantity of outputs   : 2 bytes
//  Byte count            : 1 byte
//  Outputs value         : N* bytes

// WriteMultipleRequest writes a block of coils or holding registers.
type WriteMultipleRequest struct {
	header
	startAddress   uint16
	numberOfPoints uint16
	data           []byte
}

// NewWriteMultipleCoilsRequest FC 0x0F with packed coil values.
func NewWriteMultipleCoilsRequest(slaveAddress byte, startAddress, numberOfPoints uint16, value []byte) WriteMultipleRequest {
	return WriteMultipleRequest{
		header{slaveAddress, FuncCodeWriteMultipleCoils},
		startAddress,
		numberOfPoints,
		append([]byte(nil), value[:(int(numberOfPoints)+7)/8]...),
	}
}

// NewWriteMultipleRegistersRequest FC 0x10.
func NewWriteMultipleRegistersRequest(slaveAddress byte, startAddress uint16, value []uint16) WriteMultipleRequest {
	return WriteMultipleRequest{
		header{slaveAddress, FuncCodeWriteMultipleRegisters},
		startAddress,
		uint16(len(value)),
		uint162Bytes(value...),
	}
}

// NewWriteMultipleRegistersBytesRequest FC 0x10 with raw big endian bytes.
func NewWriteMultipleRegistersBytesRequest(slaveAddress byte, startAddress, numberOfPoints uint16, value []byte) WriteMultipleRequest {
	return WriteMultipleRequest{
		header{slaveAddress, FuncCodeWriteMultipleRegisters},
		startAddress,
		numberOfPoints,
		append([]byte(nil), value[:int(numberOfPoints)*2]...),
	}
}

func decodeWriteMultipleRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 7); err != nil {
		return nil, err
	}
	data, err := byteCountData(frame, 6)
	if err != nil {
		return nil, err
	}
	return WriteMultipleRequest{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		binary.BigEndian.Uint16(frame[4:]),
		data,
	}, nil
}

// StartAddress first output.
func (sf WriteMultipleRequest) StartAddress() uint16 { return sf.startAddress }

// NumberOfPoints number of outputs.
func (sf WriteMultipleRequest) NumberOfPoints() uint16 { return sf.numberOfPoints }

// ByteCount number of data bytes.
func (sf WriteMultipleRequest) ByteCount() int { return len(sf.data) }

// Data outputs value.
func (sf WriteMultipleRequest) Data() []byte { return sf.data }

// MinimumFrameSize implements Message.
func (sf WriteMultipleRequest) MinimumFrameSize() int { return 7 }

// ProtocolDataUnit implements Message.
func (sf WriteMultipleRequest) ProtocolDataUnit() []byte {
	pdu := make([]byte, 0, 6+len(sf.data))
	pdu = append(pdu, sf.functionCode)
	pdu = append(pdu, uint162Bytes(sf.startAddress, sf.numberOfPoints)...)
	pdu = append(pdu, byte(len(sf.data)))
	return append(pdu, sf.data...)
}

// ValidateResponse implements Request.
func (sf WriteMultipleRequest) ValidateResponse(response Message) error {
	rsp, ok := response.(WriteMultipleResponse)
	if !ok {
		return mismatch("unexpected response %T", response)
	}
	if rsp.startAddress != sf.startAddress {
		return mismatch("response address '%v' does not match request '%v'", rsp.startAddress, sf.startAddress)
	}
	if rsp.numberOfPoints != sf.numberOfPoints {
		return mismatch("response quantity '%v' does not match request '%v'", rsp.numberOfPoints, sf.numberOfPoints)
	}
	return nil
}

// Response:
//  Function code         : 1 byte (0x0F or 0x10)
//  Starting address      : 2 bytes
//  Quantity of outputs   : 2 bytes

// WriteMultipleResponse acknowledges a WriteMultipleRequest.
type WriteMultipleResponse struct {
	header
	startAddress   uint16
	numberOfPoints uint16
}

// NewWriteMultipleResponse answers a WriteMultipleRequest.
func NewWriteMultipleResponse(slaveAddress, functionCode byte, startAddress, numberOfPoints uint16) WriteMultipleResponse {
	return WriteMultipleResponse{header{slaveAddress, functionCode}, startAddress, numberOfPoints}
}

func decodeWriteMultipleResponse(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 6); err != nil {
		return nil, err
	}
	return WriteMultipleResponse{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		binary.BigEndian.Uint16(frame[4:]),
	}, nil
}

// StartAddress first output.
func (sf WriteMultipleResponse) StartAddress() uint16 { return sf.startAddress }

// NumberOfPoints number of outputs.
func (sf WriteMultipleResponse) NumberOfPoints() uint16 { return sf.numberOfPoints }

// MinimumFrameSize implements Message.
func (sf WriteMultipleResponse) MinimumFrameSize() int { return 6 }

// ProtocolDataUnit implements Message.
func (sf WriteMultipleResponse) ProtocolDataUnit() []byte {
	return append([]byte{sf.functionCode}, uint162Bytes(sf.startAddress, sf.numberOfPoints)...)
}

// Request:
//  Function code         : 1 byte (0x17)
//  Read starting address : 2 bytes
//  Quantity to read      : 2 bytes
//  Write starting address: 2 bytes
//  Quantity to write     : 2 bytes
//  Write byte count      : 1 byte
//  Write registers value : N* bytes

// ReadWriteMultipleRegistersRequest writes then reads holding registers in
// one transaction, made of a read part and a write part.
type ReadWriteMultipleRegistersRequest struct {
	header
	read  ReadRegistersRequest
	write WriteMultipleRequest
}

// NewReadWriteMultipleRegistersRequest FC 0x17.
func NewReadWriteMultipleRegistersRequest(slaveAddress byte, readAddress, readQuantity,
	writeAddress uint16, value []uint16) ReadWriteMultipleRegistersRequest {
	return ReadWriteMultipleRegistersRequest{
		header{slaveAddress, FuncCodeReadWriteMultipleRegisters},
		NewReadHoldingRegistersRequest(slaveAddress, readAddress, readQuantity),
		NewWriteMultipleRegistersRequest(slaveAddress, writeAddress, value),
	}
}

func decodeReadWriteMultipleRegistersRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 11); err != nil {
		return nil, err
	}
	read, err := decodeReadRegistersRequest([]byte{frame[0], FuncCodeReadHoldingRegisters,
		frame[2], frame[3], frame[4], frame[5]})
	if err != nil {
		return nil, err
	}
	write, err := decodeWriteMultipleRequest(append([]byte{frame[0], FuncCodeWriteMultipleRegisters}, frame[6:]...))
	if err != nil {
		return nil, err
	}
	return ReadWriteMultipleRegistersRequest{
		header{frame[0], frame[1]},
		read.(ReadRegistersRequest),
		write.(WriteMultipleRequest),
	}, nil
}

// ReadRequest the read part.
func (sf ReadWriteMultipleRegistersRequest) ReadRequest() ReadRegistersRequest { return sf.read }

// WriteRequest the write part.
func (sf ReadWriteMultipleRegistersRequest) WriteRequest() WriteMultipleRequest { return sf.write }

// MinimumFrameSize implements Message.
func (sf ReadWriteMultipleRegistersRequest) MinimumFrameSize() int { return 11 }

// ProtocolDataUnit implements Message, the PDUs of both parts without
// their function codes.
func (sf ReadWriteMultipleRegistersRequest) ProtocolDataUnit() []byte {
	read := sf.read.ProtocolDataUnit()
	write := sf.write.ProtocolDataUnit()
	pdu := make([]byte, 0, len(read)+len(write)-1)
	pdu = append(pdu, sf.functionCode)
	pdu = append(pdu, read[1:]...)
	return append(pdu, write[1:]...)
}

// ValidateResponse implements Request.
func (sf ReadWriteMultipleRegistersRequest) ValidateResponse(response Message) error {
	return sf.read.ValidateResponse(response)
}

// Request and echoed response:
//  Function code         : 1 byte (0x08)
//  Sub-function          : 2 bytes
//  Data                  : N x 2 bytes

// DiagnosticsRequest serial line diagnostics.
type DiagnosticsRequest struct {
	header
	subFunctionCode uint16
	data            []byte
}

// NewReturnQueryDataRequest FC 0x08 sub-function 0x0000, data is echoed back.
func NewReturnQueryDataRequest(slaveAddress byte, data uint16) DiagnosticsRequest {
	return DiagnosticsRequest{header{slaveAddress, FuncCodeDiagnostics}, DiagSubFuncReturnQueryData, uint162Bytes(data)}
}

func decodeDiagnosticsRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 6); err != nil {
		return nil, err
	}
	return DiagnosticsRequest{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		append([]byte(nil), frame[4:]...),
	}, nil
}

// SubFunctionCode diagnostics sub-function.
func (sf DiagnosticsRequest) SubFunctionCode() uint16 { return sf.subFunctionCode }

// Data diagnostics data.
func (sf DiagnosticsRequest) Data() []byte { return sf.data }

// MinimumFrameSize implements Message.
func (sf DiagnosticsRequest) MinimumFrameSize() int { return 6 }

// ProtocolDataUnit implements Message.
func (sf DiagnosticsRequest) ProtocolDataUnit() []byte {
	pdu := make([]byte, 0, 3+len(sf.data))
	pdu = append(pdu, sf.functionCode)
	pdu = append(pdu, uint162Bytes(sf.subFunctionCode)...)
	return append(pdu, sf.data...)
}

// ValidateResponse implements Request.
func (sf DiagnosticsRequest) ValidateResponse(response Message) error {
	rsp, ok := response.(DiagnosticsRequest)
	if !ok {
		return mismatch("unexpected response %T", response)
	}
	if rsp.subFunctionCode != sf.subFunctionCode {
		return mismatch("response sub-function '%v' does not match request '%v'", rsp.subFunctionCode, sf.subFunctionCode)
	}
	if sf.subFunctionCode == DiagSubFuncReturnQueryData && !bytes.Equal(rsp.data, sf.data) {
		return mismatch("response data '% x' does not match request '% x'", rsp.data, sf.data)
	}
	return nil
}

// Request and echoed response:
//  Function code         : 1 byte (0x16)
//  Reference address     : 2 bytes
//  AND-mask              : 2 bytes
//  OR-mask               : 2 bytes

// MaskWriteRegisterRequest modifies a holding register with AND and OR masks.
type MaskWriteRegisterRequest struct {
	header
	startAddress uint16
	andMask      uint16
	orMask       uint16
}

// NewMaskWriteRegisterRequest FC 0x16.
func NewMaskWriteRegisterRequest(slaveAddress byte, address, andMask, orMask uint16) MaskWriteRegisterRequest {
	return MaskWriteRegisterRequest{header{slaveAddress, FuncCodeMaskWriteRegister}, address, andMask, orMask}
}

func decodeMaskWriteRegisterRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 8); err != nil {
		return nil, err
	}
	return MaskWriteRegisterRequest{
		header{frame[0], frame[1]},
		binary.BigEndian.Uint16(frame[2:]),
		binary.BigEndian.Uint16(frame[4:]),
		binary.BigEndian.Uint16(frame[6:]),
	}, nil
}

// StartAddress reference address.
func (sf MaskWriteRegisterRequest) StartAddress() uint16 { return sf.startAddress }

// AndMask and mask.
func (sf MaskWriteRegisterRequest) AndMask() uint16 { return sf.andMask }

// OrMask or mask.
func (sf MaskWriteRegisterRequest) OrMask() uint16 { return sf.orMask }

// MinimumFrameSize implements Message.
func (sf MaskWriteRegisterRequest) MinimumFrameSize() int { return 8 }

// ProtocolDataUnit implements Message.
func (sf MaskWriteRegisterRequest) ProtocolDataUnit() []byte {
	return append([]byte{sf.functionCode}, uint162Bytes(sf.startAddress, sf.andMask, sf.orMask)...)
}

// ValidateResponse implements Request, the response must echo the request.
func (sf MaskWriteRegisterRequest) ValidateResponse(response Message) error {
	rsp, ok := response.(MaskWriteRegisterRequest)
	if !ok {
		return mismatch("unexpected response %T", response)
	}
	if rsp.startAddress != sf.startAddress || rsp.andMask != sf.andMask || rsp.orMask != sf.orMask {
		return mismatch("response '% x' does not echo request '% x'", rsp.ProtocolDataUnit(), sf.ProtocolDataUnit())
	}
	return nil
}

// FileRecordReference one sub-request of a read file record request.
type FileRecordReference struct {
	FileNumber   uint16
	RecordNumber uint16
	RecordLength uint16
}

const fileRecordReferenceType = 6

// Request:
//  Function code         : 1 byte (0x14)
//  Byte count            : 1 byte
//  Sub-requests          : 7 bytes each

// ReadFileRecordRequest reads groups of file records.
type ReadFileRecordRequest struct {
	header
	data []byte
}

// NewReadFileRecordRequest FC 0x14.
func NewReadFileRecordRequest(slaveAddress byte, refs ...FileRecordReference) ReadFileRecordRequest {
	var data []byte
	for _, ref := range refs {
		data = append(data, fileRecordReferenceType)
		data = append(data, uint162Bytes(ref.FileNumber, ref.RecordNumber, ref.RecordLength)...)
	}
	return ReadFileRecordRequest{header{slaveAddress, FuncCodeReadFileRecord}, data}
}

func decodeReadFileRecordRequest(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 3); err != nil {
		return nil, err
	}
	data, err := byteCountData(frame, 2)
	if err != nil {
		return nil, err
	}
	return ReadFileRecordRequest{header{frame[0], frame[1]}, data}, nil
}

// References decodes the sub-requests.
func (sf ReadFileRecordRequest) References() []FileRecordReference {
	var refs []FileRecordReference
	for i := 0; i+7 <= len(sf.data); i += 7 {
		refs = append(refs, FileRecordReference{
			binary.BigEndian.Uint16(sf.data[i+1:]),
			binary.BigEndian.Uint16(sf.data[i+3:]),
			binary.BigEndian.Uint16(sf.data[i+5:]),
		})
	}
	return refs
}

// MinimumFrameSize implements Message.
func (sf ReadFileRecordRequest) MinimumFrameSize() int { return 3 }

// ProtocolDataUnit implements Message.
func (sf ReadFileRecordRequest) ProtocolDataUnit() []byte {
	pdu := make([]byte, 0, len(sf.data)+2)
	pdu = append(pdu, sf.functionCode, byte(len(sf.data)))
	return append(pdu, sf.data...)
}

// ValidateResponse implements Request.
func (sf ReadFileRecordRequest) ValidateResponse(response Message) error {
	if _, ok := response.(ReadFileRecordResponse); !ok {
		return mismatch("unexpected response %T", response)
	}
	return nil
}

// Response:
//  Function code         : 1 byte (0x14)
//  Response data length  : 1 byte
//  Sub-responses         : N bytes

// ReadFileRecordResponse raw file record sub-responses.
type ReadFileRecordResponse struct {
	header
	data []byte
}

func decodeReadFileRecordResponse(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 3); err != nil {
		return nil, err
	}
	data, err := byteCountData(frame, 2)
	if err != nil {
		return nil, err
	}
	return ReadFileRecordResponse{header{frame[0], frame[1]}, data}, nil
}

// Data sub-responses as received.
func (sf ReadFileRecordResponse) Data() []byte { return sf.data }

// MinimumFrameSize implements Message.
func (sf ReadFileRecordResponse) MinimumFrameSize() int { return 3 }

// ProtocolDataUnit implements Message.
func (sf ReadFileRecordResponse) ProtocolDataUnit() []byte {
	pdu := make([]byte, 0, len(sf.data)+2)
	pdu = append(pdu, sf.functionCode, byte(len(sf.data)))
	return append(pdu, sf.data...)
}

// Response:
//  Function code         : 1 byte (request function code + 0x80)
//  Exception code        : 1 byte

// ExceptionResponse a slave rejected the request.
type ExceptionResponse struct {
	header
	exceptionCode byte
}

// NewExceptionResponse answers a request with function code fc.
func NewExceptionResponse(slaveAddress, fc, exceptionCode byte) ExceptionResponse {
	return ExceptionResponse{header{slaveAddress, fc | exceptionOffset}, exceptionCode}
}

func decodeExceptionResponse(frame []byte) (Message, error) {
	if err := checkMinimumSize(frame, 3); err != nil {
		return nil, err
	}
	return ExceptionResponse{header{frame[0], frame[1]}, frame[2]}, nil
}

// ExceptionCode exception code.
func (sf ExceptionResponse) ExceptionCode() byte { return sf.exceptionCode }

// Err the exception as *ExceptionError.
func (sf ExceptionResponse) Err() error {
	return &ExceptionError{sf.slaveAddress, sf.functionCode, sf.exceptionCode}
}

// MinimumFrameSize implements Message.
func (sf ExceptionResponse) MinimumFrameSize() int { return 3 }

// ProtocolDataUnit implements Message.
func (sf ExceptionResponse) ProtocolDataUnit() []byte {
	return []byte{sf.functionCode, sf.exceptionCode}
}

// RawMessage carries a function code the frame model has no layout for.
type RawMessage struct {
	header
	data []byte
}

// NewRawMessage a custom function code request or response.
func NewRawMessage(slaveAddress, functionCode byte, data []byte) RawMessage {
	return RawMessage{header{slaveAddress, functionCode}, append([]byte(nil), data...)}
}

func decodeRawMessage(frame []byte) (Message, error) {
	return RawMessage{header{frame[0], frame[1]}, append([]byte(nil), frame[2:]...)}, nil
}

// Data function data.
func (sf RawMessage) Data() []byte { return sf.data }

// MinimumFrameSize implements Message.
func (sf RawMessage) MinimumFrameSize() int { return 2 }

// ProtocolDataUnit implements Message.
func (sf RawMessage) ProtocolDataUnit() []byte {
	return append([]byte{sf.functionCode}, sf.data...)
}

// ValidateResponse implements Request, any non exception response is accepted.
func (sf RawMessage) ValidateResponse(Message) error { return nil }
