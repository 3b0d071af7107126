package modbus

// FunctionHandler 功能码对应的函数回调, req is the decoded request.
// An *ExceptionError result is answered with an exception response.
type FunctionHandler func(store DataStore, req Message) (Message, error)

func defaultFunctionHandlers() map[byte]FunctionHandler {
	return map[byte]FunctionHandler{
		FuncCodeReadDiscreteInputs:         funcReadDiscreteInputs,
		FuncCodeReadCoils:                  funcReadCoils,
		FuncCodeWriteSingleCoil:            funcWriteSingleCoil,
		FuncCodeWriteMultipleCoils:         funcWriteMultiCoils,
		FuncCodeReadInputRegisters:         funcReadInputRegisters,
		FuncCodeReadHoldingRegisters:       funcReadHoldingRegisters,
		FuncCodeWriteSingleRegister:        funcWriteSingleRegister,
		FuncCodeWriteMultipleRegisters:     funcWriteMultiHoldingRegisters,
		FuncCodeReadWriteMultipleRegisters: funcReadWriteMultiHoldingRegisters,
		FuncCodeMaskWriteRegister:          funcMaskWriteRegisters,
		FuncCodeDiagnostics:                funcDiagnostics,
	}
}

func illegalDataValue() error {
	return &ExceptionError{ExceptionCode: ExceptionCodeIllegalDataValue}
}

// readBits 读位寄存器
func readBits(store DataStore, req Message, isCoil bool) (Message, error) {
	r, ok := req.(ReadBitsRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	quality := r.NumberOfPoints()
	if quality < ReadBitsQuantityMin || quality > ReadBitsQuantityMax {
		return nil, illegalDataValue()
	}

	var value []byte
	var err error
	if isCoil {
		value, err = store.ReadCoils(r.StartAddress(), quality)
	} else {
		value, err = store.ReadDiscretes(r.StartAddress(), quality)
	}
	if err != nil {
		return nil, err
	}
	return NewReadBitsResponse(r.SlaveAddress(), r.FunctionCode(), value), nil
}

// funcReadDiscreteInputs 读离散量输入
func funcReadDiscreteInputs(store DataStore, req Message) (Message, error) {
	return readBits(store, req, false)
}

// funcReadCoils 读线圈
func funcReadCoils(store DataStore, req Message) (Message, error) {
	return readBits(store, req, true)
}

// funcWriteSingleCoil 写单个线圈, the response echoes the request
func funcWriteSingleCoil(store DataStore, req Message) (Message, error) {
	r, ok := req.(WriteSingleRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	if !(r.Value() == 0xFF00 || r.Value() == 0x0000) {
		return nil, illegalDataValue()
	}
	b := byte(0)
	if r.Value() == 0xFF00 {
		b = 1
	}
	if err := store.WriteCoils(r.StartAddress(), 1, []byte{b}); err != nil {
		return nil, err
	}
	return r, nil
}

// funcWriteMultiCoils 写多个线圈
func funcWriteMultiCoils(store DataStore, req Message) (Message, error) {
	r, ok := req.(WriteMultipleRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	quality := r.NumberOfPoints()
	if quality < WriteBitsQuantityMin || quality > WriteBitsQuantityMax ||
		r.ByteCount() != (int(quality)+7)/8 {
		return nil, illegalDataValue()
	}
	if err := store.WriteCoils(r.StartAddress(), quality, r.Data()); err != nil {
		return nil, err
	}
	return NewWriteMultipleResponse(r.SlaveAddress(), r.FunctionCode(), r.StartAddress(), quality), nil
}

// readRegisters 读继寄器
func readRegisters(store DataStore, req Message, isHolding bool) (Message, error) {
	r, ok := req.(ReadRegistersRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	quality := r.NumberOfPoints()
	if quality > ReadRegQuantityMax || quality < ReadRegQuantityMin {
		return nil, illegalDataValue()
	}

	var value []byte
	var err error
	if isHolding {
		value, err = store.ReadHoldingsBytes(r.StartAddress(), quality)
	} else {
		value, err = store.ReadInputsBytes(r.StartAddress(), quality)
	}
	if err != nil {
		return nil, err
	}
	return NewReadRegistersResponse(r.SlaveAddress(), r.FunctionCode(), value), nil
}

// funcReadInputRegisters 读输入寄存器
func funcReadInputRegisters(store DataStore, req Message) (Message, error) {
	return readRegisters(store, req, false)
}

// funcReadHoldingRegisters 读保持寄存器
func funcReadHoldingRegisters(store DataStore, req Message) (Message, error) {
	return readRegisters(store, req, true)
}

// funcWriteSingleRegister 写单个保持寄存器, the response echoes the request
func funcWriteSingleRegister(store DataStore, req Message) (Message, error) {
	r, ok := req.(WriteSingleRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	if err := store.WriteHoldingsBytes(r.StartAddress(), 1, uint162Bytes(r.Value())); err != nil {
		return nil, err
	}
	return r, nil
}

// funcWriteMultiHoldingRegisters 写多个保持寄存器
func funcWriteMultiHoldingRegisters(store DataStore, req Message) (Message, error) {
	r, ok := req.(WriteMultipleRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	count := r.NumberOfPoints()
	if count < WriteRegQuantityMin || count > WriteRegQuantityMax ||
		r.ByteCount() != int(count)*2 {
		return nil, illegalDataValue()
	}
	if err := store.WriteHoldingsBytes(r.StartAddress(), count, r.Data()); err != nil {
		return nil, err
	}
	return NewWriteMultipleResponse(r.SlaveAddress(), r.FunctionCode(), r.StartAddress(), count), nil
}

// funcReadWriteMultiHoldingRegisters 读写多个保持寄存器, write first then read
func funcReadWriteMultiHoldingRegisters(store DataStore, req Message) (Message, error) {
	r, ok := req.(ReadWriteMultipleRegistersRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	read, write := r.ReadRequest(), r.WriteRequest()
	readCount, writeCount := read.NumberOfPoints(), write.NumberOfPoints()
	if readCount < ReadWriteOnReadRegQuantityMin || readCount > ReadWriteOnReadRegQuantityMax ||
		writeCount < ReadWriteOnWriteRegQuantityMin || writeCount > ReadWriteOnWriteRegQuantityMax ||
		write.ByteCount() != int(writeCount)*2 {
		return nil, illegalDataValue()
	}

	if err := store.WriteHoldingsBytes(write.StartAddress(), writeCount, write.Data()); err != nil {
		return nil, err
	}
	value, err := store.ReadHoldingsBytes(read.StartAddress(), readCount)
	if err != nil {
		return nil, err
	}
	return NewReadRegistersResponse(r.SlaveAddress(), r.FunctionCode(), value), nil
}

// funcMaskWriteRegisters 屏蔽写寄存器, the response echoes the request
func funcMaskWriteRegisters(store DataStore, req Message) (Message, error) {
	r, ok := req.(MaskWriteRegisterRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	if err := store.MaskWriteHolding(r.StartAddress(), r.AndMask(), r.OrMask()); err != nil {
		return nil, err
	}
	return r, nil
}

// funcDiagnostics only return query data is served, it echoes the request
func funcDiagnostics(_ DataStore, req Message) (Message, error) {
	r, ok := req.(DiagnosticsRequest)
	if !ok {
		return nil, illegalDataValue()
	}
	if r.SubFunctionCode() != DiagSubFuncReturnQueryData {
		return nil, &ExceptionError{ExceptionCode: ExceptionCodeIllegalFunction}
	}
	return r, nil
}
