package modbus

import (
	"errors"
	"sync"
)

// Slave answers decoded requests from a DataStore. It is shared by the
// serial and TCP service loops.
type Slave struct {
	unitID   byte
	store    DataStore
	mu       sync.RWMutex
	handlers map[byte]FunctionHandler
}

// NewSlave a slave with unit id unitID serving store, with handlers for
// the function codes 1, 2, 3, 4, 5, 6, 8, 15, 16, 22 and 23.
func NewSlave(unitID byte, store DataStore) *Slave {
	return &Slave{
		unitID:   unitID,
		store:    store,
		handlers: defaultFunctionHandlers(),
	}
}

// UnitID the address the slave answers to on a serial line.
func (sf *Slave) UnitID() byte { return sf.unitID }

// DataStore the tables the slave serves.
func (sf *Slave) DataStore() DataStore { return sf.store }

// RegisterFunctionHandler 注册回调函数, a nil handler removes funcCode.
// A custom function code on RTU also needs framing rules, see WithFunctionRegistry.
func (sf *Slave) RegisterFunctionHandler(funcCode byte, handler FunctionHandler) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if handler == nil {
		delete(sf.handlers, funcCode)
		return
	}
	sf.handlers[funcCode] = handler
}

// ApplyRequest runs the handler of req and returns the response. Handler
// failures become exception responses: an *ExceptionError keeps its code,
// any other error is a server device failure, a function without handler
// is an illegal function.
func (sf *Slave) ApplyRequest(req Message) Message {
	sf.mu.RLock()
	handler, ok := sf.handlers[req.FunctionCode()]
	sf.mu.RUnlock()
	if !ok {
		return NewExceptionResponse(req.SlaveAddress(), req.FunctionCode(), ExceptionCodeIllegalFunction)
	}

	rsp, err := handler(sf.store, req)
	if err != nil {
		var exception *ExceptionError
		if errors.As(err, &exception) {
			return NewExceptionResponse(req.SlaveAddress(), req.FunctionCode(), exception.ExceptionCode)
		}
		return NewExceptionResponse(req.SlaveAddress(), req.FunctionCode(), ExceptionCodeServerDeviceFailure)
	}
	return rsp
}
