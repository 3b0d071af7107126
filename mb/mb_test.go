package mb

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	modbus "github.com/thinkgos/mbus"
)

// fakeClient answers reads with zero values, slave 9 fails.
type fakeClient struct {
	modbus.Client
	mu    sync.Mutex
	calls int
}

var errOffline = errors.New("offline")

func (sf *fakeClient) read(slaveID byte, n int) ([]byte, error) {
	sf.mu.Lock()
	sf.calls++
	sf.mu.Unlock()
	if slaveID == 9 {
		return nil, errOffline
	}
	return make([]byte, n), nil
}

func (sf *fakeClient) ReadCoils(_ context.Context, slaveID byte, _, quantity uint16) ([]byte, error) {
	return sf.read(slaveID, (int(quantity)+7)/8)
}

func (sf *fakeClient) ReadDiscreteInputs(_ context.Context, slaveID byte, _, quantity uint16) ([]byte, error) {
	return sf.read(slaveID, (int(quantity)+7)/8)
}

func (sf *fakeClient) ReadHoldingRegistersBytes(_ context.Context, slaveID byte, _, quantity uint16) ([]byte, error) {
	return sf.read(slaveID, int(quantity)*2)
}

func (sf *fakeClient) ReadInputRegistersBytes(_ context.Context, slaveID byte, _, quantity uint16) ([]byte, error) {
	return sf.read(slaveID, int(quantity)*2)
}

func (sf *fakeClient) Close() error { return nil }

func Test_splitRequest(t *testing.T) {
	tests := []struct {
		name    string
		r       Request
		want    [][2]uint16
		wantErr bool
	}{
		{"保持寄存器拆分", Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadHoldingRegisters, Address: 10, Quantity: 300},
			[][2]uint16{{10, 125}, {135, 125}, {260, 50}}, false},
		{"线圈拆分", Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadCoils, Address: 0, Quantity: 2001},
			[][2]uint16{{0, 2000}, {2000, 1}}, false},
		{"不拆分", Request{SlaveID: 247, FuncCode: modbus.FuncCodeReadInputRegisters, Address: 0, Quantity: 1},
			[][2]uint16{{0, 1}}, false},
		{"数量为0", Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadDiscreteInputs}, nil, false},
		{"slaveID为0", Request{SlaveID: 0, FuncCode: modbus.FuncCodeReadCoils, Quantity: 1}, nil, true},
		{"slaveID大于247", Request{SlaveID: 248, FuncCode: modbus.FuncCodeReadCoils, Quantity: 1}, nil, true},
		{"功能码不是读", Request{SlaveID: 1, FuncCode: modbus.FuncCodeWriteSingleCoil, Quantity: 1}, nil, true},
		{"超出地址空间", Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadCoils, Address: 0xffff, Quantity: 2}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := splitRequest(tt.r)
			if (err != nil) != tt.wantErr {
				t.Errorf("splitRequest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			var got [][2]uint16
			for _, req := range reqs {
				got = append(got, [2]uint16{req.Address, req.Quantity})
				if req.SlaveID != tt.r.SlaveID || req.FuncCode != tt.r.FuncCode {
					t.Errorf("splitRequest() = %+v, slave or function changed", req)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_procRequest(t *testing.T) {
	type value struct {
		slaveID, funcCode byte
		address, quality  uint16
		size              int
	}
	var values []value
	var results []Result
	var errs []error
	c := New(&fakeClient{}, WithHandler(FuncProc{
		Values: func(slaveID, funcCode byte, address, quality uint16, valBuf []byte) {
			values = append(values, value{slaveID, funcCode, address, quality, len(valBuf)})
		},
		Result: func(err error, result *Result) {
			errs = append(errs, err)
			results = append(results, *result)
		},
	}))
	defer c.Close()

	coils := &Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadCoils, Address: 3, Quantity: 10}
	c.procRequest(coils)
	c.procRequest(coils)
	c.procRequest(&Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadInputRegisters, Address: 0, Quantity: 2})
	offline := &Request{SlaveID: 9, FuncCode: modbus.FuncCodeReadHoldingRegisters, Address: 0, Quantity: 2}
	c.procRequest(offline)

	wantValues := []value{
		{1, modbus.FuncCodeReadCoils, 3, 10, 2},
		{1, modbus.FuncCodeReadCoils, 3, 10, 2},
		{1, modbus.FuncCodeReadInputRegisters, 0, 2, 4},
	}
	if !reflect.DeepEqual(values, wantValues) {
		t.Errorf("procRequest() values = %+v, want %+v", values, wantValues)
	}
	wantResults := []Result{
		{1, modbus.FuncCodeReadCoils, 3, 10, 0, 1, 0},
		{1, modbus.FuncCodeReadCoils, 3, 10, 0, 2, 0},
		{1, modbus.FuncCodeReadInputRegisters, 0, 2, 0, 1, 0},
		{9, modbus.FuncCodeReadHoldingRegisters, 0, 2, 0, 1, 1},
	}
	if !reflect.DeepEqual(results, wantResults) {
		t.Errorf("procRequest() results = %+v, want %+v", results, wantResults)
	}
	if !errors.Is(errs[3], errOffline) || errs[0] != nil {
		t.Errorf("procRequest() errors = %v", errs)
	}
}

func TestClient_procRequest_panic(t *testing.T) {
	var recovered interface{}
	c := New(&fakeClient{},
		WithPanicHandle(func(err interface{}) { recovered = err }),
		WithHandler(FuncProc{Values: func(byte, byte, uint16, uint16, []byte) { panic("boom") }}))
	defer c.Close()

	c.procRequest(&Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadCoils, Quantity: 1})
	if recovered != "boom" {
		t.Errorf("panic handle got %v, want %v", recovered, "boom")
	}
}

func TestClient_AddGatherJob(t *testing.T) {
	done := make(chan Result, 16)
	c := New(&fakeClient{}, WithHandler(FuncProc{
		Result: func(_ error, result *Result) {
			select {
			case done <- *result:
			default:
			}
		},
	}))
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	err := c.AddGatherJob(Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadHoldingRegisters, Quantity: 130, ScanRate: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("AddGatherJob() error = %v", err)
	}

	seen := map[uint16]bool{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case r := <-done:
			seen[r.Address] = true
		case <-timeout:
			t.Fatalf("gathered addresses %v, want 0 and 125", seen)
		}
	}
	if !seen[0] || !seen[125] {
		t.Errorf("gathered addresses %v, want 0 and 125", seen)
	}

	if err = c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err = c.AddGatherJob(Request{SlaveID: 1, FuncCode: modbus.FuncCodeReadCoils, Quantity: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("AddGatherJob() after Close error = %v, want %v", err, context.Canceled)
	}
}
