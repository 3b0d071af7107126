package modbus

import (
	"errors"
	"testing"
)

func TestFunctionRegistry_ResponseBytesToRead(t *testing.T) {
	custom := FunctionRegistry{}.Register(0x41, CustomFunction{
		ResponseBytesToRead: func(frameStart []byte) int { return int(frameStart[3]) + 2 },
	})
	tests := []struct {
		name       string
		registry   FunctionRegistry
		frameStart []byte
		want       int
		wantErr    error
	}{
		{"read coils", nil, []byte{1, 1, 2, 0x05}, 3, nil},
		{"read discrete inputs", nil, []byte{1, 2, 1, 0x05}, 2, nil},
		{"read holding registers", nil, []byte{1, 3, 4, 0}, 5, nil},
		{"read input registers", nil, []byte{1, 4, 2, 0}, 3, nil},
		{"read write multiple registers", nil, []byte{1, 0x17, 2, 0}, 3, nil},
		{"read file record", nil, []byte{1, 0x14, 6, 5}, 7, nil},
		{"write single coil", nil, []byte{1, 5, 0, 1}, 4, nil},
		{"write single register", nil, []byte{1, 6, 0, 1}, 4, nil},
		{"write multiple coils", nil, []byte{1, 0x0F, 0, 1}, 4, nil},
		{"write multiple registers", nil, []byte{1, 0x10, 0, 1}, 4, nil},
		{"diagnostics", nil, []byte{1, 8, 0, 0}, 4, nil},
		{"mask write register", nil, []byte{1, 0x16, 0, 4}, 6, nil},
		{"exception", nil, []byte{1, 0x83, 2, 0xC0}, 1, nil},
		{"exception wins over custom", custom, []byte{1, 0xC1, 2, 0xC0}, 1, nil},
		{"custom", custom, []byte{1, 0x41, 0, 3}, 5, nil},
		{"custom negative", FunctionRegistry{}.Register(0x41, CustomFunction{
			ResponseBytesToRead: func([]byte) int { return -1 },
		}), []byte{1, 0x41, 0, 3}, 0, ErrFormat},
		{"unknown", nil, []byte{1, 0x41, 0, 3}, 0, ErrNotSupported},
		{"short", nil, []byte{1, 3, 4}, 0, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.registry.ResponseBytesToRead(tt.frameStart)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResponseBytesToRead() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ResponseBytesToRead() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFunctionRegistry_RequestBytesToRead(t *testing.T) {
	custom := FunctionRegistry{}.Register(0x41, CustomFunction{
		RequestBytesToRead: func(frameStart []byte) int { return int(frameStart[2]) + 2 },
	})
	tests := []struct {
		name       string
		registry   FunctionRegistry
		frameStart []byte
		want       int
		wantErr    error
	}{
		{"not enough to tell", nil, []byte{1, 3, 0}, 4, nil},
		{"read coils", nil, []byte{1, 1, 0, 0, 0, 0x0A, 0xBC}, 1, nil},
		{"read holding registers", nil, []byte{1, 3, 0, 0, 0, 2, 0xC4}, 1, nil},
		{"write single coil", nil, []byte{1, 5, 0, 1, 0xFF, 0, 0xDD}, 1, nil},
		{"diagnostics", nil, []byte{1, 8, 0, 0, 0x12, 0x34, 0xED}, 1, nil},
		{"write multiple registers", nil, []byte{1, 0x10, 0, 1, 0, 2, 4}, 6, nil},
		{"write multiple coils", nil, []byte{1, 0x0F, 0, 0x13, 0, 0x0A, 2}, 4, nil},
		{"mask write register", nil, []byte{1, 0x16, 0, 4, 0, 0xF2, 0}, 3, nil},
		{"read file record", nil, []byte{1, 0x14, 7, 6, 0, 4, 0}, 5, nil},
		{"read write multiple up to byte count", nil, []byte{1, 0x17, 0, 0, 0, 1, 0, 5, 0, 1}, 1, nil},
		{"read write multiple with byte count", nil, []byte{1, 0x17, 0, 0, 0, 1, 0, 5, 0, 1, 2}, 4, nil},
		{"complete", nil, []byte{1, 3, 0, 0, 0, 2, 0xC4, 0x0B}, 0, nil},
		{"custom", custom, []byte{1, 0x41, 3, 1, 2, 3, 0}, 5, nil},
		{"unknown", nil, []byte{1, 0x41, 3, 1, 2, 3, 0}, 0, ErrNotSupported},
		{"too long", nil, []byte{1, 0x10, 0, 1, 0, 0x7F, 0xFE}, 0, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.registry.RequestBytesToRead(tt.frameStart)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RequestBytesToRead() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("RequestBytesToRead() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFunctionRegistry_isRequestFunction(t *testing.T) {
	custom := FunctionRegistry{}.Register(0x41, CustomFunction{
		RequestBytesToRead: func([]byte) int { return 1 },
	})
	tests := []struct {
		name     string
		registry FunctionRegistry
		fc       byte
		want     bool
	}{
		{"known", nil, FuncCodeReadHoldingRegisters, true},
		{"unknown", nil, 0x41, false},
		{"exception", nil, 0x83, false},
		{"custom", custom, 0x41, true},
		{"custom without request rule", FunctionRegistry{0x42: {}}, 0x42, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.registry.isRequestFunction(tt.fc); got != tt.want {
				t.Errorf("isRequestFunction() = %v, want %v", got, tt.want)
			}
		})
	}
}
