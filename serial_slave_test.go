package modbus

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/goburrow/serial"
)

func newTestSlave(t *testing.T) (*Slave, *NodeRegister) {
	t.Helper()
	reg := NewNodeRegister(0, 10, 0, 10, 0, 10, 0, 10)
	if err := reg.WriteHoldings(0, []uint16{0x1234, 0x5678}); err != nil {
		t.Fatalf("WriteHoldings() error = %v", err)
	}
	return NewSlave(1, reg), reg
}

func TestSerialSlave_Listen_RTU(t *testing.T) {
	slave, reg := newTestSlave(t)
	slave.RegisterFunctionHandler(0x41, func(_ DataStore, req Message) (Message, error) {
		return NewRawMessage(req.SlaveAddress(), req.FunctionCode(), []byte{0xAA}), nil
	})
	registry := FunctionRegistry{}.Register(0x41, CustomFunction{
		RequestBytesToRead: func([]byte) int { return 2 },
	})

	stream := &mockStream{
		rx: concat(
			rtuADU(1, 3, 0, 0, 0, 2),
			rtuADU(2, 3, 0, 0, 0, 2),
			rtuADU(0, 6, 0, 5, 0, 0x99),
			rtuADU(1, 3, 0, 20, 0, 1),
			rtuADU(1, 3, 0, 5, 0, 1),
			rtuADU(1, 8, 0, 0, 0x12, 0x34),
			rtuADU(1, 0x41, 1, 2, 3, 4, 5),
			[]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0C},
		),
		chunk: 6,
		eof:   true,
	}
	sf := NewRTUSlave(stream, slave, WithFunctionRegistry(registry), WithWaitToRetry(0))
	if err := sf.Listen(context.Background()); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	want := concat(
		rtuADU(1, 3, 4, 0x12, 0x34, 0x56, 0x78),
		rtuADU(1, 0x83, ExceptionCodeIllegalDataAddress),
		rtuADU(1, 3, 2, 0, 0x99),
		rtuADU(1, 8, 0, 0, 0x12, 0x34),
		rtuADU(1, 0x41, 0xAA),
	)
	if got := stream.written(); !reflect.DeepEqual(got, want) {
		t.Errorf("Listen() wrote % x, want % x", got, want)
	}
	if v, _ := reg.ReadHoldings(5, 1); v[0] != 0x99 {
		t.Errorf("broadcast write holding = %#x, want %#x", v[0], 0x99)
	}
}

func TestSerialSlave_Listen_ASCII(t *testing.T) {
	slave, reg := newTestSlave(t)
	stream := &mockStream{
		rx: []byte(":010300000002FA\r\n" +
			":020300000002F9\r\n" +
			":010600030007EF\r\n" +
			":01010000000AF4\r\n" +
			":010300000002FB\r\n"),
		eof: true,
	}
	sf := NewASCIISlave(stream, slave, WithWaitToRetry(0))
	if err := sf.Listen(context.Background()); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	want := asciiText(1, 3, 4, 0x12, 0x34, 0x56, 0x78) +
		asciiText(1, 6, 0, 3, 0, 7) +
		asciiText(1, 1, 2, 0, 0)
	if got := string(stream.written()); got != want {
		t.Errorf("Listen() wrote %q, want %q", got, want)
	}
	if v, _ := reg.ReadHoldings(3, 1); v[0] != 7 {
		t.Errorf("write holding = %#x, want %#x", v[0], 7)
	}
}

// asciiText frames address + PDU as ASCII text.
func asciiText(frame ...byte) string {
	text := []byte{asciiStart}
	for _, v := range append(frame, LRC(frame)) {
		text = append(text, hexTable[v>>4], hexTable[v&0x0f])
	}
	return string(append(text, asciiEnd...))
}

func TestSerialSlave_Listen_cancel(t *testing.T) {
	slave, _ := newTestSlave(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sf := NewRTUSlave(&mockStream{}, slave)
	if err := sf.Listen(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Listen() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestSerialSlave_Listen_closed(t *testing.T) {
	slave, _ := newTestSlave(t)
	port := NewSerialPort(serial.Config{Address: "/dev/null"})
	sf := NewRTUSlave(port, slave)
	if err := sf.Listen(context.Background()); err != nil {
		t.Errorf("Listen() error = %v, want nil", err)
	}
}
