package modbus

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"
)

func Test_TCPMasterWithSlave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewNodeRegister(0, 10, 0, 10, 0, 10, 0, 10)
	srv := NewTCPSlave(NewSlave(1, reg))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	m, err := DialTCPMaster(ctx, ln.Addr().String(), WithReadTimeout(time.Second))
	if err != nil {
		t.Fatalf("DialTCPMaster() error = %v", err)
	}
	defer m.Close()
	mbCli := NewClient(m)

	if err = mbCli.WriteMultipleRegisters(ctx, 1, 2, 2, []uint16{0x1234, 0x5678}); err != nil {
		t.Fatalf("WriteMultipleRegisters() error = %v", err)
	}
	got, err := mbCli.ReadHoldingRegisters(ctx, 1, 2, 2)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters() error = %v", err)
	}
	if !reflect.DeepEqual(got, []uint16{0x1234, 0x5678}) {
		t.Errorf("ReadHoldingRegisters() = %#v, want %#v", got, []uint16{0x1234, 0x5678})
	}

	if err = mbCli.WriteSingleCoil(ctx, 1, 9, true); err != nil {
		t.Fatalf("WriteSingleCoil() error = %v", err)
	}
	coils, err := mbCli.ReadCoils(ctx, 1, 0, 10)
	if err != nil {
		t.Fatalf("ReadCoils() error = %v", err)
	}
	if !reflect.DeepEqual(coils, []byte{0x00, 0x02}) {
		t.Errorf("ReadCoils() = %#v, want %#v", coils, []byte{0x00, 0x02})
	}

	// any unit id is answered
	if _, err = mbCli.ReadHoldingRegisters(ctx, 5, 2, 1); err != nil {
		t.Errorf("ReadHoldingRegisters() unit 5 error = %v", err)
	}

	_, err = mbCli.ReadHoldingRegisters(ctx, 1, 9, 2)
	var exception *ExceptionError
	if !errors.As(err, &exception) || exception.ExceptionCode != ExceptionCodeIllegalDataAddress {
		t.Errorf("ReadHoldingRegisters() error = %v, want illegal data address", err)
	}

	if masters := srv.Masters(); len(masters) != 1 {
		t.Errorf("Masters() = %v, want one master", masters)
	}
	if srv.Addr() == nil {
		t.Errorf("Addr() = nil, want listening address")
	}

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln2.Close()
	if err = srv.Serve(ctx, ln2); !errors.Is(err, ErrServerStarted) {
		t.Errorf("Serve() error = %v, want %v", err, ErrServerStarted)
	}

	cancel()
	select {
	case err = <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if err = srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if masters := srv.Masters(); len(masters) != 0 {
		t.Errorf("Masters() = %v, want none", masters)
	}
}

func Test_TCPSlave_Close(t *testing.T) {
	srv := NewTCPSlave(NewSlave(1, NewNodeRegister(0, 0, 0, 0, 0, 0, 0, 1)))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// a garbage header is dropped, the session keeps going
	if _, err = conn.Write([]byte{0, 1, 0, 9, 0, 2, 1, 3}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	m := NewTCPMaster(conn, WithRetries(3), WithWaitToRetry(0), WithReadTimeout(200*time.Millisecond))
	if _, err = NewClient(m).ReadHoldingRegisters(context.Background(), 1, 0, 1); err != nil {
		t.Errorf("ReadHoldingRegisters() error = %v", err)
	}

	if err = srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case err = <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Close")
	}
}

func Test_RTUMasterWithSlave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	masterConn, slaveConn := net.Pipe()
	defer masterConn.Close()
	defer slaveConn.Close()

	reg := NewNodeRegister(0, 10, 0, 10, 0, 10, 0, 10)
	if err := reg.WriteInputs(0, []uint16{7, 8, 9}); err != nil {
		t.Fatalf("WriteInputs() error = %v", err)
	}
	sf := NewRTUSlave(NewNetStream(slaveConn, 20*time.Millisecond, time.Second), NewSlave(3, reg))
	done := make(chan error, 1)
	go func() { done <- sf.Listen(ctx) }()

	m := NewRTUMaster(NewNetStream(masterConn, time.Second, time.Second), WithRetries(1), WithWaitToRetry(0))
	mbCli := NewClient(m)
	got, err := mbCli.ReadInputRegisters(ctx, 3, 0, 3)
	if err != nil {
		t.Fatalf("ReadInputRegisters() error = %v", err)
	}
	if !reflect.DeepEqual(got, []uint16{7, 8, 9}) {
		t.Errorf("ReadInputRegisters() = %#v, want %#v", got, []uint16{7, 8, 9})
	}
	got, err = mbCli.ReadWriteMultipleRegisters(ctx, 3, 0, 2, 1, 1, []byte{0xab, 0xcd})
	if err != nil {
		t.Fatalf("ReadWriteMultipleRegisters() error = %v", err)
	}
	if !reflect.DeepEqual(got, []uint16{0, 0xabcd}) {
		t.Errorf("ReadWriteMultipleRegisters() = %#v, want %#v", got, []uint16{0, 0xabcd})
	}

	cancel()
	select {
	case err = <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Listen() error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Listen() did not return after cancel")
	}
}

func Test_TCPSlave_Close_whileAccepting(t *testing.T) {
	for i := 0; i < 20; i++ {
		srv := NewTCPSlave(NewSlave(1, NewNodeRegister(0, 0, 0, 0, 0, 0, 0, 1)))
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
		done := make(chan error, 1)
		go func() { done <- srv.Serve(context.Background(), ln) }()
		for srv.Addr() == nil {
			time.Sleep(time.Millisecond)
		}
		if err = srv.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		select {
		case err = <-done:
			if err != nil {
				t.Errorf("Serve() error = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Serve() did not return after Close")
		}
	}
}
