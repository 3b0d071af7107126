package modbus

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"
)

// fakeTransport replays responses, an error entry fails that read. Reads
// past the end time out. The first stale validations report a stale response.
type fakeTransport struct {
	writes      int
	reads       int
	validations int
	writeErr    error
	responses   []interface{}
	stale       int
}

func (sf *fakeTransport) writeMessage(Message) error {
	sf.writes++
	return sf.writeErr
}

func (sf *fakeTransport) readResponse(Request) (Message, error) {
	sf.reads++
	if len(sf.responses) == 0 {
		return nil, timeoutError{}
	}
	next := sf.responses[0]
	sf.responses = sf.responses[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(Message), nil
}

func (sf *fakeTransport) onValidateResponse(req Request, rsp Message) (bool, error) {
	sf.validations++
	if sf.validations <= sf.stale {
		return false, nil
	}
	return true, req.ValidateResponse(rsp)
}

func repeat(v interface{}, n int) []interface{} {
	s := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		s = append(s, v)
	}
	return s
}

func Test_transaction_unicast(t *testing.T) {
	req := NewReadHoldingRegistersRequest(1, 0, 1)
	ok := NewReadRegistersResponse(1, FuncCodeReadHoldingRegisters, []byte{0, 7})
	busy := NewExceptionResponse(1, FuncCodeReadHoldingRegisters, ExceptionCodeServerDeviceBusy)
	ack := NewExceptionResponse(1, FuncCodeReadHoldingRegisters, ExceptionCodeAcknowledge)
	illegal := NewExceptionResponse(1, FuncCodeReadHoldingRegisters, ExceptionCodeIllegalDataAddress)

	tests := []struct {
		name            string
		opts            []Option
		transport       *fakeTransport
		want            Message
		wantErr         error
		wantWrites      int
		wantReads       int
		wantValidations int
	}{
		{
			"first try",
			nil,
			&fakeTransport{responses: []interface{}{ok}},
			ok, nil, 1, 1, 1,
		},
		{
			"timeouts use every retry",
			[]Option{WithRetries(3)},
			&fakeTransport{},
			nil, timeoutError{}, 4, 4, 0,
		},
		{
			"no retry",
			[]Option{WithRetries(0)},
			&fakeTransport{responses: []interface{}{io.ErrUnexpectedEOF}},
			nil, io.ErrUnexpectedEOF, 1, 1, 0,
		},
		{
			"one failure then success",
			nil,
			&fakeTransport{responses: []interface{}{ErrFormat, ok}},
			ok, nil, 2, 2, 1,
		},
		{
			"write failure is retried",
			[]Option{WithRetries(2)},
			&fakeTransport{writeErr: io.ErrClosedPipe},
			nil, io.ErrClosedPipe, 3, 0, 0,
		},
		{
			"busy beyond the retry budget",
			[]Option{WithRetries(2)},
			&fakeTransport{responses: append(repeat(busy, 5), ok)},
			ok, nil, 6, 6, 1,
		},
		{
			"busy counted",
			[]Option{WithRetries(2), WithSlaveBusyUsesRetryCount(true)},
			&fakeTransport{responses: append(repeat(busy, 5), ok)},
			nil, busy.Err(), 3, 3, 0,
		},
		{
			"acknowledge re-reads",
			[]Option{WithRetries(1)},
			&fakeTransport{responses: append(repeat(ack, 4), ok)},
			ok, nil, 1, 5, 1,
		},
		{
			"terminal exception",
			[]Option{WithRetries(3)},
			&fakeTransport{responses: []interface{}{illegal, ok}},
			nil, illegal.Err(), 1, 1, 0,
		},
		{
			"function code mismatch",
			[]Option{WithRetries(1)},
			&fakeTransport{responses: []interface{}{
				NewReadRegistersResponse(1, FuncCodeReadInputRegisters, []byte{0, 7}), ok}},
			ok, nil, 2, 2, 1,
		},
		{
			"slave address mismatch",
			[]Option{WithRetries(0)},
			&fakeTransport{responses: []interface{}{
				NewReadRegistersResponse(2, FuncCodeReadHoldingRegisters, []byte{0, 7})}},
			nil, ErrResponseMismatch, 1, 1, 0,
		},
		{
			"validation failure",
			[]Option{WithRetries(1)},
			&fakeTransport{responses: []interface{}{
				NewReadRegistersResponse(1, FuncCodeReadHoldingRegisters, []byte{0, 7, 0, 8}),
				NewReadRegistersResponse(1, FuncCodeReadHoldingRegisters, []byte{0, 7, 0, 8})}},
			nil, ErrResponseMismatch, 2, 2, 2,
		},
		{
			"stale responses re-read",
			[]Option{WithRetries(0)},
			&fakeTransport{responses: append(repeat(ok, 3), ok), stale: 3},
			ok, nil, 1, 4, 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOptions(append([]Option{WithWaitToRetry(0)}, tt.opts...)...)
			l := newClogWithPrefix("test =>")
			got, err := newTransaction(tt.transport, &o, &l).unicast(context.Background(), req)
			if tt.wantErr == nil && err != nil || tt.wantErr != nil && !errors.Is(err, tt.wantErr) &&
				!reflect.DeepEqual(err, tt.wantErr) {
				t.Errorf("unicast() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("unicast() = %#v, want %#v", got, tt.want)
			}
			if tt.transport.writes != tt.wantWrites {
				t.Errorf("unicast() writes = %v, want %v", tt.transport.writes, tt.wantWrites)
			}
			if tt.transport.reads != tt.wantReads {
				t.Errorf("unicast() reads = %v, want %v", tt.transport.reads, tt.wantReads)
			}
			if tt.transport.validations != tt.wantValidations {
				t.Errorf("unicast() validations = %v, want %v", tt.transport.validations, tt.wantValidations)
			}
		})
	}
}

func Test_transaction_unicast_cancel(t *testing.T) {
	busy := NewExceptionResponse(1, FuncCodeReadHoldingRegisters, ExceptionCodeServerDeviceBusy)
	tp := &fakeTransport{responses: repeat(busy, 1000)}
	o := newOptions(WithWaitToRetry(10 * time.Millisecond))
	l := newClogWithPrefix("test =>")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTransaction(tp, &o, &l).unicast(ctx, NewReadHoldingRegistersRequest(1, 0, 1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("unicast() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if tp.writes >= 1000 {
		t.Errorf("unicast() writes = %v, want fewer", tp.writes)
	}
}

func Test_transaction_broadcast(t *testing.T) {
	tp := &fakeTransport{}
	o := newOptions()
	l := newClogWithPrefix("test =>")
	if err := newTransaction(tp, &o, &l).broadcast(NewWriteSingleRegisterRequest(0, 1, 2)); err != nil {
		t.Errorf("broadcast() error = %v", err)
	}
	if tp.writes != 1 || tp.reads != 0 {
		t.Errorf("broadcast() writes = %v reads = %v, want 1 and 0", tp.writes, tp.reads)
	}
}
