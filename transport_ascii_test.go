package modbus

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
)

func newTestASCIITransport(stream StreamResource) *asciiTransport {
	l := newClogWithPrefix("test =>")
	return newASCIITransport(stream, &l)
}

func Test_asciiTransport_write(t *testing.T) {
	tests := []struct {
		name    string
		m       Message
		want    string
		wantErr bool
	}{
		{
			"ASCII encode right 1",
			NewRawMessage(8, 1, []byte{2, 66, 1, 5}),
			":080102420105AD\r\n",
			false,
		},
		{
			"ASCII encode right 2",
			NewRawMessage(1, 3, []byte{8, 100, 10, 13}),
			":010308640A0D79\r\n",
			false,
		},
		{
			"read holding registers",
			NewReadHoldingRegistersRequest(1, 0, 2),
			":010300000002FA\r\n",
			false,
		},
		{
			"ASCII encode error",
			NewRawMessage(1, 3, make([]byte, 254)),
			"",
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := &mockStream{}
			err := newTestASCIITransport(stream).write(tt.m)
			if (err != nil) != tt.wantErr {
				t.Errorf("asciiTransport.write() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got := string(stream.written()); got != tt.want {
				t.Errorf("asciiTransport.write() = %q, want %q", got, tt.want)
			}
		})
	}
}

func Test_decodeASCIIFrame(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []byte
		wantErr bool
	}{
		{"ASCII decode 1", "080102420105AD\r\n", []byte{8, 1, 2, 66, 1, 5, 0xAD}, false},
		{"ASCII decode 2", "010308640A0D79\r\n", []byte{1, 3, 8, 100, 10, 13, 0x79}, false},
		{"lower case hex", "010308640a0d79\r\n", []byte{1, 3, 8, 100, 10, 13, 0x79}, false},
		{"lrc mismatch", "010308640A0D78\r\n", nil, true},
		{"odd length", "010308640A0D7\r\n", nil, true},
		{"not hex", "0103086G0A0D79\r\n", nil, true},
		{"no CRLF", "010308640A0D79\n\n", nil, true},
		{"too short", "01\r\n", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeASCIIFrame([]byte(tt.text))
			if (err != nil) != tt.wantErr {
				t.Errorf("decodeASCIIFrame() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !errors.Is(err, ErrFormat) {
				t.Errorf("decodeASCIIFrame() error = %v, want %v", err, ErrFormat)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeASCIIFrame() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_asciiTransport_readResponse(t *testing.T) {
	tests := []struct {
		name    string
		rx      string
		req     Request
		want    Message
		wantErr error
	}{
		{
			"read holding registers",
			":010304000A000BE3\r\n",
			NewReadHoldingRegistersRequest(1, 0, 2),
			NewReadRegistersResponse(1, FuncCodeReadHoldingRegisters, []byte{0x00, 0x0A, 0x00, 0x0B}),
			nil,
		},
		{
			"leading noise",
			"\x00\xff:010304000A000BE3\r\n",
			NewReadHoldingRegistersRequest(1, 0, 2),
			NewReadRegistersResponse(1, FuncCodeReadHoldingRegisters, []byte{0x00, 0x0A, 0x00, 0x0B}),
			nil,
		},
		{
			"exception",
			":0183027A\r\n",
			NewReadHoldingRegistersRequest(1, 0, 2),
			NewExceptionResponse(1, FuncCodeReadHoldingRegisters, ExceptionCodeIllegalDataAddress),
			nil,
		},
		{
			"bad lrc",
			":010304000A000BE4\r\n",
			NewReadHoldingRegistersRequest(1, 0, 2),
			nil,
			ErrFormat,
		},
		{
			"no frame",
			"",
			NewReadHoldingRegistersRequest(1, 0, 2),
			nil,
			io.EOF,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := &mockStream{rx: []byte(tt.rx), chunk: 4, eof: true}
			got, err := newTestASCIITransport(stream).readResponse(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("asciiTransport.readResponse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("asciiTransport.readResponse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func Test_asciiTransport_readRequest(t *testing.T) {
	stream := &mockStream{
		reads: [][]byte{nil, []byte(":0103"), nil},
		rx: []byte("0000\r\n" + // cut short by the timeout above
			":050300000001F7\r\n" + // another unit
			":010300000002FB\r\n" + // bad lrc
			"noise:010300000002FA\r\n" +
			":000600020007F1\r\n"),
		eof: true,
	}
	sf := newTestASCIITransport(stream)
	want := [][]byte{
		{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xFA},
		{0x00, 0x06, 0x00, 0x02, 0x00, 0x07, 0xF1},
	}
	for _, w := range want {
		got, err := sf.readRequest(context.Background(), 0x01)
		if err != nil {
			t.Fatalf("asciiTransport.readRequest() error = %v", err)
		}
		if !reflect.DeepEqual(got, w) {
			t.Errorf("asciiTransport.readRequest() = % x, want % x", got, w)
		}
	}
	if _, err := sf.readRequest(context.Background(), 0x01); !errors.Is(err, io.EOF) {
		t.Errorf("asciiTransport.readRequest() error = %v, want %v", err, io.EOF)
	}
}

func Test_asciiTransport_checksumsMatch(t *testing.T) {
	sf := newTestASCIITransport(&mockStream{})
	m := NewReadHoldingRegistersRequest(1, 0, 2)
	if !sf.checksumsMatch(m, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xFA}) {
		t.Errorf("asciiTransport.checksumsMatch() = false, want true")
	}
	if sf.checksumsMatch(m, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xFB}) {
		t.Errorf("asciiTransport.checksumsMatch() = true, want false")
	}
}

func Benchmark_decodeASCIIFrame(b *testing.B) {
	text := []byte("010308640A0D79\r\n")
	for i := 0; i < b.N; i++ {
		if _, err := decodeASCIIFrame(text); err != nil {
			b.Fatal(err)
		}
	}
}
