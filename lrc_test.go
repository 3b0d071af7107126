package modbus

import (
	"testing"
)

func TestLRC(t *testing.T) {
	tests := []struct {
		name string
		bs   []byte
		want byte
	}{
		{"read holding", []byte{0x01, 0x03, 0x01, 0x0a}, 0xf1},
		{"empty", nil, 0x00},
		{"wraps", []byte{0xff, 0x01}, 0x00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LRC(tt.bs); got != tt.want {
				t.Errorf("LRC() = %#02x, want %#02x", got, tt.want)
			}
		})
	}
}

func TestLRC_singleBitFlip(t *testing.T) {
	frame := []byte{0x11, 0x03, 0x00, 0x6b, 0x00, 0x03}
	want := LRC(frame)
	for i := range frame {
		for bit := uint(0); bit < 8; bit++ {
			flipped := append([]byte(nil), frame...)
			flipped[i] ^= 1 << bit
			if LRC(flipped) == want {
				t.Errorf("LRC() unchanged after flipping byte %d bit %d", i, bit)
			}
		}
	}
}

func Benchmark_lrc(b *testing.B) {
	var lrc lrc
	for i := 0; i < b.N; i++ {
		lrc.reset().push([]byte{0x02, 0x07, 0x01, 0x03, 0x01, 0x0a}...).value()
	}
}
