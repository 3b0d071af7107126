package modbus

import (
	"sync"
)

// protocolFrame protocol frame in pool
type protocolFrame struct {
	adu []byte
}

type pool struct {
	pl *sync.Pool
}

func newPool(size int) *pool {
	return &pool{
		&sync.Pool{
			New: func() interface{} {
				return &protocolFrame{make([]byte, 0, size)}
			},
		},
	}
}

func (sf *pool) get() *protocolFrame {
	v := sf.pl.Get().(*protocolFrame)
	v.adu = v.adu[:0]
	return v
}

func (sf *pool) put(buffer *protocolFrame) {
	sf.pl.Put(buffer)
}

// frame pools shared by all transports of a kind
var (
	rtuPool   = newPool(rtuAduMaxSize)
	asciiPool = newPool(asciiCharacterMaxSize)
	tcpPool   = newPool(tcpAduMaxSize)
)
