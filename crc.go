package modbus

import (
	"encoding/binary"
	"sync"
)

// Cyclical Redundancy Checking
type crc struct {
	once  sync.Once
	table []uint16
}

var crcTb crc

// CRC16 returns the modbus crc of bs, polynomial 0xA001 seeded with 0xFFFF.
func CRC16(bs []byte) uint16 {
	crcTb.once.Do(crcTb.initTable)

	val := uint16(0xFFFF)
	for _, v := range bs {
		val = (val >> 8) ^ crcTb.table[(val^uint16(v))&0x00FF]
	}
	return val
}

// appendCRC appends the crc of adu in little endian, as RTU puts it on the wire.
func appendCRC(adu []byte) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], CRC16(adu))
	return append(adu, b[:]...)
}

// checkCRC reports whether the trailing two bytes of adu match the crc of the rest.
func checkCRC(adu []byte) bool {
	if len(adu) < 3 {
		return false
	}
	n := len(adu) - 2
	return binary.LittleEndian.Uint16(adu[n:]) == CRC16(adu[:n])
}

// initTable 初始化表
func (c *crc) initTable() {
	crcPoly16 := uint16(0xa001)
	c.table = make([]uint16, 256)

	for i := uint16(0); i < 256; i++ {
		crc := uint16(0)
		b := i

		for j := uint16(0); j < 8; j++ {
			if ((crc ^ b) & 0x0001) > 0 {
				crc = (crc >> 1) ^ crcPoly16
			} else {
				crc >>= 1
			}
			b >>= 1
		}
		c.table[i] = crc
	}
}
