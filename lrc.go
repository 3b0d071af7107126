package modbus

// Longitudinal Redundancy Checking
type lrc struct {
	sum uint8
}

func (sf *lrc) reset() *lrc {
	sf.sum = 0
	return sf
}

func (sf *lrc) push(data ...byte) *lrc {
	for _, b := range data {
		sf.sum += b
	}
	return sf
}

// two's complement of the byte sum
func (sf *lrc) value() byte {
	return uint8(-int8(sf.sum))
}

// LRC returns the modbus ascii longitudinal redundancy check of bs.
func LRC(bs []byte) byte {
	var l lrc
	return l.push(bs...).value()
}
