package decode

import "github.com/snksoft/crc"

// crc8Table wraps github.com/snksoft/crc's generic table-driven CRC in the
// shape the source's bit-at-a-time crc8(bits, from, size, polynomial,
// init) helper produced: MSB-first bytes fed in order, no input/output
// reflection, no final XOR. HG02832 and TX141 each reduce to this table
// form once their payload is byte-packed (WH2 uses crc8Bitwise in
// shared.go instead); see the per-decoder comments
// for how each protocol's original byte ordering maps onto data.
func crc8Table(polynomial, init uint8, data []byte) uint8 {
	params := &crc.Parameters{
		Width:      8,
		Polynomial: uint64(polynomial),
		Init:       uint64(init),
		ReflectIn:  false,
		ReflectOut: false,
		FinalXor:   0,
	}
	table := crc.NewTable(params)
	return uint8(table.CalculateCRC(data))
}
