// Package bitlayout tracks bit-level coverage of fixed-length byte buffers.
//
// A CoverageMap records which bits of a PDU payload are occupied by signal
// placements. Placements are described the way communication matrices
// describe them: a start bit position, a bit length and a byte order.
// Reserving a placement marks its bits and reports whether they were all
// free, so overlapping placements are detected no matter in which order
// they arrive.
//
// The map follows a mark-and-report contract: the bits of a rejected
// placement are still recorded. A third placement overlapping only the
// second therefore still fails, because the map always holds the union of
// everything that was ever reserved.
package bitlayout

// ByteOrder defines the order of bytes in a multi-byte value.
type ByteOrder string

const (
	// MostSignificantByteFirst places the most significant byte at the
	// lowest address (big endian).
	MostSignificantByteFirst ByteOrder = "most-significant-byte-first"
	// MostSignificantByteLast places the most significant byte at the
	// highest address (little endian).
	MostSignificantByteLast ByteOrder = "most-significant-byte-last"
	// Opaque marks byte order as undefined or irrelevant. Placements are
	// laid out like little endian ones.
	Opaque ByteOrder = "opaque"
)

// Valid reports whether o is one of the defined byte orders.
func (o ByteOrder) Valid() bool {
	switch o {
	case MostSignificantByteFirst, MostSignificantByteLast, Opaque:
		return true
	}
	return false
}

// CoverageMap tracks the occupied bits of a buffer, one coverage byte per
// buffer byte.
type CoverageMap struct {
	bitmap []byte
}

// NewCoverageMap creates a coverage map for a buffer of byteLength bytes.
func NewCoverageMap(byteLength int) *CoverageMap {
	if byteLength < 0 {
		byteLength = 0
	}
	return &CoverageMap{bitmap: make([]byte, byteLength)}
}

// Reserve marks the bits covered by a placement and reports whether all of
// them were previously free. Bits outside the buffer count as collisions.
//
// The bits are marked even when Reserve returns false, so subsequent calls
// check against the union of every placement seen so far. Callers that need
// all-or-nothing semantics must reject the whole buffer on false.
func (m *CoverageMap) Reserve(bitPosition, bitLength int, order ByteOrder, updateBit *int) bool {
	if bitPosition < 0 || bitLength < 0 {
		return false
	}
	firstByte := bitPosition / 8
	bitOffset := bitPosition % 8 // bit position inside the first byte
	var firstByteBits int        // number of placement bits in the first byte
	var firstMask byte

	if order == MostSignificantByteFirst {
		// bitPosition is the most significant bit. The placement runs from
		// there toward bit 0, then continues at bit 7 of the next byte.
		//
		// bit-position: 5, length: 10
		// byte   |               0               |               1               |
		// bit    | 0 | 1 | 2 | 3 | 4 | 5 | 6 | 7 | 0 | 1 | 2 | 3 | 4 | 5 | 6 | 7 |
		// signal | 4   5   6   7   8   9                           0   1   2   3
		firstByteBits = min(bitOffset+1, bitLength)
		firstMask = byte((1 << (bitOffset + 1)) - 1)
		if bitOffset+1 != firstByteBits {
			firstMask &^= byte((1 << (bitOffset + 1 - firstByteBits)) - 1)
		}
	} else {
		// bitPosition is the least significant bit. The placement runs from
		// there toward bit 7, then continues at bit 0 of the next byte.
		//
		// bit-position: 5, length: 10
		// byte   |               0               |               1               |
		// bit    | 0 | 1 | 2 | 3 | 4 | 5 | 6 | 7 | 0 | 1 | 2 | 3 | 4 | 5 | 6 | 7 |
		// signal |                     0   1   2   3   4   5   6   7   8   9
		firstByteBits = min(8-bitOffset, bitLength)
		firstMask = ^byte((1 << bitOffset) - 1)
		if bitOffset+firstByteBits < 8 {
			firstMask &^= ^byte((1 << (bitOffset + firstByteBits)) - 1)
		}
	}

	fullBytes := (bitLength - firstByteBits) / 8
	endBits := (bitLength - firstByteBits) % 8

	free := m.applyMask(firstMask, firstByte)
	free = m.applyFullBytes(firstByte+1, fullBytes) && free

	// handle any bits in a partial trailing byte
	if endBits > 0 {
		var endMask byte
		if order == MostSignificantByteFirst {
			endMask = ^byte((1 << endBits) - 1)
		} else {
			endMask = byte((1 << endBits) - 1)
		}
		free = m.applyMask(endMask, firstByte+fullBytes+1) && free
	}

	// handle the update bit, if any
	if updateBit != nil {
		ub := *updateBit
		if ub < 0 {
			free = false
		} else {
			free = m.applyMask(1<<(ub%8), ub/8) && free
		}
	}

	return free
}

// Bytes returns a copy of the coverage bitmap.
func (m *CoverageMap) Bytes() []byte {
	out := make([]byte, len(m.bitmap))
	copy(out, m.bitmap)
	return out
}

// Len returns the buffer length in bytes.
func (m *CoverageMap) Len() int {
	return len(m.bitmap)
}

// applyMask marks the masked bits of the byte at position and reports
// whether they were all free. Positions outside the buffer report false.
func (m *CoverageMap) applyMask(mask byte, position int) bool {
	if position < 0 || position >= len(m.bitmap) {
		return false
	}
	free := m.bitmap[position]&mask == 0
	m.bitmap[position] |= mask
	return free
}

// applyFullBytes marks count whole bytes starting at position. Bytes that
// fall outside the buffer count as collisions.
func (m *CoverageMap) applyFullBytes(position, count int) bool {
	free := true
	if count > 0 {
		limit := min(len(m.bitmap), position+count)
		for idx := position; idx < limit; idx++ {
			free = m.applyMask(0xff, idx) && free
		}
		free = free && limit == position+count
	}
	return free
}
