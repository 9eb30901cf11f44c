package hasher

import "fmt"

const (
	// BlockSize is the SHA-256 message block size.
	BlockSize = 64
	// maxSingleBlockPayload is the longest message that still leaves room
	// for the 0x80 terminator and the 8-byte length field.
	maxSingleBlockPayload = BlockSize - 9
	lengthOffset          = BlockSize - 8
)

// Block is one padded SHA-256 message block. A worker owns a single Block
// and overwrites it for every candidate.
type Block [BlockSize]byte

// Build copies payload into the block and applies single-block padding.
// Payload length must be in [1, 55]; anything else is a programming error.
func (b *Block) Build(payload []byte) {
	n := len(payload)
	if n < 1 || n > maxSingleBlockPayload {
		panic(fmt.Sprintf("hasher: payload length %d does not fit one block", n))
	}
	copy(b[:n], payload)
	b.pad(n)
}

// SetAddress encodes addr straight into the block, pads it and returns the
// payload length.
func (b *Block) SetAddress(addr uint32) int {
	n := Encode(b[:], addr)
	b.pad(n)
	return n
}

// pad writes the terminator, clears every byte up to the length field and
// stores the bit length big-endian. Bytes beyond the payload from any
// previous candidate are always overwritten.
func (b *Block) pad(n int) {
	b[n] = 0x80
	clear(b[n+1 : lengthOffset])

	bitLen := uint64(n) * 8
	b[56] = byte(bitLen >> 56)
	b[57] = byte(bitLen >> 48)
	b[58] = byte(bitLen >> 40)
	b[59] = byte(bitLen >> 32)
	b[60] = byte(bitLen >> 24)
	b[61] = byte(bitLen >> 16)
	b[62] = byte(bitLen >> 8)
	b[63] = byte(bitLen)
}

// PayloadLen recovers the message length from the length field.
func (b *Block) PayloadLen() int {
	return int(uint16(b[62])<<8|uint16(b[63])) / 8
}

// Payload returns the message bytes held in the block.
func (b *Block) Payload() []byte {
	return b[:b.PayloadLen()]
}
