package tag

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTag_PutParse(t *testing.T) {
	b := make([]byte, 4)
	PixelData.Put(b, binary.LittleEndian)
	assert.Equal(t, []byte{0xE0, 0x7F, 0x10, 0x00}, b)
	assert.Equal(t, PixelData, Parse(b, binary.LittleEndian))

	PixelData.Put(b, binary.BigEndian)
	assert.Equal(t, []byte{0x7F, 0xE0, 0x00, 0x10}, b)
	assert.Equal(t, PixelData, Parse(b, binary.BigEndian))
}

func TestTag_Predicates(t *testing.T) {
	assert.True(t, Item.IsDelimiter())
	assert.True(t, SequenceDelimitation.IsDelimiter())
	assert.False(t, PixelData.IsDelimiter())
	assert.True(t, New(0x0009, 0x0010).IsPrivate())
	assert.Equal(t, uint32(0x7FE00010), PixelData.Uint32())
	assert.Equal(t, "(7FE0,0010)", PixelData.String())
	assert.True(t, Item.Equals(New(0xFFFE, 0xE000)))
}

func TestTag_ItemFollowsByteOrder(t *testing.T) {
	b := make([]byte, 4)
	Item.Put(b, binary.LittleEndian)
	assert.Equal(t, []byte{0xFE, 0xFF, 0x00, 0xE0}, b)

	SequenceDelimitation.Put(b, binary.BigEndian)
	assert.Equal(t, []byte{0xFF, 0xFE, 0xE0, 0xDD}, b)
	assert.Equal(t, SequenceDelimitation, Parse(b, binary.BigEndian))
}
