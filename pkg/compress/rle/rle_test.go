package rle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLE_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
	}{
		{"Gray8", Layout{Pixels: 100 * 100, Samples: 1, BytesPerSample: 1}},
		{"Gray16", Layout{Pixels: 64 * 32, Samples: 1, BytesPerSample: 2}},
		{"RGB8", Layout{Pixels: 17 * 9, Samples: 3, BytesPerSample: 1}},
		{"RGB16", Layout{Pixels: 8 * 8, Samples: 3, BytesPerSample: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := make([]byte, tt.layout.FrameSize())
			for i := range frame {
				// runs in the first half, a gradient in the second
				if i < len(frame)/2 {
					frame[i] = byte(i / 37)
				} else {
					frame[i] = byte(i)
				}
			}

			encoded, err := Encode(frame, tt.layout)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(encoded), headerSize)
			assert.Equal(t, uint32(tt.layout.Samples*tt.layout.BytesPerSample), binary.LittleEndian.Uint32(encoded))
			assert.Zero(t, len(encoded)%2, "segments are padded to even length")

			decoded, err := Decode(encoded, tt.layout)
			require.NoError(t, err)
			assert.Equal(t, frame, decoded)
		})
	}
}

func TestRLE_Gray16SegmentOrder(t *testing.T) {
	// little endian 0x0102: high byte plane is all 0x01, low plane all 0x02
	frame := []byte{0x02, 0x01, 0x02, 0x01, 0x02, 0x01, 0x02, 0x01}
	encoded, err := Encode(frame, Layout{Pixels: 4, Samples: 1, BytesPerSample: 2})
	require.NoError(t, err)

	first := binary.LittleEndian.Uint32(encoded[4:])
	assert.Equal(t, uint32(headerSize), first)
	// replicate run of 4: header -3, value
	assert.Equal(t, []byte{0xFD, 0x01}, encoded[first:first+2])
}

func TestRLE_Errors(t *testing.T) {
	_, err := Encode(make([]byte, 3), Layout{Pixels: 4, Samples: 1, BytesPerSample: 1})
	assert.Error(t, err)

	_, err = Encode(make([]byte, 16*8), Layout{Pixels: 1, Samples: 16, BytesPerSample: 8})
	assert.ErrorContains(t, err, "exceeds the maximum")

	_, err = Decode([]byte{1, 2, 3}, Layout{Pixels: 1, Samples: 1, BytesPerSample: 1})
	assert.ErrorContains(t, err, "too short")

	encoded, err := Encode([]byte{1, 2, 3, 4}, Layout{Pixels: 4, Samples: 1, BytesPerSample: 1})
	require.NoError(t, err)
	_, err = Decode(encoded, Layout{Pixels: 2, Samples: 1, BytesPerSample: 2})
	assert.ErrorContains(t, err, "layout needs")

	_, err = Decode(encoded, Layout{Pixels: 8, Samples: 1, BytesPerSample: 1})
	assert.Error(t, err)
}
