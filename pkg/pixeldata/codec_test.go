package pixeldata

import (
	"errors"
	"testing"

	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(g Geometry) *Native {
	data := make([]byte, g.FrameSize()*g.Frames)
	for i := range data {
		data[i] = byte(i / 3)
	}
	return &Native{Width: g.Width(), Data: data}
}

func TestGeometry(t *testing.T) {
	g := Geometry{Rows: 4, Columns: 5, SamplesPerPixel: 3, BitsAllocated: 16, Frames: 2}
	require.NoError(t, g.Validate())
	assert.Equal(t, Width16, g.Width())
	assert.Equal(t, 4*5*3*2, g.FrameSize())

	for _, bad := range []Geometry{
		{},
		{Rows: 1, Columns: 1, SamplesPerPixel: 1, BitsAllocated: 12, Frames: 1},
		{Rows: 1, Columns: 1, SamplesPerPixel: 1, BitsAllocated: 8},
		{Rows: 1, Columns: 1, BitsAllocated: 8, Frames: 1},
	} {
		assert.ErrorIs(t, bad.Validate(), ErrIllegalParameter, "%+v", bad)
	}
}

func TestCodecList_Register(t *testing.T) {
	l, err := NewCodecList()
	require.NoError(t, err)
	assert.ErrorIs(t, l.Register(nil), ErrIllegalParameter)

	_, ok := l.Lookup(transfer.RLELossless)
	assert.False(t, ok)
	assert.False(t, l.CanTranscode(NativeKey(), Key{Syntax: transfer.RLELossless}))
	assert.True(t, l.CanTranscode(NativeKey(), Key{Syntax: transfer.ImplicitVRLittleEndian}))

	require.NoError(t, l.Register(&rleCodec{}))
	c, ok := l.Lookup(transfer.RLELossless)
	require.True(t, ok)
	assert.Equal(t, "rle", c.Name())
	assert.True(t, l.CanTranscode(NativeKey(), Key{Syntax: transfer.RLELossless}))
	assert.True(t, l.CanTranscode(Key{Syntax: transfer.RLELossless}, NativeKey()))
	assert.False(t, l.CanTranscode(Key{Syntax: transfer.JPEGLSLossless}, Key{Syntax: transfer.RLELossless}))
}

func TestRLECodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		geom  Geometry
		param Parameter
	}{
		{"Gray8", Geometry{Rows: 16, Columns: 16, SamplesPerPixel: 1, BitsAllocated: 8, Frames: 1}, nil},
		{"Gray16Frames", Geometry{Rows: 8, Columns: 12, SamplesPerPixel: 1, BitsAllocated: 16, Frames: 3}, nil},
		{"RGB8Fragmented", Geometry{Rows: 10, Columns: 10, SamplesPerPixel: 3, BitsAllocated: 8, Frames: 2},
			RLEParameter{FragmentSize: 33, OffsetTable: true}},
	}
	codecs := DefaultCodecs()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := gradient(tt.geom)
			key := Key{Syntax: transfer.RLELossless, Param: tt.param}

			enc, err := codecs.Encode(src, key, tt.geom)
			require.NoError(t, err)
			require.NotEmpty(t, enc.Fragments)
			if tt.param != nil {
				assert.Len(t, enc.Offsets, tt.geom.Frames)
				assert.Equal(t, uint32(0), enc.Offsets[0])
				for _, f := range enc.Fragments[:len(enc.Fragments)-1] {
					assert.LessOrEqual(t, len(f), 32, "fragment size rounds down to even")
				}
			} else {
				assert.Len(t, enc.Fragments, tt.geom.Frames)
				assert.Empty(t, enc.Offsets)
			}

			dec, err := codecs.Decode(key, enc, tt.geom)
			require.NoError(t, err)
			assert.Equal(t, src.Width, dec.Width)
			assert.Equal(t, src.Data, dec.Data)
		})
	}
}

func TestRLECodec_Errors(t *testing.T) {
	codecs := DefaultCodecs()
	g := Geometry{Rows: 4, Columns: 4, SamplesPerPixel: 1, BitsAllocated: 8, Frames: 1}
	key := Key{Syntax: transfer.RLELossless}

	_, err := codecs.Encode(&Native{Width: Width8, Data: []byte{1, 2}}, key, g)
	var te *TranscodeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "rle", te.Codec)
	assert.Equal(t, "encode", te.Op)
	assert.ErrorIs(t, err, ErrCorruptedData)

	_, err = codecs.Decode(key, &Encapsulated{Fragments: [][]byte{{1, 2, 3}}}, g)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "decode", te.Op)

	_, err = codecs.Encode(gradient(g), Key{Syntax: transfer.JPEG2000}, g)
	assert.ErrorIs(t, err, ErrRepresentationNotFound)
}
