package pixeldata

import (
	"fmt"

	"github.com/jpfielding/dcmpix/pkg/compress/rle"
	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
)

// Geometry is the image description codecs need to interpret a buffer
type Geometry struct {
	Rows            int
	Columns         int
	SamplesPerPixel int
	BitsAllocated   int
	Frames          int
}

// Validate rejects geometries no codec can work with
func (g Geometry) Validate() error {
	switch {
	case g.Rows <= 0 || g.Columns <= 0:
		return fmt.Errorf("geometry %dx%d: %w", g.Columns, g.Rows, ErrIllegalParameter)
	case g.SamplesPerPixel <= 0:
		return fmt.Errorf("samples per pixel %d: %w", g.SamplesPerPixel, ErrIllegalParameter)
	case g.BitsAllocated != 8 && g.BitsAllocated != 16:
		return fmt.Errorf("bits allocated %d: %w", g.BitsAllocated, ErrIllegalParameter)
	case g.Frames <= 0:
		return fmt.Errorf("frame count %d: %w", g.Frames, ErrIllegalParameter)
	}
	return nil
}

// Width is the native sample width implied by BitsAllocated
func (g Geometry) Width() Width {
	if g.BitsAllocated > 8 {
		return Width16
	}
	return Width8
}

// FrameSize is the native byte length of one frame
func (g Geometry) FrameSize() int {
	return g.Rows * g.Columns * g.SamplesPerPixel * (int(g.Width()) / 8)
}

// Codec converts between native buffers and one family of encapsulated syntaxes
type Codec interface {
	// Name identifies the codec in errors and logs (e.g., "rle")
	Name() string
	// Syntaxes lists the transfer syntaxes the codec reads and writes
	Syntaxes() []transfer.Syntax
	// Encode compresses every frame of src into the representation named by to
	Encode(src *Native, to Key, g Geometry) (*Encapsulated, error)
	// Decode expands the representation named by from back to native
	Decode(from Key, src *Encapsulated, g Geometry) (*Native, error)
}

// Registry is what the pixel data element transcodes through. Calls are
// synchronous and work on whole buffers.
type Registry interface {
	CanTranscode(from, to Key) bool
	Decode(from Key, src *Encapsulated, g Geometry) (*Native, error)
	Encode(src *Native, to Key, g Geometry) (*Encapsulated, error)
}

// CodecList is a Registry over an explicit set of codecs. Later registrations
// win for a syntax claimed twice.
type CodecList struct {
	bySyntax map[transfer.Syntax]Codec
}

var _ Registry = (*CodecList)(nil)

// NewCodecList builds a registry from codecs
func NewCodecList(codecs ...Codec) (*CodecList, error) {
	l := &CodecList{bySyntax: map[transfer.Syntax]Codec{}}
	for _, c := range codecs {
		if err := l.Register(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// DefaultCodecs is a registry holding the codecs implemented in this module
func DefaultCodecs() *CodecList {
	l, _ := NewCodecList(&rleCodec{})
	return l
}

// Register adds c for each of its syntaxes
func (l *CodecList) Register(c Codec) error {
	if c == nil {
		return fmt.Errorf("nil codec: %w", ErrIllegalParameter)
	}
	if l.bySyntax == nil {
		l.bySyntax = map[transfer.Syntax]Codec{}
	}
	for _, ts := range c.Syntaxes() {
		if !ts.IsEncapsulated() {
			return fmt.Errorf("codec %s claims native syntax %s: %w", c.Name(), ts, ErrIllegalParameter)
		}
		l.bySyntax[ts] = c
	}
	return nil
}

// Lookup finds the codec for an encapsulated syntax
func (l *CodecList) Lookup(ts transfer.Syntax) (Codec, bool) {
	c, ok := l.bySyntax[ts]
	return c, ok
}

func (l *CodecList) CanTranscode(from, to Key) bool {
	if !from.IsNative() {
		if _, ok := l.Lookup(from.Syntax); !ok {
			return false
		}
	}
	if !to.IsNative() {
		if _, ok := l.Lookup(to.Syntax); !ok {
			return false
		}
	}
	return true
}

func (l *CodecList) Decode(from Key, src *Encapsulated, g Geometry) (*Native, error) {
	c, ok := l.Lookup(from.Syntax)
	if !ok {
		return nil, fmt.Errorf("no codec for %s: %w", from, ErrRepresentationNotFound)
	}
	n, err := c.Decode(from, src, g)
	if err != nil {
		return nil, &TranscodeError{Codec: c.Name(), Op: "decode", Err: err}
	}
	return n, nil
}

func (l *CodecList) Encode(src *Native, to Key, g Geometry) (*Encapsulated, error) {
	c, ok := l.Lookup(to.Syntax)
	if !ok {
		return nil, fmt.Errorf("no codec for %s: %w", to, ErrRepresentationNotFound)
	}
	e, err := c.Encode(src, to, g)
	if err != nil {
		return nil, &TranscodeError{Codec: c.Name(), Op: "encode", Err: err}
	}
	return e, nil
}

// rleCodec adapts pkg/compress/rle to the Codec interface
type rleCodec struct{}

func (c *rleCodec) Name() string {
	return "rle"
}

func (c *rleCodec) Syntaxes() []transfer.Syntax {
	return []transfer.Syntax{transfer.RLELossless}
}

func layoutOf(g Geometry) rle.Layout {
	return rle.Layout{
		Pixels:         g.Rows * g.Columns,
		Samples:        g.SamplesPerPixel,
		BytesPerSample: int(g.Width()) / 8,
	}
}

func (c *rleCodec) Encode(src *Native, to Key, g Geometry) (*Encapsulated, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if src.Width != g.Width() {
		return nil, fmt.Errorf("%d bit buffer for %d bits allocated: %w", src.Width, g.BitsAllocated, ErrIllegalParameter)
	}
	size := g.FrameSize()
	if len(src.Data) < size*g.Frames {
		return nil, fmt.Errorf("buffer holds %d bytes, %d frames need %d: %w", len(src.Data), g.Frames, size*g.Frames, ErrCorruptedData)
	}
	var p RLEParameter
	if to.Param != nil {
		rp, ok := to.Param.(RLEParameter)
		if !ok {
			return nil, fmt.Errorf("%s parameter for rle: %w", to.Param.Family(), ErrIllegalParameter)
		}
		p = rp
	}
	// fragments other than the last must stay even so padding never lands inside a frame
	fragSize := int(p.FragmentSize) &^ 1

	res := &Encapsulated{Fragments: [][]byte{}}
	var pos uint32
	for f := 0; f < g.Frames; f++ {
		enc, err := rle.Encode(src.Data[f*size:(f+1)*size], layoutOf(g))
		if err != nil {
			return nil, err
		}
		if p.OffsetTable {
			res.Offsets = append(res.Offsets, pos)
		}
		for len(enc) > 0 {
			n := len(enc)
			if fragSize > 0 && n > fragSize {
				n = fragSize
			}
			res.Fragments = append(res.Fragments, enc[:n])
			pos += 8 + uint32(evenLen(n))
			enc = enc[n:]
		}
	}
	return res, nil
}

func (c *rleCodec) Decode(from Key, src *Encapsulated, g Geometry) (*Native, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	frames, err := src.Frames(g.Frames)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, g.FrameSize()*g.Frames)
	for i, f := range frames {
		raw, err := rle.Decode(f, layoutOf(g))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		data = append(data, raw...)
	}
	return &Native{Width: g.Width(), Data: data}, nil
}
