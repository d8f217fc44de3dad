package pixeldata

import (
	"encoding/binary"
	"fmt"

	"github.com/jpfielding/dcmpix/pkg/util"
)

// Width is the bit width of one native sample as stored in the buffer
type Width int

const (
	Width8  Width = 8
	Width16 Width = 16
)

// maxValueLength is the largest even length a defined length value field can carry
const maxValueLength = 0xFFFFFFFE

// Native is an unencapsulated pixel buffer. 16 bit samples are held little endian.
type Native struct {
	Width Width
	Data  []byte
}

// Len is the number of bytes in the buffer
func (n *Native) Len() int {
	return len(n.Data)
}

// Samples is the number of whole samples in the buffer
func (n *Native) Samples() int {
	return len(n.Data) / (int(n.Width) / 8)
}

// Uint16s returns a copy of the buffer as 16 bit samples
func (n *Native) Uint16s() []uint16 {
	if n.Width == Width8 {
		res := make([]uint16, len(n.Data))
		for i, b := range n.Data {
			res[i] = uint16(b)
		}
		return res
	}
	res := make([]uint16, len(n.Data)/2)
	for i := range res {
		res[i] = binary.LittleEndian.Uint16(n.Data[i*2:])
	}
	return res
}

// Swapped returns a copy with each 16 bit sample byte swapped; 8 bit data is copied as is
func (n *Native) Swapped() []byte {
	res := make([]byte, len(n.Data))
	copy(res, n.Data)
	if n.Width == Width16 {
		for i := 0; i+1 < len(res); i += 2 {
			res[i], res[i+1] = res[i+1], res[i]
		}
	}
	return res
}

func (n *Native) clone() *Native {
	data := make([]byte, len(n.Data))
	copy(data, n.Data)
	return &Native{Width: n.Width, Data: data}
}

// Encapsulated is the fragment sequence of a compressed representation.
// Offsets is the basic offset table carried by the first item; it may be empty.
type Encapsulated struct {
	Offsets   []uint32
	Fragments [][]byte
}

// sequenceDelimiterLength is the trailing (FFFE,E0DD) item header
const sequenceDelimiterLength = 8

// ValueLength is the encoded length of the items: the offset table item and
// one item per fragment. The sequence delimiter is not counted.
func (e *Encapsulated) ValueLength() uint64 {
	n := uint64(8 + 4*len(e.Offsets))
	for _, f := range e.Fragments {
		n += 8 + uint64(evenLen(len(f)))
	}
	return n
}

// Frames groups the fragments into n frames: one fragment per frame, all
// fragments for a single frame, or the groups named by the offset table
func (e *Encapsulated) Frames(n int) ([][]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("frame count %d: %w", n, ErrIllegalParameter)
	}
	if len(e.Fragments) == 0 {
		return nil, fmt.Errorf("no fragments: %w", ErrCorruptedData)
	}
	switch {
	case n == len(e.Fragments):
		return e.Fragments, nil
	case n == 1:
		var frame []byte
		for _, f := range e.Fragments {
			frame = append(frame, f...)
		}
		return [][]byte{frame}, nil
	case len(e.Offsets) != n:
		return nil, fmt.Errorf("cannot map %d fragments onto %d frames without an offset table: %w",
			len(e.Fragments), n, ErrCorruptedData)
	}

	frames := make([][]byte, n)
	frame := -1
	var pos uint64
	for _, f := range e.Fragments {
		for frame+1 < n && uint64(e.Offsets[frame+1]) <= pos {
			frame++
			if uint64(e.Offsets[frame]) != pos {
				return nil, fmt.Errorf("offset %d does not start a fragment: %w", e.Offsets[frame], ErrCorruptedData)
			}
		}
		if frame < 0 {
			return nil, fmt.Errorf("first offset is %d, expected 0: %w", e.Offsets[0], ErrCorruptedData)
		}
		frames[frame] = append(frames[frame], f...)
		pos += 8 + uint64(evenLen(len(f)))
	}
	if frame != n-1 {
		return nil, fmt.Errorf("offset table names %d frames, fragments cover %d: %w", n, frame+1, ErrCorruptedData)
	}
	for i, f := range frames {
		if len(f) == 0 {
			return nil, fmt.Errorf("frame %d has no fragments: %w", i, ErrCorruptedData)
		}
	}
	return frames, nil
}

func (e *Encapsulated) clone() *Encapsulated {
	res := &Encapsulated{
		Fragments: make([][]byte, len(e.Fragments)),
	}
	if e.Offsets != nil {
		res.Offsets = append([]uint32{}, e.Offsets...)
	}
	for i, f := range e.Fragments {
		res.Fragments[i] = append([]byte{}, f...)
	}
	return res
}

// Entry owns one encoded form of the pixel data: either a native buffer or an
// encapsulated fragment sequence, tagged with its key. Slices reachable from
// an entry belong to its store and must not be modified by callers.
type Entry struct {
	key    Key
	native *Native
	encaps *Encapsulated
}

// NewNative builds a native entry owning a copy of buf
func NewNative(width Width, buf []byte) (*Entry, error) {
	if width != Width8 && width != Width16 {
		return nil, fmt.Errorf("sample width %d: %w", width, ErrIllegalParameter)
	}
	if uint64(len(buf)) > maxValueLength {
		return nil, fmt.Errorf("native buffer of %d bytes: %w", len(buf), ErrMemoryExhausted)
	}
	n := &Native{Width: width, Data: make([]byte, len(buf))}
	copy(n.Data, buf)
	return &Entry{key: NativeKey(), native: n}, nil
}

// NewNativeUint16 builds a 16 bit native entry from samples
func NewNativeUint16(words []uint16) (*Entry, error) {
	if uint64(len(words)) > maxValueLength/2 {
		return nil, fmt.Errorf("native buffer of %d words: %w", len(words), ErrMemoryExhausted)
	}
	data := make([]byte, len(words)*2)
	for i, w := range words {
		binary.LittleEndian.PutUint16(data[i*2:], w)
	}
	return &Entry{key: NativeKey(), native: &Native{Width: Width16, Data: data}}, nil
}

// NewEncapsulated builds an encapsulated entry owning a copy of frags
func NewEncapsulated(key Key, frags *Encapsulated) (*Entry, error) {
	if frags == nil {
		return nil, fmt.Errorf("nil fragments: %w", ErrIllegalParameter)
	}
	if key.IsNative() {
		return nil, fmt.Errorf("%s is not an encapsulated syntax: %w", key.Syntax, ErrIllegalParameter)
	}
	if key.Param != nil && key.Param.Family() != key.Family() {
		return nil, fmt.Errorf("%s parameter for %s: %w", key.Param.Family(), key.Syntax.Name(), ErrIllegalParameter)
	}
	if frags.ValueLength()+sequenceDelimiterLength > maxValueLength {
		return nil, fmt.Errorf("fragment sequence of %d bytes: %w", frags.ValueLength(), ErrMemoryExhausted)
	}
	return &Entry{key: key, encaps: frags.clone()}, nil
}

// Key identifies the representation
func (e *Entry) Key() Key {
	return e.key
}

// IsNative returns true for unencapsulated entries
func (e *Entry) IsNative() bool {
	return e.native != nil
}

// Native returns the native payload, nil for encapsulated entries
func (e *Entry) Native() *Native {
	return e.native
}

// Encapsulated returns the fragment payload, nil for native entries
func (e *Entry) Encapsulated() *Encapsulated {
	return e.encaps
}

// ByteLength is the native value length rounded up to even. It is 0 for
// encapsulated entries, whose length depends on the encoding rules.
func (e *Entry) ByteLength() uint32 {
	if e.native == nil {
		return 0
	}
	return uint32(evenLen(len(e.native.Data)))
}

// Fingerprint is a content hash of the payload
func (e *Entry) Fingerprint() string {
	if e.native != nil {
		return util.Fingerprint(e.native.Data)
	}
	table := make([]byte, 4*len(e.encaps.Offsets))
	for i, off := range e.encaps.Offsets {
		binary.LittleEndian.PutUint32(table[i*4:], off)
	}
	return util.Fingerprint(append([][]byte{table}, e.encaps.Fragments...)...)
}

func (e *Entry) clone() *Entry {
	res := &Entry{key: e.key}
	if e.native != nil {
		res.native = e.native.clone()
	}
	if e.encaps != nil {
		res.encaps = e.encaps.clone()
	}
	return res
}

func evenLen(n int) int {
	return n + n&1
}
