package pixeldata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/dcmpix/pkg/dcm/tag"
	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
	"github.com/jpfielding/dcmpix/pkg/dcm/vr"
)

// transferState is the bookkeeping of a chunked read or write
type transferState struct {
	ts      transfer.Syntax
	reader  *valueReader
	writing bool
	done    bool
	handle  Handle
	pieces  [][]byte
	piece   int
	off     int
}

// valueReader pulls a value field off a stream one piece at a time: the
// whole value for a defined length, otherwise item headers and item bodies up
// to and including the sequence delimiter. Every byte consumed is kept in raw,
// which grows with the bytes actually received rather than the declared lengths.
type valueReader struct {
	length uint32
	order  binary.ByteOrder
	raw    bytes.Buffer
	want   int
	header bool
	done   bool
}

func newValueReader(length uint32, order binary.ByteOrder) *valueReader {
	v := &valueReader{length: length, order: order}
	if length == tag.UndefinedLength {
		v.want = 8
		v.header = true
	} else {
		v.want = int(length)
		v.done = length == 0
	}
	return v
}

// step reads at most max bytes of the current piece (max <= 0 reads it whole)
// and reports whether the value is complete
func (v *valueReader) step(r io.Reader, max int) (bool, error) {
	if v.done {
		return true, nil
	}
	n := v.want
	if max > 0 && n > max {
		n = max
	}
	got, err := io.CopyN(&v.raw, r, int64(n))
	v.want -= int(got)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return false, streamErr("read pixel data", err)
	}
	if v.want > 0 {
		return false, nil
	}
	if v.length != tag.UndefinedLength {
		v.done = true
		return true, nil
	}
	if !v.header {
		v.want = 8
		v.header = true
		return false, nil
	}

	raw := v.raw.Bytes()
	hdr := raw[len(raw)-8:]
	t := tag.Parse(hdr, v.order)
	l := v.order.Uint32(hdr[4:])
	switch {
	case t == tag.SequenceDelimitation:
		v.done = true
		return true, nil
	case t != tag.Item:
		return false, fmt.Errorf("unexpected %s in pixel data items: %w", t, ErrCorruptedData)
	case l == tag.UndefinedLength:
		return false, fmt.Errorf("item of undefined length in pixel data: %w", ErrCorruptedData)
	case l > 0:
		v.want = int(l)
		v.header = false
	default:
		v.want = 8
	}
	return false, nil
}

// parseItems splits an item sequence into the basic offset table and fragments
func parseItems(raw []byte, order binary.ByteOrder) (*Encapsulated, error) {
	res := &Encapsulated{Offsets: []uint32{}, Fragments: [][]byte{}}
	table := true
	pos := 0
	for {
		if len(raw)-pos < 8 {
			return nil, fmt.Errorf("truncated item header at offset %d: %w", pos, ErrCorruptedData)
		}
		t := tag.Parse(raw[pos:], order)
		l := order.Uint32(raw[pos+4:])
		pos += 8
		switch t {
		case tag.SequenceDelimitation:
			if table {
				return nil, fmt.Errorf("missing basic offset table item: %w", ErrCorruptedData)
			}
			return res, nil
		case tag.Item:
		default:
			return nil, fmt.Errorf("unexpected %s in pixel data items: %w", t, ErrCorruptedData)
		}
		if l == tag.UndefinedLength || uint64(l) > uint64(len(raw)-pos) {
			return nil, fmt.Errorf("item length %d at offset %d overruns the value: %w", l, pos-8, ErrCorruptedData)
		}
		body := raw[pos : pos+int(l)]
		pos += int(l)
		if !table {
			res.Fragments = append(res.Fragments, body)
			continue
		}
		if l%4 != 0 {
			return nil, fmt.Errorf("basic offset table of %d bytes: %w", l, ErrCorruptedData)
		}
		for i := 0; i < len(body); i += 4 {
			res.Offsets = append(res.Offsets, order.Uint32(body[i:]))
		}
		table = false
	}
}

// readWidth decides the sample width of a native value being read
func (e *Element) readWidth() Width {
	switch {
	case e.geometry.BitsAllocated > 8:
		return Width16
	case e.geometry.BitsAllocated > 0:
		return Width8
	case e.vr == vr.OW:
		return Width16
	default:
		return Width8
	}
}

// commit turns a fully read value field into the original representation
func (e *Element) commit(raw []byte, ts transfer.Syntax) error {
	order := ts.Describe().ByteOrder()
	if e.length == tag.UndefinedLength {
		if !ts.IsEncapsulated() {
			return fmt.Errorf("undefined length value in native syntax %s: %w", ts.Name(), ErrCorruptedData)
		}
		frags, err := parseItems(raw, order)
		if err != nil {
			return err
		}
		ent, err := NewEncapsulated(Key{Syntax: ts}, frags)
		if err != nil {
			return err
		}
		e.ingest(ent)
		return nil
	}

	width := e.readWidth()
	if width == Width16 && len(raw)%2 != 0 {
		return fmt.Errorf("odd length %d for 16 bit samples: %w", len(raw), ErrCorruptedData)
	}
	n := &Native{Width: width, Data: raw}
	if order == binary.BigEndian {
		raw = n.Swapped()
	}
	ent, err := NewNative(width, raw)
	if err != nil {
		return err
	}
	e.ingest(ent)
	return nil
}

// Read replaces every representation with the value field read from r, encoded
// in ts. The declared length decides between a native value and an item
// sequence. Nothing is committed until the whole value is read; on failure the
// element is left empty.
func (e *Element) Read(r io.Reader, ts transfer.Syntax) error {
	if err := e.mutable("read"); err != nil {
		return err
	}
	v := newValueReader(e.length, ts.Describe().ByteOrder())
	for {
		done, err := v.step(r, 0)
		if err != nil {
			e.store.Clear()
			return e.status(err)
		}
		if done {
			break
		}
	}
	if err := e.commit(v.raw.Bytes(), ts); err != nil {
		e.store.Clear()
		return e.status(err)
	}
	return e.status(nil)
}

// ReadElement parses an element header encoded in ts and reads its value
func ReadElement(r io.Reader, ts transfer.Syntax, opts ...Option) (*Element, error) {
	d := ts.Describe()
	order := d.ByteOrder()
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return nil, streamErr("read element tag", err)
	}
	t := tag.Parse(buf, order)

	declared := vr.OW
	var length uint32
	if d.ExplicitVR {
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, streamErr("read element vr", err)
		}
		declared = vr.FromBytes(buf[:2])
		if declared.IsLongLength() {
			if _, err := io.ReadFull(r, buf[:4]); err != nil {
				return nil, streamErr("read element length", err)
			}
			length = order.Uint32(buf)
		} else {
			// short form: the length is the two bytes after the VR
			length = uint32(order.Uint16(buf[2:4]))
		}
		if !declared.IsPixel() {
			return nil, fmt.Errorf("%s is not a pixel data VR: %w", declared, ErrCorruptedData)
		}
	} else {
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, streamErr("read element length", err)
		}
		length = order.Uint32(buf)
	}

	e := New(t, length, append([]Option{WithVR(declared)}, opts...)...)
	if err := e.Read(r, ts); err != nil {
		return e, err
	}
	return e, nil
}

// entryFor selects the representation written for ts: for an encapsulated
// syntax the current one when it matches, else the original, else the first
func (e *Element) entryFor(ts transfer.Syntax) (Handle, *Entry, error) {
	if !ts.IsEncapsulated() {
		h, ok := e.store.FindConforming(NativeKey())
		if !ok {
			return Handle{}, nil, fmt.Errorf("no native representation: %w", ErrRepresentationNotFound)
		}
		ent, err := e.store.Entry(h)
		return h, ent, err
	}
	var candidates []Handle
	if h, ok := e.store.Current(); ok {
		candidates = append(candidates, h)
	}
	if h, ok := e.store.Original(); ok {
		candidates = append(candidates, h)
	}
	for h := range e.store.All() {
		candidates = append(candidates, h)
	}
	for _, h := range candidates {
		ent, _ := e.store.Entry(h)
		if ent.key.Syntax == ts {
			return h, ent, nil
		}
	}
	return Handle{}, nil, fmt.Errorf("no %s representation: %w", ts.Name(), ErrRepresentationNotFound)
}

// valueLength is the encoded value length of ent
func valueLength(ent *Entry) uint64 {
	if ent.encaps != nil {
		return ent.encaps.ValueLength()
	}
	return uint64(ent.ByteLength())
}

func headerLength(ts transfer.Syntax) uint32 {
	if ts.IsExplicitVR() {
		return 12
	}
	return 8
}

// GetLength is the value length written for ts; for encapsulated data that is
// the items without the sequence delimiter. When no representation can be
// written it returns 0 and records the error as the element condition.
func (e *Element) GetLength(ts transfer.Syntax) (uint32, error) {
	_, ent, err := e.entryFor(ts)
	if err != nil {
		return 0, e.status(err)
	}
	return uint32(valueLength(ent)), e.status(nil)
}

// CalcElementLength is the encoded length of header, value and, for
// encapsulated data, the sequence delimiter
func (e *Element) CalcElementLength(ts transfer.Syntax) (uint32, error) {
	n, err := e.GetLength(ts)
	if err != nil {
		return 0, err
	}
	n += headerLength(ts)
	if ts.IsEncapsulated() {
		n += sequenceDelimiterLength
	}
	return n, nil
}

// encode lays out header and value of ent for ts without copying payloads
func (e *Element) encode(ent *Entry, ts transfer.Syntax) [][]byte {
	order := ts.Describe().ByteOrder()
	hdr := make([]byte, headerLength(ts))
	e.tag.Put(hdr, order)
	length := tag.UndefinedLength
	v := vr.OB
	if ent.native != nil {
		length = ent.ByteLength()
		v = vr.ForWidth(int(ent.native.Width))
	}
	if ts.IsExplicitVR() {
		copy(hdr[4:6], v)
		order.PutUint32(hdr[8:], length)
	} else {
		order.PutUint32(hdr[4:], length)
	}
	pieces := [][]byte{hdr}

	if ent.native != nil {
		data := ent.native.Data
		if order == binary.BigEndian {
			data = ent.native.Swapped()
		}
		pieces = append(pieces, data)
		if len(data)%2 != 0 {
			pieces = append(pieces, []byte{0})
		}
		return pieces
	}

	table := make([]byte, 8+4*len(ent.encaps.Offsets))
	itemHeader(table, tag.Item, uint32(4*len(ent.encaps.Offsets)), order)
	for i, off := range ent.encaps.Offsets {
		order.PutUint32(table[8+i*4:], off)
	}
	pieces = append(pieces, table)
	for _, f := range ent.encaps.Fragments {
		ih := make([]byte, 8)
		itemHeader(ih, tag.Item, uint32(evenLen(len(f))), order)
		pieces = append(pieces, ih, f)
		if len(f)%2 != 0 {
			pieces = append(pieces, []byte{0})
		}
	}
	delim := make([]byte, 8)
	itemHeader(delim, tag.SequenceDelimitation, 0, order)
	return append(pieces, delim)
}

func itemHeader(b []byte, t tag.Tag, length uint32, order binary.ByteOrder) {
	t.Put(b, order)
	order.PutUint32(b[4:], length)
}

// Write encodes the element for ts. It never transcodes: a conforming
// representation must already exist. On success it becomes current.
func (e *Element) Write(w io.Writer, ts transfer.Syntax) error {
	if err := e.mutable("write"); err != nil {
		return err
	}
	h, ent, err := e.entryFor(ts)
	if err != nil {
		return e.status(err)
	}
	for _, p := range e.encode(ent, ts) {
		if len(p) == 0 {
			continue
		}
		if _, err := w.Write(p); err != nil {
			return e.status(streamErr("write pixel data", err))
		}
	}
	_ = e.store.SetCurrent(h)
	e.updateVR()
	return e.status(nil)
}

// TransferInit starts a chunked read or write
func (e *Element) TransferInit() error {
	if e.xfer != nil {
		return e.status(fmt.Errorf("transfer already in progress: %w", ErrIllegalCall))
	}
	e.xfer = &transferState{}
	return e.status(nil)
}

// TransferEnd finishes a chunked transfer, dropping any partially read value
func (e *Element) TransferEnd() {
	e.xfer = nil
}

// ReadChunk reads the next bounded piece of the value field. The value is
// committed as the original representation when the last piece arrives.
func (e *Element) ReadChunk(r io.Reader, ts transfer.Syntax) (bool, error) {
	x := e.xfer
	switch {
	case x == nil:
		return false, e.status(fmt.Errorf("read chunk outside a transfer: %w", ErrIllegalCall))
	case x.writing:
		return false, e.status(fmt.Errorf("read chunk during a chunked write: %w", ErrIllegalCall))
	case x.done:
		return true, nil
	case x.reader == nil:
		x.ts = ts
		x.reader = newValueReader(e.length, ts.Describe().ByteOrder())
	case x.ts != ts:
		return false, e.status(fmt.Errorf("read chunk switched syntax to %s: %w", ts.Name(), ErrIllegalParameter))
	}
	done, err := x.reader.step(r, e.chunk)
	if err != nil {
		e.store.Clear()
		return false, e.status(err)
	}
	if !done {
		return false, e.status(nil)
	}
	if err := e.commit(x.reader.raw.Bytes(), ts); err != nil {
		e.store.Clear()
		return false, e.status(err)
	}
	x.reader = nil
	x.done = true
	return true, e.status(nil)
}

// WriteChunk writes the next bounded piece of the encoded element
func (e *Element) WriteChunk(w io.Writer, ts transfer.Syntax) (bool, error) {
	x := e.xfer
	switch {
	case x == nil:
		return false, e.status(fmt.Errorf("write chunk outside a transfer: %w", ErrIllegalCall))
	case x.reader != nil || (x.done && !x.writing):
		return false, e.status(fmt.Errorf("write chunk during a chunked read: %w", ErrIllegalCall))
	case x.done:
		return true, nil
	case !x.writing:
		h, ent, err := e.entryFor(ts)
		if err != nil {
			return false, e.status(err)
		}
		x.ts = ts
		x.writing = true
		x.handle = h
		x.pieces = e.encode(ent, ts)
	case x.ts != ts:
		return false, e.status(fmt.Errorf("write chunk switched syntax to %s: %w", ts.Name(), ErrIllegalParameter))
	}

	budget := e.chunk
	for x.piece < len(x.pieces) && budget > 0 {
		p := x.pieces[x.piece][x.off:]
		n := min(len(p), budget)
		if n > 0 {
			if _, err := w.Write(p[:n]); err != nil {
				return false, e.status(streamErr("write pixel data", err))
			}
		}
		x.off += n
		budget -= n
		if x.off == len(x.pieces[x.piece]) {
			x.piece++
			x.off = 0
		}
	}
	if x.piece < len(x.pieces) {
		return false, e.status(nil)
	}
	_ = e.store.SetCurrent(x.handle)
	e.updateVR()
	x.pieces = nil
	x.done = true
	return true, e.status(nil)
}
