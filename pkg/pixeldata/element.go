// Package pixeldata manages the representations of a DICOM Pixel Data element:
// the native buffer and any number of encapsulated (compressed) encodings of
// the same image, with one original and one current representation.
package pixeldata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpfielding/dcmpix/pkg/dcm/tag"
	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
	"github.com/jpfielding/dcmpix/pkg/dcm/vr"
)

// Ident discriminates element kinds in an enclosing data model
type Ident int

const (
	IdentUnknown Ident = iota
	IdentPixelData
)

func (i Ident) String() string {
	if i == IdentPixelData {
		return "PixelData"
	}
	return "Unknown"
}

// defaultChunkSize bounds the bytes moved by one ReadChunk/WriteChunk call
const defaultChunkSize = 64 * 1024

// Element is a Pixel Data element. It is not safe for concurrent use.
type Element struct {
	tag      tag.Tag
	vr       vr.VR
	length   uint32
	store    *Store
	codecs   Registry
	geometry Geometry
	log      *slog.Logger
	chunk    int
	err      error
	xfer     *transferState
}

// Option configures an Element
type Option func(*Element)

// WithVR sets the declared VR used until a representation is stored
func WithVR(v vr.VR) Option {
	return func(e *Element) {
		e.vr = v
	}
}

// WithCodecs sets the registry used by ChooseRepresentation
func WithCodecs(r Registry) Option {
	return func(e *Element) {
		e.codecs = r
	}
}

// WithGeometry describes the image held by the element
func WithGeometry(g Geometry) Option {
	return func(e *Element) {
		e.geometry = g
	}
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(e *Element) {
		e.log = l
	}
}

// WithChunkSize bounds the bytes moved per ReadChunk/WriteChunk call
func WithChunkSize(n int) Option {
	return func(e *Element) {
		e.chunk = n
	}
}

// New creates an empty element for t with the declared value length
func New(t tag.Tag, length uint32, opts ...Option) *Element {
	e := &Element{
		tag:    t,
		vr:     vr.OW,
		length: length,
		store:  &Store{},
		log:    slog.Default(),
		chunk:  defaultChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.chunk <= 0 {
		e.chunk = defaultChunkSize
	}
	return e
}

// Ident returns IdentPixelData
func (e *Element) Ident() Ident {
	return IdentPixelData
}

func (e *Element) Tag() tag.Tag {
	return e.tag
}

// Length is the declared value length from the element header
func (e *Element) Length() uint32 {
	return e.length
}

// VR is the declared value representation: OB for encapsulated data, OB/OW by
// sample width for native data
func (e *Element) VR() vr.VR {
	return e.vr
}

// Geometry describes the image held by the element
func (e *Element) Geometry() Geometry {
	return e.geometry
}

// SetGeometry replaces the image description used for transcoding
func (e *Element) SetGeometry(g Geometry) {
	e.geometry = g
}

// Err is the condition left by the last operation
func (e *Element) Err() error {
	return e.err
}

// status records err as the element condition and returns it
func (e *Element) status(err error) error {
	e.err = err
	return err
}

// mutable guards store mutation while a chunked transfer is in progress
func (e *Element) mutable(op string) error {
	if e.xfer != nil {
		return e.status(fmt.Errorf("%s during chunked transfer: %w", op, ErrIllegalCall))
	}
	return nil
}

// updateVR keeps the declared VR in line with the current representation
func (e *Element) updateVR() {
	h, ok := e.store.Current()
	if !ok {
		return
	}
	ent, _ := e.store.Entry(h)
	if ent.IsNative() {
		e.vr = vr.ForWidth(int(ent.native.Width))
	} else {
		e.vr = vr.OB
	}
}

func keyOf(ts transfer.Syntax, param Parameter) (Key, error) {
	if !ts.IsEncapsulated() {
		return NativeKey(), nil
	}
	if param != nil && param.Family() != FamilyOf(ts) {
		return Key{}, fmt.Errorf("%s parameter for %s: %w", param.Family(), ts.Name(), ErrIllegalParameter)
	}
	return Key{Syntax: ts, Param: param}, nil
}

// PutUint8Array replaces every representation with an 8 bit native buffer
func (e *Element) PutUint8Array(buf []byte) error {
	if err := e.mutable("put uint8 array"); err != nil {
		return err
	}
	ent, err := NewNative(Width8, buf)
	if err != nil {
		return e.status(err)
	}
	e.ingest(ent)
	return e.status(nil)
}

// PutUint16Array replaces every representation with a 16 bit native buffer
func (e *Element) PutUint16Array(words []uint16) error {
	if err := e.mutable("put uint16 array"); err != nil {
		return err
	}
	ent, err := NewNativeUint16(words)
	if err != nil {
		return e.status(err)
	}
	e.ingest(ent)
	return e.status(nil)
}

// PutOriginalRepresentation replaces every representation with the
// encapsulated fragments frags
func (e *Element) PutOriginalRepresentation(ts transfer.Syntax, param Parameter, frags *Encapsulated) error {
	if err := e.mutable("put original representation"); err != nil {
		return err
	}
	if !ts.IsEncapsulated() {
		return e.status(fmt.Errorf("%s is not an encapsulated syntax: %w", ts.Name(), ErrIllegalParameter))
	}
	key, err := keyOf(ts, param)
	if err != nil {
		return e.status(err)
	}
	ent, err := NewEncapsulated(key, frags)
	if err != nil {
		return e.status(err)
	}
	e.ingest(ent)
	return e.status(nil)
}

func (e *Element) ingest(ent *Entry) {
	e.store.SetOriginal(ent)
	e.updateVR()
	if e.log.Enabled(context.Background(), slog.LevelDebug) {
		e.log.Debug("ingested pixel data",
			slog.String("key", ent.key.String()),
			slog.String("fingerprint", ent.Fingerprint()))
	}
}

// HasRepresentation returns true when a conforming representation is stored
func (e *Element) HasRepresentation(ts transfer.Syntax, param Parameter) bool {
	key, err := keyOf(ts, param)
	if err != nil {
		return false
	}
	_, ok := e.store.FindConforming(key)
	return ok
}

// CanChooseRepresentation returns true when ChooseRepresentation would find or
// produce a conforming representation, barring codec failures
func (e *Element) CanChooseRepresentation(ts transfer.Syntax, param Parameter) bool {
	key, err := keyOf(ts, param)
	if err != nil {
		return false
	}
	if _, ok := e.store.FindConforming(key); ok {
		return true
	}
	if e.codecs == nil {
		return false
	}
	for _, src := range e.sources() {
		if e.codecs.CanTranscode(src.key, key) {
			return true
		}
	}
	return false
}

// ChooseRepresentation makes a representation conforming to ts/param current,
// transcoding from the original or any other stored representation when none
// exists yet. On failure the element is left unchanged.
func (e *Element) ChooseRepresentation(ts transfer.Syntax, param Parameter) error {
	if err := e.mutable("choose representation"); err != nil {
		return err
	}
	target, err := keyOf(ts, param)
	if err != nil {
		return e.status(err)
	}
	if h, ok := e.store.FindConforming(target); ok {
		_ = e.store.SetCurrent(h)
		e.updateVR()
		return e.status(nil)
	}
	if e.store.Len() == 0 {
		return e.status(fmt.Errorf("choose %s: element is empty: %w", target, ErrRepresentationNotFound))
	}
	if e.codecs == nil {
		return e.status(fmt.Errorf("choose %s: no codec registry: %w", target, ErrIllegalParameter))
	}
	for _, src := range e.sources() {
		if !e.codecs.CanTranscode(src.key, target) {
			continue
		}
		ent, err := e.transcode(src, target)
		if err != nil {
			e.log.Warn("transcode failed",
				slog.String("from", src.key.String()),
				slog.String("to", target.String()),
				slog.Any("error", err))
			return e.status(err)
		}
		h := e.store.InsertOrReplace(ent)
		_ = e.store.SetCurrent(h)
		e.updateVR()
		e.log.Debug("transcoded pixel data",
			slog.String("from", src.key.String()),
			slog.String("to", target.String()),
			slog.Bool("native", ent.IsNative()))
		return e.status(nil)
	}
	return e.status(fmt.Errorf("no codec path to %s: %w", target, ErrRepresentationNotFound))
}

// sources lists transcode candidates: the original first, then the rest in store order
func (e *Element) sources() []*Entry {
	var res []*Entry
	orig, hasOrig := e.store.Original()
	if hasOrig {
		ent, _ := e.store.Entry(orig)
		res = append(res, ent)
	}
	for h, ent := range e.store.All() {
		if !hasOrig || h != orig {
			res = append(res, ent)
		}
	}
	return res
}

// transcode builds a new entry for target from src without touching the store
func (e *Element) transcode(src *Entry, target Key) (*Entry, error) {
	native := src.native
	if native == nil {
		n, err := e.codecs.Decode(src.key, src.encaps, e.geometry)
		if err != nil {
			return nil, err
		}
		native = n
	}
	if target.IsNative() {
		return NewNative(native.Width, native.Data)
	}
	enc, err := e.codecs.Encode(native, target, e.geometry)
	if err != nil {
		return nil, err
	}
	return NewEncapsulated(target, enc)
}

// RemoveRepresentation destroys the representation conforming to ts/param. The
// original cannot be removed this way.
func (e *Element) RemoveRepresentation(ts transfer.Syntax, param Parameter) error {
	if err := e.mutable("remove representation"); err != nil {
		return err
	}
	key, err := keyOf(ts, param)
	if err != nil {
		return e.status(err)
	}
	if err := e.store.RemoveConforming(key); err != nil {
		return e.status(err)
	}
	e.updateVR()
	return e.status(nil)
}

// RemoveAllButOriginalRepresentations keeps only the original, which also becomes current
func (e *Element) RemoveAllButOriginalRepresentations() error {
	if err := e.mutable("remove all but original"); err != nil {
		return err
	}
	h, ok := e.store.Original()
	if !ok {
		return e.status(fmt.Errorf("remove all but original: element is empty: %w", ErrIllegalCall))
	}
	if err := e.store.RetainOnly(h); err != nil {
		return e.status(err)
	}
	e.updateVR()
	return e.status(nil)
}

// RemoveAllButCurrentRepresentations keeps only the current representation and
// promotes it to original
func (e *Element) RemoveAllButCurrentRepresentations() error {
	if err := e.mutable("remove all but current"); err != nil {
		return err
	}
	h, ok := e.store.Current()
	if !ok {
		return e.status(fmt.Errorf("remove all but current: element is empty: %w", ErrIllegalCall))
	}
	return e.status(e.store.RetainOnly(h))
}

// RemoveOriginalRepresentation promotes the representation conforming to
// ts/param to original. The old original is destroyed unless it is current.
func (e *Element) RemoveOriginalRepresentation(ts transfer.Syntax, param Parameter) error {
	if err := e.mutable("remove original representation"); err != nil {
		return err
	}
	key, err := keyOf(ts, param)
	if err != nil {
		return e.status(err)
	}
	return e.status(e.store.ReplaceOriginal(key))
}

// OriginalRepresentation returns the key of the original representation
func (e *Element) OriginalRepresentation() (Key, error) {
	h, ok := e.store.Original()
	if !ok {
		return Key{}, e.status(fmt.Errorf("original representation: element is empty: %w", ErrIllegalCall))
	}
	ent, _ := e.store.Entry(h)
	return ent.key, e.status(nil)
}

// CurrentRepresentation returns the key of the current representation
func (e *Element) CurrentRepresentation() (Key, error) {
	h, ok := e.store.Current()
	if !ok {
		return Key{}, e.status(fmt.Errorf("current representation: element is empty: %w", ErrIllegalCall))
	}
	ent, _ := e.store.Entry(h)
	return ent.key, e.status(nil)
}

// nativeEntry returns the stored native representation
func (e *Element) nativeEntry() (*Entry, error) {
	if e.store.Len() == 0 {
		return nil, fmt.Errorf("native representation: element is empty: %w", ErrIllegalCall)
	}
	h, ok := e.store.FindConforming(NativeKey())
	if !ok {
		return nil, fmt.Errorf("no native representation: %w", ErrRepresentationNotFound)
	}
	return e.store.Entry(h)
}

// Uint8Array returns a copy of the native buffer; 16 bit samples come back little endian
func (e *Element) Uint8Array() ([]byte, error) {
	ent, err := e.nativeEntry()
	if err != nil {
		return nil, e.status(err)
	}
	return ent.native.clone().Data, e.status(nil)
}

// Uint16Array returns a copy of the 16 bit native buffer
func (e *Element) Uint16Array() ([]uint16, error) {
	ent, err := e.nativeEntry()
	if err != nil {
		return nil, e.status(err)
	}
	if ent.native.Width != Width16 {
		return nil, e.status(fmt.Errorf("native buffer holds %d bit samples: %w", ent.native.Width, ErrIllegalCall))
	}
	return ent.native.Uint16s(), e.status(nil)
}

// EncapsulatedRepresentation returns a copy of the fragments conforming to ts/param
func (e *Element) EncapsulatedRepresentation(ts transfer.Syntax, param Parameter) (*Encapsulated, error) {
	if !ts.IsEncapsulated() {
		return nil, e.status(fmt.Errorf("%s is not an encapsulated syntax: %w", ts.Name(), ErrIllegalParameter))
	}
	key, err := keyOf(ts, param)
	if err != nil {
		return nil, e.status(err)
	}
	h, ok := e.store.FindConforming(key)
	if !ok {
		return nil, e.status(fmt.Errorf("%s: %w", key, ErrRepresentationNotFound))
	}
	ent, _ := e.store.Entry(h)
	return ent.encaps.clone(), e.status(nil)
}

// Representation summarizes one stored representation
type Representation struct {
	Key         Key
	Original    bool
	Current     bool
	Length      uint64 // encoded value length
	Fragments   int
	Fingerprint string
}

// Representations lists the stored representations in store order
func (e *Element) Representations() []Representation {
	orig, _ := e.store.Original()
	cur, _ := e.store.Current()
	var res []Representation
	for h, ent := range e.store.All() {
		r := Representation{
			Key:         ent.key,
			Original:    h == orig,
			Current:     h == cur,
			Length:      uint64(ent.ByteLength()),
			Fingerprint: ent.Fingerprint(),
		}
		if ent.encaps != nil {
			r.Length = ent.encaps.ValueLength()
			r.Fragments = len(ent.encaps.Fragments)
		}
		res = append(res, r)
	}
	return res
}

// Clone deep copies the element and its representations. A chunked transfer
// in progress is not carried over.
func (e *Element) Clone() *Element {
	res := *e
	res.store = e.store.Clone()
	res.xfer = nil
	return &res
}

// Clear destroys every representation
func (e *Element) Clear() error {
	if err := e.mutable("clear"); err != nil {
		return err
	}
	e.store.Clear()
	return e.status(nil)
}
