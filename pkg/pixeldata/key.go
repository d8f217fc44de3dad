package pixeldata

import (
	"fmt"

	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
)

// Family groups the encapsulated transfer syntaxes that share a codec and a
// parameter type
type Family int

const (
	FamilyNative Family = iota
	FamilyRLE
	FamilyJPEGLS
	FamilyJPEGLossless
	FamilyJPEG2000
	FamilyJPEGBaseline
	FamilyOther
)

func (f Family) String() string {
	switch f {
	case FamilyNative:
		return "native"
	case FamilyRLE:
		return "rle"
	case FamilyJPEGLS:
		return "jpeg-ls"
	case FamilyJPEGLossless:
		return "jpeg-lossless"
	case FamilyJPEG2000:
		return "jpeg-2000"
	case FamilyJPEGBaseline:
		return "jpeg-baseline"
	default:
		return "other"
	}
}

// FamilyOf returns the codec family of a transfer syntax
func FamilyOf(ts transfer.Syntax) Family {
	switch {
	case !ts.IsEncapsulated():
		return FamilyNative
	case ts == transfer.RLELossless:
		return FamilyRLE
	case ts.IsJPEGLS():
		return FamilyJPEGLS
	case ts.IsJPEGLossless():
		return FamilyJPEGLossless
	case ts.IsJPEG2000():
		return FamilyJPEG2000
	case ts.IsJPEGBaseline():
		return FamilyJPEGBaseline
	default:
		return FamilyOther
	}
}

// Parameter is codec specific configuration attached to a representation.
// The set of variants is closed: RLEParameter, JPEGLSParameter,
// JPEGLosslessParameter, JPEG2000Parameter and JPEGBaselineParameter.
type Parameter interface {
	Family() Family
	Equal(other Parameter) bool
	String() string
	isParameter()
}

// RLEParameter configures the RLE Lossless codec
type RLEParameter struct {
	// FragmentSize caps each fragment in bytes (rounded down to even), 0 = one fragment per frame
	FragmentSize uint32
	// OffsetTable fills the basic offset table
	OffsetTable bool
}

func (RLEParameter) Family() Family { return FamilyRLE }
func (RLEParameter) isParameter() {}

func (p RLEParameter) Equal(other Parameter) bool {
	o, ok := other.(RLEParameter)
	return ok && o == p
}

func (p RLEParameter) String() string {
	return fmt.Sprintf("rle(fragment=%d,bot=%t)", p.FragmentSize, p.OffsetTable)
}

// JPEGLSParameter configures a JPEG-LS codec
type JPEGLSParameter struct {
	NearLossless int // NEAR, 0 = lossless
}

func (JPEGLSParameter) Family() Family { return FamilyJPEGLS }
func (JPEGLSParameter) isParameter() {}

func (p JPEGLSParameter) Equal(other Parameter) bool {
	o, ok := other.(JPEGLSParameter)
	return ok && o == p
}

func (p JPEGLSParameter) String() string {
	return fmt.Sprintf("jpeg-ls(near=%d)", p.NearLossless)
}

// JPEGLosslessParameter configures a JPEG Lossless (process 14) codec
type JPEGLosslessParameter struct {
	Predictor      int // selection value 1-7
	PointTransform int
}

func (JPEGLosslessParameter) Family() Family { return FamilyJPEGLossless }
func (JPEGLosslessParameter) isParameter() {}

func (p JPEGLosslessParameter) Equal(other Parameter) bool {
	o, ok := other.(JPEGLosslessParameter)
	return ok && o == p
}

func (p JPEGLosslessParameter) String() string {
	return fmt.Sprintf("jpeg-lossless(sv=%d,pt=%d)", p.Predictor, p.PointTransform)
}

// JPEG2000Parameter configures a JPEG 2000 codec
type JPEG2000Parameter struct {
	Lossless bool
	Rate     int // target compression ratio when lossy
}

func (JPEG2000Parameter) Family() Family { return FamilyJPEG2000 }
func (JPEG2000Parameter) isParameter() {}

func (p JPEG2000Parameter) Equal(other Parameter) bool {
	o, ok := other.(JPEG2000Parameter)
	return ok && o == p
}

func (p JPEG2000Parameter) String() string {
	return fmt.Sprintf("jpeg-2000(lossless=%t,rate=%d)", p.Lossless, p.Rate)
}

// JPEGBaselineParameter configures a lossy DCT JPEG codec
type JPEGBaselineParameter struct {
	Quality int // 1-100
}

func (JPEGBaselineParameter) Family() Family { return FamilyJPEGBaseline }
func (JPEGBaselineParameter) isParameter() {}

func (p JPEGBaselineParameter) Equal(other Parameter) bool {
	o, ok := other.(JPEGBaselineParameter)
	return ok && o == p
}

func (p JPEGBaselineParameter) String() string {
	return fmt.Sprintf("jpeg(quality=%d)", p.Quality)
}

// Key identifies one encoding of the pixel data. A nil Param means codec defaults.
type Key struct {
	Syntax transfer.Syntax
	Param  Parameter
}

// NativeKey is the key of the unencapsulated representation
func NativeKey() Key {
	return Key{Syntax: transfer.ExplicitVRLittleEndian}
}

// IsNative returns true when the key names an unencapsulated representation
func (k Key) IsNative() bool {
	return !k.Syntax.IsEncapsulated()
}

// Family returns the codec family of the key's syntax
func (k Key) Family() Family {
	return FamilyOf(k.Syntax)
}

// ConformsTo reports whether a representation stored under k can serve a
// request for other without transcoding. All native keys conform to each other.
func (k Key) ConformsTo(other Key) bool {
	if k.IsNative() || other.IsNative() {
		return k.IsNative() && other.IsNative()
	}
	return k.Syntax == other.Syntax && paramsEqual(k.Param, other.Param)
}

func paramsEqual(a, b Parameter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func (k Key) String() string {
	if k.IsNative() {
		return "native"
	}
	if k.Param == nil {
		return k.Syntax.Name()
	}
	return k.Syntax.Name() + " " + k.Param.String()
}
