// Package transfer defines DICOM Transfer Syntaxes and the encoding facts the
// pixel data element needs from them
package transfer

import "encoding/binary"

// Syntax represents a DICOM Transfer Syntax
type Syntax string

// Standard Transfer Syntaxes
const (
	// Uncompressed
	ImplicitVRLittleEndian    Syntax = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian    Syntax = "1.2.840.10008.1.2.1"
	ExplicitVRLittleEndianExt Syntax = "1.2.840.10008.1.2.1.64" // Extended (>4GB)
	ExplicitVRBigEndian       Syntax = "1.2.840.10008.1.2.2"    // Retired
	DeflatedExplicitVR        Syntax = "1.2.840.10008.1.2.1.99"

	// JPEG Lossless
	JPEGLossless           Syntax = "1.2.840.10008.1.2.4.57"
	JPEGLosslessFirstOrder Syntax = "1.2.840.10008.1.2.4.70" // Most common

	// JPEG-LS
	JPEGLSLossless     Syntax = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless Syntax = "1.2.840.10008.1.2.4.81"

	// JPEG 2000
	JPEG2000Lossless Syntax = "1.2.840.10008.1.2.4.90"
	JPEG2000         Syntax = "1.2.840.10008.1.2.4.91"

	// JPEG Lossy
	JPEGBaseline Syntax = "1.2.840.10008.1.2.4.50"
	JPEGExtended Syntax = "1.2.840.10008.1.2.4.51"

	// Other
	RLELossless Syntax = "1.2.840.10008.1.2.5"
)

// Descriptor is what the encoding rules need to know about a transfer syntax
type Descriptor struct {
	Encapsulated bool
	LittleEndian bool
	ExplicitVR   bool
}

// Describe returns the encoding descriptor for the syntax
func (s Syntax) Describe() Descriptor {
	return Descriptor{
		Encapsulated: s.IsEncapsulated(),
		LittleEndian: s.IsLittleEndian(),
		ExplicitVR:   s.IsExplicitVR(),
	}
}

// ByteOrder returns the byte order of element headers and native values
func (d Descriptor) ByteOrder() binary.ByteOrder {
	if d.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// IsExplicitVR returns true if this transfer syntax uses explicit VR
func (s Syntax) IsExplicitVR() bool {
	return s != ImplicitVRLittleEndian
}

// IsLittleEndian returns true if this transfer syntax uses little endian byte order
func (s Syntax) IsLittleEndian() bool {
	return s != ExplicitVRBigEndian
}

// IsEncapsulated returns true if pixel data is encapsulated (compressed).
// Deflate compresses the whole dataset, its pixel data stays native.
func (s Syntax) IsEncapsulated() bool {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRLittleEndianExt,
		ExplicitVRBigEndian, DeflatedExplicitVR:
		return false
	default:
		return true
	}
}

// IsKnown returns true for the syntaxes listed in this package
func (s Syntax) IsKnown() bool {
	_, ok := names[s]
	return ok
}

// IsJPEGLS returns true if this is a JPEG-LS transfer syntax
func (s Syntax) IsJPEGLS() bool {
	return s == JPEGLSLossless || s == JPEGLSNearLossless
}

// IsJPEGLossless returns true if this is a JPEG Lossless transfer syntax
func (s Syntax) IsJPEGLossless() bool {
	return s == JPEGLossless || s == JPEGLosslessFirstOrder
}

// IsJPEG2000 returns true if this is a JPEG 2000 transfer syntax
func (s Syntax) IsJPEG2000() bool {
	return s == JPEG2000Lossless || s == JPEG2000
}

// IsJPEGBaseline returns true for the lossy DCT JPEG processes
func (s Syntax) IsJPEGBaseline() bool {
	return s == JPEGBaseline || s == JPEGExtended
}

var names = map[Syntax]string{
	ImplicitVRLittleEndian:    "Implicit VR Little Endian",
	ExplicitVRLittleEndian:    "Explicit VR Little Endian",
	ExplicitVRLittleEndianExt: "Explicit VR Little Endian Extended",
	ExplicitVRBigEndian:       "Explicit VR Big Endian (Retired)",
	DeflatedExplicitVR:        "Deflated Explicit VR Little Endian",
	JPEGLossless:              "JPEG Lossless (Process 14)",
	JPEGLosslessFirstOrder:    "JPEG Lossless First-Order (Process 14, SV1)",
	JPEGLSLossless:            "JPEG-LS Lossless",
	JPEGLSNearLossless:        "JPEG-LS Near-Lossless",
	JPEG2000Lossless:          "JPEG 2000 Lossless",
	JPEG2000:                  "JPEG 2000",
	JPEGBaseline:              "JPEG Baseline (Process 1)",
	JPEGExtended:              "JPEG Extended (Process 2 & 4)",
	RLELossless:               "RLE Lossless",
}

// aliases are the short names the CLI accepts
var aliases = map[string]Syntax{
	"native":   ExplicitVRLittleEndian,
	"implicit": ImplicitVRLittleEndian,
	"explicit": ExplicitVRLittleEndian,
	"big":      ExplicitVRBigEndian,
	"rle":      RLELossless,
	"jpeg-ls":  JPEGLSLossless,
	"jpeg-li":  JPEGLosslessFirstOrder,
	"jpeg2000": JPEG2000Lossless,
}

// Name returns a human-readable name for the transfer syntax
func (s Syntax) Name() string {
	if n, ok := names[s]; ok {
		return n
	}
	return string(s)
}

// FromUID converts a UID string to a Syntax
func FromUID(uid string) Syntax {
	return Syntax(uid)
}

// Lookup resolves a UID or one of the short aliases (rle, native, jpeg-ls, ...)
func Lookup(s string) Syntax {
	if ts, ok := aliases[s]; ok {
		return ts
	}
	return FromUID(s)
}
