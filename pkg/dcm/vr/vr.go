// Package vr defines the DICOM Value Representations the pixel data element can carry
package vr

// VR represents a DICOM Value Representation
type VR string

// Value Representations used for pixel data and its framing
const (
	OB VR = "OB" // Other Byte String
	OW VR = "OW" // Other Word String
	UN VR = "UN" // Unknown
	SQ VR = "SQ" // Sequence of Items
)

// IsLongLength returns true if the VR uses 2 reserved bytes and a 4-byte length in explicit VR
func (v VR) IsLongLength() bool {
	switch v {
	case "OB", "OD", "OF", "OL", "OV", "OW", "SQ", "UC", "UN", "UR", "UT":
		return true
	default:
		return false
	}
}

// IsPixel returns true if the VR is legal for the Pixel Data element
func (v VR) IsPixel() bool {
	return v == OB || v == OW || v == UN
}

// ForWidth returns the VR describing native samples of the given bit width
func ForWidth(bits int) VR {
	if bits > 8 {
		return OW
	}
	return OB
}

// FromBytes parses the two VR characters of an explicit VR header
func FromBytes(b []byte) VR {
	if len(b) < 2 {
		return UN
	}
	return VR(b[:2])
}
