// Package tag defines the DICOM tags the pixel data element and its item framing use
package tag

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// Equals compares two tags
func (t Tag) Equals(other Tag) bool {
	return t.Group == other.Group && t.Element == other.Element
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsDelimiter returns true for the item/sequence framing tags of group FFFE
func (t Tag) IsDelimiter() bool {
	return t.Group == 0xFFFE
}

// Uint32 packs the tag as GGGGEEEE
func (t Tag) Uint32() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// Put writes the tag into b (len >= 4) using the given byte order
func (t Tag) Put(b []byte, order binary.ByteOrder) {
	order.PutUint16(b[0:2], t.Group)
	order.PutUint16(b[2:4], t.Element)
}

// Parse reads a tag from b (len >= 4) using the given byte order
func Parse(b []byte, order binary.ByteOrder) Tag {
	return Tag{Group: order.Uint16(b[0:2]), Element: order.Uint16(b[2:4])}
}

// String returns a string representation of the Tag (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// MarshalJSON returns a JSON representation of the Tag
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// File Meta Information (Group 0002)
var (
	TransferSyntaxUID = Tag{0x0002, 0x0010}
)

// Image Pixel Module (Group 0028)
var (
	SamplesPerPixel = Tag{0x0028, 0x0002}
	NumberOfFrames  = Tag{0x0028, 0x0008}
	Rows            = Tag{0x0028, 0x0010}
	Columns         = Tag{0x0028, 0x0011}
	BitsAllocated   = Tag{0x0028, 0x0100}
	PixelData       = Tag{0x7FE0, 0x0010}
)

// Item framing (Group FFFE), encoded in the byte order of the transfer syntax
var (
	Item                 = Tag{0xFFFE, 0xE000}
	ItemDelimitation     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitation = Tag{0xFFFE, 0xE0DD}
)

// UndefinedLength marks a value whose end is found by a delimitation item
const UndefinedLength uint32 = 0xFFFFFFFF
