package rle

import (
	"bytes"
	"fmt"
)

// PackBits segments as used by DICOM RLE (PS3.5 G.3)

// maxRun is the longest literal or replicate run one header byte can describe
const maxRun = 128

// plane is one byte of every sample of a frame: n bytes of buf starting at off,
// stride bytes apart
type plane struct {
	buf    []byte
	off    int
	stride int
	n      int
}

func (p plane) at(i int) byte {
	return p.buf[p.off+i*p.stride]
}

func (p plane) set(i int, b byte) {
	p.buf[p.off+i*p.stride] = b
}

// packSegment appends the PackBits encoding of p to dst. Runs of two or more
// replicate; a literal stops where a run of three begins.
func packSegment(dst *bytes.Buffer, p plane) {
	i := 0
	for i < p.n {
		run := 1
		for i+run < p.n && run < maxRun && p.at(i+run) == p.at(i) {
			run++
		}
		if run > 1 {
			dst.WriteByte(byte(int8(1 - run)))
			dst.WriteByte(p.at(i))
			i += run
			continue
		}

		lit := 1
		for i+lit < p.n && lit < maxRun {
			if i+lit+2 < p.n && p.at(i+lit) == p.at(i+lit+1) && p.at(i+lit) == p.at(i+lit+2) {
				break
			}
			lit++
		}
		dst.WriteByte(byte(lit - 1))
		for k := 0; k < lit; k++ {
			dst.WriteByte(p.at(i + k))
		}
		i += lit
	}
}

// unpackSegment fills p from the PackBits segment src. Decoding stops once p
// is full, so the pad byte of an odd segment is never read as a header.
func unpackSegment(src []byte, p plane) error {
	out, i := 0, 0
	for out < p.n {
		if i >= len(src) {
			return fmt.Errorf("rle: segment decoded to %d bytes, expected %d", out, p.n)
		}
		h := int8(src[i])
		i++
		switch {
		case h == -128:
			// no-op
		case h >= 0:
			count := int(h) + 1
			if i+count > len(src) {
				return fmt.Errorf("rle: compressed data truncated in literal run (i=%d, count=%d, len=%d)", i, count, len(src))
			}
			for k := 0; k < count && out < p.n; k++ {
				p.set(out, src[i+k])
				out++
			}
			i += count
		default:
			if i >= len(src) {
				return fmt.Errorf("rle: compressed data truncated in replicate run")
			}
			v := src[i]
			i++
			for k := 0; k < 1-int(h) && out < p.n; k++ {
				p.set(out, v)
				out++
			}
		}
	}
	return nil
}
