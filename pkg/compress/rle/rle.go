// Package rle implements the DICOM RLE Lossless frame encoding (PS3.5 Annex G)
// over native sample buffers.
//
// A frame is a flat buffer of interleaved samples, each stored little endian
// in bytesPerSample bytes. The encoded frame is a 64 byte header (segment count
// and up to 15 segment offsets) followed by one PackBits segment per sample
// byte, most significant byte first.
package rle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize  = 64
	maxSegments = 15
)

// Layout describes how one frame's samples are stored
type Layout struct {
	Pixels         int // rows * columns
	Samples        int // samples per pixel
	BytesPerSample int // 1 or 2
}

// FrameSize is the native byte length of one frame
func (l Layout) FrameSize() int {
	return l.Pixels * l.Samples * l.BytesPerSample
}

func (l Layout) segments() (int, error) {
	if l.Pixels <= 0 || l.Samples <= 0 || l.BytesPerSample <= 0 {
		return 0, fmt.Errorf("rle: invalid layout %+v", l)
	}
	n := l.Samples * l.BytesPerSample
	if n > maxSegments {
		return 0, fmt.Errorf("rle: %d segments exceeds the maximum of %d", n, maxSegments)
	}
	return n, nil
}

// Encode compresses one native frame
func Encode(frame []byte, l Layout) ([]byte, error) {
	numSegments, err := l.segments()
	if err != nil {
		return nil, err
	}
	if len(frame) != l.FrameSize() {
		return nil, fmt.Errorf("rle: frame is %d bytes, layout needs %d", len(frame), l.FrameSize())
	}

	stride := l.Samples * l.BytesPerSample
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(numSegments))

	var body bytes.Buffer
	seg := 0
	for s := 0; s < l.Samples; s++ {
		// most significant byte first
		for b := l.BytesPerSample - 1; b >= 0; b-- {
			binary.LittleEndian.PutUint32(header[4+seg*4:], uint32(headerSize+body.Len()))
			packSegment(&body, plane{buf: frame, off: s*l.BytesPerSample + b, stride: stride, n: l.Pixels})
			if body.Len()%2 != 0 {
				body.WriteByte(0x00)
			}
			seg++
		}
	}
	return append(header, body.Bytes()...), nil
}

// Decode expands one encoded frame back to its native buffer
func Decode(data []byte, l Layout) ([]byte, error) {
	if len(data) < headerSize {
		return nil, errors.New("rle: data too short for header")
	}
	want, err := l.segments()
	if err != nil {
		return nil, err
	}

	numSegments := int(binary.LittleEndian.Uint32(data[0:4]))
	if numSegments == 0 || numSegments > maxSegments {
		return nil, fmt.Errorf("rle: invalid segment count %d", numSegments)
	}
	if numSegments != want {
		return nil, fmt.Errorf("rle: %d segments in frame, layout needs %d", numSegments, want)
	}
	offsets := make([]int, numSegments+1)
	for i := 0; i < numSegments; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(data[4+i*4:]))
	}
	offsets[numSegments] = len(data)

	stride := l.Samples * l.BytesPerSample
	out := make([]byte, l.FrameSize())
	seg := 0
	for s := 0; s < l.Samples; s++ {
		for b := l.BytesPerSample - 1; b >= 0; b-- {
			start, end := offsets[seg], offsets[seg+1]
			if start < headerSize || start > end || end > len(data) {
				return nil, fmt.Errorf("rle: invalid offset/length for segment %d (start=%d, end=%d)", seg, start, end)
			}
			dst := plane{buf: out, off: s*l.BytesPerSample + b, stride: stride, n: l.Pixels}
			if err := unpackSegment(data[start:end], dst); err != nil {
				return nil, fmt.Errorf("rle: segment %d: %w", seg, err)
			}
			seg++
		}
	}
	return out, nil
}
