// Package dcmfile moves the Pixel Data element of a DICOM Part 10 file in and
// out of a pixeldata.Element. Everything else in the dataset is carried
// through untouched.
package dcmfile

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/dcmpix/pkg/dcm/tag"
	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
	"github.com/jpfielding/dcmpix/pkg/pixeldata"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	dtag "github.com/suyashkumar/dicom/pkg/tag"
)

// File is a parsed dataset plus its pixel data representations
type File struct {
	Dataset dicom.Dataset
	Syntax  transfer.Syntax
	Pixels  *pixeldata.Element
}

// Load parses path and ingests its pixel data as the original representation
func Load(path string, opts ...pixeldata.Option) (*File, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	ts := transfer.ImplicitVRLittleEndian
	if uid, ok := stringValue(ds, dtag.TransferSyntaxUID); ok {
		ts = transfer.FromUID(uid)
	}
	g, err := geometry(ds)
	if err != nil {
		return nil, err
	}

	elem, err := ds.FindElementByTag(dtag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("no pixel data in %s: %w", path, err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected pixel data value %T", elem.Value.GetValue())
	}

	length := elem.ValueLength
	if info.IsEncapsulated {
		length = tag.UndefinedLength
	}
	opts = append([]pixeldata.Option{pixeldata.WithGeometry(g)}, opts...)
	px := pixeldata.New(tag.PixelData, length, opts...)
	if err := ingest(px, info, ts); err != nil {
		return nil, err
	}
	slog.Debug("loaded pixel data",
		slog.String("path", path),
		slog.String("syntax", ts.Name()),
		slog.Int("frames", len(info.Frames)),
		slog.Bool("encapsulated", info.IsEncapsulated))
	return &File{Dataset: ds, Syntax: ts, Pixels: px}, nil
}

func ingest(px *pixeldata.Element, info dicom.PixelDataInfo, ts transfer.Syntax) error {
	if info.IsEncapsulated {
		frags := &pixeldata.Encapsulated{Offsets: info.Offsets}
		for _, f := range info.Frames {
			frags.Fragments = append(frags.Fragments, f.EncapsulatedData.Data)
		}
		return px.PutOriginalRepresentation(ts, nil, frags)
	}

	var bytes8 []byte
	var words []uint16
	for i, f := range info.Frames {
		switch nf := f.NativeData.(type) {
		case *frame.NativeFrame[uint8]:
			bytes8 = append(bytes8, nf.RawData...)
		case *frame.NativeFrame[uint16]:
			words = append(words, nf.RawData...)
		default:
			return fmt.Errorf("frame %d: unsupported native frame %T", i, f.NativeData)
		}
	}
	if words != nil {
		return px.PutUint16Array(words)
	}
	return px.PutUint8Array(bytes8)
}

// Save writes the dataset with the pixel data encoded in ts. A representation
// for ts must already exist, see pixeldata.Element.ChooseRepresentation.
func (f *File) Save(path string, ts transfer.Syntax) error {
	info, err := f.pixelDataInfo(ts)
	if err != nil {
		return err
	}
	pixels, err := dicom.NewElement(dtag.PixelData, info)
	if err != nil {
		return fmt.Errorf("failed to build pixel data element: %w", err)
	}
	if info.IsEncapsulated {
		// the writer picks the item sequence layout from an undefined length
		pixels.ValueLength = dtag.VLUndefinedLength
	}
	syntax, err := dicom.NewElement(dtag.TransferSyntaxUID, []string{string(ts)})
	if err != nil {
		return fmt.Errorf("failed to build transfer syntax element: %w", err)
	}

	ds := dicom.Dataset{Elements: make([]*dicom.Element, 0, len(f.Dataset.Elements)+1)}
	var hasSyntax bool
	for _, e := range f.Dataset.Elements {
		switch e.Tag {
		case dtag.PixelData:
			ds.Elements = append(ds.Elements, pixels)
		case dtag.TransferSyntaxUID:
			ds.Elements = append(ds.Elements, syntax)
			hasSyntax = true
		default:
			ds.Elements = append(ds.Elements, e)
		}
	}
	if !hasSyntax {
		ds.Elements = append([]*dicom.Element{syntax}, ds.Elements...)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := dicom.Write(out, ds); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	f.Dataset = ds
	f.Syntax = ts
	return out.Close()
}

// pixelDataInfo lays the representation for ts out as frames
func (f *File) pixelDataInfo(ts transfer.Syntax) (dicom.PixelDataInfo, error) {
	g := f.Pixels.Geometry()
	if err := g.Validate(); err != nil {
		return dicom.PixelDataInfo{}, err
	}
	if ts.IsEncapsulated() {
		key, err := f.Pixels.CurrentRepresentation()
		if err != nil {
			return dicom.PixelDataInfo{}, err
		}
		if key.Syntax != ts {
			key = pixeldata.Key{Syntax: ts}
		}
		enc, err := f.Pixels.EncapsulatedRepresentation(key.Syntax, key.Param)
		if err != nil {
			return dicom.PixelDataInfo{}, err
		}
		frames, err := enc.Frames(g.Frames)
		if err != nil {
			return dicom.PixelDataInfo{}, err
		}
		// one item per frame, so a stored offset table is rebuilt for that layout
		info := dicom.PixelDataInfo{IsEncapsulated: true}
		var pos uint32
		for _, data := range frames {
			if len(data)%2 != 0 {
				data = append(append(make([]byte, 0, len(data)+1), data...), 0)
			}
			if len(enc.Offsets) > 0 {
				info.Offsets = append(info.Offsets, pos)
			}
			pos += 8 + uint32(len(data))
			info.Frames = append(info.Frames, &frame.Frame{
				Encapsulated:     true,
				EncapsulatedData: frame.EncapsulatedFrame{Data: data},
			})
		}
		return info, nil
	}

	pixels := g.Rows * g.Columns
	samples := pixels * g.SamplesPerPixel
	info := dicom.PixelDataInfo{}
	if g.Width() == pixeldata.Width16 {
		words, err := f.Pixels.Uint16Array()
		if err != nil {
			return info, err
		}
		if len(words) < samples*g.Frames {
			return info, fmt.Errorf("pixel data holds %d samples, geometry needs %d: %w", len(words), samples*g.Frames, pixeldata.ErrCorruptedData)
		}
		for i := 0; i < g.Frames; i++ {
			nf := frame.NewNativeFrame[uint16](g.BitsAllocated, g.Rows, g.Columns, pixels, g.SamplesPerPixel)
			copy(nf.RawData, words[i*samples:(i+1)*samples])
			info.Frames = append(info.Frames, &frame.Frame{NativeData: nf})
		}
		return info, nil
	}
	buf, err := f.Pixels.Uint8Array()
	if err != nil {
		return info, err
	}
	if len(buf) < samples*g.Frames {
		return info, fmt.Errorf("pixel data holds %d samples, geometry needs %d: %w", len(buf), samples*g.Frames, pixeldata.ErrCorruptedData)
	}
	for i := 0; i < g.Frames; i++ {
		nf := frame.NewNativeFrame[uint8](g.BitsAllocated, g.Rows, g.Columns, pixels, g.SamplesPerPixel)
		copy(nf.RawData, buf[i*samples:(i+1)*samples])
		info.Frames = append(info.Frames, &frame.Frame{NativeData: nf})
	}
	return info, nil
}

// geometry reads the image pixel module attributes codecs need
func geometry(ds dicom.Dataset) (pixeldata.Geometry, error) {
	g := pixeldata.Geometry{SamplesPerPixel: 1, Frames: 1}
	var ok bool
	if g.Rows, ok = intValue(ds, dtag.Rows); !ok {
		return g, fmt.Errorf("missing Rows")
	}
	if g.Columns, ok = intValue(ds, dtag.Columns); !ok {
		return g, fmt.Errorf("missing Columns")
	}
	if g.BitsAllocated, ok = intValue(ds, dtag.BitsAllocated); !ok {
		return g, fmt.Errorf("missing BitsAllocated")
	}
	if n, ok := intValue(ds, dtag.SamplesPerPixel); ok {
		g.SamplesPerPixel = n
	}
	if n, ok := intValue(ds, dtag.NumberOfFrames); ok && n > 0 {
		g.Frames = n
	}
	return g, nil
}

// intValue reads US/UL values ([]int) as well as IS values ([]string)
func intValue(ds dicom.Dataset, t dtag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			return n, err == nil
		}
	}
	return 0, false
}

func stringValue(ds dicom.Dataset, t dtag.Tag) (string, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok || len(v) == 0 {
		return "", false
	}
	return strings.TrimRight(v[0], "\x00 "), true
}
