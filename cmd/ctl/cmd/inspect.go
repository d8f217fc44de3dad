package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jpfielding/dcmpix/pkg/dcm/transfer"
	"github.com/jpfielding/dcmpix/pkg/dcmfile"
	"github.com/jpfielding/dcmpix/pkg/pixeldata"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect cobra command
func NewInspectCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "List the pixel data representations of a DICOM file",
		Long:  "Loads a DICOM file and prints its image geometry, transfer syntax and every stored pixel data representation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			dumpFrame, _ := cmd.Flags().GetInt("dump-frame")
			out, _ := cmd.Flags().GetString("out")
			decode, _ := cmd.Flags().GetBool("decode")

			if filePath == "" && len(args) > 0 {
				filePath = args[0]
			}

			if filePath == "" {
				return fmt.Errorf("file path is required. Use --file flag or provide as argument")
			}

			slog.DebugContext(ctx, "inspecting", "path", filePath)
			return runInspect(cmd.OutOrStdout(), filePath, decode, dumpFrame, out)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("file", "f", "", "DICOM file path to inspect")
	pf.Bool("decode", false, "Decode encapsulated pixel data and report sample ranges")
	pf.Int("dump-frame", -1, "Index of frame to dump to disk")
	pf.String("out", "", "Output path for dumped frame")

	return cmd
}

func runInspect(w io.Writer, filePath string, decode bool, dumpFrame int, outPath string) error {
	f, err := dcmfile.Load(filePath, pixeldata.WithCodecs(pixeldata.DefaultCodecs()))
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	px := f.Pixels
	g := px.Geometry()

	fmt.Fprintf(w, "Total elements: %d\n\n", len(f.Dataset.Elements))

	fmt.Fprintln(w, "=== Geometry ===")
	fmt.Fprintf(w, "Rows: %d\n", g.Rows)
	fmt.Fprintf(w, "Columns: %d\n", g.Columns)
	fmt.Fprintf(w, "SamplesPerPixel: %d\n", g.SamplesPerPixel)
	fmt.Fprintf(w, "BitsAllocated: %d\n", g.BitsAllocated)
	fmt.Fprintf(w, "NumberOfFrames: %d\n", g.Frames)
	fmt.Fprintf(w, "TransferSyntax: %s (%s)\n", f.Syntax, f.Syntax.Name())
	fmt.Fprintf(w, "Encapsulated: %v\n", f.Syntax.IsEncapsulated())
	fmt.Fprintln(w)

	if dumpFrame >= 0 {
		return dumpOriginalFrame(w, px, dumpFrame, outPath)
	}

	if decode && f.Syntax.IsEncapsulated() {
		if err := px.ChooseRepresentation(transfer.ExplicitVRLittleEndian, nil); err != nil {
			fmt.Fprintf(w, "Decode error: %v\n\n", err)
		}
	}

	fmt.Fprintln(w, "=== Representations ===")
	for _, r := range px.Representations() {
		var flags string
		if r.Original {
			flags += " original"
		}
		if r.Current {
			flags += " current"
		}
		fmt.Fprintf(w, "%s:%s\n", r.Key, flags)
		fmt.Fprintf(w, "  Length: %d bytes\n", r.Length)
		if !r.Key.IsNative() {
			fmt.Fprintf(w, "  Fragments: %d\n", r.Fragments)
		}
		fmt.Fprintf(w, "  Fingerprint: %s\n", r.Fingerprint)
	}

	if px.HasRepresentation(transfer.ExplicitVRLittleEndian, nil) {
		printRanges(w, px, g)
	}
	return nil
}

// printRanges reports the sample range of the first few native frames
func printRanges(w io.Writer, px *pixeldata.Element, g pixeldata.Geometry) {
	var samples []uint16
	if g.Width() == pixeldata.Width16 {
		samples, _ = px.Uint16Array()
	} else {
		buf, _ := px.Uint8Array()
		for _, b := range buf {
			samples = append(samples, uint16(b))
		}
	}
	perFrame := g.Rows * g.Columns * g.SamplesPerPixel
	if perFrame == 0 {
		return
	}
	maxFramesToShow := min(3, g.Frames)
	for i := 0; i < maxFramesToShow && (i+1)*perFrame <= len(samples); i++ {
		frame := samples[i*perFrame : (i+1)*perFrame]
		minVal, maxVal := frame[0], frame[0]
		for _, v := range frame {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
		fmt.Fprintf(w, "\n--- Frame %d ---\n", i)
		fmt.Fprintf(w, "Pixel range: min=%d, max=%d\n", minVal, maxVal)
	}
}

// dumpOriginalFrame writes one frame of the original representation to disk
func dumpOriginalFrame(w io.Writer, px *pixeldata.Element, index int, outPath string) error {
	g := px.Geometry()
	if index >= g.Frames {
		return fmt.Errorf("frame index %d out of bounds (0-%d)", index, g.Frames-1)
	}
	key, err := px.OriginalRepresentation()
	if err != nil {
		return err
	}

	var data []byte
	if key.IsNative() {
		buf, err := px.Uint8Array()
		if err != nil {
			return err
		}
		size := g.FrameSize()
		if (index+1)*size > len(buf) {
			return fmt.Errorf("pixel data holds %d bytes, frame %d needs %d", len(buf), index, (index+1)*size)
		}
		data = buf[index*size : (index+1)*size]
	} else {
		enc, err := px.EncapsulatedRepresentation(key.Syntax, key.Param)
		if err != nil {
			return err
		}
		frames, err := enc.Frames(g.Frames)
		if err != nil {
			return err
		}
		data = frames[index]
	}

	if outPath == "" {
		outPath = fmt.Sprintf("frame_%d.bin", index)
	}

	fmt.Fprintf(w, "Dumping frame %d (%d bytes) to %s\n", index, len(data), outPath)
	return os.WriteFile(outPath, data, 0644)
}
