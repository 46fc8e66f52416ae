// Package testutil builds in-memory document fixtures for tests: JPEGs carrying an EXIF
// orientation tag, multi-page TIFFs and minimal PDFs.
package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Gradient returns an opaque w x h image whose pixels differ in both directions, so that
// rotations and flips are distinguishable.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 60, A: 255})
		}
	}
	return img
}

// PNG encodes img as PNG.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// GIF encodes img as a single-frame GIF.
func GIF(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

// JPEG encodes img as JPEG. A positive orientation is stored in an EXIF APP1 segment.
func JPEG(t testing.TB, img image.Image, orientation int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	data := buf.Bytes()
	if orientation <= 0 {
		return data
	}

	var exif bytes.Buffer
	exif.WriteString("Exif\x00\x00")
	exif.WriteString("II*\x00")
	writeLE(&exif, uint32(8))
	writeLE(&exif, uint16(1))
	writeIFDEntry(&exif, 0x0112, typeShort, 1, uint32(orientation))
	writeLE(&exif, uint32(0))

	var out bytes.Buffer
	out.Write(data[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(exif.Len()+2))
	out.Write(exif.Bytes())
	out.Write(data[2:])
	return out.Bytes()
}

// TIFFPage is one frame of a fixture TIFF.
type TIFFPage struct {
	Image       image.Image
	Orientation int // 0 = no tag
}

// TIFF writes an uncompressed little-endian RGB TIFF with one IFD per page.
func TIFF(t testing.TB, pages ...TIFFPage) []byte {
	t.Helper()
	require.NotEmpty(t, pages)

	var buf bytes.Buffer
	buf.WriteString("II*\x00")
	writeLE(&buf, uint32(0)) // first IFD offset, patched below
	prevNext := 4

	for _, p := range pages {
		b := p.Image.Bounds()
		w, h := b.Dx(), b.Dy()

		pixOff := buf.Len()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(p.Image.At(x, y)).(color.NRGBA)
				buf.Write([]byte{c.R, c.G, c.B})
			}
		}
		pad(&buf)

		bpsOff := buf.Len()
		for i := 0; i < 3; i++ {
			writeLE(&buf, uint16(8))
		}
		pad(&buf)

		ifdOff := buf.Len()
		binary.LittleEndian.PutUint32(buf.Bytes()[prevNext:], uint32(ifdOff))

		type entry struct {
			tag, typ uint16
			count    uint32
			value    uint32
		}
		entries := []entry{
			{256, typeLong, 1, uint32(w)},
			{257, typeLong, 1, uint32(h)},
			{258, typeShort, 3, uint32(bpsOff)},
			{259, typeShort, 1, 1},
			{262, typeShort, 1, 2},
			{273, typeLong, 1, uint32(pixOff)},
		}
		if p.Orientation > 0 {
			entries = append(entries, entry{274, typeShort, 1, uint32(p.Orientation)})
		}
		entries = append(entries,
			entry{277, typeShort, 1, 3},
			entry{278, typeLong, 1, uint32(h)},
			entry{279, typeLong, 1, uint32(w * h * 3)},
			entry{284, typeShort, 1, 1},
		)

		writeLE(&buf, uint16(len(entries)))
		for _, e := range entries {
			writeIFDEntry(&buf, e.tag, e.typ, e.count, e.value)
		}
		prevNext = buf.Len()
		writeLE(&buf, uint32(0))
	}
	return buf.Bytes()
}

// PDFPage describes one page of a fixture PDF in points (1/72 inch). The page is filled
// with a solid colour so that pages are distinguishable after rasterization.
type PDFPage struct {
	Width, Height int
	Fill          color.RGBA
}

// PDF writes a minimal, well-formed PDF with the given pages. Zero pages is allowed.
func PDF(pages ...PDFPage) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), len(pages)))

	for _, p := range pages {
		content := fmt.Sprintf("%.3f %.3f %.3f rg 0 0 %d %d re f",
			float64(p.Fill.R)/255, float64(p.Fill.G)/255, float64(p.Fill.B)/255, p.Width, p.Height)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << >> >>",
			p.Width, p.Height, len(offsets)+2))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WriteFile writes data to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

const (
	typeShort uint16 = 3
	typeLong  uint16 = 4
)

func writeIFDEntry(buf *bytes.Buffer, tag, typ uint16, count, value uint32) {
	writeLE(buf, tag)
	writeLE(buf, typ)
	writeLE(buf, count)
	if typ == typeShort && count == 1 {
		writeLE(buf, uint16(value))
		writeLE(buf, uint16(0))
		return
	}
	writeLE(buf, value)
}

func writeLE(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func pad(buf *bytes.Buffer) {
	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}
}
