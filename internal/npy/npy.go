// Package npy writes NumPy .npy arrays and .npz archives.
//
// Only the two shapes returned by the real-time endpoint are supported: an RGB pixel array
// of dtype uint8 and shape (H, W, 3), and a one-dimensional array of fixed-width byte
// strings (dtype |S<n>) holding encoded images.
package npy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

var magic = []byte("\x93NUMPY")

const headerAlign = 64

// Array is an in-memory array ready to be serialized.
type Array struct {
	descr string
	shape []int
	data  []byte
}

// Descr returns the NumPy dtype string.
func (a *Array) Descr() string { return a.descr }

// Shape returns a copy of the array shape.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Data returns the raw C-ordered element bytes.
func (a *Array) Data() []byte { return a.data }

// FromImage converts img to an opaque RGB uint8 array of shape (H, W, 3). Alpha is
// dropped without compositing.
func FromImage(img image.Image) *Array {
	b := img.Bounds()
	rgba, ok := img.(*image.NRGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	w, h := b.Dx(), b.Dy()
	data := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			data = append(data, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return &Array{descr: "|u1", shape: []int{h, w, 3}, data: data}
}

// FromByteStrings packs items into a fixed-width |S<n> array, where n is the longest
// item. Shorter items are padded with NUL bytes.
func FromByteStrings(items [][]byte) *Array {
	width := 1
	for _, it := range items {
		if len(it) > width {
			width = len(it)
		}
	}
	data := make([]byte, width*len(items))
	for i, it := range items {
		copy(data[i*width:], it)
	}
	return &Array{descr: "|S" + strconv.Itoa(width), shape: []int{len(items)}, data: data}
}

// header renders the version 1.0 preamble, padded so the data starts on a 64-byte
// boundary.
func (a *Array) header() ([]byte, error) {
	dims := make([]string, len(a.shape))
	for i, d := range a.shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(a.shape) == 1 {
		shape += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", a.descr, shape)

	// magic + version + uint16 length + dict + padding + newline
	prefix := len(magic) + 2 + 2
	total := prefix + len(dict) + 1
	if rem := total % headerAlign; rem != 0 {
		total += headerAlign - rem
	}
	hlen := total - prefix
	if hlen > 0xFFFF {
		return nil, fmt.Errorf("npy header too long: %d bytes", hlen)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(hlen))
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", hlen-len(dict)-1))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteTo serializes the array in .npy format.
func (a *Array) WriteTo(w io.Writer) (int64, error) {
	hdr, err := a.header()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(hdr)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(a.data)
	return int64(n + m), err
}

// Bytes returns the .npy encoding of a.
func (a *Array) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := a.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Entry is one named array in an .npz archive.
type Entry struct {
	Name  string
	Array *Array
}

// WriteNPZ writes a deflate-compressed archive holding one <name>.npy member per entry,
// as numpy.savez_compressed does.
func WriteNPZ(w io.Writer, entries ...Entry) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for _, e := range entries {
		if e.Name == "" || e.Array == nil {
			return fmt.Errorf("npz entry requires a name and an array")
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   e.Name + ".npy",
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("npz create %s: %w", e.Name, err)
		}
		if _, err := e.Array.WriteTo(fw); err != nil {
			return fmt.Errorf("npz write %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}
