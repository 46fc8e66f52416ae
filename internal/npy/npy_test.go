package npy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitNPY returns the header dict and payload of a version 1.0 .npy file.
func splitNPY(t *testing.T, b []byte) (string, []byte) {
	t.Helper()
	require.True(t, bytes.HasPrefix(b, []byte("\x93NUMPY\x01\x00")))
	hlen := int(binary.LittleEndian.Uint16(b[8:10]))
	require.Zero(t, (10+hlen)%64, "data must start on a 64-byte boundary")
	header := string(b[10 : 10+hlen])
	require.Equal(t, byte('\n'), header[len(header)-1])
	return header, b[10+hlen:]
}

func TestFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(0, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	arr := FromImage(img)
	assert.Equal(t, "|u1", arr.Descr())
	assert.Equal(t, []int{3, 2, 3}, arr.Shape())
	require.Len(t, arr.Data(), 18)
	assert.Equal(t, []byte{10, 20, 30}, arr.Data()[3:6])
	assert.Equal(t, []byte{1, 2, 3}, arr.Data()[12:15])

	b, err := arr.Bytes()
	require.NoError(t, err)
	header, data := splitNPY(t, b)
	assert.Contains(t, header, "{'descr': '|u1', 'fortran_order': False, 'shape': (3, 2, 3), }")
	assert.Equal(t, arr.Data(), data)
}

func TestFromImage_SubImageAndOtherModels(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(2, 2, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	arr := FromImage(sub)
	assert.Equal(t, []int{2, 2, 3}, arr.Shape())
	assert.Equal(t, []byte{200, 100, 50}, arr.Data()[:3])
}

func TestFromByteStrings(t *testing.T) {
	arr := FromByteStrings([][]byte{[]byte("abc"), []byte("hello"), []byte("x")})
	assert.Equal(t, "|S5", arr.Descr())
	assert.Equal(t, []int{3}, arr.Shape())
	assert.Equal(t, []byte("abc\x00\x00hellox\x00\x00\x00\x00"), arr.Data())

	b, err := arr.Bytes()
	require.NoError(t, err)
	header, _ := splitNPY(t, b)
	assert.Contains(t, header, "'shape': (3,)")
}

func TestFromByteStrings_Empty(t *testing.T) {
	arr := FromByteStrings(nil)
	assert.Equal(t, "|S1", arr.Descr())
	assert.Equal(t, []int{0}, arr.Shape())
	assert.Empty(t, arr.Data())
}

func TestWriteNPZ(t *testing.T) {
	images := FromByteStrings([][]byte{[]byte("page-one"), []byte("page-two")})

	var buf bytes.Buffer
	require.NoError(t, WriteNPZ(&buf, Entry{Name: "images", Array: images}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "images.npy", zr.File[0].Name)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	member, err := io.ReadAll(rc)
	require.NoError(t, err)

	header, data := splitNPY(t, member)
	assert.Contains(t, header, "'descr': '|S8'")
	assert.Equal(t, []byte("page-onepage-two"), data)
}

func TestWriteNPZ_RejectsEmptyEntry(t *testing.T) {
	assert.Error(t, WriteNPZ(io.Discard, Entry{Name: "image"}))
}
