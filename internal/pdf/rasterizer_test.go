package pdf

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/testutil"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestNewRasterizer_ValidatesDPI(t *testing.T) {
	_, err := NewRasterizer(0)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = NewRasterizer(maxDPI + 1)
	require.Error(t, err)

	r, err := NewRasterizer(DefaultDPI)
	require.NoError(t, err)
	assert.Equal(t, 300, r.DPI())
}

func TestRasterizer_RendersPagesInOrder(t *testing.T) {
	data := testutil.PDF(
		testutil.PDFPage{Width: 72, Height: 36, Fill: red},
		testutil.PDFPage{Width: 72, Height: 36, Fill: blue},
	)

	r, err := NewRasterizer(144)
	require.NoError(t, err)

	doc, err := r.Open(data)
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.NumPage())

	first, err := doc.Render(0)
	require.NoError(t, err)
	assert.Equal(t, 144, first.Bounds().Dx())
	assert.Equal(t, 72, first.Bounds().Dy())

	second, err := doc.Render(1)
	require.NoError(t, err)

	r1, _, b1, _ := first.At(72, 36).RGBA()
	r2, _, b2, _ := second.At(72, 36).RGBA()
	assert.Greater(t, r1, b1, "first page should be red")
	assert.Greater(t, b2, r2, "second page should be blue")
}

func TestRasterizer_RejectsNonPDF(t *testing.T) {
	r, err := NewRasterizer(72)
	require.NoError(t, err)

	_, err = r.Open([]byte("plain text"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnreadableSource))

	_, err = r.Open(nil)
	require.Error(t, err)
}

func TestDocument_CloseTwice(t *testing.T) {
	r, err := NewRasterizer(72)
	require.NoError(t, err)
	doc, err := r.Open(testutil.PDF(testutil.PDFPage{Width: 10, Height: 10, Fill: red}))
	require.NoError(t, err)

	require.NoError(t, doc.Close())
	require.NoError(t, doc.Close())

	assert.Equal(t, 0, doc.NumPage())
	_, err = doc.Render(0)
	assert.Error(t, err)
}

func TestPageCount(t *testing.T) {
	data := testutil.PDF(
		testutil.PDFPage{Width: 100, Height: 100, Fill: red},
		testutil.PDFPage{Width: 100, Height: 100, Fill: blue},
		testutil.PDFPage{Width: 100, Height: 100, Fill: red},
	)
	n, err := PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = PageCount([]byte("%PDF-1.4 truncated"))
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnreadableSource))
}

func TestValidator_IsLarge(t *testing.T) {
	v := NewValidator()
	assert.False(t, v.IsLarge(make([]byte, 10)))
}
