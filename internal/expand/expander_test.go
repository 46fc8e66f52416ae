package expand

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/pdf"
	"github.com/spherical/docprep/internal/testutil"
)

type fakeRaster struct {
	pages   []image.Image
	openErr error
	failAt  int
	closed  bool
}

func (f *fakeRaster) Open([]byte) (domain.RasterDocument, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeRaster) NumPage() int { return len(f.pages) }

func (f *fakeRaster) Render(i int) (image.Image, error) {
	if f.failAt > 0 && i+1 == f.failAt {
		return nil, errors.New("render failed")
	}
	return f.pages[i], nil
}

func (f *fakeRaster) Close() error {
	f.closed = true
	return nil
}

func collect(t *testing.T, pages *Pages) []domain.PageBuffer {
	t.Helper()
	var out []domain.PageBuffer
	for page, err := range pages.All() {
		require.NoError(t, err)
		out = append(out, page)
	}
	return out
}

func TestExpand_PDFPageOrder(t *testing.T) {
	raster, err := pdf.NewRasterizer(72)
	require.NoError(t, err)

	data := testutil.PDF(
		testutil.PDFPage{Width: 40, Height: 20, Fill: color.RGBA{R: 255, A: 255}},
		testutil.PDFPage{Width: 30, Height: 60, Fill: color.RGBA{G: 255, A: 255}},
	)
	pages, err := New(raster).Expand(domain.SourceDocument{ID: "doc.pdf", Data: data, Kind: domain.KindPDF})
	require.NoError(t, err)
	defer pages.Close()

	require.Equal(t, 2, pages.Count())
	got := collect(t, pages)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 40, got[0].Width)
	assert.Equal(t, 20, got[0].Height)
	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, 30, got[1].Width)
	assert.Equal(t, 60, got[1].Height)
	assert.Zero(t, got[0].Orientation)
}

func TestExpand_PDFWithoutPages(t *testing.T) {
	raster := &fakeRaster{}
	pages, err := New(raster).Expand(domain.SourceDocument{ID: "empty.pdf", Kind: domain.KindPDF})
	require.NoError(t, err)

	assert.Equal(t, 0, pages.Count())
	assert.Empty(t, collect(t, pages))
	require.NoError(t, pages.Close())
	assert.True(t, raster.closed)
}

func TestExpand_PDFOpenFailureIsUnreadable(t *testing.T) {
	raster := &fakeRaster{openErr: errors.New("broken xref")}
	_, err := New(raster).Expand(domain.SourceDocument{ID: "bad.pdf", Kind: domain.KindPDF})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnreadableSource))
}

func TestExpand_RenderFailureStopsIteration(t *testing.T) {
	img := testutil.Gradient(4, 4)
	raster := &fakeRaster{pages: []image.Image{img, img, img}, failAt: 2}
	pages, err := New(raster).Expand(domain.SourceDocument{ID: "doc.pdf", Kind: domain.KindPDF})
	require.NoError(t, err)

	var seen int
	var lastErr error
	for _, err := range pages.All() {
		if err != nil {
			lastErr = err
			continue
		}
		seen++
	}
	assert.Equal(t, 1, seen)
	require.Error(t, lastErr)
	assert.True(t, domain.IsType(lastErr, domain.ErrorTypeUnreadableSource))
}

func TestPages_NotRestartable(t *testing.T) {
	data := testutil.PNG(t, testutil.Gradient(8, 8))
	pages, err := New(nil).Expand(domain.SourceDocument{ID: "a.png", Data: data, Kind: domain.KindSingleImage})
	require.NoError(t, err)

	assert.Len(t, collect(t, pages), 1)

	var errs []error
	for _, err := range pages.All() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrConsumed)
}

func TestPages_EarlyBreak(t *testing.T) {
	data := testutil.TIFF(t,
		testutil.TIFFPage{Image: testutil.Gradient(4, 4)},
		testutil.TIFFPage{Image: testutil.Gradient(4, 4)},
		testutil.TIFFPage{Image: testutil.Gradient(4, 4)},
	)
	pages, err := New(nil).Expand(domain.SourceDocument{ID: "scan.tif", Data: data, Kind: domain.KindMultiFrameImage})
	require.NoError(t, err)

	n := 0
	for range pages.All() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestExpand_SingleImageCarriesOrientation(t *testing.T) {
	data := testutil.JPEG(t, testutil.Gradient(20, 10), 6)
	pages, err := New(nil).Expand(domain.SourceDocument{ID: "photo.jpg", Data: data, Kind: domain.KindSingleImage})
	require.NoError(t, err)

	require.Equal(t, 1, pages.Count())
	got := collect(t, pages)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 6, got[0].Orientation)
	assert.Equal(t, 20, got[0].Width)
}

func TestExpand_SingleImageRejectedByCodec(t *testing.T) {
	_, err := New(nil).Expand(domain.SourceDocument{ID: "fake.png", Data: []byte("not a png"), Kind: domain.KindSingleImage})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnidentifiedImage))
	assert.True(t, domain.IsSkippable(err))
}

func TestExpand_EmptyImageIsUnidentified(t *testing.T) {
	empty := image.NewPaletted(image.Rect(0, 0, 0, 0), color.Palette{color.Black, color.White})
	_, err := New(nil).Expand(domain.SourceDocument{ID: "blank.gif", Data: testutil.GIF(t, empty), Kind: domain.KindSingleImage})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnidentifiedImage), "got %v", err)
	assert.True(t, domain.IsSkippable(err))
}

func TestExpand_MultiFrameTIFF(t *testing.T) {
	first := testutil.Gradient(6, 4)
	second := testutil.Gradient(3, 5)
	data := testutil.TIFF(t,
		testutil.TIFFPage{Image: first},
		testutil.TIFFPage{Image: second, Orientation: 3},
	)

	pages, err := New(nil).Expand(domain.SourceDocument{ID: "scan.tiff", Data: data, Kind: domain.KindMultiFrameImage})
	require.NoError(t, err)
	require.Equal(t, 2, pages.Count())

	got := collect(t, pages)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 6, got[0].Width)
	assert.Equal(t, 4, got[0].Height)
	assert.Equal(t, 0, got[0].Orientation)

	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, 3, got[1].Width)
	assert.Equal(t, 5, got[1].Height)
	assert.Equal(t, 3, got[1].Orientation)

	r, g, b, _ := got[1].Image.At(2, 4).RGBA()
	er, eg, eb, _ := second.At(2, 4).RGBA()
	assert.Equal(t, []uint32{er, eg, eb}, []uint32{r, g, b})
}

func TestExpand_SingleFrameTIFF(t *testing.T) {
	data := testutil.TIFF(t, testutil.TIFFPage{Image: testutil.Gradient(4, 4)})
	pages, err := New(nil).Expand(domain.SourceDocument{ID: "one.tif", Data: data, Kind: domain.KindMultiFrameImage})
	require.NoError(t, err)
	assert.Equal(t, 1, pages.Count())
	assert.Len(t, collect(t, pages), 1)
}

func TestExpand_TIFFGarbage(t *testing.T) {
	_, err := New(nil).Expand(domain.SourceDocument{ID: "x.tif", Data: []byte("II*\x00\xff\xff\xff\x00"), Kind: domain.KindMultiFrameImage})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnidentifiedImage))
}

func TestExpand_Unsupported(t *testing.T) {
	_, err := New(nil).Expand(domain.SourceDocument{ID: "notes.txt", Kind: domain.KindUnsupported})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnsupportedFormat))
}

func TestFrameOffsets_Cycle(t *testing.T) {
	// One IFD with zero entries whose next pointer refers to itself.
	data := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0, 8, 0, 0, 0}
	_, _, err := frameOffsets(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loops")
}

func TestProbe(t *testing.T) {
	pdfData := testutil.PDF(
		testutil.PDFPage{Width: 50, Height: 50},
		testutil.PDFPage{Width: 50, Height: 50},
	)
	info, err := Probe(domain.SourceDocument{ID: "d.pdf", Data: pdfData, Kind: domain.KindPDF})
	require.NoError(t, err)
	assert.Equal(t, Info{Kind: domain.KindPDF, Pages: 2}, info)

	tiffData := testutil.TIFF(t,
		testutil.TIFFPage{Image: testutil.Gradient(7, 3)},
		testutil.TIFFPage{Image: testutil.Gradient(2, 2)},
	)
	info, err = Probe(domain.SourceDocument{ID: "s.tif", Data: tiffData, Kind: domain.KindMultiFrameImage})
	require.NoError(t, err)
	assert.Equal(t, Info{Kind: domain.KindMultiFrameImage, Pages: 2, Width: 7, Height: 3}, info)

	pngData := testutil.PNG(t, testutil.Gradient(9, 5))
	info, err = Probe(domain.SourceDocument{ID: "p.png", Data: pngData, Kind: domain.KindSingleImage})
	require.NoError(t, err)
	assert.Equal(t, Info{Kind: domain.KindSingleImage, Pages: 1, Width: 9, Height: 5}, info)

	_, err = Probe(domain.SourceDocument{ID: "p.png", Data: []byte("nope"), Kind: domain.KindSingleImage})
	assert.True(t, domain.IsType(err, domain.ErrorTypeUnidentifiedImage))
}
