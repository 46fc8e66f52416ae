package expand

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"golang.org/x/image/tiff"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/orient"
)

const (
	tiffHeaderSize = 8
	ifdEntrySize   = 12
	// Upper bound on frames per file; guards against corrupt or cyclic IFD chains.
	maxFrames = 10000
)

// frameOffsets walks the IFD chain of a classic TIFF and returns the offset of every
// image file directory in stored order.
func frameOffsets(data []byte) ([]uint32, binary.ByteOrder, error) {
	if len(data) < tiffHeaderSize {
		return nil, nil, fmt.Errorf("tiff: header truncated")
	}

	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("tiff: bad byte order marker %q", data[:2])
	}
	if magic := order.Uint16(data[2:4]); magic != 42 {
		return nil, nil, fmt.Errorf("tiff: unsupported magic number %d", magic)
	}

	var offsets []uint32
	seen := make(map[uint32]bool)
	off := order.Uint32(data[4:8])
	for off != 0 {
		if seen[off] {
			return nil, nil, fmt.Errorf("tiff: IFD chain loops back to offset %d", off)
		}
		if len(offsets) >= maxFrames {
			return nil, nil, fmt.Errorf("tiff: more than %d frames", maxFrames)
		}
		if uint64(off)+2 > uint64(len(data)) {
			return nil, nil, fmt.Errorf("tiff: IFD offset %d out of range", off)
		}
		n := uint64(order.Uint16(data[off : off+2]))
		next := uint64(off) + 2 + n*ifdEntrySize
		if next+4 > uint64(len(data)) {
			return nil, nil, fmt.Errorf("tiff: IFD at offset %d truncated", off)
		}

		seen[off] = true
		offsets = append(offsets, off)
		off = order.Uint32(data[next : next+4])
	}
	if len(offsets) == 0 {
		return nil, nil, fmt.Errorf("tiff: no image directories")
	}
	return offsets, order, nil
}

// tiffFrames is a decoded view over one multi-frame TIFF payload.
type tiffFrames struct {
	data    []byte
	order   binary.ByteOrder
	offsets []uint32
}

func openTIFF(data []byte) (*tiffFrames, error) {
	offsets, order, err := frameOffsets(data)
	if err != nil {
		return nil, err
	}
	return &tiffFrames{data: data, order: order, offsets: offsets}, nil
}

func (f *tiffFrames) count() int {
	return len(f.offsets)
}

// frame decodes the i-th directory. The decoder only reads the first IFD, so each frame
// is decoded from a copy whose header points at that frame's directory.
func (f *tiffFrames) frame(i int) (domain.PageBuffer, error) {
	patched := f.data
	if i > 0 {
		patched = bytes.Clone(f.data)
		f.order.PutUint32(patched[4:8], f.offsets[i])
	}

	img, err := tiff.Decode(bytes.NewReader(patched))
	if err != nil {
		return domain.PageBuffer{}, domain.UnreadableSourceError(fmt.Sprintf("failed to decode TIFF frame %d", i+1), err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return domain.PageBuffer{}, domain.UnidentifiedImageError(fmt.Sprintf("TIFF frame %d", i+1), errEmptyImage)
	}
	return domain.NewPageBuffer(i+1, img, int(orient.Read(patched))), nil
}

// decodeConfig returns the dimensions of the first frame.
func (f *tiffFrames) decodeConfig() (image.Config, error) {
	return tiff.DecodeConfig(bytes.NewReader(f.data))
}
