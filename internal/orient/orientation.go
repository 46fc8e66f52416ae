// Package orient applies EXIF orientation so that page pixels are stored upright.
package orient

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/spherical/docprep/internal/domain"
)

// Code is an EXIF orientation value. Zero means the tag was absent.
type Code int

const (
	None         Code = 0
	Normal       Code = 1
	Rotated180   Code = 3
	RotatedCW90  Code = 6
	RotatedCCW90 Code = 8
)

// Valid reports whether c is unset or one of the eight defined EXIF values.
func (c Code) Valid() bool {
	return c >= 0 && c <= 8
}

// Read extracts the orientation tag from JPEG or TIFF bytes. Formats without EXIF, and
// tags that fail to decode, read as None.
func Read(data []byte) Code {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return None
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return None
	}
	v, err := tag.Int(0)
	if err != nil {
		return None
	}
	c := Code(v)
	if !c.Valid() {
		return None
	}
	return c
}

// Normalize returns page rotated upright and whether a rotation was applied. Only codes
// 3, 6 and 8 are corrected; mirrored variants and unknown values pass through. Rotations
// expand the canvas, nothing is cropped.
func Normalize(page domain.PageBuffer) (domain.PageBuffer, bool) {
	var rotated image.Image
	switch Code(page.Orientation) {
	case Rotated180:
		rotated = imaging.Rotate180(page.Image)
	case RotatedCW90:
		rotated = imaging.Rotate270(page.Image)
	case RotatedCCW90:
		rotated = imaging.Rotate90(page.Image)
	default:
		return page, false
	}
	return domain.NewPageBuffer(page.Index, rotated, int(Normal)), true
}
