package pdf

import (
	"bytes"
	"fmt"

	"github.com/spherical/docprep/internal/domain"
)

const (
	maxDPI = 1200
	// Inputs above this size are processed but logged by callers.
	largeDocumentBytes = 100 * 1024 * 1024
)

// Validator provides input validation for PDF payloads
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateData checks that data looks like a PDF before handing it to a parser.
func (v *Validator) ValidateData(data []byte) error {
	if len(data) == 0 {
		return domain.UnreadableSourceError("PDF payload is empty", nil)
	}
	// The header may be preceded by junk bytes; readers accept it within the first KiB.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return domain.UnreadableSourceError("payload has no PDF header", nil)
	}
	return nil
}

// ValidateDPI validates the rasterization resolution
func (v *Validator) ValidateDPI(dpi int) error {
	if dpi < 1 || dpi > maxDPI {
		return domain.ConfigError(fmt.Sprintf("PDF DPI must be between 1 and %d, got %d", maxDPI, dpi), nil)
	}
	return nil
}

// IsLarge reports whether a payload is big enough to warrant a warning.
func (v *Validator) IsLarge(data []byte) bool {
	return len(data) > largeDocumentBytes
}
