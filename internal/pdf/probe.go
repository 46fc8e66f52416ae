package pdf

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/docprep/internal/domain"
)

// PageCount reads the page tree of data without rendering anything.
func PageCount(data []byte) (int, error) {
	if err := NewValidator().ValidateData(data); err != nil {
		return 0, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, domain.UnreadableSourceError("failed to read PDF page tree", err)
	}
	return n, nil
}
