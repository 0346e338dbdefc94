package api

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

// validatePDF checks that data is a structurally valid PDF and returns its
// page count. Runs before any model call so garbage uploads fail cheaply.
func validatePDF(data []byte) (int, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, eris.Wrap(err, "api: validate pdf")
	}
	if ctx.PageCount == 0 {
		return 0, eris.New("api: pdf has no pages")
	}
	return ctx.PageCount, nil
}
