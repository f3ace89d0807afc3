package pdftable

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Info is container-level metadata, used in debug reports.
type Info struct {
	Version   string `json:"version"`
	PageCount int    `json:"page_count"`
	Title     string `json:"title,omitempty"`
	Producer  string `json:"producer,omitempty"`
	Creator   string `json:"creator,omitempty"`
	Encrypted bool   `json:"encrypted"`
}

// Inspect reads document metadata with pdfcpu. It is stricter than the
// reader used for extraction, so a failure here is informational only.
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Inspect: file not accessible: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	info, err := api.PDFInfo(f, path, nil, conf)
	if err != nil {
		return nil, fmt.Errorf("Inspect: reading PDF info: %w", err)
	}

	return &Info{
		Version:   info.Version,
		PageCount: info.PageCount,
		Title:     info.Title,
		Producer:  info.Producer,
		Creator:   info.Creator,
		Encrypted: info.Encrypted,
	}, nil
}
