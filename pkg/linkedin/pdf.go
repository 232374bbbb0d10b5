package linkedin

import (
	"context"
	"io"

	"github.com/go-rod/rod/lib/proto"

	"liscraper/pkg/errors"
)

// SnapshotPDF renders the current page to a PDF. Callers treat failures as
// best-effort: a profile scrape still counts without its snapshot.
func (s *Session) SnapshotPDF(ctx context.Context) ([]byte, error) {
	reader, err := s.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
	})
	if err != nil {
		return nil, errors.Transient("render page to pdf", err)
	}

	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Transient("read pdf stream", err)
	}
	return pdf, nil
}
