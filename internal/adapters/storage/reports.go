package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

// ReportWriter implements ports.ReportWriter as JSON files in a directory.
type ReportWriter struct {
	fs  afero.Fs
	dir string
}

// NewReportWriter returns a writer storing reports in dir on fsys.
func NewReportWriter(fsys afero.Fs, dir string) *ReportWriter {
	return &ReportWriter{fs: fsys, dir: filepath.Clean(dir)}
}

// ReportName is the file name of a report generated at the given time.
func ReportName(r *domain.CleanupReport) string {
	return fmt.Sprintf("cleanup-report-%d.json", r.GeneratedAt.UnixMilli())
}

// WriteReport writes cleanup-report-<epochMillis>.json and returns its path.
func (w *ReportWriter) WriteReport(ctx context.Context, report *domain.CleanupReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	p := filepath.Join(w.dir, ReportName(report))
	if err := afero.WriteFile(w.fs, p, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return p, nil
}
