package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

// FileWriter writes reports under a local directory, using the same layout
// as the object stores.
type FileWriter struct {
	dir string
}

var _ repo.ReportWriter = FileWriter{}

func NewFileWriter(dir string) FileWriter {
	return FileWriter{dir: dir}
}

func (w FileWriter) WriteReport(_ context.Context, report entity.Report) error {
	b, err := marshal(report)
	if err != nil {
		return pipeline.NewErrProcessingError(err, pipeline.MarshalCategory, w.dir)
	}

	key, err := computeObjectKey("", report)
	if err != nil {
		return pipeline.NewErrProcessingError(fmt.Errorf("failed to compute file name: %w", err), pipeline.ValidateCategory, w.dir)
	}

	path := filepath.Join(w.dir, filepath.FromSlash(key))

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return pipeline.NewErrProcessingError(fmt.Errorf("failed to create directory: %w", err), pipeline.WriteCategory, w.dir)
	}

	// Readers never see a partial report.
	tmp := path + ".tmp"

	err = os.WriteFile(tmp, b, 0o644)
	if err != nil {
		return pipeline.NewErrProcessingError(fmt.Errorf("failed to write file: %w", err), pipeline.WriteCategory, w.dir)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return pipeline.NewErrProcessingError(fmt.Errorf("failed to rename file: %w", err), pipeline.WriteCategory, w.dir)
	}

	return nil
}
