package ops

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kk-code-lab/humpty/internal/meta"
	"github.com/kk-code-lab/humpty/internal/storage/fs"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

// ErrCatalogRequired is returned by ImportManifests when no catalog is configured.
var ErrCatalogRequired = errors.New("ops: catalog required")

// ImportReport summarizes an ImportManifests run.
type ImportReport struct {
	Root        string   `json:"root"`
	Manifests   int      `json:"manifests"`
	Recorded    int      `json:"recorded"`
	Skipped     int      `json:"skipped"`
	ErrorSample []string `json:"error_sample,omitempty"`
}

func (r *ImportReport) skip(err error) {
	r.Skipped++
	if len(r.ErrorSample) < maxErrorSample {
		r.ErrorSample = append(r.ErrorSample, err.Error())
	}
}

// ImportManifests walks root for manifest files and records a split run in
// the catalog for each one that decodes and validates. It rebuilds the
// catalog after splits made without one; such runs carry no fingerprint.
// Unreadable manifests are counted as skipped.
func ImportManifests(ctx context.Context, root string, opts Options) (*ImportReport, error) {
	if opts.Catalog == nil {
		return nil, ErrCatalogRequired
	}
	log := opts.logger().With(zap.String("op", "import"), zap.String("root", root))
	report := &ImportReport{Root: root}

	err := filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fs.ManifestExt) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Manifests++
		man, err := manifest.ReadFile(path)
		if err != nil {
			report.skip(fmt.Errorf("%s: %w", path, err))
			return nil
		}
		if _, err := opts.Catalog.RecordRun(ctx, meta.Run{
			Kind:           meta.KindSplit,
			ManifestPath:   absPath(path),
			SourceName:     man.SourceFileName,
			Bytes:          man.SourceSize,
			Chunks:         len(man.Chunks),
			SourceChecksum: man.SourceChecksum,
		}); err != nil {
			return fmt.Errorf("record %s: %w", path, err)
		}
		report.Recorded++
		log.Debug("manifest imported", zap.String("manifest", path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("import complete", zap.Int("recorded", report.Recorded), zap.Int("skipped", report.Skipped))
	return report, nil
}
