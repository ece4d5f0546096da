package ops

import (
	"fmt"
	"os"

	"github.com/kk-code-lab/humpty/internal/storage/fs"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

// ChunkStatus pairs a manifest entry with what is on disk for it.
type ChunkStatus struct {
	manifest.Chunk
	Path     string `json:"path"`
	Present  bool   `json:"present"`
	DiskSize int64  `json:"disk_size"`
}

// SizeOK reports whether the chunk file exists with exactly the recorded size.
func (c ChunkStatus) SizeOK() bool {
	return c.Present && c.DiskSize >= 0 && uint64(c.DiskSize) == c.Size
}

// Inspection is a validated manifest plus a stat of each chunk file.
type Inspection struct {
	ManifestPath string             `json:"manifest_path"`
	Manifest     *manifest.Manifest `json:"manifest"`
	Chunks       []ChunkStatus      `json:"chunks"`
}

// Complete reports whether every chunk file is present with the right size.
func (in *Inspection) Complete() bool {
	for _, c := range in.Chunks {
		if !c.SizeOK() {
			return false
		}
	}
	return true
}

// Inspect reads and validates a manifest and stats its chunk files. It does
// not read chunk contents; use Verify for that.
func Inspect(manifestPath string) (*Inspection, error) {
	man, err := manifest.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	layout := fs.LayoutFor(manifestPath)
	out := &Inspection{ManifestPath: manifestPath, Manifest: man, Chunks: make([]ChunkStatus, 0, len(man.Chunks))}
	for _, ch := range man.Chunks {
		status := ChunkStatus{Chunk: ch, Path: layout.ChunkPath(ch.FileName)}
		info, err := os.Stat(status.Path)
		if err == nil && info.Mode().IsRegular() {
			status.Present = true
			status.DiskSize = info.Size()
		}
		out.Chunks = append(out.Chunks, status)
	}
	return out, nil
}
