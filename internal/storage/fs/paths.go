package fs

import (
	"path/filepath"

	"github.com/kk-code-lab/humpty/internal/storage/chunk"
)

// ManifestExt is appended to the source file name to form the manifest name.
const ManifestExt = ".manifest"

// Layout defines where a split's chunk files and manifest live.
// Chunks are always colocated with the manifest.
type Layout struct {
	Root string
}

// NewLayout builds a layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// LayoutFor returns the layout of the directory containing manifestPath.
func LayoutFor(manifestPath string) Layout {
	return Layout{Root: filepath.Dir(manifestPath)}
}

func (l Layout) ChunkPath(fileName string) string {
	return filepath.Join(l.Root, fileName)
}

func (l Layout) ChunkPathFor(sourceName string, index uint32) string {
	return l.ChunkPath(chunk.FileName(sourceName, index))
}

func (l Layout) ManifestPath(sourceName string) string {
	return filepath.Join(l.Root, sourceName+ManifestExt)
}

// DefaultOutputDir is the split output directory used when none is given:
// a sibling "<name>-humpty" directory in the working directory.
func DefaultOutputDir(inputPath string) string {
	return "." + string(filepath.Separator) + filepath.Base(inputPath) + "-humpty"
}
