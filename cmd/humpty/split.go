package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/kk-code-lab/humpty/internal/config"
	"github.com/kk-code-lab/humpty/internal/ops"
	"github.com/kk-code-lab/humpty/internal/storage/fs"
)

func runSplit(args []string, stdout io.Writer) error {
	var common commonFlags
	flags := newFlagSet("split", &common)
	input := flags.StringP("input", "i", "", "Source file")
	outDir := flags.StringP("out", "o", "", "Output directory (default ./<name>-humpty)")
	sizeArg := flags.StringP("chunk-size", "c", "", "Chunk size in bytes, or with a K, M or G suffix")
	if err := parseFlags(flags, &common, args); err != nil {
		return err
	}
	inputPath, err := positional(*input, flags.Args())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}

	chunkSize := cfg.DefaultChunkSize()
	if *sizeArg != "" {
		chunkSize, err = config.ParseSize(*sizeArg)
		if err != nil {
			return usageError(fmt.Errorf("invalid chunk size %q: %w", *sizeArg, err))
		}
	}
	if inputPath == "" || chunkSize == 0 {
		return usageError(errSplitArgsRequired)
	}
	if *outDir == "" {
		*outDir = fs.DefaultOutputDir(inputPath)
	}

	e, err := newEnv(cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := ops.Split(e.ctx(), ops.SplitRequest{
		InputPath: inputPath,
		OutputDir: *outDir,
		ChunkSize: chunkSize,
	}, e.options())
	if err != nil {
		return opError("split", err)
	}
	if common.jsonOut {
		return writeJSON(stdout, res)
	}
	fmt.Fprintln(stdout, "split complete")
	fmt.Fprintf(stdout, "manifest: %s\n", res.ManifestPath)
	fmt.Fprintf(stdout, "chunks: %d\n", res.ChunkCount)
	fmt.Fprintf(stdout, "bytes: %d (%s)\n", res.TotalBytes, humanize.IBytes(res.TotalBytes))
	fmt.Fprintf(stdout, "checksum: %s\n", res.SourceChecksum)
	return nil
}
