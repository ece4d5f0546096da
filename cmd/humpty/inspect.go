package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/kk-code-lab/humpty/internal/ops"
)

func runInspect(args []string, stdout io.Writer) error {
	var common commonFlags
	flags := newFlagSet("inspect", &common)
	manifestFlag := flags.StringP("manifest", "m", "", "Manifest file")
	if err := parseFlags(flags, &common, args); err != nil {
		return err
	}
	manifestPath, err := positional(*manifestFlag, flags.Args())
	if err != nil {
		return err
	}
	if manifestPath == "" {
		return usageError(errManifestRequired)
	}

	in, err := ops.Inspect(manifestPath)
	if err != nil {
		return opError("inspect", err)
	}
	if common.jsonOut {
		if err := writeJSON(stdout, in); err != nil {
			return err
		}
	} else {
		printInspection(stdout, in)
	}
	if !in.Complete() {
		return &exitCodeError{code: exitFailure, msg: "inspect: chunk files missing or of the wrong size", quiet: common.jsonOut}
	}
	return nil
}

func printInspection(w io.Writer, in *ops.Inspection) {
	m := in.Manifest
	fmt.Fprintf(w, "manifest: %s\n", in.ManifestPath)
	fmt.Fprintf(w, "source: %s (%s)\n", m.SourceFileName, humanize.IBytes(m.SourceSize))
	fmt.Fprintf(w, "chunk size: %s\n", humanize.IBytes(m.ChunkSize))
	fmt.Fprintf(w, "checksum: %s\n", m.SourceChecksum)
	fmt.Fprintf(w, "chunks: %d\n", len(in.Chunks))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tFILE\tSIZE\tCHECKSUM\tSTATUS")
	for _, c := range in.Chunks {
		status := "ok"
		switch {
		case !c.Present:
			status = "missing"
		case !c.SizeOK():
			status = fmt.Sprintf("size %d", c.DiskSize)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", c.Index, c.FileName, c.Size, c.Checksum, status)
	}
	_ = tw.Flush()
}
