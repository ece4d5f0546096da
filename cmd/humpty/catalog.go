package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/kk-code-lab/humpty/internal/ops"
)

func runCatalog(args []string, stdout io.Writer) error {
	var common commonFlags
	flags := newFlagSet("catalog", &common)
	limit := flags.IntP("limit", "l", 20, "Number of runs to list (0 for all)")
	importDir := flags.String("import", "", "Record a split run for every manifest under this directory")
	if err := parseFlags(flags, &common, args); err != nil {
		return err
	}
	if flags.NArg() > 0 {
		return usageError(fmt.Errorf("unexpected argument: %s", flags.Arg(0)))
	}
	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if *importDir != "" {
		return runImport(e, *importDir, common.jsonOut, stdout)
	}

	runs, err := e.catalog.ListRuns(e.ctx(), *limit)
	if err != nil {
		return opError("catalog", err)
	}
	if common.jsonOut {
		return writeJSON(stdout, runs)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tSOURCE\tSIZE\tCHUNKS\tVERIFIED\tMANIFEST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
			r.Seq, r.Kind, r.SourceName, humanize.IBytes(r.Bytes), r.Chunks, r.Verified, r.ManifestPath)
	}
	return tw.Flush()
}

func runImport(e *env, root string, jsonOut bool, stdout io.Writer) error {
	report, err := ops.ImportManifests(e.ctx(), root, e.options())
	if err != nil {
		return opError("import", err)
	}
	if jsonOut {
		return writeJSON(stdout, report)
	}
	fmt.Fprintf(stdout, "imported %d of %d manifests\n", report.Recorded, report.Manifests)
	for _, msg := range report.ErrorSample {
		fmt.Fprintf(stdout, "  skipped %s\n", msg)
	}
	return nil
}
