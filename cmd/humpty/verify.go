package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/kk-code-lab/humpty/internal/ops"
)

func runVerify(args []string, stdout io.Writer) error {
	var common commonFlags
	flags := newFlagSet("verify", &common)
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
	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	e, err := newEnv(cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := ops.Verify(e.ctx(), manifestPath, e.options())
	if err != nil {
		return opError("verify", err)
	}
	if common.jsonOut {
		if err := writeJSON(stdout, report); err != nil {
			return err
		}
	} else {
		printReport(stdout, report)
	}
	if !report.OK() {
		return &exitCodeError{code: exitFailure, msg: errVerifyFoundProblem.Error(), quiet: common.jsonOut}
	}
	return nil
}

func printReport(w io.Writer, r *ops.Report) {
	status := "ok"
	if !r.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(w, "verify %s\n", status)
	fmt.Fprintf(w, "manifest: %s\n", r.Manifest)
	fmt.Fprintf(w, "chunks: %d\n", r.Chunks)
	fmt.Fprintf(w, "bytes: %d (%s)\n", r.Bytes, humanize.IBytes(r.Bytes))
	if r.SourceChecked {
		fmt.Fprintf(w, "checksum: %s\n", r.SourceChecksum)
	}
	if r.OK() {
		return
	}
	fmt.Fprintf(w, "errors: %d\n", r.Errors)
	for _, msg := range r.ErrorSample {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}
