package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/kk-code-lab/humpty/internal/ops"
)

func runJoin(args []string, stdout io.Writer) error {
	var common commonFlags
	flags := newFlagSet("join", &common)
	manifestFlag := flags.StringP("manifest", "m", "", "Manifest file")
	output := flags.StringP("output", "o", "", "Reassembled output file")
	noVerify := flags.BoolP("no-verify", "n", false, "Skip checksum verification")
	if err := parseFlags(flags, &common, args); err != nil {
		return err
	}
	manifestPath, err := positional(*manifestFlag, flags.Args())
	if err != nil {
		return err
	}
	if manifestPath == "" || *output == "" {
		return usageError(errJoinArgsRequired)
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

	res, err := ops.Join(e.ctx(), ops.JoinRequest{
		ManifestPath: manifestPath,
		OutputPath:   *output,
		Verify:       !*noVerify,
	}, e.options())
	if err != nil {
		return opError("join", err)
	}
	if common.jsonOut {
		return writeJSON(stdout, res)
	}
	fmt.Fprintln(stdout, "join complete")
	fmt.Fprintf(stdout, "output: %s\n", res.OutputPath)
	fmt.Fprintf(stdout, "bytes: %d (%s)\n", res.TotalBytesWritten, humanize.IBytes(res.TotalBytesWritten))
	fmt.Fprintf(stdout, "verified: %t\n", res.Verified)
	return nil
}
