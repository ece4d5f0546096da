package main

import (
	"fmt"
	"io"
)

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  %[1]s split --input <file> --out <dir> --chunk-size <size>
  %[1]s join --manifest <file> --output <file> [--no-verify]
  %[1]s verify --manifest <file>
  %[1]s inspect --manifest <file>
  %[1]s catalog [--limit <n>] [--import <dir>]
  %[1]s --help
  %[1]s --version

Common flags:
  --config <file>   YAML config (default $HUMPTY_CONFIG)
  --catalog <file>  SQLite run catalog (default from config)
  --json            print the result as JSON

Chunk size examples:
  1048576   (bytes)
  1M        (MiB)
  512K
`, programName)
}
