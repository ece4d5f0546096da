package main

import "errors"

var (
	errShowUsage          = errors.New("show usage")
	errSplitArgsRequired  = errors.New("split requires <input-file> and --chunk-size/-c <bytes|K|M|G>")
	errJoinArgsRequired   = errors.New("join requires <manifest-file> and --output/-o <path>")
	errManifestRequired   = errors.New("manifest required: --manifest/-m <file>")
	errCatalogNotSet      = errors.New("catalog not configured: set --catalog, HUMPTY_CATALOG or catalog in the config file")
	errVerifyFoundProblem = errors.New("verification found problems")
)
