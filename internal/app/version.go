package app

// Version is the release version of humpty.
const Version = "0.1.0"

// BuildCommit is set at link time with -ldflags "-X .../internal/app.BuildCommit=<sha>".
var BuildCommit = "dev"
