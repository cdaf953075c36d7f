package version

// Version is the winctx release version, overridable at build time with
// -ldflags "-X github.com/winctx/winctx/version.Version=..."
var Version = "0.3.0"

// Date is the build date, set the same way.
var Date = "unknown"
