package service

import "github.com/spf13/pflag"

// AddFlags registers the flag set shared by every adapter service
// binary.
func AddFlags(fs *pflag.FlagSet, opts *Options) {
	fs.StringVar(&opts.ConfigPath, "config", "", "configuration file path")
	fs.StringVar(&opts.LogLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	fs.StringVar(&opts.LogFile, "log-file", "", "write logs to this file instead of stderr")
	fs.DurationVar(&opts.PollInterval, "poll-interval", 0, "backend poll interval for polling adapters")
	fs.DurationVar(&opts.ExitDelay, "exit-delay", 0, "linger duration before a clean mismatch exit")
	fs.BoolVar(&opts.Web, "web", false, "serve the status endpoints on localhost")
	fs.BoolVar(&opts.NoJournal, "no-journal", false, "do not record context events")
	fs.BoolVar(&opts.Detach, "detach", false, "run in the background")
}
