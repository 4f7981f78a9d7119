package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophid/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string     database DSN
//	-w int        worker count
//	-t duration   run deadline (e.g. "2m")
//	-l string     log level
//	-i string     input CSV
//	-o string     output CSV
//	-r string     Redis URL for the cross-instance lock
//	-u string     S3 user
//	-p string     S3 password
//	-b string     S3 bucket
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g. "http://127.0.0.1:9000")
//
// args are filtered with flagx.FilterArgs first so -c/-config and flags meant
// for other components do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-w", "-t", "-l", "-i", "-o", "-r", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("gophid", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.Workers, "w", config.Workers, "number of workers")
	fs.DurationVar(&config.Deadline, "t", config.Deadline, "run deadline")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.Input.Path, "i", config.Input.Path, "input CSV")
	fs.StringVar(&config.OutputPath, "o", config.OutputPath, "output CSV")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "Redis URL")

	fs.StringVar(&config.S3.User, "u", config.S3.User, "S3 user")
	fs.StringVar(&config.S3.Password, "p", config.S3.Password, "S3 password")
	fs.StringVar(&config.S3.Bucket, "b", config.S3.Bucket, "S3 bucket")
	fs.StringVar(&config.S3.Region, "g", config.S3.Region, "S3 region")
	fs.StringVar(&config.S3.BaseEndpoint, "e", config.S3.BaseEndpoint, "S3 base endpoint")

	return fs.Parse(args)
}
