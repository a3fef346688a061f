package config

import (
	"flag"
	"os"

	"github.com/thelarryrutledge/nvlp-go/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-rest string           base URL of the table (PostgREST) transport
//	-auth string           base URL of the identity endpoints
//	-fn string             base URL of the edge-function transport
//	-key string            static API key
//	-queue-driver string   offline queue backend: memory, file, redis
//	-queue-max int         offline queue capacity
//
// Only these flags are consumed (via flagx.FilterArgs), so subcommands and
// other packages can define their own without interference.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-rest", "-auth", "-fn", "-key", "-queue-driver", "-queue-max",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RestURL, "rest", cfg.RestURL, "base URL of the table transport")
	fs.StringVar(&cfg.AuthURL, "auth", cfg.AuthURL, "base URL of the identity endpoints")
	fs.StringVar(&cfg.FunctionsURL, "fn", cfg.FunctionsURL, "base URL of the edge-function transport")
	fs.StringVar(&cfg.APIKey, "key", cfg.APIKey, "static API key")
	fs.StringVar(&cfg.QueueDriver, "queue-driver", cfg.QueueDriver, "offline queue backend (memory, file, redis)")
	fs.IntVar(&cfg.QueueMaxSize, "queue-max", cfg.QueueMaxSize, "offline queue capacity")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
