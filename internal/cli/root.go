// Package cli wires the triesyncd binary's subcommands together with
// cobra, mirroring the flag and command layout the rest of this stack
// uses for its own CLIs.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ywzqhl/triesync/internal/config"
)

var (
	configFile string
	debug      bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "triesyncd",
	Short: "triesyncd - radix-16 Merkle trie synchronizer",
	Long: `triesyncd replicates a content-addressed key/value trie from a
source that holds a complete map to a destination that starts empty,
verifying every node against its parent's committed digest as it goes.`,
	Version: "0.1.0-dev",
}

// Execute runs the root command; called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (TOML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

// applyLogConfig points the standard logger at cfg.Log's chosen level and
// format: "json" gets a timestamp-free prefix suited to a single-line
// log aggregator, "console" keeps Go's default date/time prefix, and a
// level of "silent" discards output entirely rather than special-casing
// every log.Printf call site. --debug always wins over a quieter
// configured level, since a developer reaching for --debug wants output
// regardless of what's on disk.
func applyLogConfig(lc config.LogConfig) {
	switch lc.Format {
	case "json":
		log.SetFlags(0)
		log.SetPrefix("")
	default:
		log.SetFlags(log.LstdFlags)
	}

	if lc.Level == "silent" && !debug {
		log.SetOutput(io.Discard)
	}
}
