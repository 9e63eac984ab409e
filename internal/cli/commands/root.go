// Copyright 2024 Replicasync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"replicasync/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Persistent flags
var (
	configFlag   string
	rootsFlag    []string
	logLevelFlag string
	logFileFlag  string
)

// loaded config for the running command, set in PersistentPreRunE
var (
	cfg     *config.Config
	logFile *os.File
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var rootCmd = &cobra.Command{
	Use:   "replicasync",
	Short: "Detect changes across file replicas",
	Long: `Track the last known state of two or more directory trees (replicas) and
report every path that changed in any of them since the state was last recorded.

Replica roots and ignore rules come from config.yaml in the config directory
($REPLICASYNC_CONFIG_DIR, default ~/.replicasync). --root overrides the roots.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		path := configFlag
		if path == "" {
			if err := config.InitConfigDir(); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}
			path = config.ConfigPath()
		}

		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if len(rootsFlag) > 0 {
			loaded.Roots = rootsFlag
		}
		if logLevelFlag != "" {
			loaded.LogLevel = logLevelFlag
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded

		return setupLogging(cfg.NormalizedLogLevel(), logFileFlag)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != nil {
			err := logFile.Close()
			logFile = nil
			return err
		}
		return nil
	},
}

func init() {
	// Default logging to discard until explicitly enabled
	log.SetOutput(io.Discard)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("replicasync version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default $REPLICASYNC_CONFIG_DIR/config.yaml)")
	rootCmd.PersistentFlags().StringArrayVarP(&rootsFlag, "root", "r", nil, "replica root (repeat for each replica, overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, off")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "write logs to this file instead of stderr")
}

// setupLogging routes logrus output based on level (case insensitive).
func setupLogging(level, path string) error {
	if level == "off" {
		log.SetOutput(io.Discard)
		return nil
	}

	var out io.Writer = os.Stderr
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = f
	}
	log.SetOutput(out)

	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM stop a walk between
// directories.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
