package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const banner = `
    ____ ____  __  __           __
   /  _// __ \/ / / /___ ______/ /_  ___  _____
   / / / /_/ / /_/ / __ '/ ___/ __ \/ _ \/ ___/
 _/ / / ____/ __  / /_/ (__  ) / / /  __/ /
/___//_/   /_/ /_/\__,_/____/_/ /_/\___/_/

  v%s | SHA-256 preimage search over the IPv4 keyspace
`

// exitError carries a process exit status for outcomes that are not
// failures of the tool itself, such as a miss.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app is the state shared by every subcommand once flags and config are
// resolved.
type app struct {
	v       *viper.Viper
	cfgFile string
	noColor bool
	quiet   bool

	cfg *Config
	log *logrus.Logger
	out *Display
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:           "iphasher",
		Short:         "Recover the IPv4 address behind a SHA-256 digest",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML configuration file (default ./iphasher.yaml if present)")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable coloured output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Hide the banner and progress line")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.IntP("workers", "w", 0, "Worker goroutines (0 = one per CPU)")
	pf.StringP("backend", "b", "", "Digest backend: auto, portable, stdlib, simd")
	pf.StringP("range", "r", "", "Restrict the keyspace: CIDR, a-b range, or single address")
	pf.StringP("data-dir", "d", "", "Reverse index data directory")

	a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	a.v.BindPFlag("search.workers", pf.Lookup("workers"))
	a.v.BindPFlag("search.backend", pf.Lookup("backend"))
	a.v.BindPFlag("search.range", pf.Lookup("range"))
	a.v.BindPFlag("index.data_dir", pf.Lookup("data-dir"))

	root.AddCommand(
		newSearchCmd(a),
		newGenerateCmd(a),
		newQueryCmd(a),
		newBenchCmd(a),
		newBackendsCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root, a
}

// load resolves the effective configuration. Flags left at their zero
// value do not override config or environment.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if a.noColor {
		cfg.Log.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = cfg.NewLogger()
	a.out = NewDisplay(cmd.OutOrStdout(), cfg.Log.Color)
	return nil
}

func (a *app) printBanner() {
	if !a.quiet {
		fmt.Fprintf(a.out.w, banner, AppVersion)
		fmt.Fprintln(a.out.w)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	if a.out != nil {
		a.out.Errorf("%v", err)
	} else {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
	}
	os.Exit(1)
}
