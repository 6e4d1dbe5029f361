// Command shopsim drives simulated shoppers against a running service and
// checks the feed and reel pages they are served.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/tailor/internal/shopsim"
	"github.com/okian/tailor/pkg/logger"
)

// Default configuration constants.
const (
	defaultVisitors    = 200
	defaultEvents      = 40
	defaultFeedPages   = 3
	defaultReelPages   = 3
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = 2 * time.Second
	defaultRunDeadline = 10 * time.Minute
)

// errViolations marks a run that finished but saw bad pages.
var errViolations = errors.New("page violations found")

var (
	cfg       shopsim.Config
	verbose   bool
	logFormat string
	now       = time.Now
)

var rootCmd = &cobra.Command{
	Use:           "shopsim",
	Short:         "Simulated storefront traffic for the tailor service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithFormat(logFormat)); err != nil {
			return err
		}
		if verbose {
			return logger.SetLevelString("debug")
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit generated events and verify ranked pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunDeadline)
		defer cancel()

		st, err := shopsim.NewRunner(&cfg, logger.Named("shopsim")).Run(ctx)
		if perr := printJSON(cmd.OutOrStdout(), st); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return err
		}
		if len(st.Violations) > 0 {
			return fmt.Errorf("%w: %d", errViolations, len(st.Violations))
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write generated visitors and events without contacting a service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		src, err := shopsim.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		shelf, err := shopsim.LoadShelf(cmd.Context(), src)
		if err != nil {
			return err
		}
		visitors := shopsim.Generate(&cfg, shelf, now())
		if cfg.OutputFile == "" {
			return printJSON(cmd.OutOrStdout(), visitors)
		}
		if err := shopsim.WriteVisitors(cfg.OutputFile, visitors); err != nil {
			return err
		}
		logger.Named("shopsim").Info(cmd.Context(), "visitors written",
			logger.String("file", cfg.OutputFile),
			logger.Int("visitors", len(visitors)))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.CatalogPath, "catalog", "", "Catalog file the events refer to (default: bundled sample)")
	pf.StringVar(&cfg.Seed, "seed", "shopsim", "Seed for reproducible visitors")
	pf.IntVar(&cfg.Visitors, "visitors", defaultVisitors, "Number of simulated visitors")
	pf.IntVar(&cfg.EventsPerVisitor, "events", defaultEvents, "Browsing events per visitor")
	pf.StringVarP(&cfg.OutputFile, "output", "o", "", "Write generated visitors to this file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	f := runCmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.FeedPages, "feed-pages", defaultFeedPages, "Feed pages fetched per visitor")
	f.IntVar(&cfg.ReelPages, "reel-pages", defaultReelPages, "Reel pages fetched per visitor")
	f.IntVar(&cfg.PageLimit, "limit", 0, "Requested page size (default: server default)")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requests")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.SettleDelay, "settle", defaultSettle, "Wait between submitting events and ranking")

	rootCmd.AddCommand(runCmd, generateCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "shopsim:", err)
		os.Exit(1)
	}
}
