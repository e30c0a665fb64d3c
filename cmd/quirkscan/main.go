// quirkscan probes a web target for logic and implementation-level
// vulnerabilities by replaying crafted request variants and diffing the
// responses against a baseline.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quirkscan/quirkscan/pkg/httpclient"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/scanner"
	"github.com/quirkscan/quirkscan/pkg/ui"
)

var (
	flagVerbose  bool
	flagStore    string
	flagTimeout  time.Duration
	flagProxy    string
	flagInsecure bool
	flagRate     float64
)

var rootCmd = &cobra.Command{
	Use:           "quirkscan",
	Short:         "Probe-diff-classify scanner for web logic flaws",
	Long: `quirkscan sends crafted request variants against a web target and
statistically compares the responses to a baseline, covering template
injection, ORM filter leakage, cache and middleware bypass, Unicode
normalization WAF bypass, SSRF via redirects, parser differentials,
HTTP/2 CONNECT tunnel abuse, and ETag cache side-channels.`,
	Version:       ui.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flagStore, "store", "", "payload catalog path (default ~/.quirkscan/payloads.json)")
	pf.DurationVar(&flagTimeout, "timeout", 10*time.Second, "per-request timeout")
	pf.StringVar(&flagProxy, "proxy", "", "HTTP proxy URL")
	pf.BoolVar(&flagInsecure, "insecure", false, "skip TLS certificate verification")
	pf.Float64Var(&flagRate, "rate", 0, "max requests per second (0 = unlimited)")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newPayloadsCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newFindingsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ui.ColorTerminal() {
			rootCmd.PrintErrln(ui.ErrorStyle.Render("error:"), err)
		} else {
			rootCmd.PrintErrln("error:", err)
		}
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRegistry(logger *slog.Logger) *payload.Registry {
	path := flagStore
	if path == "" {
		path = payload.DefaultStorePath()
	}
	return payload.NewRegistry(path, logger)
}

func newSender(logger *slog.Logger) probe.Sender {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = flagTimeout
	cfg.Proxy = flagProxy
	cfg.InsecureSkipVerify = flagInsecure

	var s probe.Sender = &probe.HTTPSender{
		Client:    httpclient.New(cfg),
		UserAgent: probe.DefaultUserAgent,
		Logger:    logger,
	}
	s = scanner.NewInstrumentedSender(s)
	return probe.NewRateLimited(s, flagRate)
}
