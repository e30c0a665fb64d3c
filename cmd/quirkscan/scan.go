package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quirkscan/quirkscan/pkg/checks/etagleak"
	"github.com/quirkscan/quirkscan/pkg/checks/nextjs"
	"github.com/quirkscan/quirkscan/pkg/checks/ormleak"
	"github.com/quirkscan/quirkscan/pkg/checks/parserdiff"
	"github.com/quirkscan/quirkscan/pkg/checks/ssrf"
	"github.com/quirkscan/quirkscan/pkg/checks/ssti"
	"github.com/quirkscan/quirkscan/pkg/checks/tunnel"
	"github.com/quirkscan/quirkscan/pkg/checks/uninorm"
	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/payload"
	"github.com/quirkscan/quirkscan/pkg/probe"
	"github.com/quirkscan/quirkscan/pkg/scanner"
	"github.com/quirkscan/quirkscan/pkg/ui"
)

func newScanCmd() *cobra.Command {
	var (
		param       string
		modules     []string
		maxPayloads int
		passiveOnly bool
		output      string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Run all enabled checks against a target URL",
		Example: `  quirkscan scan https://example.com/api/users
  quirkscan scan https://example.com/search -p q
  quirkscan scan https://example.com --modules ssti,orm --rate 5
  quirkscan scan https://example.com -o findings.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			sender := newSender(logger)
			registry := newRegistry(logger)

			baseReq, err := probe.NewRequest(http.MethodGet, args[0])
			if err != nil {
				return err
			}
			if param == "" {
				param = firstQueryParam(baseReq)
			}

			ui.PrintBanner(os.Stderr)
			logger.Info("sending baseline request", "url", args[0])
			baseRes, err := sender.Send(cmd.Context(), baseReq)
			if err != nil {
				return fmt.Errorf("baseline request failed: %w", err)
			}
			baseline := &probe.Exchange{Request: baseReq, Response: baseRes}

			ledger := finding.NewLedger()
			checks := buildChecks(sender, registry, logger, maxPayloads, modules)
			runner := scanner.NewRunner(checks, ledger, logger)

			runner.Passive(cmd.Context(), baseline)
			if !passiveOnly {
				ip, err := probe.NewQueryParamInsertion(baseReq, param)
				if err != nil {
					return err
				}
				logger.Info("running active checks", "parameter", param, "checks", len(checks))
				runner.Active(cmd.Context(), baseline, ip)
			}

			formatter := ui.NewFindingFormatter(flagVerbose)
			for _, f := range ledger.All() {
				fmt.Println(formatter.FormatFinding(f))
			}
			fmt.Println(formatter.FormatSummary(ledger))

			if output != "" {
				return exportLedger(ledger, output, format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&param, "param", "p", "", "query parameter to inject payloads into")
	cmd.Flags().StringSliceVar(&modules, "modules", nil,
		"modules to run (default all): "+strings.Join(payload.Modules, ","))
	cmd.Flags().IntVar(&maxPayloads, "max-payloads", 0, "cap payloads per category per check")
	cmd.Flags().BoolVar(&passiveOnly, "passive-only", false, "run passive audits only")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write findings to file")
	cmd.Flags().StringVar(&format, "format", "json", "export format: json or csv")
	return cmd
}

// buildChecks wires every requested check onto the shared sender and
// registry. An empty module list enables everything.
func buildChecks(sender probe.Sender, registry *payload.Registry, logger *slog.Logger,
	maxPayloads int, modules []string) []scanner.Check {

	base := scanner.Base{Sender: sender, Logger: logger, MaxPayloads: maxPayloads}
	all := []scanner.Check{
		ssti.New(ssti.Config{Base: base, Registry: registry}),
		ormleak.New(ormleak.Config{Base: base, Registry: registry}),
		nextjs.New(nextjs.Config{Base: base, Registry: registry}),
		uninorm.New(uninorm.Config{Base: base, Registry: registry}),
		ssrf.New(ssrf.Config{Base: base, Registry: registry}),
		parserdiff.New(parserdiff.Config{Base: base, Registry: registry}),
		tunnel.New(tunnel.Config{Base: base, Registry: registry}),
		etagleak.New(etagleak.Config{Base: base, Registry: registry}),
	}
	if len(modules) == 0 {
		return all
	}

	wanted := make(map[string]bool, len(modules))
	for _, m := range modules {
		wanted[strings.ToLower(strings.TrimSpace(m))] = true
	}
	var out []scanner.Check
	for _, c := range all {
		if wanted[c.Module()] {
			out = append(out, c)
		}
	}
	return out
}

// firstQueryParam picks an insertion parameter from the target URL,
// falling back to "q".
func firstQueryParam(req *probe.Request) string {
	for key := range req.URL.Query() {
		return key
	}
	return "q"
}

func exportLedger(ledger *finding.Ledger, path, format string) error {
	var data []byte
	switch strings.ToLower(format) {
	case "csv":
		data = []byte(ledger.ExportCSV())
	case "json":
		var err error
		data, err = ledger.ExportJSON()
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format %q (want json or csv)", format)
	}
	return os.WriteFile(path, data, 0o644)
}
