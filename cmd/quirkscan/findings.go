package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/jsonutil"
	"github.com/quirkscan/quirkscan/pkg/ui"
)

func newFindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Work with exported findings files",
	}
	cmd.AddCommand(newFindingsShowCmd(), newFindingsConvertCmd())
	return cmd
}

func newFindingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file.json>",
		Short: "Render an exported findings file in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := loadFindings(args[0])
			if err != nil {
				return err
			}
			formatter := ui.NewFindingFormatter(flagVerbose)
			for _, f := range ledger.All() {
				fmt.Println(formatter.FormatFinding(f))
			}
			fmt.Println(formatter.FormatSummary(ledger))
			return nil
		},
	}
}

func newFindingsConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <file.json> <out.csv>",
		Short: "Convert a JSON findings export to CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.HasSuffix(args[1], ".csv") {
				return fmt.Errorf("output file must end in .csv")
			}
			ledger, err := loadFindings(args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], []byte(ledger.ExportCSV()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %d findings to %s\n", ledger.Size(), args[1])
			return nil
		},
	}
}

// loadFindings rebuilds a ledger from a JSON export. Duplicate rows in
// the file collapse under the ledger's dedup rules.
func loadFindings(path string) (*finding.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var findings []*finding.Finding
	if err := jsonutil.Unmarshal(data, &findings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ledger := finding.NewLedger()
	for _, f := range findings {
		ledger.Add(f)
	}
	return ledger, nil
}
