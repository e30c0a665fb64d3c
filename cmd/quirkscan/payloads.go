package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quirkscan/quirkscan/pkg/payload"
)

func newPayloadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payloads",
		Short: "Manage the payload catalog",
	}
	cmd.AddCommand(
		newPayloadsListCmd(),
		newPayloadsAddCmd(),
		newPayloadsRemoveCmd(),
		newPayloadsToggleCmd(),
		newPayloadsImportCmd(),
		newPayloadsExportCmd(),
		newPayloadsResetCmd(),
	)
	return cmd
}

func newPayloadsListCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(newLogger())
			entries := registry.All(module)
			for _, e := range entries {
				state := " "
				if !e.Enabled {
					state = "-"
				}
				fmt.Printf("%s %-8s %-8s %-24s %s\n",
					state, e.ID[:8], e.Module, e.Category, truncate(e.Value, 60))
			}
			fmt.Printf("\n%d entries (%d enabled, %d user-added)\n",
				registry.TotalCount(), registry.EnabledCount(), registry.UserAddedCount())
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "filter by module")
	return cmd
}

func newPayloadsAddCmd() *cobra.Command {
	var (
		module      string
		category    string
		value       string
		description string
		cves        []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user payload to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(newLogger())
			e := payload.NewEntry(module, category, value, description)
			e.CVERefs = cves
			if err := registry.Add(e); err != nil {
				return err
			}
			fmt.Printf("added %s (%s/%s)\n", e.ID, e.Module, e.Category)
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "target module (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "payload category (required)")
	cmd.Flags().StringVar(&value, "value", "", "payload value (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "payload description")
	cmd.Flags().StringSliceVar(&cves, "cve", nil, "related CVE identifiers")
	cmd.MarkFlagRequired("module")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("value")
	return cmd
}

func newPayloadsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a user payload (builtin entries cannot be removed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(newLogger())
			if err := registry.Remove(args[0]); err != nil {
				return err
			}
			fmt.Println("removed", args[0])
			return nil
		},
	}
}

func newPayloadsToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(newLogger())
			if err := registry.ToggleEnabled(args[0]); err != nil {
				return err
			}
			e, err := registry.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s enabled=%t\n", e.ID, e.Enabled)
			return nil
		},
	}
}

func newPayloadsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import payloads from a JSON or YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(newLogger())
			added, err := registry.ImportFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("imported %d new entries\n", added)
			return nil
		},
	}
}

func newPayloadsExportCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export the catalog to a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := newRegistry(newLogger())
			if err := registry.ExportFile(args[0], module); err != nil {
				return err
			}
			fmt.Println("exported to", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "export only one module")
	return cmd
}

func newPayloadsResetCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore a module's builtin payloads, dropping its user entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if module == "" {
				return fmt.Errorf("--module is required (one of %v)", payload.Modules)
			}
			registry := newRegistry(newLogger())
			registry.ResetToDefaults(module)
			fmt.Printf("module %s reset to defaults\n", module)
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "module to reset")
	return cmd
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
