package main

import (
	"fmt"
	"text/tabwriter"

	"chatbot-parser/pkg/registry"

	"github.com/spf13/cobra"
)

func newRegistryCmd() *cobra.Command {
	var path string

	load := func() (*registry.ActivityRegistry, error) {
		if path == "" {
			return registry.Default(), nil
		}
		return registry.LoadRegistry(path)
	}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and edit the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "registry JSON file (default: built-in)")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the registry for naming, schema and duplicate errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry is valid (%d activities)\n", len(reg.Activities))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TASK TYPE\tID\tSTATUS\tTIMEOUT")
			for _, a := range reg.Activities {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.TaskType, a.ID, a.ImplementationStatus, a.Timeout)
			}
			return w.Flush()
		},
	})

	var id, field, value string
	update := &cobra.Command{
		Use:   "update",
		Short: "Set one field of an activity and save the file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("--path is required for update")
			}
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			if err := reg.Update(id, field, value); err != nil {
				return err
			}
			if err := reg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s.%s\n", id, field)
			return nil
		},
	}
	update.Flags().StringVar(&id, "id", "", "activity ID")
	update.Flags().StringVar(&field, "field", "", "field to update (status, version, timeout, retries, ...)")
	update.Flags().StringVar(&value, "value", "", "new value")
	_ = update.MarkFlagRequired("id")
	_ = update.MarkFlagRequired("field")
	_ = update.MarkFlagRequired("value")
	cmd.AddCommand(update)

	return cmd
}
