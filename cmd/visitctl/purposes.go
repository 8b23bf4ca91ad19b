package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"visitmap/internal/core"
)

func newPurposesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "purposes",
		Aliases: []string{"categories"},
		Short:   "Manage visit categories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories with their colors and usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			configs, err := a.svc.GetPurposeConfigs(ctx)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return writeJSON(out, configs)
			}
			visits, err := a.svc.GetVisits(ctx)
			if err != nil {
				return err
			}
			renderPurposes(out, configs, core.CountPurposes(visits))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add NAME COLOR",
		Short: "Add a category; COLOR is #RRGGBB",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := core.PurposeConfig{Name: args[0], Color: args[1]}
			if err := a.svc.AddPurposeConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %s\n", cfg.Name)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a category; its visits follow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			configs, err := a.svc.GetPurposeConfigs(ctx)
			if err != nil {
				return err
			}
			i := core.FindPurpose(configs, args[0])
			if i < 0 {
				return fmt.Errorf("%w: %s", core.ErrCategoryNotFound, args[0])
			}
			cfg := core.PurposeConfig{Name: args[1], Color: configs[i].Color}
			if err := a.svc.UpdatePurposeConfig(ctx, args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}

	var migrateTo string
	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a category, moving its visits to another one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.DeletePurposeConfig(cmd.Context(), args[0], migrateTo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
			return nil
		},
	}
	del.Flags().StringVar(&migrateTo, "migrate-to", "", "Category that receives the visits (default: first remaining)")

	color := &cobra.Command{
		Use:   "color NAME COLOR",
		Short: "Change the color of a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.SetPurposeColor(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(list, add, rename, del, color)
	return cmd
}
