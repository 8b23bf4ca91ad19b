package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"visitmap/internal/core"
)

func newCitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "Show per-city visit counts and map colors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.places(cmd, "City", a.svc.GetCityData)
		},
	}
}

func newProvincesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "provinces",
		Short: "Show visits rolled up to provinces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.places(cmd, "Province", a.svc.GetProvinceData)
		},
	}
}

func (a *app) places(cmd *cobra.Command, title string, load func(context.Context) ([]core.CityData, error)) error {
	ctx := cmd.Context()
	data, err := load(ctx)
	if err != nil {
		return err
	}
	if a.output == "json" {
		return writeJSON(cmd.OutOrStdout(), data)
	}
	colors, err := a.svc.GetPurposeColors(ctx)
	if err != nil {
		return err
	}
	renderPlaces(cmd.OutOrStdout(), title, data, colors)
	return nil
}

func newVisitsCmd(a *app) *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "visits",
		Short: "List every recorded visit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			if history {
				h, err := a.svc.GetCityHistory(ctx)
				if err != nil {
					return err
				}
				if a.output == "json" {
					return writeJSON(out, h)
				}
				renderHistory(out, h)
				return nil
			}

			visits, err := a.svc.GetVisits(ctx)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return writeJSON(out, visits)
			}
			renderVisits(out, visits)
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Group visits by city, most recent first")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add CITY PURPOSE [DATE]",
		Short: "Record a visit; DATE defaults to the current month",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := core.FromTime(time.Now())
			if len(args) == 3 {
				d, err := parseDate(args[2])
				if err != nil {
					return err
				}
				date = d
			}
			rec := core.VisitRecord{City: args[0], Purpose: args[1], Date: date}
			if err := a.svc.SaveCityVisit(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (%s) in %s\n", rec.City, rec.Purpose, rec.Date)
			return nil
		},
	}
}

// parseDate accepts any date NormalizeDate understands and requires YYYY-MM after.
func parseDate(s string) (core.YearMonth, error) {
	return core.ParseYearMonth(string(core.NormalizeDate(s)))
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CITY DATE",
		Short: "Delete the visits to CITY in the month DATE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			n, err := a.svc.DeleteCityVisit(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d visit(s)\n", n)
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update CITY DATE PURPOSE",
		Short: "Change the purpose of the visits to CITY in the month DATE",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			n, err := a.svc.UpdateCityVisit(cmd.Context(), args[0], date, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d visit(s)\n", n)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var example bool
	cmd := &cobra.Command{
		Use:   "import [FILE|-]",
		Short: "Bulk import visits, one \"city purpose [date]\" per line",
		Long: `Import reads visits from FILE, or from standard input when FILE is "-" or
omitted. Fields are separated by commas, tabs or spaces. Lines without a date
use the current month. If any line is invalid nothing is imported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			if example {
				text, err := a.svc.ImportExample(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
				return nil
			}

			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			result, err := a.svc.Import(ctx, text)
			if err != nil {
				return err
			}
			if a.output == "json" {
				return writeJSON(out, result)
			}
			fmt.Fprintln(out, result.Summary())
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "Print sample import text using the current categories")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(b), nil
}

func newColorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "color COUNT PURPOSE",
		Short: "Show the map color for COUNT visits with the given first purpose",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil || count < 0 {
				return fmt.Errorf("invalid count %q: must be a non-negative integer", args[0])
			}
			rgb, err := a.svc.ColorFor(cmd.Context(), count, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rgb.Hex(), rgb)
			return nil
		},
	}
}
