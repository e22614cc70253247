package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-rsid/internal/equation"
)

func newEquationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equation",
		Short: "Check position equations",
	}
	cmd.AddCommand(newEquationTestCmd())
	cmd.AddCommand(newEquationPresetsCmd())
	return cmd
}

func newEquationTestCmd() *cobra.Command {
	var positions []int64

	cmd := &cobra.Command{
		Use:   "test <equation>",
		Short: "Validate an equation and show its result at sample positions",
		Example: `  vibe-rsid equation test "x + 55758218"
  vibe-rsid equation test "x - 5000 if x > 5000 else x" --positions 1,5000,5001`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eq, err := equation.Validate(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Equation: %s\n\n", eq)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "x\tresult")
			for _, s := range eq.Preview(positions...) {
				switch {
				case s.Err == nil:
					fmt.Fprintf(tw, "%d\t%d\n", s.Position, s.Result)
				case errors.Is(s.Err, equation.ErrNonPositive):
					fmt.Fprintf(tw, "%d\t%d (excluded: not positive)\n", s.Position, s.Result)
				default:
					fmt.Fprintf(tw, "%d\terror: %v\n", s.Position, s.Err)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int64SliceVar(&positions, "positions", equation.DefaultPreviewPositions, "Positions to evaluate")
	return cmd
}

func newEquationPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List named equations",
		Long: `List the equations available to --preset. Add your own with
  vibe-rsid config set presets.<name> "<equation>"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := viper.GetStringMapString("presets")
			names := make([]string, 0, len(presets))
			for name := range presets {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, name := range names {
				status := ""
				if _, err := equation.Validate(presets[name]); err != nil {
					status = "\t(invalid: " + strings.TrimPrefix(err.Error(), equation.ErrSyntax.Error()+" ") + ")"
				}
				fmt.Fprintf(tw, "%s\t%s%s\n", name, presets[name], status)
			}
			return tw.Flush()
		},
	}
}
