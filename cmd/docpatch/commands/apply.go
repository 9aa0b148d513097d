package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/docpatch/cmd/docpatch/opts"
	"github.com/walteh/docpatch/pkg/operation"
	"github.com/walteh/docpatch/pkg/text"
	"gitlab.com/tozd/go/errors"
)

// NewApplyCmd creates the apply command
func NewApplyCmd(rootOpts *opts.RootOpts) *cobra.Command {
	var (
		fixIDs  []string
		dryRun  bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "apply <session>",
		Short: "Apply selected fixes of a session to its document",
		Long: `Apply loads the fix list of a session, locates every selected fix in the
target document, substitutes the proposed content and records a changelog
entry. The patched document is written back to the store, a rendered HTML
copy is written next to it and the content delivery cache is invalidated.

With --dry-run the patched document is only diffed against the original.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			session, err := rootOpts.OpenSession(ctx)
			if err != nil {
				return err
			}
			defer session.Close(ctx)

			req := operation.Request{SessionID: args[0], FixIDs: fixIDs, DryRun: dryRun}

			if dryRun {
				plan, err := session.Operator.Plan(ctx, req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, operation.NewPreview(plan))
				}
				fmt.Fprintln(out, plan.PrettyDiff())
				return printOutcomes(out, plan.Outcomes)
			}

			resp := session.Operator.Handle(ctx, req)
			if jsonOut {
				if err := writeJSON(out, resp); err != nil {
					return err
				}
				return resp.Err
			}
			if resp.Err != nil {
				return resp.Err
			}

			fmt.Fprintln(out, resp.Message)
			for _, w := range resp.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if resp.InvalidationError != "" {
				fmt.Fprintf(out, "cache invalidation failed: %s\n", resp.InvalidationError)
			} else if resp.InvalidationID != "" {
				fmt.Fprintf(out, "cache invalidation %s requested\n", resp.InvalidationID)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&fixIDs, "fix", "f", nil, "fix id to apply (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the diff without writing anything")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as json")

	return cmd
}

// printOutcomes renders one table row per fix
func printOutcomes(w io.Writer, outcomes []text.Outcome) error {
	data := pterm.TableData{{"FIX", "CATEGORY", "STRATEGY", "APPLIED"}}
	for _, o := range outcomes {
		strategy := string(o.Strategy)
		if strategy == "" {
			strategy = "-"
		}
		data = append(data, []string{o.FixID, string(o.Category), strategy, fmt.Sprint(o.Applied)})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Errorf("rendering outcomes: %w", err)
	}
	fmt.Fprintln(w, table)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Errorf("encoding json: %w", err)
	}
	return nil
}
