package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/walteh/docpatch/cmd/docpatch/opts"
	"github.com/walteh/docpatch/pkg/text"
	"gitlab.com/tozd/go/errors"
)

// NewLocateCmd creates the locate command
func NewLocateCmd(rootOpts *opts.RootOpts) *cobra.Command {
	var originalFile string

	cmd := &cobra.Command{
		Use:   "locate <document> [original]",
		Short: "Report whether and how a span can be found in a local document",
		Long: `Locate runs the exact, whitespace tolerant and fuzzy token strategies in
order against a local file and prints the first one that matches. The span
to look for is the second argument or the contents of --original-file.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Errorf("reading document: %w", err)
			}

			var original string
			switch {
			case originalFile != "":
				data, err := os.ReadFile(originalFile)
				if err != nil {
					return errors.Errorf("reading original: %w", err)
				}
				original = string(data)
			case len(args) == 2:
				original = args[1]
			default:
				return errors.New("an original span or --original-file is required")
			}

			locatorOpts := text.DefaultOptions()
			if cfg := rootOpts.Config; cfg != nil {
				locatorOpts = text.Options{
					MaxGap:         cfg.Locator.MaxGap,
					MinTokenLength: cfg.Locator.MinTokenLength,
					MinTokens:      cfg.Locator.MinTokens,
				}
			}

			m, ok := text.NewLocator(locatorOpts).Locate(string(doc), original)
			if !ok {
				return errors.Errorf("span not found in %s", args[0])
			}

			fmt.Fprintln(cmd.OutOrStdout(), m.Strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&originalFile, "original-file", "", "read the span to locate from a file")

	return cmd
}
