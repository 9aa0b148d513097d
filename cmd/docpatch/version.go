package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// buildInfo describes the running binary
type buildInfo struct {
	Version  string `json:"version"`
	Commit   string `json:"commit,omitempty"`
	Dirty    bool   `json:"dirty,omitempty"`
	Built    string `json:"built,omitempty"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// readBuildInfo reads module and vcs stamps embedded by the go toolchain
func readBuildInfo(read func() (*debug.BuildInfo, bool)) buildInfo {
	info := buildInfo{
		Version:  "dev",
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := read()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}

	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	info.Commit = settings["vcs.revision"]
	info.Built = settings["vcs.time"]
	info.Dirty = settings["vcs.modified"] == "true"

	return info
}

func (b buildInfo) render(w io.Writer) error {
	commit := b.Commit
	if commit == "" {
		commit = "unknown"
	} else if b.Dirty {
		commit += " (dirty)"
	}

	table, err := pterm.DefaultTable.WithData(pterm.TableData{
		{"version", b.Version},
		{"commit", commit},
		{"built", b.Built},
		{"go", b.Go},
		{"platform", b.Platform},
	}).Srender()
	if err != nil {
		return errors.Errorf("rendering version: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func newVersionCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs no config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := readBuildInfo(debug.ReadBuildInfo)
			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(info); err != nil {
					return errors.Errorf("encoding version: %w", err)
				}
				return nil
			}
			return info.render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print version information as json")

	return cmd
}
