package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/internal/config"
	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

const defaultTemplate = "fintech-leads"

func newInitCmd(opts *GlobalOpts) *cobra.Command {
	var (
		tmpl         string
		output       string
		list         bool
		writeProfile bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter workflow and, optionally, a sample business profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				for _, name := range workflow.Templates() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			data, err := workflow.Template(tmpl)
			if err != nil {
				return err
			}
			if output == "" {
				output = tmpl + ".yaml"
			}
			if err := writeNew(output, data); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote workflow %s\n", output)

			if !writeProfile {
				return nil
			}
			path := opts.Profile
			if path == "" {
				dir := opts.Dir
				if dir == "" {
					dir = config.Dir
				}
				cfg, err := config.LoadConfig(filepath.Join(dir, "config.yaml"))
				if err != nil {
					return err
				}
				path = cfg.InDir(dir).Profile
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := profile.Save(path, profile.Example()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote sample profile %s; edit it to describe your business\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tmpl, "template", "t", defaultTemplate, "built-in workflow template")
	cmd.Flags().StringVarP(&output, "output", "o", "", "where to write the workflow (default: <template>.yaml)")
	cmd.Flags().BoolVar(&list, "list", false, "list the built-in templates")
	cmd.Flags().BoolVar(&writeProfile, "write-profile", false, "also write a sample business profile")
	return cmd
}

// writeNew writes data to path, refusing to overwrite.
func writeNew(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists", path)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
