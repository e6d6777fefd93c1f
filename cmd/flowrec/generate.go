package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivikasavnish/go-flowrec/pkg/codegen"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		target    string
		wrap      bool
		name      string
		sourceURL string
	)
	cmd := &cobra.Command{
		Use:   "generate [FILE]",
		Short: "Compile a flow to an imperative or declarative script",
		Long: `Compile a flow file (JSON, YAML or declarative script) to code.
Without FILE the server's current command list is compiled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			t, err := codegen.ParseTarget(target)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				code, err := a.client().Generate(c.Context(), string(t), wrap, nil)
				if err != nil {
					return err
				}
				fmt.Fprint(c.OutOrStdout(), code)
				return nil
			}

			cmds, err := flowstore.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			code, err := compile(cmds, t, wrap, codegen.Meta{Name: name, SourceURL: sourceURL, GeneratedAt: time.Now()})
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "declarative", "output language: imperative (js) or declarative")
	cmd.Flags().BoolVarP(&wrap, "wrap", "w", false, "wrap the script in a runnable program")
	cmd.Flags().StringVar(&name, "name", "", "flow name used by --wrap (default: file name)")
	cmd.Flags().StringVar(&sourceURL, "url", "", "start URL used by --wrap")
	return cmd
}

func compile(cmds command.List, t codegen.Target, wrap bool, meta codegen.Meta) (string, error) {
	code, err := codegen.Generate(cmds, t)
	if err != nil {
		return "", err
	}
	if !wrap {
		return code, nil
	}
	return codegen.Wrap(t, code, meta)
}
