package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivikasavnish/go-flowrec/pkg/client"
	"github.com/ivikasavnish/go-flowrec/pkg/codegen"
)

func newFlowsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Manage flows saved on a running server",
	}

	var domain string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved flows, newest first",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			flows, err := a.client().ListFlows(c.Context(), domain)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDOMAIN\tCOMMANDS\tCREATED")
			for _, f := range flows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Name, f.Domain, len(f.Commands), f.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&domain, "domain", "", "only flows recorded on this host")

	var target string
	get := &cobra.Command{
		Use:   "get ID",
		Short: "Print a saved flow as a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			t, err := codegen.ParseTarget(target)
			if err != nil {
				return err
			}
			f, err := a.client().GetFlow(c.Context(), args[0])
			if err != nil {
				return err
			}
			code, err := codegen.Generate(f.Commands, t)
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), code)
			return nil
		},
	}
	get.Flags().StringVarP(&target, "target", "t", "declarative", "output language: imperative (js) or declarative")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return a.client().DeleteFlow(c.Context(), args[0])
		},
	}

	var importDomain string
	imp := &cobra.Command{
		Use:   "import PATH",
		Short: "Save a flow file, or every flow file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			importer := client.NewImporter(a.client(),
				client.WithLogger(a.logger("import")),
				client.WithDomain(importDomain))
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.IsDir() {
				id, err := importer.ImportFile(c.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), id)
				return nil
			}
			saved, err := importer.ImportDirectory(c.Context(), args[0])
			if err != nil {
				return err
			}
			for path, id := range saved {
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\n", id, path)
			}
			return nil
		},
	}
	imp.Flags().StringVar(&importDomain, "domain", "", "host to file the flows under")

	cmd.AddCommand(list, get, del, imp)
	return cmd
}
