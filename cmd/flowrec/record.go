package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ivikasavnish/go-flowrec/pkg/controller"
)

func newRecordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Control the recording session of a running server",
	}

	type verb struct {
		name  string
		short string
		call  func(*cobra.Command) (controller.SessionInfo, error)
	}
	verbs := []verb{
		{"start", "Start recording", func(c *cobra.Command) (controller.SessionInfo, error) {
			return a.client().StartRecording(c.Context())
		}},
		{"pause", "Pause recording", func(c *cobra.Command) (controller.SessionInfo, error) {
			return a.client().PauseRecording(c.Context())
		}},
		{"resume", "Resume a paused recording", func(c *cobra.Command) (controller.SessionInfo, error) {
			return a.client().ResumeRecording(c.Context())
		}},
		{"stop", "Stop recording and print the recorded commands", func(c *cobra.Command) (controller.SessionInfo, error) {
			return a.client().StopRecording(c.Context())
		}},
	}
	for _, v := range verbs {
		v := v
		cmd.AddCommand(&cobra.Command{
			Use:   v.name,
			Short: v.short,
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				info, err := v.call(c)
				if err != nil {
					return err
				}
				return printJSON(c.OutOrStdout(), info)
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the recorder status",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			st, err := a.client().Status(c.Context())
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), st)
		},
	})
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open URL",
		Short: "Navigate the server's browser to URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if err := a.client().Navigate(c.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), "opened", args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
