package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/browser"
	"github.com/ivikasavnish/go-flowrec/pkg/cdppage"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/config"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		startURL    string
		engine      string
		headless    bool
		breakpoints []int
		step        bool
	)
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Replay a flow file in a fresh browser",
		Long: `Replay a flow file through the debugger. With --step the flow is
driven from stdin: Enter steps one command, "c" runs to the next
breakpoint and "q" stops.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cmds, err := flowstore.ReadFile(args[0])
			if err != nil {
				return err
			}
			bcfg := a.cfg.Browser
			if engine != "" {
				bcfg.Engine = engine
			}
			if c.Flags().Changed("headless") {
				bcfg.Headless = headless
			}
			if startURL == "" {
				startURL = bcfg.StartURL
			}

			ctx := c.Context()
			p, closePage, err := openReplayPage(ctx, a, bcfg, startURL)
			if err != nil {
				return err
			}
			defer closePage()

			exec := debugger.NewPageExecutor(p, executorOptions(a, a.cfg.Debugger)...)
			d := debugger.New(cmds, exec,
				debugger.WithLogger(a.logger("debugger")),
				debugger.WithBreakpoints(breakpoints...))

			out := c.OutOrStdout()
			var rep debugger.Report
			if step {
				rep = stepInteractively(ctx, d, c.InOrStdin(), out)
			} else {
				rep = d.Run(ctx)
			}
			if err := printJSON(out, rep); err != nil {
				return err
			}
			return rep.Err
		},
	}
	cmd.Flags().StringVar(&startURL, "url", "", "page to open before replaying (default browser.start_url)")
	cmd.Flags().StringVar(&engine, "engine", "", "browser driver: rod or chromedp (default browser.engine)")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless (overrides browser.headless)")
	cmd.Flags().IntSliceVarP(&breakpoints, "break", "b", nil, "command indices to pause before")
	cmd.Flags().BoolVar(&step, "step", false, "drive the replay from stdin")
	return cmd
}

func openReplayPage(ctx context.Context, a *app, cfg config.BrowserConfig, url string) (page.Page, func(), error) {
	switch cfg.Engine {
	case config.EngineChromedp:
		p, err := cdppage.Open(ctx, cdppage.Config{
			Headless:  cfg.Headless,
			RemoteURL: cfg.RemoteURL,
			Bin:       cfg.Bin,
			Timeout:   cfg.Timeout,
		}, cdppage.WithLogger(a.logger("cdppage")))
		if err != nil {
			return nil, nil, err
		}
		if err := p.Navigate(ctx, url); err != nil {
			p.Close()
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil

	case config.EngineRod:
		b := browser.NewBrowser(browser.FromConfig(cfg), browser.WithLogger(a.logger("browser")))
		if err := b.Start(ctx); err != nil {
			return nil, nil, err
		}
		p, err := b.OpenPage(ctx, url)
		if err != nil {
			b.Stop()
			return nil, nil, err
		}
		return p, func() {
			if err := b.Stop(); err != nil {
				a.logger("browser").Warn("closing browser", zap.Error(err))
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
}

// stepInteractively reads one instruction per line from in.
func stepInteractively(ctx context.Context, d *debugger.Debugger, in io.Reader, out io.Writer) debugger.Report {
	cmds := d.Commands()
	sc := bufio.NewScanner(in)
	var rep debugger.Report
	for {
		st := d.State()
		if st.Cursor >= len(cmds) {
			return rep
		}
		fmt.Fprintf(out, "[%d/%d] next: %s  (Enter=step, c=continue, q=quit) ", st.Cursor, len(cmds), command.Describe(cmds[st.Cursor]))
		if !sc.Scan() {
			return rep
		}
		switch strings.TrimSpace(strings.ToLower(sc.Text())) {
		case "", "s", "step":
			rep = d.Step(ctx)
		case "c", "continue":
			rep = d.Run(ctx)
		case "q", "quit":
			d.Stop()
			st := d.State()
			return debugger.Report{Cursor: st.Cursor, Mode: st.Mode}
		default:
			fmt.Fprintln(out, "unknown instruction")
			continue
		}
		if rep.Err != nil || rep.EndOfActions || ctx.Err() != nil {
			return rep
		}
	}
}
