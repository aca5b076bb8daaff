package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sokinpui/diffkit/cli"
	"github.com/sokinpui/diffkit/diffkit"
	"github.com/sokinpui/diffkit/internal/tui"
	"github.com/sokinpui/diffkit/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	switch {
	case cfg.Quiet:
		ui.SetLevel(ui.LevelError)
	case cfg.Verbose:
		ui.SetLevel(ui.LevelDebug)
	}

	app, err := diffkit.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Modes that print to stdout, and runs without animation, skip the TUI.
	if cfg.PrintsToStdout() || cfg.NoAnimation {
		os.Exit(runPlain(app, cfg))
	}

	model := tui.New(app)
	p := tea.NewProgram(model)
	app.SetProgressCallback(func(current, total int) {
		p.Send(tui.Progress(current, total))
	})

	// The TUI owns the terminal while it runs.
	ui.SetOutput(io.Discard)
	final, err := p.Run()
	ui.SetOutput(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	done, ok := final.(tui.Model)
	if !ok {
		return
	}
	if done.Err() != nil {
		os.Exit(1)
	}
	fmt.Print(done.Summary().Output)
}

func runPlain(app *diffkit.App, cfg *cli.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var bar *ui.ProgressBar
	if !cfg.Quiet {
		app.SetProgressCallback(func(current, total int) {
			if bar == nil {
				bar = ui.NewProgressBar(total, "Writing")
				bar.Start()
			}
			bar.Set(current)
		})
	}

	summary, err := app.ExecuteContext(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		ui.Error("Error: %v", err)
		var detailed *diffkit.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return 1
	}

	ui.PrintSummary(summary)
	fmt.Print(summary.Output)
	return 0
}
