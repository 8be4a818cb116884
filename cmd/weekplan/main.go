package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dori/weekplan/internal/app"
	"github.com/dori/weekplan/internal/config"
	"github.com/dori/weekplan/internal/ui"
	"github.com/dori/weekplan/internal/ui/theme"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globals struct {
	configPath string
}

func (g *globals) load() (*config.Config, error) {
	return config.Load(g.configPath)
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "weekplan",
		Short:         "Plan your week, one day at a time",
		Long:          "weekplan shows the current week as seven days of tasks. Unfinished tasks from earlier days move to today when it starts.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			themeName, _ := cmd.Flags().GetString("theme")
			return runTUI(cmd.Context(), g, themeName)
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultPath(), "Config file")
	root.Flags().String("theme", "", "Theme (catppuccin, nord, dracula, gruvbox)")

	root.AddCommand(
		addCmd(g),
		listCmd(g),
		exportCmd(g),
		signInCmd(g),
		signOutCmd(g),
		versionCmd(),
	)
	return root
}

func runTUI(ctx context.Context, g *globals, themeName string) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	if themeName == "" {
		themeName = cfg.Theme
	}
	if t, ok := theme.ByName(themeName); ok {
		theme.SetTheme(t)
	}

	// Anything logged while the TUI owns the terminal goes to a file or nowhere
	if cfg.Debug {
		f, err := tea.LogToFile(cfg.LogPath(), "weekplan")
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	application, err := app.New(ctx, cfg, app.WithLock(), app.WithWatch())
	if err != nil {
		return err
	}
	defer application.Close()

	renderer := ui.NewProgramRenderer()
	ctl := application.NewController(renderer)

	model := ui.NewRootModel(ctl, application.Tasks, application.Clock,
		ui.WithConfigPath(g.configPath),
		ui.WithIdentity(application.Auth.Current),
	)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	renderer.Attach(p)

	var workers errgroup.Group
	// Sign-ins and sign-outs from `weekplan signin/signout` in another shell
	workers.Go(func() error {
		application.Auth.Watch(ctx, cfg.WatchInterval)
		return nil
	})
	workers.Go(func() error {
		if err := ctl.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("controller stopped: %v", err)
			return err
		}
		return nil
	})

	_, err = p.Run()
	cancel()
	// The controller must be done with the store before it is closed
	werr := workers.Wait()

	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	if err != nil {
		return err
	}
	return werr
}
