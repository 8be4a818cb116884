package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dori/weekplan/internal/app"
	"github.com/dori/weekplan/internal/auth"
	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/export"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

var errSignedOut = errors.New("not signed in; run `weekplan signin` first")

// openApp opens the stores without the single-instance lock, so one-shot
// commands work while the TUI is running
func openApp(ctx context.Context, g *globals) (*app.App, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// signedIn restores the saved session
func signedIn(ctx context.Context, a *app.App) (*model.Identity, error) {
	id, err := a.Auth.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errSignedOut
	}
	return id, nil
}

func addCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <task>",
		Short: "Quick add a task",
		Example: `  weekplan add "Buy groceries"
  weekplan add --date friday "Call the plumber"
  weekplan add -d 2024-07-01 "Renew passport"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dateStr, _ := cmd.Flags().GetString("date")

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := signedIn(ctx, a); err != nil {
				return err
			}

			day, err := calendar.ParseNatural(a.Clock, dateStr)
			if err != nil {
				return err
			}

			task, err := a.Tasks.Create(ctx, strings.Join(args, " "), calendar.DayKey(day))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", task.Text)
			fmt.Fprintf(cmd.OutOrStdout(), "Day: %s\n", describeDay(a.Clock, day))
			return nil
		},
	}
	cmd.Flags().StringP("date", "d", "today", "Day to plan it on (today, tomorrow, friday, 2024-07-01)")
	return cmd
}

func listCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a week of tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			offset, _ := cmd.Flags().GetInt("week")

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := signedIn(ctx, a); err != nil {
				return err
			}

			start := calendar.ShiftWeek(calendar.WeekStart(calendar.Today(a.Clock)), offset)
			tasks, err := fetchWeek(ctx, a, start)
			if err != nil {
				return err
			}
			printWeek(cmd, a.Clock, start, tasks)
			return nil
		},
	}
	cmd.Flags().IntP("week", "w", 0, "Week relative to this one (-1 is last week)")
	return cmd
}

// fetchWeek reads the seven days starting at start
func fetchWeek(ctx context.Context, a *app.App, start time.Time) ([]model.Task, error) {
	return a.Tasks.FetchRange(ctx, calendar.DayKey(start), calendar.DayKey(calendar.WeekEnd(start)))
}

func printWeek(cmd *cobra.Command, clock calendar.Clock, start time.Time, tasks []model.Task) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, calendar.FormatWeekRange(start))
	fmt.Fprintln(out, strings.Repeat("=", 40))

	for _, day := range calendar.WeekDays(start) {
		title := day.Format("Mon Jan 2")
		if calendar.IsToday(clock, day) {
			title += " (today)"
		}
		fmt.Fprintf(out, "\n%s\n", title)

		dayTasks := taskstore.TasksForDay(tasks, calendar.DayKey(day))
		if len(dayTasks) == 0 {
			fmt.Fprintln(out, "  -")
			continue
		}
		for _, t := range dayTasks {
			box := "[ ]"
			if t.Completed {
				box = "[x]"
			}
			line := fmt.Sprintf("  %s %s", box, t.Text)
			if t.Carried() {
				line += fmt.Sprintf(" (from %s)", t.OriginalDate)
			}
			fmt.Fprintln(out, line)
			if t.Note != "" {
				fmt.Fprintf(out, "      %s\n", t.Note)
			}
		}
	}
}

func exportCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			weekOnly := cmd.Flags().Changed("week")
			offset, _ := cmd.Flags().GetInt("week")

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := signedIn(ctx, a)
			if err != nil {
				return err
			}

			var (
				from  time.Time
				tasks []model.Task
			)
			if weekOnly {
				from = calendar.ShiftWeek(calendar.WeekStart(calendar.Today(a.Clock)), offset)
				tasks, err = fetchWeek(ctx, a, from)
			} else {
				tasks, err = a.Tasks.FetchAll(ctx)
			}
			if err != nil {
				return err
			}
			doc := export.NewDocument(id.Name, tasks, a.Clock.Now(), from)

			if output == "" || output == "-" {
				return export.Write(cmd.OutOrStdout(), format, doc)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := export.Write(f, format, doc); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d task(s) to %s\n", len(doc.Tasks), output)
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", export.FormatJSON, "json or yaml")
	cmd.Flags().StringP("output", "o", "-", "File to write (- for stdout)")
	cmd.Flags().IntP("week", "w", 0, "Only export one week, relative to this one")
	return cmd
}

func signInCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in, creating the account if the name is new",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, _ := cmd.Flags().GetString("name")
			var password string

			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Name").Value(&name),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
			))
			if err := form.RunWithContext(ctx); err != nil {
				return err
			}

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.Auth.SignIn(ctx, name, password)
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return errors.New("wrong name or password")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", id.Name)
			return nil
		},
	}
	cmd.Flags().StringP("name", "n", "", "Account name")
	return cmd
}

func signOutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Auth.SignOut(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func describeDay(c calendar.Clock, day time.Time) string {
	today := calendar.Today(c)
	switch calendar.DayKey(day) {
	case calendar.DayKey(today):
		return "today"
	case calendar.DayKey(today.AddDate(0, 0, 1)):
		return "tomorrow"
	}
	if day.Year() == today.Year() {
		return calendar.FormatDisplay(day)
	}
	return day.Format("Jan 2, 2006")
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "weekplan v%s\n", version)
		},
	}
}
