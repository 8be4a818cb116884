package views

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dori/weekplan/internal/ui/theme"
)

// SignInSubmitMsg is the explicit sign-in gesture
type SignInSubmitMsg struct {
	Name     string
	Password string
}

// signInFields is what the huh form binds to. It lives behind a pointer so
// the bindings survive the view being copied.
type signInFields struct {
	name     string
	password string
}

// SignInView asks for a name and password
type SignInView struct {
	form      *huh.Form
	fields    *signInFields
	submitted bool
	width     int
	height    int
}

// NewSignInView creates an empty sign-in form
func NewSignInView() SignInView {
	f := &signInFields{}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Who is planning?").
				Value(&f.name).
				Validate(required("Name")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.password).
				Validate(required("Password")),
		),
	).WithShowHelp(false)

	return SignInView{form: form, fields: f}
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// Init initializes the form
func (v SignInView) Init() tea.Cmd {
	return v.form.Init()
}

// SetSize sets the view dimensions
func (v SignInView) SetSize(width, height int) SignInView {
	v.width = width
	v.height = height
	v.form = v.form.WithWidth(min(width-8, 48))
	return v
}

// IsInputMode is always true; every key belongs to the form
func (v SignInView) IsInputMode() bool {
	return true
}

// Update handles messages
func (v SignInView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if v.submitted {
		return v, nil
	}

	mdl, cmd := v.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		v.form = f
	}

	if v.form.State == huh.StateCompleted {
		v.submitted = true
		submit := SignInSubmitMsg{Name: strings.TrimSpace(v.fields.name), Password: v.fields.password}
		return v, func() tea.Msg { return submit }
	}
	return v, cmd
}

// View renders the form
func (v SignInView) View() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	title := styles.PanelTitle.Render("Sign in")
	hint := lipgloss.NewStyle().Foreground(t.Subtle).
		Render("A name you have not used before creates a new account.")

	body := title + "\n" + hint + "\n\n" + v.form.View()
	if v.submitted {
		body += "\n" + styles.Status.Render("Signing in…")
	}

	panel := styles.Panel.Render(body)
	if v.width == 0 || v.height == 0 {
		return panel
	}
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, panel)
}
