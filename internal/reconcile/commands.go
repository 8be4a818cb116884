package reconcile

import "context"

// Command is an intent queued for the Run goroutine with Send
type Command interface {
	apply(ctx context.Context, c *Controller)
}

// NavigateCmd moves the visible week by Delta weeks
type NavigateCmd struct{ Delta int }

func (m NavigateCmd) apply(_ context.Context, c *Controller) { c.Navigate(m.Delta) }

// TodayCmd shows the current week
type TodayCmd struct{}

func (TodayCmd) apply(_ context.Context, c *Controller) { c.GoToToday() }

// SignInCmd is the sign-in form submit
type SignInCmd struct {
	Name     string
	Password string
}

func (m SignInCmd) apply(ctx context.Context, c *Controller) { c.SignIn(ctx, m.Name, m.Password) }

// SignOutCmd signs the current identity out
type SignOutCmd struct{}

func (SignOutCmd) apply(ctx context.Context, c *Controller) { c.SignOut(ctx) }

// RetryCmd boots again after a failure
type RetryCmd struct{}

func (RetryCmd) apply(ctx context.Context, c *Controller) { c.Retry(ctx) }
