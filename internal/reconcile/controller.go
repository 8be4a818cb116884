// Package reconcile keeps the week view in step with storage and the
// signed-in identity. It runs carry-forward once per session, then follows
// the task subscription until the identity goes away.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/carry"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

// State is the lifecycle phase of a Controller
type State int32

const (
	Booting State = iota
	Bootstrapped
	Live
	SignedOut
	Failed
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Bootstrapped:
		return "bootstrapped"
	case Live:
		return "live"
	case SignedOut:
		return "signed out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// IdentityProvider resolves and changes the signed-in identity. *auth.Provider
// satisfies it.
type IdentityProvider interface {
	Resolve(ctx context.Context) (*model.Identity, error)
	OnChange(fn func(*model.Identity)) func()
	SignIn(ctx context.Context, name, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
	Current() *model.Identity
}

// Tasks is the part of the task store the controller reads from.
// *taskstore.Store satisfies it.
type Tasks interface {
	carry.Patcher
	FetchAll(ctx context.Context) ([]model.Task, error)
	Subscribe(ctx context.Context) (<-chan []model.Task, func(), error)
}

// Renderer receives everything the controller wants shown
type Renderer interface {
	Render(weekStart time.Time, tasks []model.Task)
	UpdateWeekLabel(weekStart time.Time)
	ShowSignIn()
	ShowError(msg string, retryable bool)
	ShowStatus(msg string)
}

// Controller owns the held task collection and the visible week. All of its
// state is mutated by the goroutine running Run; other goroutines talk to it
// through Send.
type Controller struct {
	provider IdentityProvider
	tasks    Tasks
	renderer Renderer
	clock    calendar.Clock

	cmds       chan Command
	identities chan *model.Identity
	state      atomic.Int32

	// owned by the Run goroutine
	identityID  string
	weekStart   time.Time
	held        []model.Task
	snapshots   <-chan []model.Task
	unsubscribe func()
}

// Option configures a Controller
type Option func(*Controller)

// WithClock overrides the clock used for today
func WithClock(c calendar.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// New creates a controller in the Booting state
func New(provider IdentityProvider, tasks Tasks, renderer Renderer, opts ...Option) *Controller {
	c := &Controller{
		provider:   provider,
		tasks:      tasks,
		renderer:   renderer,
		clock:      calendar.SystemClock{},
		cmds:       make(chan Command, 16),
		identities: make(chan *model.Identity, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.weekStart = calendar.WeekStart(calendar.Today(c.clock))
	return c
}

// State returns the current lifecycle phase; safe from any goroutine
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		log.Printf("reconcile: %s -> %s", old, s)
	}
}

// WeekStart returns the Monday of the visible week. Only meaningful on the
// Run goroutine or after Run has returned.
func (c *Controller) WeekStart() time.Time {
	return c.weekStart
}

// Send queues a command for the Run goroutine. It never blocks; if the
// queue is full the command is dropped and false is returned.
func (c *Controller) Send(cmd Command) bool {
	select {
	case c.cmds <- cmd:
		return true
	default:
		log.Printf("reconcile: command queue full, dropping %T", cmd)
		return false
	}
}

// Run boots the controller and then serves snapshots, identity changes and
// commands until ctx is done. It unsubscribes before returning.
func (c *Controller) Run(ctx context.Context) error {
	stop := c.provider.OnChange(c.identityChanged)
	defer stop()
	defer c.teardown()

	c.Boot(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-c.snapshots:
			if !ok {
				c.subscriptionClosed()
				continue
			}
			c.Push(snap)

		case id := <-c.identities:
			c.IdentityChanged(ctx, id)

		case cmd := <-c.cmds:
			cmd.apply(ctx, c)
		}
	}
}

// identityChanged is the provider callback. It keeps only the newest change.
func (c *Controller) identityChanged(id *model.Identity) {
	for {
		select {
		case c.identities <- id:
			return
		default:
		}
		select {
		case <-c.identities:
		default:
		}
	}
}

// Boot resolves the identity, fetches every task once, carries overdue
// tasks forward, renders, and then arms the subscription. It never signs
// anyone in.
func (c *Controller) Boot(ctx context.Context) {
	c.teardown()
	c.setState(Booting)
	c.renderer.ShowStatus("Loading your week…")

	id, err := c.provider.Resolve(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	if id == nil {
		c.signedOut()
		return
	}
	c.identityID = id.ID

	tasks, err := c.tasks.FetchAll(ctx)
	if err != nil {
		c.fail(err)
		return
	}

	engine := carry.Engine{Patcher: c.tasks, Clock: c.clock}
	res, err := engine.Run(ctx, tasks)
	if err != nil {
		c.fail(err)
		return
	}

	c.held = res.Tasks
	c.weekStart = calendar.WeekStart(calendar.Today(c.clock))
	c.setState(Bootstrapped)
	c.renderer.UpdateWeekLabel(c.weekStart)
	c.render()
	if n := len(res.Carried); n > 0 {
		c.renderer.ShowStatus(fmt.Sprintf("Moved %d unfinished %s to today", n, plural(n, "task", "tasks")))
	} else {
		c.renderer.ShowStatus("")
	}

	ch, cancel, err := c.tasks.Subscribe(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.snapshots, c.unsubscribe = ch, cancel
	c.setState(Live)
}

// Push replaces the held collection with a subscription snapshot. Snapshots
// that arrive while not Live are dropped.
func (c *Controller) Push(tasks []model.Task) {
	if c.State() != Live {
		return
	}
	c.held = tasks
	c.render()
}

// IdentityChanged reacts to a sign-in or sign-out seen by the provider
func (c *Controller) IdentityChanged(ctx context.Context, id *model.Identity) {
	switch {
	case id == nil:
		if c.identityID == "" && c.State() == SignedOut {
			return
		}
		c.teardown()
		c.signedOut()

	case id.ID == c.identityID && c.State() != SignedOut:
		// Echo of our own Boot or SignIn. A failed boot stays failed until
		// the user asks to retry.

	default:
		// Signed in elsewhere, or a different account
		c.Boot(ctx)
	}
}

// Navigate moves the visible week by delta weeks. The held collection is
// filtered again; nothing is fetched or written.
func (c *Controller) Navigate(delta int) {
	if !c.ready() {
		return
	}
	c.weekStart = calendar.ShiftWeek(c.weekStart, delta)
	c.renderer.UpdateWeekLabel(c.weekStart)
	c.render()
}

// GoToToday shows the week containing today
func (c *Controller) GoToToday() {
	if !c.ready() {
		return
	}
	c.weekStart = calendar.WeekStart(calendar.Today(c.clock))
	c.renderer.UpdateWeekLabel(c.weekStart)
	c.render()
}

// SignIn runs the explicit sign-in gesture and boots on success
func (c *Controller) SignIn(ctx context.Context, name, password string) {
	if _, err := c.provider.SignIn(ctx, name, password); err != nil {
		c.renderer.ShowError(Message(err), false)
		c.renderer.ShowSignIn()
		return
	}
	c.Boot(ctx)
}

// SignOut asks the provider to forget the session. Teardown follows from
// the identity change notification.
func (c *Controller) SignOut(ctx context.Context) {
	if err := c.provider.SignOut(ctx); err != nil {
		c.renderer.ShowError(Message(err), false)
	}
}

// Retry boots again after a failure
func (c *Controller) Retry(ctx context.Context) {
	if c.State() != Failed {
		return
	}
	c.Boot(ctx)
}

// Held returns the collection the view is rendered from
func (c *Controller) Held() []model.Task {
	return c.held
}

func (c *Controller) ready() bool {
	s := c.State()
	return s == Bootstrapped || s == Live
}

func (c *Controller) render() {
	from := calendar.DayKey(c.weekStart)
	to := calendar.DayKey(calendar.WeekEnd(c.weekStart))
	c.renderer.Render(c.weekStart, taskstore.TasksInRange(c.held, from, to))
}

func (c *Controller) fail(err error) {
	log.Printf("reconcile: %v", err)
	c.teardown()
	if IsSignedOut(err) {
		c.signedOut()
		return
	}
	c.setState(Failed)
	c.renderer.ShowError(Message(err), Retryable(err))
}

func (c *Controller) signedOut() {
	c.identityID = ""
	c.held = nil
	c.setState(SignedOut)
	c.renderer.ShowSignIn()
}

func (c *Controller) subscriptionClosed() {
	c.snapshots, c.unsubscribe = nil, nil
	if c.State() == Live {
		c.fail(&taskstore.StoreError{Op: "subscribe", Err: errSubscriptionClosed})
	}
}

// teardown stops the subscription; in-flight writes are left alone
func (c *Controller) teardown() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.snapshots, c.unsubscribe = nil, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
