// Package form implements the LibreLinkUp settings form: one read, one write
// and the local editable state between them. Front ends (the web page and the
// terminal UI) render View snapshots and forward user input.
package form

import (
	"context"
	"sync"
	"time"

	"opent1d/internal/domain"
)

// Client performs the read and the write the form reconciles against.
type Client interface {
	FetchSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, username, password string) (domain.Settings, error)
}

// Phase is the lifecycle state of the form.
type Phase int

const (
	Loading Phase = iota
	LoadFailed
	Ready
	Saving
	SaveFailed
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case LoadFailed:
		return "load_failed"
	case Ready:
		return "ready"
	case Saving:
		return "saving"
	case SaveFailed:
		return "save_failed"
	}
	return "unknown"
}

// NotificationKind distinguishes success from error notifications.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

const (
	notificationTitle   = "Sign in to LibreLinkUp"
	notificationSuccess = "Login was successful!"

	// DefaultNotificationTTL is how long a notification stays visible.
	DefaultNotificationTTL = 9 * time.Second
)

// Notification is a transient message shown after a save.
type Notification struct {
	Kind      NotificationKind
	Title     string
	Message   string
	ExpiresAt time.Time
}

// View is an immutable snapshot for rendering.
type View struct {
	Phase  Phase
	Values Values
	// Error is the message of the last failed load or save.
	Error        string
	Notification *Notification
}

// ShowForm reports whether inputs should be rendered.
func (v View) ShowForm() bool {
	return v.Phase != Loading && v.Phase != LoadFailed
}

// Controller is safe for concurrent use.
type Controller struct {
	client     Client
	adoptSaved bool
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	phase    Phase
	loaded   bool
	values   Values
	errMsg   string
	note     *Notification
	inflight int
}

// Option configures a Controller.
type Option func(*Controller)

// WithAdoptSaved replaces the local values with the saved response after a
// successful save. By default only the region is refreshed.
func WithAdoptSaved(adopt bool) Option { return func(c *Controller) { c.adoptSaved = adopt } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithNotificationTTL overrides DefaultNotificationTTL.
func WithNotificationTTL(d time.Duration) Option { return func(c *Controller) { c.ttl = d } }

// New returns a Controller in the Loading phase.
func New(client Client, opts ...Option) *Controller {
	c := &Controller{client: client, ttl: DefaultNotificationTTL, now: time.Now, phase: Loading}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the settings and replaces the local values with them.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.phase = Loading
	c.mu.Unlock()

	s, err := c.client.FetchSettings(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.phase = LoadFailed
		c.loaded = false
		c.values = Values{}
		c.errMsg = err.Error()
		return err
	}
	c.loaded = true
	c.values = ValuesFrom(s)
	c.errMsg = ""
	c.phase = Ready
	if c.inflight > 0 {
		c.phase = Saving
	}
	return nil
}

// Edit replaces a single field of the local values.
func (c *Controller) Edit(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrNotReady
	}
	next, err := Apply(c.values, field, value)
	if err != nil {
		return err
	}
	c.values = next
	return nil
}

// Save submits the current username and password. The lock is not held
// during the call, so edits and further saves may run concurrently.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotReady
	}
	submit := c.values
	c.inflight++
	c.phase = Saving
	c.mu.Unlock()

	saved, err := c.client.SaveSettings(ctx, submit.Username, submit.Password)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if err != nil {
		c.errMsg = err.Error()
		c.notify(NotificationError, err.Error())
		if c.inflight == 0 {
			c.phase = SaveFailed
		}
		return err
	}

	c.errMsg = ""
	if c.adoptSaved {
		c.values = ValuesFrom(saved)
	} else {
		c.values.Region = saved.LibreLinkUpRegion
	}
	c.notify(NotificationSuccess, notificationSuccess)
	if c.inflight == 0 {
		c.phase = Ready
	}
	return nil
}

func (c *Controller) notify(kind NotificationKind, msg string) {
	c.note = &Notification{
		Kind:      kind,
		Title:     notificationTitle,
		Message:   msg,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

// pending returns the unexpired notification, dropping an expired one.
// Callers hold c.mu.
func (c *Controller) pending() *Notification {
	if c.note == nil {
		return nil
	}
	if !c.now().Before(c.note.ExpiresAt) {
		c.note = nil
		return nil
	}
	n := *c.note
	return &n
}

// Notification pops the pending notification if it has not expired.
func (c *Controller) Notification() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.pending()
	c.note = nil
	if n == nil {
		return Notification{}, false
	}
	return *n, true
}

// View returns a snapshot of the form. A failed load carries no values.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Phase:        c.phase,
		Error:        c.errMsg,
		Notification: c.pending(),
	}
	if c.loaded {
		v.Values = c.values
	}
	return v
}
