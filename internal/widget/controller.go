// Package widget implements the client side of the /chat/ conversation: a
// controller that owns the server-issued session context, the transcript and
// the currently offered quick replies, and drives a View.
package widget

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"cryptosight-backend/internal/types"
)

// ApologyMessage is rendered as a bot line whenever an exchange fails.
const ApologyMessage = "Sorry, there was an error processing your request. Please try again."

// ErrBusy is returned when a submission arrives while an exchange is outstanding.
var ErrBusy = errors.New("an exchange is already in flight")

type State int

const (
	Closed State = iota
	OpenUninitialized
	OpenActive
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case OpenUninitialized:
		return "open-uninitialized"
	case OpenActive:
		return "open-active"
	default:
		return "unknown"
	}
}

// View is the page surface the controller renders into. Implementations must
// be safe to call from any goroutine.
type View interface {
	Show()
	Hide()
	// AppendUser renders literal text; it must not be interpreted as markup.
	AppendUser(text string)
	// AppendBot renders server-supplied markup as-is.
	AppendBot(markup string)
	// SetOptions replaces the quick-reply row; an empty slice clears it.
	SetOptions(options []string)
	ScrollToBottom()
	// SetBusy disables input while an exchange is outstanding.
	SetBusy(busy bool)
}

// Transport performs one request/response exchange with the chat endpoint.
type Transport interface {
	Exchange(ctx context.Context, csrfToken string, req types.ChatRequest) (*types.ChatResponse, error)
}

// CredentialProvider supplies the CSRF token sent with every exchange.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Line is one rendered transcript entry.
type Line struct {
	Speaker Speaker
	Text    string
}

type Controller struct {
	view      View
	transport Transport
	creds     CredentialProvider
	logger    zerolog.Logger

	mu         sync.Mutex
	state      State
	context    types.Context
	transcript []Line
	options    []string
	busy       bool
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(view View, transport Transport, creds CredentialProvider, opts ...Option) *Controller {
	c := &Controller{
		view:      view,
		transport: transport,
		creds:     creds,
		logger:    zerolog.Nop(),
		state:     Closed,
		context:   types.Context{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open shows the widget and starts the conversation if nothing has been
// rendered yet.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Closed {
		c.mu.Unlock()
		return nil
	}
	needsInit := len(c.transcript) == 0 && !c.busy
	if needsInit {
		c.state = OpenUninitialized
		c.busy = true
	} else {
		c.state = OpenActive
	}
	c.mu.Unlock()

	c.view.Show()
	if !needsInit {
		return nil
	}
	return c.exchange(ctx, types.InitMessage)
}

// Close hides the widget. Transcript and context survive.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.mu.Unlock()
	c.view.Hide()
}

// Toggle mirrors the trigger control: it opens a closed widget and closes an
// open one.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.State() == Closed {
		return c.Open(ctx)
	}
	c.Close()
	return nil
}

// SubmitOption sends the text of an offered quick reply.
func (c *Controller) SubmitOption(ctx context.Context, option string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.transcript = append(c.transcript, Line{Speaker: SpeakerUser, Text: option})
	c.options = nil
	c.mu.Unlock()

	c.view.AppendUser(option)
	c.view.ScrollToBottom()
	c.view.SetOptions(nil)
	return c.exchange(ctx, option)
}

// SubmitFreeText sends typed input. Blank input is ignored.
func (c *Controller) SubmitFreeText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.SubmitOption(ctx, text)
}

// exchange expects c.busy to have been set by the caller and clears it.
func (c *Controller) exchange(ctx context.Context, message string) error {
	c.view.SetBusy(true)
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.view.SetBusy(false)
	}()

	c.mu.Lock()
	sent := c.context
	c.mu.Unlock()

	resp, err := c.roundTrip(ctx, types.ChatRequest{Message: message, Context: sent})
	if err != nil {
		c.logger.Error().Err(err).Str("message", message).Msg("chat exchange failed")
		c.mu.Lock()
		c.transcript = append(c.transcript, Line{Speaker: SpeakerBot, Text: ApologyMessage})
		c.promoteLocked()
		c.mu.Unlock()
		c.view.AppendBot(ApologyMessage)
		c.view.ScrollToBottom()
		return err
	}

	next := resp.Context
	if next == nil {
		next = types.Context{}
	}
	var options []string
	if len(resp.Options) > 0 {
		options = append([]string(nil), resp.Options...)
	}

	c.mu.Lock()
	c.context = next
	if resp.Message != "" {
		c.transcript = append(c.transcript, Line{Speaker: SpeakerBot, Text: resp.Message})
	}
	c.options = options
	c.promoteLocked()
	c.mu.Unlock()

	if resp.Message != "" {
		c.view.AppendBot(resp.Message)
		c.view.ScrollToBottom()
	}
	c.view.SetOptions(options)
	return nil
}

func (c *Controller) roundTrip(ctx context.Context, req types.ChatRequest) (*types.ChatResponse, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolve csrf token")
	}
	resp, err := c.transport.Exchange(ctx, token, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty chat response")
	}
	return resp, nil
}

// promoteLocked moves a freshly initialized widget to the active state. A
// widget closed mid-exchange stays closed.
func (c *Controller) promoteLocked() {
	if c.state == OpenUninitialized {
		c.state = OpenActive
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Context returns a shallow copy of the context last issued by the server.
func (c *Controller) Context() types.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.context)
}

func (c *Controller) Transcript() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.transcript...)
}

func (c *Controller) Options() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.options...)
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}
