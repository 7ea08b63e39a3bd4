package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"cryptosight-backend/internal/types"
	"cryptosight-backend/internal/widget"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingSender) take() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

type scriptTransport struct {
	seen  []types.ChatRequest
	reply func(types.ChatRequest) (*types.ChatResponse, error)
}

func (s *scriptTransport) Exchange(_ context.Context, _ string, req types.ChatRequest) (*types.ChatResponse, error) {
	s.seen = append(s.seen, req)
	return s.reply(req)
}

type noCreds struct{}

func (noCreds) Token(context.Context) (string, error) { return "tok", nil }

type harness struct {
	t         *testing.T
	model     Model
	sender    *recordingSender
	transport *scriptTransport
}

func newHarness(t *testing.T) *harness {
	sender := &recordingSender{}
	view := NewProgramView()
	view.Attach(sender)
	transport := &scriptTransport{reply: func(req types.ChatRequest) (*types.ChatResponse, error) {
		switch req.Message {
		case types.InitMessage:
			return &types.ChatResponse{
				Message: "Hello! I am <b>CryptoSight</b>.",
				Options: []string{"Get Prediction", "Check Price"},
				Context: types.Context{"awaiting": "initial_choice"},
			}, nil
		case "Check Price":
			return &types.ChatResponse{Message: "Which coin?", Options: []string{"BTC", "ETH"}, Context: types.Context{"awaiting": "price_check_coin"}}, nil
		default:
			return nil, errors.New("server down")
		}
	}}
	ctrl := widget.New(view, transport, noCreds{})
	return &harness{t: t, model: NewModel(context.Background(), ctrl, testStyles), sender: sender, transport: transport}
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// press feeds a key and, if it produced a command, runs it and delivers every
// message the controller sent to the view followed by the command's result.
func (h *harness) press(k tea.KeyMsg) {
	h.t.Helper()
	cmd := h.update(k)
	if cmd == nil {
		return
	}
	done := cmd()
	for _, msg := range h.sender.take() {
		h.update(msg)
	}
	h.update(done)
}

func TestModelStartsClosed(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.model.View(), "ctrl+o: open chat")

	h.press(tea.KeyMsg{Type: tea.KeyEnter})
	require.Empty(t, h.transport.seen)
}

func TestModelOpenGreetsAndSelectsOptions(t *testing.T) {
	h := newHarness(t)

	h.press(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, h.model.visible)
	require.False(t, h.model.busy)
	require.Equal(t, []string{"CryptoSight: Hello! I am *CryptoSight*."}, h.model.Transcript())
	require.Equal(t, []string{"Get Prediction", "Check Price"}, h.model.options)
	require.Contains(t, h.model.View(), "Check Price")

	h.press(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, 1, h.model.selected)
	h.press(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 0, h.model.selected)
	h.press(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 1, h.model.selected)

	h.press(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "Check Price", h.transport.seen[1].Message)
	require.Equal(t, types.Context{"awaiting": "initial_choice"}, h.transport.seen[1].Context)
	require.Equal(t, []string{
		"CryptoSight: Hello! I am *CryptoSight*.",
		"You: Check Price",
		"CryptoSight: Which coin?",
	}, h.model.Transcript())
	require.Equal(t, []string{"BTC", "ETH"}, h.model.options)
	require.Equal(t, -1, h.model.selected)
}

func TestModelFreeTextFailureShowsApology(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyMsg{Type: tea.KeyCtrlO})

	h.press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hello")})
	require.Equal(t, "hello", h.model.input.Value())
	h.press(tea.KeyMsg{Type: tea.KeyEnter})

	require.Empty(t, h.model.input.Value())
	tr := h.model.Transcript()
	require.Equal(t, "You: hello", tr[len(tr)-2])
	require.Equal(t, "CryptoSight: "+widget.ApologyMessage, tr[len(tr)-1])
	require.Empty(t, h.model.options)
	require.Contains(t, h.model.status, "server down")
}

func TestModelBlankEnterSendsNothing(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyMsg{Type: tea.KeyCtrlO})
	h.press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("   ")})
	h.press(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, h.transport.seen, 1)
}

func TestModelEscClosesAndReopenKeepsTranscript(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyMsg{Type: tea.KeyCtrlO})
	h.press(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, h.model.visible)

	h.press(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, h.model.visible)
	require.Len(t, h.transport.seen, 1)
	require.Len(t, h.model.Transcript(), 1)
}

func TestModelEnterWhileBusyIsRefused(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyMsg{Type: tea.KeyCtrlO})
	h.update(busyMsg(true))
	h.press(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	h.press(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, h.transport.seen, 1)
	require.Equal(t, "x", h.model.input.Value())
	require.Contains(t, h.model.status, "Still waiting")
}

func TestModelCtrlCQuits(t *testing.T) {
	h := newHarness(t)
	cmd := h.update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)
}

func TestProgramViewDropsCallsBeforeAttach(t *testing.T) {
	v := NewProgramView()
	v.Show()

	s := &recordingSender{}
	v.Attach(s)
	opts := []string{"A"}
	v.SetOptions(opts)
	opts[0] = "mutated"
	v.SetBusy(true)

	msgs := s.take()
	require.Len(t, msgs, 2)
	require.Equal(t, optionsMsg{"A"}, msgs[0])
	require.Equal(t, busyMsg(true), msgs[1])
}
