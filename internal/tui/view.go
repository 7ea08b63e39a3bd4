package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

type (
	showMsg    struct{}
	hideMsg    struct{}
	scrollMsg  struct{}
	busyMsg    bool
	optionsMsg []string
	appendMsg  struct {
		user bool
		text string
	}
)

// Sender is the part of *tea.Program the view needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramView forwards controller rendering calls into the Bubble Tea event
// loop. Calls made before Attach are dropped.
type ProgramView struct {
	mu     sync.RWMutex
	sender Sender
}

func NewProgramView() *ProgramView { return &ProgramView{} }

func (v *ProgramView) Attach(s Sender) {
	v.mu.Lock()
	v.sender = s
	v.mu.Unlock()
}

func (v *ProgramView) send(msg tea.Msg) {
	v.mu.RLock()
	s := v.sender
	v.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

func (v *ProgramView) Show()                   { v.send(showMsg{}) }
func (v *ProgramView) Hide()                   { v.send(hideMsg{}) }
func (v *ProgramView) AppendUser(text string)  { v.send(appendMsg{user: true, text: text}) }
func (v *ProgramView) AppendBot(markup string) { v.send(appendMsg{text: markup}) }
func (v *ProgramView) ScrollToBottom()         { v.send(scrollMsg{}) }
func (v *ProgramView) SetBusy(busy bool)       { v.send(busyMsg(busy)) }

func (v *ProgramView) SetOptions(options []string) {
	v.send(optionsMsg(append([]string(nil), options...)))
}
