// Package ui prints session events for a terminal participant.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tphan267/huddle/pkg/peer"
	"github.com/tphan267/huddle/pkg/protocol"
	"github.com/tphan267/huddle/pkg/session"
	"github.com/tphan267/huddle/pkg/utils"
)

// Renderer writes one line (or table) per session event. It satisfies
// session.Observer.
type Renderer struct {
	mu           sync.Mutex
	out          io.Writer
	participants []protocol.Participant
	states       map[string]peer.State
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:    out,
		states: make(map[string]peer.State),
	}
}

// Welcome prints the header shown once after login
func (r *Renderer) Welcome(name, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", TitleStyle.Render("huddle"), MutedStyle.Render(fmt.Sprintf("%s in room %s", name, room)))
}

func (r *Renderer) ParticipantsChanged(participants []protocol.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.participants = append([]protocol.Participant(nil), participants...)
	known := make(map[string]bool, len(participants))
	for _, p := range participants {
		known[p.ID] = true
	}
	for id := range r.states {
		if !known[id] {
			delete(r.states, id)
		}
	}
	fmt.Fprintln(r.out, r.tableLocked())
}

func (r *Renderer) PeerStateChanged(peerID string, state peer.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[peerID] = state
	fmt.Fprintf(r.out, "%s %s\n", StateBadge(state), r.nameLocked(peerID))
}

func (r *Renderer) StatusChanged(status peer.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	badge := ConnectingBadge
	if status.IsConnected() {
		badge = ConnectedBadge
	}
	fmt.Fprintln(r.out, badge.Render(status.String()))
}

func (r *Renderer) MicChanged(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if active {
		fmt.Fprintln(r.out, InfoBadge.Render("Mic on"))
	} else {
		fmt.Fprintln(r.out, ErrorBadge.Render("Mic off"))
	}
}

func (r *Renderer) Notice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, WarningStyle.Render(text))
}

func (r *Renderer) Disconnected(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", ErrorBadge.Render("Disconnected"), ErrorStyle.Render(fmt.Sprintf("lost connection to server: %v", err)))
}

// Table renders the current participants with their link states
func (r *Renderer) Table() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tableLocked()
}

func (r *Renderer) tableLocked() string {
	if len(r.participants) == 0 {
		return MutedStyle.Render("Nobody else is here yet")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "ID", "Link"})
	for i, p := range r.participants {
		state, ok := r.states[p.ID]
		if !ok {
			state = peer.StateNew
		}
		t.AppendRow(table.Row{i + 1, p.Name, utils.ShortID(p.ID), state.String()})
	}
	return t.Render()
}

func (r *Renderer) nameLocked(peerID string) string {
	for _, p := range r.participants {
		if p.ID == peerID {
			return p.Name
		}
	}
	return utils.ShortID(peerID)
}

// StateBadge colours a link state
func StateBadge(state peer.State) string {
	switch state {
	case peer.StateConnected:
		return ConnectedBadge.Render(state.String())
	case peer.StateFailed, peer.StateClosed, peer.StateDisconnected:
		return ErrorBadge.Render(state.String())
	default:
		return ConnectingBadge.Render(state.String())
	}
}

var _ session.Observer = (*Renderer)(nil)
