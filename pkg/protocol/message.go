// Package protocol defines the signaling messages exchanged between
// participants and the server, and the codecs that put them on the wire.
//
// Message is a closed set: only the variants declared here implement it,
// so a type switch over Message can be checked for completeness by reading
// this file alone.
package protocol

// Kind is the wire tag of a message
type Kind string

const (
	KindJoin         Kind = "join-room"
	KindUserList     Kind = "user-list"
	KindUserJoined   Kind = "user-joined"
	KindUserLeft     Kind = "user-left"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindIceCandidate Kind = "ice-candidate"
	KindMicToggle    Kind = "mic-toggle"
	KindLeave        Kind = "leave-room"
	KindError        Kind = "error"
)

// Participant is the public identity of one live connection
type Participant struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// SessionDescription mirrors the browser RTCSessionDescriptionInit shape.
// The server never looks inside it.
type SessionDescription struct {
	Type string `json:"type" msgpack:"type"`
	SDP  string `json:"sdp" msgpack:"sdp"`
}

// ICECandidate mirrors the browser RTCIceCandidateInit shape
type ICECandidate struct {
	Candidate        string  `json:"candidate" msgpack:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty" msgpack:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty" msgpack:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty" msgpack:"usernameFragment,omitempty"`
}

// Message is implemented by every signaling variant
type Message interface {
	Kind() Kind
	sealed()
}

// Routed is implemented by the negotiation variants the relay forwards
type Routed interface {
	Message
	TargetID() string
	// WithFrom returns a copy addressed from the given connection, with the
	// target cleared; the relay uses it so senders can never choose From.
	WithFrom(from string) Routed
}

// Join asks the server to admit this connection to a room
type Join struct {
	Name string
	Room string // empty selects the server's default room
}

// UserList is the snapshot of the other members returned to a joiner
type UserList struct {
	Users []Participant
}

// UserJoined announces a new member to the existing ones
type UserJoined struct {
	User Participant
}

// UserLeft announces a departure
type UserLeft struct {
	ID string
}

// Offer carries an initiator's session description
type Offer struct {
	SDP    SessionDescription
	Target string
	From   string
}

// Answer carries a responder's session description
type Answer struct {
	SDP    SessionDescription
	Target string
	From   string
}

// IceCandidate carries one trickled candidate
type IceCandidate struct {
	Candidate ICECandidate
	Target    string
	From      string
}

// MicToggle reports the sender's local microphone state
type MicToggle struct {
	Active bool
}

// Leave is an explicit departure request
type Leave struct{}

// Error is sent by the server when it refuses a request
type Error struct {
	Reason string
}

func (Join) Kind() Kind         { return KindJoin }
func (UserList) Kind() Kind     { return KindUserList }
func (UserJoined) Kind() Kind   { return KindUserJoined }
func (UserLeft) Kind() Kind     { return KindUserLeft }
func (Offer) Kind() Kind        { return KindOffer }
func (Answer) Kind() Kind       { return KindAnswer }
func (IceCandidate) Kind() Kind { return KindIceCandidate }
func (MicToggle) Kind() Kind    { return KindMicToggle }
func (Leave) Kind() Kind        { return KindLeave }
func (Error) Kind() Kind        { return KindError }

func (Join) sealed()         {}
func (UserList) sealed()     {}
func (UserJoined) sealed()   {}
func (UserLeft) sealed()     {}
func (Offer) sealed()        {}
func (Answer) sealed()       {}
func (IceCandidate) sealed() {}
func (MicToggle) sealed()    {}
func (Leave) sealed()        {}
func (Error) sealed()        {}

func (m Offer) TargetID() string        { return m.Target }
func (m Answer) TargetID() string       { return m.Target }
func (m IceCandidate) TargetID() string { return m.Target }

func (m Offer) WithFrom(from string) Routed {
	m.From, m.Target = from, ""
	return m
}

func (m Answer) WithFrom(from string) Routed {
	m.From, m.Target = from, ""
	return m
}

func (m IceCandidate) WithFrom(from string) Routed {
	m.From, m.Target = from, ""
	return m
}
