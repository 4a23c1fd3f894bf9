package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
	ErrUnknownCodec = errors.New("unknown codec")
)

// envelope is the flat wire shape shared by every message kind
type envelope struct {
	Type      Kind                `json:"type" msgpack:"type"`
	Name      string              `json:"name,omitempty" msgpack:"name,omitempty"`
	Room      string              `json:"room,omitempty" msgpack:"room,omitempty"`
	ID        string              `json:"id,omitempty" msgpack:"id,omitempty"`
	Users     *[]Participant      `json:"users,omitempty" msgpack:"users,omitempty"`
	User      *Participant        `json:"user,omitempty" msgpack:"user,omitempty"`
	Offer     *SessionDescription `json:"offer,omitempty" msgpack:"offer,omitempty"`
	Answer    *SessionDescription `json:"answer,omitempty" msgpack:"answer,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty" msgpack:"candidate,omitempty"`
	Target    string              `json:"target,omitempty" msgpack:"target,omitempty"`
	From      string              `json:"from,omitempty" msgpack:"from,omitempty"`
	Active    *bool               `json:"active,omitempty" msgpack:"active,omitempty"`
	Error     string              `json:"error,omitempty" msgpack:"error,omitempty"`
}

func toEnvelope(m Message) (envelope, error) {
	env := envelope{Type: m.Kind()}

	switch v := m.(type) {
	case Join:
		env.Name, env.Room = v.Name, v.Room
	case UserList:
		// an empty room must still serialize as [] so clients can tell it from a missing field
		users := v.Users
		if users == nil {
			users = []Participant{}
		}
		env.Users = &users
	case UserJoined:
		user := v.User
		env.User = &user
	case UserLeft:
		env.ID = v.ID
	case Offer:
		sdp := v.SDP
		env.Offer, env.Target, env.From = &sdp, v.Target, v.From
	case Answer:
		sdp := v.SDP
		env.Answer, env.Target, env.From = &sdp, v.Target, v.From
	case IceCandidate:
		c := v.Candidate
		env.Candidate, env.Target, env.From = &c, v.Target, v.From
	case MicToggle:
		active := v.Active
		env.Active = &active
	case Leave:
	case Error:
		env.Error = v.Reason
	default:
		return env, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
	return env, nil
}

func fromEnvelope(env envelope) (Message, error) {
	switch env.Type {
	case KindJoin:
		return Join{Name: env.Name, Room: env.Room}, nil
	case KindUserList:
		var users []Participant
		if env.Users != nil && len(*env.Users) > 0 {
			users = *env.Users
		}
		return UserList{Users: users}, nil
	case KindUserJoined:
		if env.User == nil {
			return nil, fmt.Errorf("%s: %w: user", env.Type, ErrMissingField)
		}
		return UserJoined{User: *env.User}, nil
	case KindUserLeft:
		return UserLeft{ID: env.ID}, nil
	case KindOffer:
		if env.Offer == nil {
			return nil, fmt.Errorf("%s: %w: offer", env.Type, ErrMissingField)
		}
		return Offer{SDP: *env.Offer, Target: env.Target, From: env.From}, nil
	case KindAnswer:
		if env.Answer == nil {
			return nil, fmt.Errorf("%s: %w: answer", env.Type, ErrMissingField)
		}
		return Answer{SDP: *env.Answer, Target: env.Target, From: env.From}, nil
	case KindIceCandidate:
		if env.Candidate == nil {
			return nil, fmt.Errorf("%s: %w: candidate", env.Type, ErrMissingField)
		}
		return IceCandidate{Candidate: *env.Candidate, Target: env.Target, From: env.From}, nil
	case KindMicToggle:
		if env.Active == nil {
			return nil, fmt.Errorf("%s: %w: active", env.Type, ErrMissingField)
		}
		return MicToggle{Active: *env.Active}, nil
	case KindLeave:
		return Leave{}, nil
	case KindError:
		return Error{Reason: env.Error}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Codec turns messages into websocket frames and back
type Codec interface {
	Name() string
	// FrameType is the websocket message type frames are sent as
	FrameType() int
	Encode(m Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// JSON is the default codec, compatible with browser clients
var JSON Codec = jsonCodec{}

// Msgpack is the compact binary codec
var Msgpack Codec = msgpackCodec{}

// CodecByName resolves the codec named in a connection request; empty selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (jsonCodec) Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return fromEnvelope(env)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&env)
}

func (msgpackCodec) Decode(data []byte) (Message, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return fromEnvelope(env)
}
