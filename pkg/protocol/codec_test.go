package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWireShape(t *testing.T) {
	mid := "0"
	idx := uint16(0)

	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"join", Join{Name: "Ahmet"}, `{"type":"join-room","name":"Ahmet"}`},
		{"empty user list", UserList{}, `{"type":"user-list","users":[]}`},
		{"user joined", UserJoined{User: Participant{ID: "a", Name: "Ayşe"}}, `{"type":"user-joined","user":{"id":"a","name":"Ayşe"}}`},
		{"user left", UserLeft{ID: "a"}, `{"type":"user-left","id":"a"}`},
		{"offer", Offer{SDP: SessionDescription{Type: "offer", SDP: "v=0"}, Target: "b"}, `{"type":"offer","offer":{"type":"offer","sdp":"v=0"},"target":"b"}`},
		{"candidate", IceCandidate{Candidate: ICECandidate{Candidate: "candidate:1", SDPMid: &mid, SDPMLineIndex: &idx}, From: "a"},
			`{"type":"ice-candidate","candidate":{"candidate":"candidate:1","sdpMid":"0","sdpMLineIndex":0},"from":"a"}`},
		{"mic off", MicToggle{Active: false}, `{"type":"mic-toggle","active":false}`},
		{"leave", Leave{}, `{"type":"leave-room"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := JSON.Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestJSONDecodeBrowserFrames(t *testing.T) {
	msg, err := JSON.Decode([]byte(`{"type":"answer","answer":{"type":"answer","sdp":"v=0"},"target":"x","from":"spoofed"}`))
	require.NoError(t, err)

	answer, ok := msg.(Answer)
	require.True(t, ok)
	assert.Equal(t, "x", answer.Target)
	assert.Equal(t, "v=0", answer.SDP.SDP)

	routed := answer.WithFrom("real")
	assert.Equal(t, "real", routed.(Answer).From)
	assert.Empty(t, routed.TargetID())
}

func TestDecodeErrors(t *testing.T) {
	_, err := JSON.Decode([]byte(`{"type":"chat","text":"hi"}`))
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = JSON.Decode([]byte(`{"type":"offer","target":"b"}`))
	assert.True(t, errors.Is(err, ErrMissingField))

	_, err = JSON.Decode([]byte(`{"type":"mic-toggle"}`))
	assert.True(t, errors.Is(err, ErrMissingField))

	_, err = JSON.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestMsgpackCarriesSameMessage(t *testing.T) {
	want := IceCandidate{Candidate: ICECandidate{Candidate: "candidate:2"}, Target: "peer"}

	data, err := Msgpack.Encode(want)
	require.NoError(t, err)
	assert.False(t, json.Valid(data))

	got, err := Msgpack.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, c.FrameType())

	c, err = CodecByName("msgpack")
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, c.FrameType())

	_, err = CodecByName("xml")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
