package peer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphan267/huddle/pkg/media"
	"github.com/tphan267/huddle/pkg/protocol"
)

func TestPionNegotiation(t *testing.T) {
	audio, err := media.NewLocalAudio("x")
	require.NoError(t, err)

	xFactory, err := NewPionFactory(nil, audio.Track(), quietLogger())
	require.NoError(t, err)
	// y joined without a microphone
	yFactory, err := NewPionFactory(nil, nil, quietLogger())
	require.NoError(t, err)

	xOut, yOut := &outbox{}, &outbox{}
	xHub := NewHub(xFactory, xOut, nil, quietLogger())
	yHub := NewHub(yFactory, yOut, nil, quietLogger())
	t.Cleanup(func() {
		_ = xHub.CloseAll()
		_ = yHub.CloseAll()
	})

	xl, _, err := xHub.Open("y", Initiator)
	require.NoError(t, err)
	require.NoError(t, xl.Initiate(context.Background()))

	xOut.mu.Lock()
	offer := xOut.msgs[0].(protocol.Offer)
	xOut.mu.Unlock()
	assert.Equal(t, "offer", offer.SDP.Type)
	assert.Contains(t, offer.SDP.SDP, "m=audio")
	assert.Contains(t, offer.SDP.SDP, "opus")

	yl, _, err := yHub.Open("x", Responder)
	require.NoError(t, err)
	require.NoError(t, yl.HandleOffer(context.Background(), offer.SDP))

	yOut.mu.Lock()
	answer := yOut.msgs[0].(protocol.Answer)
	yOut.mu.Unlock()
	assert.Equal(t, "answer", answer.SDP.Type)
	assert.Contains(t, answer.SDP.SDP, "a=recvonly")

	require.NoError(t, xl.HandleAnswer(context.Background(), answer.SDP))
}

func TestPionRejectsMalformedOffer(t *testing.T) {
	factory, err := NewPionFactory(nil, nil, quietLogger())
	require.NoError(t, err)
	hub := NewHub(factory, &outbox{}, nil, quietLogger())
	t.Cleanup(func() { _ = hub.CloseAll() })

	l, _, err := hub.Open("x", Responder)
	require.NoError(t, err)

	err = l.HandleOffer(context.Background(), protocol.SessionDescription{Type: "offer", SDP: "not sdp"})
	var negErr *NegotiationError
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, "set-remote-description", negErr.Op)
	assert.Equal(t, StateNew, l.State())
}
