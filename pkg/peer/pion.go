package peer

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/protocol"
)

// PionFactory builds transports on pion/webrtc. Every transport shares the
// same local audio track; with no track the transport only receives audio.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
	track  webrtc.TrackLocal
	log    *logger.Logger

	// OnRemoteTrack is called for every incoming audio track. When nil the
	// track is read and discarded so pion's buffers keep draining.
	OnRemoteTrack func(peerID string, track *webrtc.TrackRemote)
}

func NewPionFactory(iceServers []webrtc.ICEServer, track webrtc.TrackLocal, log *logger.Logger) (*PionFactory, error) {
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = logger.PionFactory{Base: log}

	return &PionFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)),
		config: webrtc.Configuration{ICEServers: iceServers},
		track:  track,
		log:    log.Named("WebRTC"),
	}, nil
}

func (f *PionFactory) NewTransport(peerID string) (Transport, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if f.track != nil {
		sender, err := pc.AddTrack(f.track)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add local audio: %w", err)
		}
		// RTCP has to be read for interceptors to run
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	} else {
		_, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add receive-only audio: %w", err)
		}
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		f.log.Info("receiving %s from %s", remote.Codec().MimeType, peerID)
		if f.OnRemoteTrack != nil {
			f.OnRemoteTrack(peerID, remote)
			return
		}
		for {
			if _, _, err := remote.ReadRTP(); err != nil {
				return
			}
		}
	})

	return &pionTransport{pc: pc}, nil
}

type pionTransport struct {
	pc *webrtc.PeerConnection
}

func (t *pionTransport) CreateOffer(ctx context.Context) (protocol.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return protocol.SessionDescription{}, err
	}
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return protocol.SessionDescription{}, err
	}
	return fromPionSDP(offer), nil
}

func (t *pionTransport) CreateAnswer(ctx context.Context) (protocol.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return protocol.SessionDescription{}, err
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.SessionDescription{}, err
	}
	return fromPionSDP(answer), nil
}

func (t *pionTransport) SetLocalDescription(ctx context.Context, sdp protocol.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.pc.SetLocalDescription(toPionSDP(sdp))
}

func (t *pionTransport) SetRemoteDescription(ctx context.Context, sdp protocol.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.pc.SetRemoteDescription(toPionSDP(sdp))
}

func (t *pionTransport) AddICECandidate(c protocol.ICECandidate) error {
	return t.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (t *pionTransport) OnICECandidate(fn func(c protocol.ICECandidate)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if c == nil {
			return
		}
		init := c.ToJSON()
		fn(protocol.ICECandidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (t *pionTransport) OnStateChange(fn func(s State)) {
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(fromPionState(s))
	})
}

func (t *pionTransport) Close() error {
	return t.pc.Close()
}

func fromPionSDP(d webrtc.SessionDescription) protocol.SessionDescription {
	return protocol.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}

func toPionSDP(d protocol.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}

func fromPionState(s webrtc.PeerConnectionState) State {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return StateConnecting
	case webrtc.PeerConnectionStateConnected:
		return StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return StateFailed
	case webrtc.PeerConnectionStateClosed:
		return StateClosed
	default:
		return StateNew
	}
}
