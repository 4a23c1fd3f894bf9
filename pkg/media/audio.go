// Package media holds the local audio handle shared by every peer link.
package media

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

var ErrStopped = errors.New("local audio stopped")

// FrameDuration is the Opus frame length written by Capture
const FrameDuration = 20 * time.Millisecond

// opusSilence is a single Opus frame that decodes to silence
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Source yields encoded Opus frames, for example from a microphone encoder
type Source interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// LocalAudio is one Opus track attached to all peer connections. Disabling it
// mutes every link at once.
type LocalAudio struct {
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
}

func NewLocalAudio(streamID string) (*LocalAudio, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		streamID,
	)
	if err != nil {
		return nil, err
	}

	a := &LocalAudio{track: track, done: make(chan struct{})}
	a.enabled.Store(true)
	return a, nil
}

// Track is what each peer connection attaches
func (a *LocalAudio) Track() webrtc.TrackLocal {
	return a.track
}

func (a *LocalAudio) Enabled() bool {
	return a.enabled.Load()
}

func (a *LocalAudio) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// WriteSample forwards a frame to every attached connection. Frames written
// while disabled are discarded.
func (a *LocalAudio) WriteSample(s pionmedia.Sample) error {
	if a.stopped.Load() {
		return ErrStopped
	}
	if !a.enabled.Load() {
		return nil
	}
	return a.track.WriteSample(s)
}

// Capture pumps frames from src until ctx ends, the source fails or Stop is
// called. A nil source sends silence.
func (a *LocalAudio) Capture(ctx context.Context, src Source) error {
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return nil
		case <-ticker.C:
		}

		frame := opusSilence
		if src != nil {
			var err error
			if frame, err = src.NextFrame(ctx); err != nil {
				return err
			}
		}

		if err := a.WriteSample(pionmedia.Sample{Data: frame, Duration: FrameDuration}); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
	}
}

// Stop ends capture. Further writes fail with ErrStopped.
func (a *LocalAudio) Stop() {
	if a.stopped.CompareAndSwap(false, true) {
		close(a.done)
	}
}

func (a *LocalAudio) Stopped() bool {
	return a.stopped.Load()
}
