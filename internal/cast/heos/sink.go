package heos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kwhite/songvote/internal/cast"
	"github.com/kwhite/songvote/internal/catalog"
)

// Sink adapts HEOS control to the cast.Sink capability. Audio is not
// streamed through the sink: the device pulls the song URL from the
// voting server itself, so position mirroring restarts the stream.
type Sink struct {
	ctrl            *Controller
	registry        *cast.Registry
	baseURL         string
	discoverTimeout time.Duration

	mu        sync.Mutex
	device    *cast.Device
	state     cast.SinkState
	listeners []func(cast.SinkState)
}

func NewSink(ctrl *Controller, registry *cast.Registry, baseURL string, discoverTimeout time.Duration) *Sink {
	return &Sink{
		ctrl:            ctrl,
		registry:        registry,
		baseURL:         baseURL,
		discoverTimeout: discoverTimeout,
		state:           cast.StateDisconnected,
	}
}

func (s *Sink) Available() bool {
	return true
}

func (s *Sink) State() cast.SinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sink) OnStateChange(listener func(cast.SinkState)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

func (s *Sink) setState(state cast.SinkState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	listeners := make([]func(cast.SinkState), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// Prompt discovers devices and connects to the first one found.
// Re-invoking while connected switches devices when another one is on
// the network, and reports ErrAlreadyConnected otherwise. All failure
// modes leave the previous state in place.
func (s *Sink) Prompt(ctx context.Context) error {
	s.setState(cast.StateConnecting)

	devices, err := s.ctrl.Discover(ctx, s.discoverTimeout)
	if err != nil || len(devices) == 0 {
		s.restoreState()
		if err != nil {
			return fmt.Errorf("%w: %v", cast.ErrNoDevices, err)
		}
		return cast.ErrNoDevices
	}

	s.registry.Store(ctx, devices)

	s.mu.Lock()
	current := s.device
	s.mu.Unlock()

	pick := devices[0]
	if current != nil {
		// Prefer a different device when switching.
		switched := false
		for _, d := range devices {
			if d.Host != current.Host || d.PlayerID != current.PlayerID {
				pick = d
				switched = true
				break
			}
		}
		if !switched {
			s.setState(cast.StateConnected)
			return cast.ErrAlreadyConnected
		}
	}

	return s.Connect(ctx, pick)
}

// Connect selects a specific device, verifying it answers.
func (s *Sink) Connect(ctx context.Context, device cast.Device) error {
	s.setState(cast.StateConnecting)

	if _, err := s.ctrl.Players(ctx, device.Host); err != nil {
		s.restoreState()
		return fmt.Errorf("device unreachable: %w", err)
	}

	s.mu.Lock()
	s.device = &device
	s.mu.Unlock()
	s.setState(cast.StateConnected)
	return nil
}

func (s *Sink) restoreState() {
	s.mu.Lock()
	connected := s.device != nil
	s.mu.Unlock()

	if connected {
		s.setState(cast.StateConnected)
	} else {
		s.setState(cast.StateDisconnected)
	}
}

// LoadCurrent points the device at the song's audio URL. HEOS streams
// always start from the top; the position hint is ignored.
func (s *Sink) LoadCurrent(ctx context.Context, song catalog.Song, _ time.Duration, autoplay bool) error {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()

	if device == nil {
		return cast.ErrNotConnected
	}
	if !autoplay {
		return nil
	}

	url := fmt.Sprintf("%s/api/songs/%d/audio", s.baseURL, song.ID)
	return s.ctrl.PlayURL(ctx, device.Host, device.PlayerID, url)
}

func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.mu.Unlock()

	s.setState(cast.StateDisconnected)

	if device == nil {
		return nil
	}
	return s.ctrl.Stop(ctx, device.Host, device.PlayerID)
}
