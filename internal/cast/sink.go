// Package cast models "play this audio elsewhere" as a pluggable
// capability. The session depends only on the Sink interface and works
// unchanged with the no-op sink when no remote playback is available.
package cast

import (
	"context"
	"errors"
	"time"

	"github.com/kwhite/songvote/internal/catalog"
)

var (
	ErrNoDevices        = errors.New("no cast devices found")
	ErrPromptCancelled  = errors.New("device selection cancelled")
	ErrAlreadyConnected = errors.New("already connected to a device")
	ErrNotConnected     = errors.New("not connected to a device")
)

type SinkState string

const (
	StateDisconnected SinkState = "disconnected"
	StateConnecting   SinkState = "connecting"
	StateConnected    SinkState = "connected"
)

// Device is a discovered remote playback target.
type Device struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	PlayerID string `json:"pid"`
	Model    string `json:"model"`
}

// Sink is the remote playback capability. Prompt must be driven by an
// explicit user action; its errors (no devices, cancellation, already
// connected) are non-fatal and leave the current state untouched.
// Re-invoking Prompt switches devices mid-session.
type Sink interface {
	Available() bool
	Prompt(ctx context.Context) error
	OnStateChange(listener func(SinkState))
	// LoadCurrent mirrors local playback onto the remote device.
	LoadCurrent(ctx context.Context, song catalog.Song, position time.Duration, autoplay bool) error
	Stop(ctx context.Context) error
	State() SinkState
}

// NoopSink is the fallback when no remote playback mechanism exists.
type NoopSink struct{}

func (NoopSink) Available() bool               { return false }
func (NoopSink) Prompt(context.Context) error  { return ErrNoDevices }
func (NoopSink) OnStateChange(func(SinkState)) {}
func (NoopSink) Stop(context.Context) error    { return nil }
func (NoopSink) State() SinkState              { return StateDisconnected }

func (NoopSink) LoadCurrent(context.Context, catalog.Song, time.Duration, bool) error {
	return ErrNotConnected
}
