package voting

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kwhite/songvote/internal/catalog"
)

// Transport is the audio playback surface the session drives. The
// concrete implementation lives in the presentation layer; events come
// back through the registered TransportListener in load order:
// loaded -> (play|pause)* -> ended.
type Transport interface {
	Load(song catalog.Song) error
	Play() error
	Pause()
	Seek(fraction float64)
	SetVolume(fraction float64)
	SetListener(l TransportListener)
}

// TransportListener receives transport lifecycle events.
type TransportListener interface {
	OnLoaded(duration time.Duration)
	OnPlay()
	OnPause()
	OnEnded()
	OnTimeUpdate(position time.Duration)
}

// Prefetcher warms the audio resource for an upcoming song. Pure
// optimization: failures are ignored and a cancelled context abandons
// the fetch.
type Prefetcher interface {
	Warm(ctx context.Context, song catalog.Song) error
}

// Playback wraps a single transport and owns the pre-fetch of the next
// queued take.
type Playback struct {
	mu        sync.Mutex
	transport Transport
	prefetch  Prefetcher

	playing bool

	prefetchCancel context.CancelFunc
}

func NewPlayback(transport Transport, prefetch Prefetcher) *Playback {
	return &Playback{
		transport: transport,
		prefetch:  prefetch,
	}
}

// Load points the transport at the song and attempts autoplay. An
// autoplay refusal is not an error: playback then starts on the next
// explicit user interaction.
func (p *Playback) Load(song catalog.Song) error {
	if p.transport == nil {
		return ErrTransportNil
	}

	p.cancelPrefetch()

	if err := p.transport.Load(song); err != nil {
		return err
	}

	if err := p.transport.Play(); err != nil {
		p.setPlaying(false)
	}
	return nil
}

func (p *Playback) Play() error {
	if p.transport == nil {
		return ErrTransportNil
	}
	return p.transport.Play()
}

func (p *Playback) Pause() {
	if p.transport == nil {
		return
	}
	p.transport.Pause()
}

// Toggle flips between play and pause based on the last observed
// transport state.
func (p *Playback) Toggle() error {
	if p.transport == nil {
		return ErrTransportNil
	}
	if p.Playing() {
		p.transport.Pause()
		return nil
	}
	return p.transport.Play()
}

func (p *Playback) Seek(fraction float64) {
	if p.transport == nil {
		return
	}
	p.transport.Seek(clampFraction(fraction))
}

func (p *Playback) SetVolume(fraction float64) {
	if p.transport == nil {
		return
	}
	p.transport.SetVolume(clampFraction(fraction))
}

func (p *Playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Playback) setPlaying(playing bool) {
	p.mu.Lock()
	p.playing = playing
	p.mu.Unlock()
}

// WarmNext starts pre-fetching the given song, cancelling any fetch
// still in flight for a previous one.
func (p *Playback) WarmNext(song catalog.Song) {
	if p.prefetch == nil {
		return
	}

	p.mu.Lock()
	if p.prefetchCancel != nil {
		p.prefetchCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.prefetchCancel = cancel
	p.mu.Unlock()

	go func() {
		if err := p.prefetch.Warm(ctx, song); err != nil && ctx.Err() == nil {
			log.Printf("prefetch for song %d failed: %v", song.ID, err)
		}
	}()
}

func (p *Playback) cancelPrefetch() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prefetchCancel != nil {
		p.prefetchCancel()
		p.prefetchCancel = nil
	}
}

// Teardown cancels pending pre-fetches and pauses the transport.
func (p *Playback) Teardown() {
	p.cancelPrefetch()
	if p.transport != nil {
		p.transport.Pause()
	}
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
