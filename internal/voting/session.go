package voting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kwhite/songvote/internal/cast"
	"github.com/kwhite/songvote/internal/catalog"
)

const (
	gateTickInterval = 100 * time.Millisecond
	draftOpTimeout   = 2 * time.Second
	submitTimeout    = 10 * time.Second
	sinkLoadTimeout  = 5 * time.Second
)

// Deps are the collaborators a session is wired with. Transport,
// Drafts and Submitter are required; Prefetch, Sink and Now are
// optional.
type Deps struct {
	ClientID  string
	Transport Transport
	Prefetch  Prefetcher
	Drafts    DraftStore
	Submitter VoteSubmitter
	Sink      cast.Sink
	Now       func() time.Time
}

// Session is one voting run: a shuffled blind queue walked song by
// song, with the listen gate deciding when voting unlocks. One session
// object per run; it owns the queue, cursor, gate and draft for its
// lifetime.
type Session struct {
	mu  sync.Mutex
	cfg SessionConfig

	clientID  string
	queue     *Queue
	gate      *ListenGate
	playback  *Playback
	drafts    DraftStore
	submitter VoteSubmitter
	sink      cast.Sink

	state   State
	current catalog.Song
	hasSong bool
	ended   bool
	draft   Draft

	position time.Duration

	firstPlayHook func()
	firstPlayDone bool
	volumeSet     bool

	gateStop chan struct{}

	subs subscribers
}

func NewSession(cfg SessionConfig, deps Deps) (*Session, error) {
	if deps.Transport == nil {
		return nil, ErrTransportNil
	}
	if deps.Drafts == nil {
		return nil, ErrDraftStoreNil
	}
	if deps.Submitter == nil {
		return nil, ErrSubmitterNil
	}
	if cfg.Mode == "" {
		cfg.Mode = QueueModeFinite
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		cfg:       cfg,
		clientID:  deps.ClientID,
		gate:      newListenGateWithClock(cfg.MinListenTime, now),
		playback:  NewPlayback(deps.Transport, deps.Prefetch),
		drafts:    deps.Drafts,
		submitter: deps.Submitter,
		sink:      deps.Sink,
		state:     StateSetup,
	}
	deps.Transport.SetListener(s)
	if s.sink != nil {
		s.sink.OnStateChange(s.onSinkStateChange)
	}
	return s, nil
}

// SetFirstPlayHook registers a capability initializer run once on the
// first play event of the session (e.g. building the analysis graph,
// which needs a user gesture).
func (s *Session) SetFirstPlayHook(fn func()) {
	s.mu.Lock()
	s.firstPlayHook = fn
	s.mu.Unlock()
}

// Subscribe returns a new event subscription.
func (s *Session) Subscribe() *Subscription {
	return s.subs.add()
}

func (s *Session) Unsubscribe(sub *Subscription) {
	s.subs.remove(sub)
}

// Reconfigure replaces the session configuration, e.g. with a vote
// block's overrides. Only allowed in Setup: once started, the
// configuration is immutable for the session's lifetime.
func (s *Session) Reconfigure(cfg SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSetup {
		return ErrSessionActive
	}
	if cfg.Mode == "" {
		cfg.Mode = QueueModeFinite
	}
	s.cfg = cfg
	s.gate = newListenGateWithClock(cfg.MinListenTime, s.gate.now)
	return nil
}

// Start builds the shuffled queue for the scope and loads the first
// song. On an empty scope the session stays in Setup and the error is
// surfaced to the caller.
func (s *Session) Start(scope string, source CatalogSource) error {
	s.mu.Lock()
	if s.state != StateSetup {
		s.mu.Unlock()
		return ErrSessionActive
	}

	queue, err := BuildQueue(scope, source, s.cfg.Mode)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.queue = queue
	first, _ := queue.Advance()
	s.mu.Unlock()

	return s.load(first)
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the loaded song, if any.
func (s *Session) Current() (catalog.Song, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasSong
}

// QueuePosition returns the cursor and queue length.
func (s *Session) QueuePosition() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue == nil {
		return -1, 0
	}
	return s.queue.Cursor(), s.queue.Len()
}

// Draft returns the in-progress vote for the loaded song.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) CanVote() bool {
	return s.gate.CanVote()
}

// RemainingListenTime is how long the listener still has to play audio
// before voting unlocks.
func (s *Session) RemainingListenTime() time.Duration {
	return s.gate.Remaining()
}

// --- transport passthroughs ---

func (s *Session) Play() error { return s.playback.Play() }

func (s *Session) Pause() { s.playback.Pause() }

func (s *Session) TogglePlayback() error { return s.playback.Toggle() }

func (s *Session) Seek(fraction float64) { s.playback.Seek(fraction) }

func (s *Session) SetVolume(fraction float64) { s.playback.SetVolume(fraction) }

// --- vote draft ---

// SetThumbs records a thumbs direction on the draft. Voting controls
// are locked until the gate is met.
func (s *Session) SetThumbs(thumbsUp bool) error {
	s.mu.Lock()
	if s.state != StateVotingUnlocked {
		s.mu.Unlock()
		return ErrVotingLocked
	}
	s.draft.SongID = s.current.ID
	s.draft.Thumbs = &thumbsUp
	s.draft.SavedAt = time.Now().UTC()
	draft := s.draft
	s.mu.Unlock()

	return s.saveDraft(draft)
}

// SetRating records a 1-10 rating on the draft.
func (s *Session) SetRating(rating int) error {
	if rating < 1 || rating > 10 {
		return ErrInvalidRating
	}

	s.mu.Lock()
	if s.state != StateVotingUnlocked {
		s.mu.Unlock()
		return ErrVotingLocked
	}
	s.draft.SongID = s.current.ID
	s.draft.Rating = rating
	s.draft.SavedAt = time.Now().UTC()
	draft := s.draft
	s.mu.Unlock()

	return s.saveDraft(draft)
}

func (s *Session) saveDraft(draft Draft) error {
	ctx, cancel := context.WithTimeout(context.Background(), draftOpTimeout)
	defer cancel()

	if err := s.drafts.Save(ctx, s.clientID, draft); err != nil {
		log.Printf("Warning: failed to persist vote draft: %v", err)
		return err
	}
	return nil
}

// --- submission ---

// Submit sends the draft to the vote API. The submit affordance stays
// disabled (state Submitting) until the round-trip resolves. Success
// clears the draft and advances the cursor, always both; failure
// returns to VotingUnlocked with the draft intact for a user retry.
func (s *Session) Submit() error {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return ErrSubmitPending
	}
	if s.state != StateVotingUnlocked {
		s.mu.Unlock()
		return ErrVotingLocked
	}
	if s.draft.Empty() {
		s.mu.Unlock()
		return ErrNothingToVote
	}

	song := s.current
	draft := s.draft
	s.setStateLocked(StateSubmitting)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	res, err := s.submitter.Submit(ctx, song, draft)
	cancel()

	s.mu.Lock()
	// A response for a song that is no longer loaded is stale: the
	// session moved on (teardown, navigation). Discard silently.
	if s.state != StateSubmitting || !s.hasSong || s.current.ID != song.ID {
		s.mu.Unlock()
		return nil
	}

	if err != nil || !res.Success {
		s.setStateLocked(StateVotingUnlocked)
		msg := res.Error
		if err != nil {
			msg = err.Error()
		}
		s.mu.Unlock()
		s.subs.each(func(sub *Subscription) {
			sub.sendError(ErrorEvent{Message: "vote submission failed: " + msg})
		})
		if err != nil {
			return err
		}
		return fmt.Errorf("vote submission failed: %s", msg)
	}

	s.draft = Draft{}
	s.mu.Unlock()

	clearCtx, clearCancel := context.WithTimeout(context.Background(), draftOpTimeout)
	if err := s.drafts.Clear(clearCtx, s.clientID); err != nil {
		log.Printf("Warning: failed to clear vote draft: %v", err)
	}
	clearCancel()

	return s.advance()
}

// Skip advances without any vote side-effect. Unavailable when the
// session was configured with skipping disabled.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.cfg.SkipDisabled {
		s.mu.Unlock()
		return ErrSkipDisabled
	}
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return ErrSubmitPending
	}
	if s.state == StateCompleted {
		s.mu.Unlock()
		return ErrSessionDone
	}
	if !s.hasSong {
		s.mu.Unlock()
		return ErrNoActiveSong
	}
	s.mu.Unlock()

	return s.advance()
}

// Teardown aborts the session without submitting a vote for the
// in-progress song, returning to Setup. Pending timer ticks and
// pre-fetches are cancelled.
func (s *Session) Teardown() {
	s.mu.Lock()
	s.stopGateWatcherLocked()
	s.gate.Stop()
	s.gate.Reset()
	s.queue = nil
	s.hasSong = false
	s.ended = false
	s.draft = Draft{}
	s.volumeSet = false
	s.setStateLocked(StateSetup)
	s.mu.Unlock()

	s.playback.Teardown()
}

// Close tears the session down and closes all subscriptions.
func (s *Session) Close() {
	s.Teardown()
	s.subs.closeAll()
}

// --- internals ---

func (s *Session) advance() error {
	s.mu.Lock()
	if s.queue == nil {
		s.mu.Unlock()
		return ErrNoActiveSong
	}

	next, done := s.queue.Advance()
	if done {
		s.stopGateWatcherLocked()
		s.gate.Stop()
		s.hasSong = false
		s.ended = false
		s.setStateLocked(StateCompleted)
		s.mu.Unlock()

		s.playback.Teardown()
		return nil
	}
	s.mu.Unlock()

	return s.load(next)
}

func (s *Session) load(song catalog.Song) error {
	s.mu.Lock()
	s.stopGateWatcherLocked()
	s.current = song
	s.hasSong = true
	s.ended = false
	s.draft = Draft{}
	s.position = 0
	s.gate.Stop()
	s.gate.Reset()
	s.setStateLocked(StatePlaying)
	cursor := s.queue.Cursor()
	total := s.queue.Len()
	next, hasNext := s.queue.Peek()
	s.mu.Unlock()

	// Restore an interrupted draft for this exact song, if one exists.
	ctx, cancel := context.WithTimeout(context.Background(), draftOpTimeout)
	if d, err := s.drafts.Restore(ctx, s.clientID, song.ID); err == nil && d != nil {
		s.mu.Lock()
		s.draft = *d
		s.mu.Unlock()
	} else if err != nil {
		log.Printf("Warning: failed to restore vote draft: %v", err)
	}
	cancel()

	s.subs.each(func(sub *Subscription) {
		sub.sendSong(songEvent(song, cursor, total))
	})

	s.mu.Lock()
	applyVolume := !s.volumeSet && s.cfg.Volume > 0
	if applyVolume {
		s.volumeSet = true
	}
	volume := s.cfg.Volume
	s.mu.Unlock()
	if applyVolume {
		s.playback.SetVolume(float64(volume) / 100)
	}

	if err := s.playback.Load(song); err != nil {
		// Non-fatal: the user can retry or skip to the next song.
		s.subs.each(func(sub *Subscription) {
			sub.sendError(ErrorEvent{Message: fmt.Sprintf("failed to load song %d", song.ID)})
		})
	}

	if hasNext {
		s.playback.WarmNext(next)
	}

	s.mirrorToSink(song, 0)
	return nil
}

func (s *Session) mirrorToSink(song catalog.Song, position time.Duration) {
	if s.sink == nil || !s.sink.Available() || s.sink.State() != cast.StateConnected {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkLoadTimeout)
		defer cancel()
		if err := s.sink.LoadCurrent(ctx, song, position, true); err != nil {
			log.Printf("Warning: cast sink load failed: %v", err)
		}
	}()
}

// onSinkStateChange mirrors the in-progress song onto a sink the
// moment it connects, picking up at the last reported position.
func (s *Session) onSinkStateChange(state cast.SinkState) {
	if state != cast.StateConnected {
		return
	}

	s.mu.Lock()
	song, ok := s.current, s.hasSong
	position := s.position
	s.mu.Unlock()

	if ok {
		s.mirrorToSink(song, position)
	}
}

// PromptCast opens the remote device chooser. Must be called from a
// user action. All prompt failures leave playback state untouched.
func (s *Session) PromptCast(ctx context.Context) error {
	if s.sink == nil || !s.sink.Available() {
		return cast.ErrNoDevices
	}
	return s.sink.Prompt(ctx)
}

// CheckGate performs the Playing -> VotingUnlocked transition once the
// listen gate is met. Called from the tick watcher; safe to call any
// time.
func (s *Session) CheckGate() {
	s.mu.Lock()
	if s.state != StatePlaying || !s.hasSong || !s.gate.CanVote() {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateVotingUnlocked)
	s.mu.Unlock()
}

func (s *Session) setStateLocked(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to

	// Synchronous so back-to-back transitions reach subscribers in
	// order; the channel sends never block.
	s.subs.each(func(sub *Subscription) {
		sub.sendState(StateChange{From: from, To: to})
	})
}

func (s *Session) startGateWatcherLocked() {
	if s.gateStop != nil {
		return
	}

	stop := make(chan struct{})
	s.gateStop = stop

	go func() {
		ticker := time.NewTicker(gateTickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.CheckGate()
				s.mu.Lock()
				unlocked := s.state != StatePlaying
				s.mu.Unlock()
				if unlocked {
					return
				}
			}
		}
	}()
}

func (s *Session) stopGateWatcherLocked() {
	if s.gateStop != nil {
		close(s.gateStop)
		s.gateStop = nil
	}
}

// --- TransportListener ---

func (s *Session) OnLoaded(duration time.Duration) {
	// Duration only matters to the visualizer; nothing to do here.
}

func (s *Session) OnPlay() {
	s.mu.Lock()
	if !s.hasSong {
		s.mu.Unlock()
		return
	}
	s.gate.Start()
	s.playback.setPlaying(true)

	var hook func()
	if !s.firstPlayDone && s.firstPlayHook != nil {
		s.firstPlayDone = true
		hook = s.firstPlayHook
	}
	if s.state == StatePlaying {
		s.startGateWatcherLocked()
	}
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

func (s *Session) OnPause() {
	s.mu.Lock()
	s.gate.Stop()
	s.playback.setPlaying(false)
	s.stopGateWatcherLocked()
	s.mu.Unlock()

	// The gate may have crossed the threshold in the tick gap right
	// before the pause landed.
	s.CheckGate()
}

// OnEnded leaves advancement to an explicit user action: the song sits
// in a neutral "ended, vote or skip" state. With AutoSubmitOnEnd set
// and a non-empty unlocked draft, the vote is submitted instead.
func (s *Session) OnEnded() {
	s.mu.Lock()
	s.gate.Stop()
	s.playback.setPlaying(false)
	s.stopGateWatcherLocked()
	s.ended = true
	s.mu.Unlock()

	s.CheckGate()

	s.mu.Lock()
	autoSubmit := s.cfg.AutoSubmitOnEnd && s.state == StateVotingUnlocked && !s.draft.Empty()
	s.mu.Unlock()

	if autoSubmit {
		if err := s.Submit(); err != nil {
			log.Printf("Warning: auto-submit on end failed: %v", err)
		}
	}
}

func (s *Session) OnTimeUpdate(position time.Duration) {
	// The gate deliberately never reads transport position; this only
	// feeds remote sink mirroring.
	s.mu.Lock()
	s.position = position
	s.mu.Unlock()
}

// Ended reports whether the loaded song has played to its end.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
