package voting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kwhite/songvote/internal/cast"
	"github.com/kwhite/songvote/internal/catalog"
)

type fakeTransport struct {
	mu       sync.Mutex
	listener TransportListener

	loads   []catalog.Song
	seeks   []float64
	volumes []float64
	loadErr error
	playErr error
}

func (t *fakeTransport) SetListener(l TransportListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

func (t *fakeTransport) Load(song catalog.Song) error {
	t.mu.Lock()
	t.loads = append(t.loads, song)
	err := t.loadErr
	l := t.listener
	t.mu.Unlock()

	if err != nil {
		return err
	}
	l.OnLoaded(3 * time.Minute)
	return nil
}

func (t *fakeTransport) Play() error {
	t.mu.Lock()
	err := t.playErr
	l := t.listener
	t.mu.Unlock()

	if err != nil {
		return err
	}
	l.OnPlay()
	return nil
}

func (t *fakeTransport) Pause() {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	l.OnPause()
}

func (t *fakeTransport) Seek(fraction float64) {
	t.mu.Lock()
	t.seeks = append(t.seeks, fraction)
	t.mu.Unlock()
}

func (t *fakeTransport) SetVolume(fraction float64) {
	t.mu.Lock()
	t.volumes = append(t.volumes, fraction)
	t.mu.Unlock()
}

func (t *fakeTransport) volumeCalls() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.volumes...)
}

func (t *fakeTransport) end() {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	l.OnEnded()
}

func (t *fakeTransport) loadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loads)
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []Draft
	res   VoteResult
	err   error
	hook  func()
}

func (f *fakeSubmitter) Submit(_ context.Context, _ catalog.Song, draft Draft) (VoteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, draft)
	res, err, hook := f.res, f.err, f.hook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return res, err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sinkLoad struct {
	song     catalog.Song
	position time.Duration
}

type fakeSink struct {
	mu       sync.Mutex
	state    cast.SinkState
	listener func(cast.SinkState)
	loaded   chan sinkLoad
}

func newFakeSink() *fakeSink {
	return &fakeSink{state: cast.StateDisconnected, loaded: make(chan sinkLoad, 4)}
}

func (s *fakeSink) Available() bool              { return true }
func (s *fakeSink) Prompt(context.Context) error { return nil }
func (s *fakeSink) Stop(context.Context) error   { return nil }

func (s *fakeSink) OnStateChange(l func(cast.SinkState)) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

func (s *fakeSink) State() cast.SinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSink) LoadCurrent(_ context.Context, song catalog.Song, position time.Duration, _ bool) error {
	s.loaded <- sinkLoad{song: song, position: position}
	return nil
}

func (s *fakeSink) connect() {
	s.mu.Lock()
	s.state = cast.StateConnected
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l(cast.StateConnected)
	}
}

type sessionFixture struct {
	sess      *Session
	transport *fakeTransport
	submitter *fakeSubmitter
	clock     *fakeClock
	drafts    DraftStore
	source    staticSource
}

func newFixture(t *testing.T, cfg SessionConfig, songs []catalog.Song) *sessionFixture {
	t.Helper()

	if cfg.MinListenTime == 0 {
		cfg.MinListenTime = 20 * time.Second
	}

	f := &sessionFixture{
		transport: &fakeTransport{},
		submitter: &fakeSubmitter{res: VoteResult{Success: true}},
		clock:     newFakeClock(),
		drafts:    NewMemoryDraftStore(),
		source:    staticSource{songs: songs},
	}

	sess, err := NewSession(cfg, Deps{
		ClientID:  "client-1",
		Transport: f.transport,
		Drafts:    f.drafts,
		Submitter: f.submitter,
		Now:       f.clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	f.sess = sess
	return f
}

// unlock plays through the listen gate and performs the transition.
func (f *sessionFixture) unlock(t *testing.T) {
	t.Helper()

	f.clock.Advance(20 * time.Second)
	f.sess.CheckGate()
	if f.sess.State() != StateVotingUnlocked {
		t.Fatalf("expected voting to unlock, state is %s", f.sess.State())
	}
}

func TestSession_StartEmptyScope(t *testing.T) {
	f := newFixture(t, SessionConfig{}, nil)

	err := f.sess.Start(ScopeAll, f.source)
	if err != ErrEmptyScope {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
	if f.sess.State() != StateSetup {
		t.Errorf("session left Setup on empty scope: %s", f.sess.State())
	}
}

func TestSession_StartTwiceRejected(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs())

	if err := f.sess.Start(ScopeAll, f.source); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.sess.Start(ScopeAll, f.source); err != ErrSessionActive {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
}

func TestSession_FullVotingRound(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:3])

	if err := f.sess.Start(ScopeAll, f.source); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.sess.State() != StatePlaying {
		t.Fatalf("expected Playing after start, got %s", f.sess.State())
	}
	if cursor, total := f.sess.QueuePosition(); cursor != 0 || total != 3 {
		t.Fatalf("expected cursor 0 of 3, got %d of %d", cursor, total)
	}
	if f.sess.CanVote() {
		t.Fatal("gate open immediately after load")
	}

	// Twenty one-second ticks of playback satisfy the gate.
	for i := 0; i < 20; i++ {
		f.clock.Advance(time.Second)
	}
	if !f.sess.CanVote() {
		t.Fatal("gate not met after 20s of playback")
	}
	f.sess.CheckGate()
	if f.sess.State() != StateVotingUnlocked {
		t.Fatalf("expected VotingUnlocked, got %s", f.sess.State())
	}

	if err := f.sess.SetThumbs(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.sess.SetRating(8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.sess.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.submitter.callCount() != 1 {
		t.Errorf("expected 1 submission, got %d", f.submitter.callCount())
	}
	if !f.sess.Draft().Empty() {
		t.Error("draft not cleared after successful submit")
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 1 {
		t.Errorf("expected cursor 1 after submit, got %d", cursor)
	}
	if f.sess.State() != StatePlaying {
		t.Errorf("expected Playing for next song, got %s", f.sess.State())
	}
	if f.sess.CanVote() {
		t.Error("gate not reset for the next song")
	}
	if f.transport.loadCount() != 2 {
		t.Errorf("expected 2 loads, got %d", f.transport.loadCount())
	}
}

func TestSession_VoteControlsLockedBeforeGate(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])

	if err := f.sess.Start(ScopeAll, f.source); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.sess.SetThumbs(true); err != ErrVotingLocked {
		t.Errorf("expected ErrVotingLocked for thumbs, got %v", err)
	}
	if err := f.sess.SetRating(5); err != ErrVotingLocked {
		t.Errorf("expected ErrVotingLocked for rating, got %v", err)
	}
	if err := f.sess.Submit(); err != ErrVotingLocked {
		t.Errorf("expected ErrVotingLocked for submit, got %v", err)
	}
}

func TestSession_InvalidRating(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)

	if err := f.sess.SetRating(0); err != ErrInvalidRating {
		t.Errorf("expected ErrInvalidRating for 0, got %v", err)
	}
	if err := f.sess.SetRating(11); err != ErrInvalidRating {
		t.Errorf("expected ErrInvalidRating for 11, got %v", err)
	}
}

func TestSession_SubmitWithoutVote(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)

	if err := f.sess.Submit(); err != ErrNothingToVote {
		t.Errorf("expected ErrNothingToVote, got %v", err)
	}
}

func TestSession_SubmitFailureKeepsDraftAndCursor(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:3])
	f.submitter.res = VoteResult{Success: false, Error: "database unavailable"}

	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetRating(6)

	err := f.sess.Submit()
	if err == nil {
		t.Fatal("expected error from failed submission")
	}

	if f.sess.State() != StateVotingUnlocked {
		t.Errorf("expected submit re-enabled, state is %s", f.sess.State())
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 0 {
		t.Errorf("cursor moved on failed submit: %d", cursor)
	}
	if f.sess.Draft().Rating != 6 {
		t.Errorf("draft lost on failed submit: %+v", f.sess.Draft())
	}

	// Retry after the backend recovers.
	f.submitter.mu.Lock()
	f.submitter.res = VoteResult{Success: true}
	f.submitter.mu.Unlock()

	if err := f.sess.Submit(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 1 {
		t.Errorf("expected cursor 1 after retry, got %d", cursor)
	}
}

func TestSession_SubmitterErrorIsRecoverable(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	f.submitter.err = errors.New("connection refused")

	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetThumbs(false)

	if err := f.sess.Submit(); err == nil {
		t.Fatal("expected error")
	}
	if f.sess.State() != StateVotingUnlocked {
		t.Errorf("expected VotingUnlocked after network error, got %s", f.sess.State())
	}
}

func TestSession_SkipDisabled(t *testing.T) {
	f := newFixture(t, SessionConfig{SkipDisabled: true}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)

	if err := f.sess.Skip(); err != ErrSkipDisabled {
		t.Fatalf("expected ErrSkipDisabled, got %v", err)
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 0 {
		t.Errorf("skip moved the cursor despite being disabled: %d", cursor)
	}
	if f.sess.State() != StatePlaying {
		t.Errorf("skip changed state despite being disabled: %s", f.sess.State())
	}
}

func TestSession_SkipAdvancesWithoutVote(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)

	if err := f.sess.Skip(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 1 {
		t.Errorf("expected cursor 1 after skip, got %d", cursor)
	}
	if f.submitter.callCount() != 0 {
		t.Errorf("skip submitted a vote: %d calls", f.submitter.callCount())
	}
}

func TestSession_CompletesAfterLastSong(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetRating(9)

	if err := f.sess.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.sess.State() != StateCompleted {
		t.Fatalf("expected Completed, got %s", f.sess.State())
	}
	if err := f.sess.Skip(); err != ErrSessionDone {
		t.Errorf("expected ErrSessionDone after completion, got %v", err)
	}
}

func TestSession_ContinuousModeNeverCompletes(t *testing.T) {
	f := newFixture(t, SessionConfig{Mode: QueueModeContinuous}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)

	for i := 0; i < 5; i++ {
		if err := f.sess.Skip(); err != nil {
			t.Fatalf("skip %d failed: %v", i, err)
		}
		if f.sess.State() != StatePlaying {
			t.Fatalf("continuous session left Playing: %s", f.sess.State())
		}
	}
}

func TestSession_DraftSurvivesReload(t *testing.T) {
	songs := testSongs()[4:5]
	f := newFixture(t, SessionConfig{}, songs)
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetRating(8)
	f.sess.SetThumbs(true)

	// Simulate a page reload: a fresh session over the same draft store.
	f.sess.Teardown()

	sess2, err := NewSession(SessionConfig{MinListenTime: 20 * time.Second}, Deps{
		ClientID:  "client-1",
		Transport: &fakeTransport{},
		Drafts:    f.drafts,
		Submitter: f.submitter,
		Now:       f.clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	if err := sess2.Start(ScopeAll, f.source); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	draft := sess2.Draft()
	if draft.Rating != 8 {
		t.Errorf("expected restored rating 8, got %d", draft.Rating)
	}
	if draft.Thumbs == nil || !*draft.Thumbs {
		t.Errorf("expected restored thumbs up, got %+v", draft.Thumbs)
	}
}

func TestSession_StaleSubmitResponseDiscarded(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetRating(3)

	// The session is torn down while the vote round-trip is in flight;
	// its response must not be applied.
	f.submitter.hook = func() { f.sess.Teardown() }

	if err := f.sess.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.sess.State() != StateSetup {
		t.Errorf("stale response changed state: %s", f.sess.State())
	}
	if f.transport.loadCount() != 1 {
		t.Errorf("stale response advanced the queue: %d loads", f.transport.loadCount())
	}
}

func TestSession_SeekDoesNotMoveGate(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])
	f.sess.Start(ScopeAll, f.source)

	f.clock.Advance(10 * time.Second)
	before := f.sess.RemainingListenTime()

	f.sess.Seek(0.95)
	f.sess.Seek(0.0)
	f.sess.Seek(0.5)

	if got := f.sess.RemainingListenTime(); got != before {
		t.Errorf("seek changed the gate: %v -> %v", before, got)
	}
	if len(f.transport.seeks) != 3 {
		t.Errorf("expected 3 transport seeks, got %d", len(f.transport.seeks))
	}
}

func TestSession_PauseStopsGate(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])
	f.sess.Start(ScopeAll, f.source)

	f.clock.Advance(5 * time.Second)
	f.sess.Pause()
	f.clock.Advance(time.Hour)

	if f.sess.CanVote() {
		t.Error("gate accumulated while paused")
	}

	if err := f.sess.Play(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.clock.Advance(15 * time.Second)
	if !f.sess.CanVote() {
		t.Error("expected gate met after 5s + 15s of playback")
	}
}

func TestSession_EndedWaitsForUser(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetThumbs(true)

	f.transport.end()

	if f.sess.State() != StateVotingUnlocked {
		t.Errorf("song end changed state: %s", f.sess.State())
	}
	if !f.sess.Ended() {
		t.Error("expected ended flag")
	}
	if f.submitter.callCount() != 0 {
		t.Error("song end auto-submitted without the policy flag")
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 0 {
		t.Errorf("song end advanced the queue: cursor %d", cursor)
	}
}

func TestSession_AutoSubmitOnEnd(t *testing.T) {
	f := newFixture(t, SessionConfig{AutoSubmitOnEnd: true}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetThumbs(true)

	f.transport.end()

	if f.submitter.callCount() != 1 {
		t.Fatalf("expected auto-submit, got %d calls", f.submitter.callCount())
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 1 {
		t.Errorf("expected cursor 1 after auto-submit, got %d", cursor)
	}
}

func TestSession_AutoSubmitSkippedWithEmptyDraft(t *testing.T) {
	f := newFixture(t, SessionConfig{AutoSubmitOnEnd: true}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)

	f.transport.end()

	if f.submitter.callCount() != 0 {
		t.Error("auto-submit fired with nothing to vote")
	}
}

func TestSession_LoadFailureIsRecoverable(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	f.transport.loadErr = errors.New("decode error")

	sub := f.sess.Subscribe()
	defer f.sess.Unsubscribe(sub)

	if err := f.sess.Start(ScopeAll, f.source); err != nil {
		t.Fatalf("load failure must not abort the session: %v", err)
	}
	if f.sess.State() != StatePlaying {
		t.Errorf("expected Playing despite load failure, got %s", f.sess.State())
	}

	select {
	case e := <-sub.Errors:
		if e.Message == "" {
			t.Error("expected an error message")
		}
	case <-time.After(time.Second):
		t.Fatal("no error event for failed load")
	}

	// The user can still skip past the broken song.
	f.transport.mu.Lock()
	f.transport.loadErr = nil
	f.transport.mu.Unlock()

	if err := f.sess.Skip(); err != nil {
		t.Fatalf("skip after load failure: %v", err)
	}
	if cursor, _ := f.sess.QueuePosition(); cursor != 1 {
		t.Errorf("expected cursor 1, got %d", cursor)
	}
}

func TestSession_FirstPlayHookRunsOnce(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])

	var calls int
	f.sess.SetFirstPlayHook(func() { calls++ })

	f.sess.Start(ScopeAll, f.source)
	f.sess.Pause()
	f.sess.Play()
	f.sess.Skip()

	if calls != 1 {
		t.Errorf("first-play hook ran %d times", calls)
	}
}

func TestSession_SongEventCarriesNoFilename(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])

	sub := f.sess.Subscribe()
	defer f.sess.Unsubscribe(sub)

	f.sess.Start(ScopeAll, f.source)

	select {
	case e := <-sub.SongChanged:
		if e.SongID == 0 {
			t.Error("expected song id in event")
		}
		if e.Cursor != 0 || e.Total != 1 {
			t.Errorf("unexpected position %d of %d", e.Cursor, e.Total)
		}
	case <-time.After(time.Second):
		t.Fatal("no song event after start")
	}
}

func TestSession_StateEventsDeliveredInOrder(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	sub := f.sess.Subscribe()
	defer f.sess.Unsubscribe(sub)

	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetRating(7)
	if err := f.sess.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A submit produces two back-to-back transitions; subscribers
	// must see them in the order they happened.
	want := []State{StatePlaying, StateVotingUnlocked, StateSubmitting, StatePlaying}
	for i, expected := range want {
		select {
		case e := <-sub.StateChanged:
			if e.To != expected {
				t.Fatalf("transition %d: expected %s, got %s (from %s)", i, expected, e.To, e.From)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing transition %d (%s)", i, expected)
		}
	}
}

func TestSession_DefaultVolumeAppliedOnce(t *testing.T) {
	f := newFixture(t, SessionConfig{Volume: 60}, testSongs()[:2])

	f.sess.Start(ScopeAll, f.source)

	if got := f.transport.volumeCalls(); len(got) != 1 || got[0] != 0.6 {
		t.Fatalf("expected one volume command of 0.6 on start, got %v", got)
	}

	f.unlock(t)
	f.sess.SetRating(7)
	if err := f.sess.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.transport.volumeCalls(); len(got) != 1 {
		t.Errorf("volume reapplied on advance: %v", got)
	}
}

func TestSession_SinkConnectMirrorsInProgressSong(t *testing.T) {
	transport := &fakeTransport{}
	sink := newFakeSink()
	clock := newFakeClock()

	sess, err := NewSession(SessionConfig{MinListenTime: 20 * time.Second}, Deps{
		ClientID:  "client-1",
		Transport: transport,
		Drafts:    NewMemoryDraftStore(),
		Submitter: &fakeSubmitter{res: VoteResult{Success: true}},
		Sink:      sink,
		Now:       clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	t.Cleanup(sess.Close)

	if err := sess.Start(ScopeAll, staticSource{songs: testSongs()[:1]}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The client reports progress, then the user connects a cast
	// device; mirroring must pick up at the reported position.
	sess.OnTimeUpdate(42 * time.Second)
	sink.connect()

	select {
	case load := <-sink.loaded:
		if load.position != 42*time.Second {
			t.Errorf("expected mirroring at 42s, got %s", load.position)
		}
		if load.song.ID != testSongs()[0].ID {
			t.Errorf("unexpected mirrored song %d", load.song.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("sink never received the in-progress song")
	}
}

func TestSession_ReconfigureOnlyInSetup(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:1])

	if err := f.sess.Reconfigure(SessionConfig{MinListenTime: 5 * time.Second}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.sess.Start(ScopeAll, f.source)
	f.clock.Advance(5 * time.Second)
	f.sess.CheckGate()
	if f.sess.State() != StateVotingUnlocked {
		t.Errorf("new listen time not applied, state is %s", f.sess.State())
	}

	if err := f.sess.Reconfigure(SessionConfig{}); err != ErrSessionActive {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
}

func TestSession_TeardownReturnsToSetup(t *testing.T) {
	f := newFixture(t, SessionConfig{}, testSongs()[:2])
	f.sess.Start(ScopeAll, f.source)
	f.unlock(t)
	f.sess.SetRating(4)

	f.sess.Teardown()

	if f.sess.State() != StateSetup {
		t.Errorf("expected Setup after teardown, got %s", f.sess.State())
	}
	if _, ok := f.sess.Current(); ok {
		t.Error("song still loaded after teardown")
	}
	if !f.sess.Draft().Empty() {
		t.Error("draft not cleared from session after teardown")
	}
	if f.submitter.callCount() != 0 {
		t.Error("teardown submitted a vote")
	}
}
