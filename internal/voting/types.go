// Package voting implements the blind voting session: the shuffled
// take queue, the minimum-listen gate, vote drafts, and the state
// machine coordinating the audio transport and an optional cast sink.
package voting

import (
	"context"
	"errors"
	"time"

	"github.com/kwhite/songvote/internal/catalog"
)

var (
	ErrEmptyScope    = errors.New("scope matched no songs")
	ErrSessionActive = errors.New("session already started")
	ErrNoActiveSong  = errors.New("no song loaded")
	ErrVotingLocked  = errors.New("listen gate has not been met")
	ErrSkipDisabled  = errors.New("skipping is disabled for this session")
	ErrSubmitPending = errors.New("vote submission already in flight")
	ErrSessionDone   = errors.New("session is completed")
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
	ErrNothingToVote = errors.New("vote needs thumbs or a rating")
	ErrDraftStoreNil = errors.New("draft store is not configured")
	ErrSubmitterNil  = errors.New("vote submitter is not configured")
	ErrTransportNil  = errors.New("transport is not configured")
)

// ScopeAll selects every song in the catalog instead of one base name.
const ScopeAll = "all"

type State string

const (
	StateSetup          State = "setup"
	StatePlaying        State = "playing"
	StateVotingUnlocked State = "voting_unlocked"
	StateSubmitting     State = "submitting"
	StateCompleted      State = "completed"
)

// QueueMode decides what happens when the queue is exhausted.
type QueueMode string

const (
	// QueueModeFinite ends the session on a completion state.
	QueueModeFinite QueueMode = "finite"
	// QueueModeContinuous reshuffles and starts over, never terminating.
	QueueModeContinuous QueueMode = "continuous"
)

// Draft is the in-progress vote for the currently loaded song. Thumbs
// is nil until the listener picks a direction; Rating 0 means unset.
type Draft struct {
	SongID  int64     `json:"song_id"`
	Thumbs  *bool     `json:"thumbs"`
	Rating  int       `json:"rating"`
	SavedAt time.Time `json:"saved_at"`
}

// Empty reports whether the draft carries no vote at all.
func (d Draft) Empty() bool {
	return d.Thumbs == nil && d.Rating == 0
}

// SessionConfig is resolved once at session start and immutable after.
type SessionConfig struct {
	MinListenTime   time.Duration
	SkipDisabled    bool
	Mode            QueueMode
	AutoSubmitOnEnd bool
	Volume          int
}

// VoteResult is the outcome of a vote submission round-trip.
type VoteResult struct {
	Success bool
	Error   string
}

// VoteSubmitter persists a finished vote. Implementations talk to the
// vote API or the database directly; the session never retries.
type VoteSubmitter interface {
	Submit(ctx context.Context, song catalog.Song, draft Draft) (VoteResult, error)
}

// CatalogSource yields the songs a queue is built from.
type CatalogSource interface {
	AllSongs() ([]catalog.Song, error)
	SongsByBaseName(baseName string) ([]catalog.Song, error)
}
