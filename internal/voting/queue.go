package voting

import (
	"math/rand"
	"time"

	"github.com/kwhite/songvote/internal/catalog"
)

// Queue is the shuffled blind play order for one session. The order is
// a uniform random permutation of the scope's songs and is never
// persisted: a reproducible order would defeat the blinding.
type Queue struct {
	songs  []catalog.Song
	cursor int
	mode   QueueMode
	rng    *rand.Rand
}

// BuildQueue filters the catalog down to the scope (ScopeAll or one
// base name) and shuffles the result. An empty scope is an error and
// the session must not start.
func BuildQueue(scope string, source CatalogSource, mode QueueMode) (*Queue, error) {
	var (
		songs []catalog.Song
		err   error
	)
	if scope == ScopeAll || scope == "" {
		songs, err = source.AllSongs()
	} else {
		songs, err = source.SongsByBaseName(scope)
	}
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, ErrEmptyScope
	}

	q := &Queue{
		songs:  make([]catalog.Song, len(songs)),
		cursor: -1,
		mode:   mode,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	copy(q.songs, songs)
	q.shuffle()
	return q, nil
}

// Fisher-Yates
func (q *Queue) shuffle() {
	for i := len(q.songs) - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		q.songs[i], q.songs[j] = q.songs[j], q.songs[i]
	}
}

// Advance moves the cursor forward by exactly one. In finite mode it
// reports done once the queue is exhausted; in continuous mode it
// reshuffles and restarts instead, so done is never true.
func (q *Queue) Advance() (catalog.Song, bool) {
	q.cursor++
	if q.cursor >= len(q.songs) {
		if q.mode == QueueModeContinuous {
			q.shuffle()
			q.cursor = 0
			return q.songs[0], false
		}
		return catalog.Song{}, true
	}
	return q.songs[q.cursor], false
}

// Current returns the song under the cursor, or false when the queue
// has not started or is exhausted.
func (q *Queue) Current() (catalog.Song, bool) {
	if q.cursor < 0 || q.cursor >= len(q.songs) {
		return catalog.Song{}, false
	}
	return q.songs[q.cursor], true
}

// Peek returns the song after the cursor without moving it. Used for
// pre-fetching the next take.
func (q *Queue) Peek() (catalog.Song, bool) {
	next := q.cursor + 1
	if next < 0 || next >= len(q.songs) {
		return catalog.Song{}, false
	}
	return q.songs[next], true
}

func (q *Queue) Cursor() int {
	return q.cursor
}

func (q *Queue) Len() int {
	return len(q.songs)
}

// Songs returns a copy of the current play order.
func (q *Queue) Songs() []catalog.Song {
	out := make([]catalog.Song, len(q.songs))
	copy(out, q.songs)
	return out
}
