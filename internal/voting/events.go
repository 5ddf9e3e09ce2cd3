package voting

import (
	"sync"

	"github.com/kwhite/songvote/internal/catalog"
)

const eventBufferSize = 16

// StateChange is emitted on every session state transition.
type StateChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// SongChange is emitted when a new song is loaded, with its queue
// position. The filename is withheld from the payload so the blind
// order is not leaked to subscribers.
type SongChange struct {
	SongID int64 `json:"song_id"`
	Cursor int   `json:"cursor"`
	Total  int   `json:"total"`
}

// ErrorEvent carries a non-fatal failure to the presentation layer.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Subscription delivers session events over buffered channels. Sends
// never block: events are dropped when a subscriber falls behind.
type Subscription struct {
	StateChanged <-chan StateChange
	SongChanged  <-chan SongChange
	Errors       <-chan ErrorEvent
	Done         <-chan struct{}

	stateCh chan StateChange
	songCh  chan SongChange
	errorCh chan ErrorEvent
	doneCh  chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		stateCh: make(chan StateChange, eventBufferSize),
		songCh:  make(chan SongChange, eventBufferSize),
		errorCh: make(chan ErrorEvent, eventBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.SongChanged = s.songCh
	s.Errors = s.errorCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
	}
}

func (s *Subscription) sendSong(e SongChange) {
	select {
	case s.songCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}

type subscribers struct {
	mu   sync.Mutex
	subs []*Subscription
}

func (l *subscribers) add() *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub := newSubscription()
	l.subs = append(l.subs, sub)
	return sub
}

func (l *subscribers) remove(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.subs {
		if s == sub {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			sub.close()
			return
		}
	}
}

func (l *subscribers) each(fn func(*Subscription)) {
	l.mu.Lock()
	subs := make([]*Subscription, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		fn(s)
	}
}

func (l *subscribers) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.subs {
		s.close()
	}
	l.subs = nil
}

func songEvent(song catalog.Song, cursor, total int) SongChange {
	return SongChange{SongID: song.ID, Cursor: cursor, Total: total}
}
