package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kwhite/songvote/internal/catalog"
	"github.com/kwhite/songvote/internal/database"
	"github.com/kwhite/songvote/internal/voting"
)

var ErrNoClient = errors.New("no transport client connected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service runs on a trusted LAN; clients connect from whatever
	// host the listening party opened the page on.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// outboundMessage is a frame pushed to the websocket client: either a
// transport command or a session event.
type outboundMessage struct {
	Type     string  `json:"type"`
	Command  string  `json:"command,omitempty"`
	SongID   int64   `json:"song_id,omitempty"`
	URL      string  `json:"url,omitempty"`
	Value    float64 `json:"value,omitempty"`
	From     string  `json:"from,omitempty"`
	To       string  `json:"to,omitempty"`
	Cursor   int     `json:"cursor,omitempty"`
	Total    int     `json:"total,omitempty"`
	ThumbsUp *bool   `json:"thumbs_up,omitempty"`
	Rating   int     `json:"rating,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// inboundMessage is a frame received from the client: a transport
// lifecycle event or a user action.
type inboundMessage struct {
	Type     string  `json:"type"`
	Event    string  `json:"event,omitempty"`
	Action   string  `json:"action,omitempty"`
	Scope    string  `json:"scope,omitempty"`
	Block    string  `json:"block,omitempty"`
	ThumbsUp *bool   `json:"thumbs_up,omitempty"`
	Rating   int     `json:"rating,omitempty"`
	Value    float64 `json:"value,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Position float64 `json:"position,omitempty"`
}

// RemoteTransport is the audio transport seen by the voting session:
// the actual audio element lives in the connected browser, and this
// side speaks to it in command frames over the websocket. One client
// drives the transport at a time.
type RemoteTransport struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	listener voting.TransportListener
}

func NewRemoteTransport() *RemoteTransport {
	return &RemoteTransport{}
}

func (t *RemoteTransport) SetListener(l voting.TransportListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// setConnection swaps the driving client. Passing nil detaches.
func (t *RemoteTransport) setConnection(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
}

// detach clears the connection only if it is still the given one, so a
// reconnect racing a slow disconnect cleanup is not torn down.
func (t *RemoteTransport) detach(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
}

func (t *RemoteTransport) writeJSON(msg outboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrNoClient
	}
	return t.conn.WriteJSON(msg)
}

func (t *RemoteTransport) Load(song catalog.Song) error {
	return t.writeJSON(outboundMessage{
		Type:    "command",
		Command: "load",
		SongID:  song.ID,
		URL:     fmt.Sprintf("/api/songs/%d/audio", song.ID),
	})
}

func (t *RemoteTransport) Play() error {
	return t.writeJSON(outboundMessage{Type: "command", Command: "play"})
}

func (t *RemoteTransport) Pause() {
	if err := t.writeJSON(outboundMessage{Type: "command", Command: "pause"}); err != nil && !errors.Is(err, ErrNoClient) {
		log.Printf("Warning: failed to send pause command: %v", err)
	}
}

func (t *RemoteTransport) Seek(fraction float64) {
	if err := t.writeJSON(outboundMessage{Type: "command", Command: "seek", Value: fraction}); err != nil && !errors.Is(err, ErrNoClient) {
		log.Printf("Warning: failed to send seek command: %v", err)
	}
}

func (t *RemoteTransport) SetVolume(fraction float64) {
	if err := t.writeJSON(outboundMessage{Type: "command", Command: "volume", Value: fraction}); err != nil && !errors.Is(err, ErrNoClient) {
		log.Printf("Warning: failed to send volume command: %v", err)
	}
}

// dispatchEvent feeds a client transport event into the session.
// Events are only honored from the current driving connection: a
// superseded client that has not disconnected yet must not move the
// listen gate.
func (t *RemoteTransport) dispatchEvent(conn *websocket.Conn, msg inboundMessage) {
	t.mu.Lock()
	l := t.listener
	current := t.conn == conn
	t.mu.Unlock()

	if l == nil || !current {
		return
	}

	switch msg.Event {
	case "loaded":
		l.OnLoaded(secondsToDuration(msg.Duration))
	case "play":
		l.OnPlay()
	case "pause":
		l.OnPause()
	case "ended":
		l.OnEnded()
	case "timeupdate":
		l.OnTimeUpdate(secondsToDuration(msg.Position))
	}
}

// SessionHub owns the single voting session of the service and the
// websocket endpoint that drives it.
type SessionHub struct {
	session   *voting.Session
	transport *RemoteTransport
	source    voting.CatalogSource
	blocks    BlockStore
	baseCfg   voting.SessionConfig
}

func NewSessionHub(session *voting.Session, transport *RemoteTransport, source voting.CatalogSource, blocks BlockStore, baseCfg voting.SessionConfig) *SessionHub {
	return &SessionHub{
		session:   session,
		transport: transport,
		source:    source,
		blocks:    blocks,
		baseCfg:   baseCfg,
	}
}

// Events is the websocket endpoint. Session events stream out; the
// client's transport events and user actions come back in.
func (h *SessionHub) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Warning: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.transport.setConnection(conn)
	defer h.transport.detach(conn)

	sub := h.session.Subscribe()
	defer h.session.Unsubscribe(sub)

	done := make(chan struct{})
	defer close(done)

	go h.pumpEvents(sub, done)

	h.sendSnapshot()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Warning: websocket read failed: %v", err)
			}
			return
		}

		switch msg.Type {
		case "transport":
			h.transport.dispatchEvent(conn, msg)
		case "action":
			if err := h.dispatchAction(msg); err != nil {
				h.sendError(err)
			}
		}
	}
}

// sendSnapshot pushes the current session picture to a freshly
// connected client, so a page reload mid-song resumes where it was
// instead of waiting for the next event: state, loaded song, the load
// command for the audio element, and any in-progress draft.
func (h *SessionHub) sendSnapshot() {
	state := h.session.State()
	h.send(outboundMessage{Type: "state", To: string(state)})

	song, ok := h.session.Current()
	if !ok {
		return
	}

	cursor, total := h.session.QueuePosition()
	h.send(outboundMessage{Type: "song", SongID: song.ID, Cursor: cursor, Total: total})
	h.send(outboundMessage{
		Type:    "command",
		Command: "load",
		SongID:  song.ID,
		URL:     fmt.Sprintf("/api/songs/%d/audio", song.ID),
	})

	if d := h.session.Draft(); !d.Empty() {
		h.send(outboundMessage{Type: "draft", SongID: d.SongID, ThumbsUp: d.Thumbs, Rating: d.Rating})
	}
}

// pumpEvents forwards session events to the client until either side
// goes away.
func (h *SessionHub) pumpEvents(sub *voting.Subscription, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sub.Done:
			return
		case e := <-sub.StateChanged:
			h.send(outboundMessage{Type: "state", From: string(e.From), To: string(e.To)})
		case e := <-sub.SongChanged:
			h.send(outboundMessage{Type: "song", SongID: e.SongID, Cursor: e.Cursor, Total: e.Total})
		case e := <-sub.Errors:
			h.send(outboundMessage{Type: "error", Message: e.Message})
		}
	}
}

func (h *SessionHub) dispatchAction(msg inboundMessage) error {
	switch msg.Action {
	case "start":
		scope := msg.Scope
		if msg.Block != "" {
			block, err := h.blocks.Get(msg.Block)
			if err != nil {
				return err
			}
			if block == nil {
				return fmt.Errorf("unknown vote block %q", msg.Block)
			}
			if err := h.session.Reconfigure(blockConfig(h.baseCfg, block)); err != nil {
				return err
			}
			scope = block.Scope
		}
		return h.session.Start(scope, h.source)
	case "thumbs":
		if msg.ThumbsUp == nil {
			return errors.New("thumbs action requires thumbs_up")
		}
		return h.session.SetThumbs(*msg.ThumbsUp)
	case "rating":
		return h.session.SetRating(msg.Rating)
	case "submit":
		return h.session.Submit()
	case "skip":
		return h.session.Skip()
	case "play":
		return h.session.Play()
	case "pause":
		h.session.Pause()
		return nil
	case "seek":
		h.session.Seek(msg.Value)
		return nil
	case "volume":
		h.session.SetVolume(msg.Value)
		return nil
	case "teardown":
		h.session.Teardown()
		return nil
	case "cast":
		return h.session.PromptCast(context.Background())
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

func (h *SessionHub) send(msg outboundMessage) {
	if err := h.transport.writeJSON(msg); err != nil && !errors.Is(err, ErrNoClient) {
		log.Printf("Warning: failed to push session event: %v", err)
	}
}

func (h *SessionHub) sendError(err error) {
	h.send(outboundMessage{Type: "error", Message: err.Error()})
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// blockConfig overlays a vote block's overrides on the service's
// session defaults. Absent fields keep the default.
func blockConfig(base voting.SessionConfig, block *database.VoteBlock) voting.SessionConfig {
	if block.MinListenTime != nil {
		base.MinListenTime = time.Duration(*block.MinListenTime) * time.Second
	}
	if block.SkipDisabled != nil {
		base.SkipDisabled = *block.SkipDisabled
	}
	return base
}
