package server

import (
	"github.com/kwhite/songvote/internal/catalog"
	"github.com/kwhite/songvote/internal/database"
)

// VoteRequest is the request body for the vote endpoint. Both fields
// are optional but at least one must be present.
type VoteRequest struct {
	ThumbsUp *bool `json:"thumbs_up"`
	Rating   *int  `json:"rating"`
}

// VoteResponse is returned after recording a vote, with the refreshed
// aggregate for the song.
type VoteResponse struct {
	Success bool               `json:"success"`
	Stats   database.SongStats `json:"stats"`
}

// SongsResponse lists catalog songs.
type SongsResponse struct {
	Count int            `json:"count"`
	Songs []catalog.Song `json:"songs"`
}

// BaseNamesResponse lists the distinct song group keys.
type BaseNamesResponse struct {
	BaseNames []string `json:"base_names"`
}

// ResultsResponse is the full per-song vote aggregation.
type ResultsResponse struct {
	Results []database.SongResult `json:"results"`
}

// WaveformResponse carries a song's normalized amplitude buckets.
type WaveformResponse struct {
	SongID   int64     `json:"song_id"`
	Waveform []float64 `json:"waveform"`
}

// ScanResponse reports a catalog rescan.
type ScanResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// ConfigResponse exposes the session defaults clients resolve their
// session configuration from.
type ConfigResponse struct {
	MinListenTime   int  `json:"min_listen_time"`
	SkipDisabled    bool `json:"skip_disabled"`
	ContinuousQueue bool `json:"continuous_queue"`
	AutoSubmitOnEnd bool `json:"auto_submit_on_end"`
	DefaultVolume   int  `json:"default_volume"`
}

// BlockRequest creates a named shareable session configuration.
type BlockRequest struct {
	Name          string `json:"name" binding:"required"`
	Scope         string `json:"scope" binding:"required"`
	MinListenTime *int   `json:"min_listen_time"`
	SkipDisabled  *bool  `json:"skip_disabled"`
}

// HEOSPlayRequest asks a discovered HEOS player to stream a song.
type HEOSPlayRequest struct {
	Host   string `json:"host" binding:"required"`
	PID    string `json:"pid" binding:"required"`
	SongID int64  `json:"song_id" binding:"required"`
}

// HEOSStopRequest stops playback on a HEOS player.
type HEOSStopRequest struct {
	Host string `json:"host" binding:"required"`
	PID  string `json:"pid" binding:"required"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
