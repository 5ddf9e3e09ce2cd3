package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kwhite/songvote/config"
	"github.com/kwhite/songvote/internal/catalog"
	"github.com/kwhite/songvote/internal/database"
)

// Catalog is the read side of the song catalog the API serves from.
type Catalog interface {
	AllSongs() ([]catalog.Song, error)
	SongsByBaseName(baseName string) ([]catalog.Song, error)
	BaseNames() ([]string, error)
	SongByID(id int64) (catalog.Song, error)
}

// VoteStore records votes and computes aggregates.
type VoteStore interface {
	Add(songID int64, thumbsUp *bool, rating *int) error
	StatsForSong(songID int64) (database.SongStats, error)
	AllResults() ([]database.SongResult, error)
}

// BlockStore persists named shareable session configurations.
type BlockStore interface {
	Create(name, scope string, minListenTime *int, skipDisabled *bool) (*database.VoteBlock, error)
	Get(id string) (*database.VoteBlock, error)
	List() ([]database.VoteBlock, error)
	Delete(id string) error
}

// Scanner walks the songs directory and syncs it into the catalog.
type Scanner interface {
	Scan() (int, error)
}

// Clearer wipes the persisted catalog and votes.
type Clearer interface {
	Clear() error
}

// Waveformer yields a song's amplitude buckets for visualization.
type Waveformer interface {
	ForSong(song catalog.Song) ([]float64, error)
}

// API handles the HTTP endpoints.
type API struct {
	cfg       *config.Config
	catalog   Catalog
	votes     VoteStore
	blocks    BlockStore
	scanner   Scanner
	clearer   Clearer
	waveforms Waveformer
}

// NewAPI creates a new API handler.
func NewAPI(cfg *config.Config, cat Catalog, votes VoteStore, blocks BlockStore, scanner Scanner, clearer Clearer, waveforms Waveformer) *API {
	return &API{
		cfg:       cfg,
		catalog:   cat,
		votes:     votes,
		blocks:    blocks,
		scanner:   scanner,
		clearer:   clearer,
		waveforms: waveforms,
	}
}

// Songs lists catalog songs, optionally restricted to one base name.
func (a *API) Songs(c *gin.Context) {
	var (
		songs []catalog.Song
		err   error
	)

	if baseName := c.Query("base_name"); baseName != "" {
		songs, err = a.catalog.SongsByBaseName(baseName)
	} else {
		songs, err = a.catalog.AllSongs()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SongsResponse{Count: len(songs), Songs: songs})
}

// BaseNames lists the distinct group keys available as session scopes.
func (a *API) BaseNames(c *gin.Context) {
	names, err := a.catalog.BaseNames()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, BaseNamesResponse{BaseNames: names})
}

// SongAudio serves the audio file for a song. Range requests are
// honored so transports can seek without re-downloading.
func (a *API) SongAudio(c *gin.Context) {
	id, err := songID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid song id"})
		return
	}

	song, err := a.catalog.SongByID(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "song not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if _, err := os.Stat(song.FullPath); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "audio file missing"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.File(song.FullPath)
}

// SongWaveform serves the amplitude buckets the visualizer renders.
func (a *API) SongWaveform(c *gin.Context) {
	id, err := songID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid song id"})
		return
	}

	song, err := a.catalog.SongByID(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "song not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	peaks, err := a.waveforms.ForSong(song)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, WaveformResponse{SongID: song.ID, Waveform: peaks})
}

// Vote records a vote for a song and returns the refreshed aggregate.
// At least one of thumbs_up and rating must be present.
func (a *API) Vote(c *gin.Context) {
	id, err := songID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid song id"})
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if req.ThumbsUp == nil && req.Rating == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Must provide thumbs_up or rating"})
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 10) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Rating must be between 1 and 10"})
		return
	}

	if _, err := a.catalog.SongByID(id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "song not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if err := a.votes.Add(id, req.ThumbsUp, req.Rating); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	stats, err := a.votes.StatsForSong(id)
	if err != nil {
		log.Printf("Warning: failed to refresh stats for song %d: %v", id, err)
	}

	c.JSON(http.StatusOK, VoteResponse{Success: true, Stats: stats})
}

// Results returns the vote aggregation across all songs.
func (a *API) Results(c *gin.Context) {
	results, err := a.votes.AllResults()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, ResultsResponse{Results: results})
}

// Scan re-walks the songs directory into the catalog.
func (a *API) Scan(c *gin.Context) {
	count, err := a.scanner.Scan()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	log.Printf("Catalog rescan found %d songs", count)
	c.JSON(http.StatusOK, ScanResponse{Success: true, Count: count})
}

// Clear wipes all songs and votes. Admin reset before a fresh scan.
func (a *API) Clear(c *gin.Context) {
	if err := a.clearer.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	log.Println("Catalog and votes cleared")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Config exposes the session defaults.
func (a *API) Config(c *gin.Context) {
	c.JSON(http.StatusOK, ConfigResponse{
		MinListenTime:   a.cfg.MinListenTime,
		SkipDisabled:    a.cfg.SkipDisabled,
		ContinuousQueue: a.cfg.ContinuousQueue,
		AutoSubmitOnEnd: a.cfg.AutoSubmitOnEnd,
		DefaultVolume:   a.cfg.DefaultVolume,
	})
}

// CreateBlock stores a named session configuration for sharing.
func (a *API) CreateBlock(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if req.MinListenTime != nil && *req.MinListenTime < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "min_listen_time must not be negative"})
		return
	}

	block, err := a.blocks.Create(req.Name, req.Scope, req.MinListenTime, req.SkipDisabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, block)
}

// Blocks lists stored session configurations.
func (a *API) Blocks(c *gin.Context) {
	blocks, err := a.blocks.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// Block fetches one stored session configuration by id.
func (a *API) Block(c *gin.Context) {
	block, err := a.blocks.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if block == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "block not found"})
		return
	}

	c.JSON(http.StatusOK, block)
}

// DeleteBlock removes a stored session configuration.
func (a *API) DeleteBlock(c *gin.Context) {
	if err := a.blocks.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func songID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
