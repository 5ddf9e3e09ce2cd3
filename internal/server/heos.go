package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kwhite/songvote/internal/cast"
)

// CastController drives discovered HEOS players.
type CastController interface {
	Discover(ctx context.Context, timeout time.Duration) ([]cast.Device, error)
	PlayURL(ctx context.Context, host, pid, url string) error
	Stop(ctx context.Context, host, pid string) error
}

// CastAPI handles the remote-playback endpoints.
type CastAPI struct {
	ctrl            CastController
	registry        *cast.Registry
	publicURL       string
	discoverTimeout time.Duration
}

func NewCastAPI(ctrl CastController, registry *cast.Registry, publicURL string, discoverTimeout time.Duration) *CastAPI {
	return &CastAPI{
		ctrl:            ctrl,
		registry:        registry,
		publicURL:       publicURL,
		discoverTimeout: discoverTimeout,
	}
}

// Discover runs an SSDP sweep and caches the devices found.
func (a *CastAPI) Discover(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), a.discoverTimeout+time.Second)
	defer cancel()

	devices, err := a.ctrl.Discover(ctx, a.discoverTimeout)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	a.registry.Store(c.Request.Context(), devices)
	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

// Devices returns the cached device list from the last discovery.
func (a *CastAPI) Devices(c *gin.Context) {
	devices := a.registry.Cached(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

// Play streams a song to a HEOS player. The player pulls the audio
// back from this service over HTTP, so a reachable public URL is
// required.
func (a *CastAPI) Play(c *gin.Context) {
	var req HEOSPlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	base := a.publicURL
	if base == "" {
		base = "http://" + c.Request.Host
	}
	url := fmt.Sprintf("%s/api/songs/%d/audio", base, req.SongID)

	if err := a.ctrl.PlayURL(c.Request.Context(), req.Host, req.PID, url); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "url": url})
}

// Stop halts playback on a HEOS player.
func (a *CastAPI) Stop(c *gin.Context) {
	var req HEOSStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if err := a.ctrl.Stop(c.Request.Context(), req.Host, req.PID); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
