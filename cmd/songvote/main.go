package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kwhite/songvote/config"
	"github.com/kwhite/songvote/internal/cast"
	"github.com/kwhite/songvote/internal/cast/heos"
	"github.com/kwhite/songvote/internal/catalog"
	"github.com/kwhite/songvote/internal/database"
	"github.com/kwhite/songvote/internal/redis"
	"github.com/kwhite/songvote/internal/server"
	"github.com/kwhite/songvote/internal/voting"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("SongVote - Blind Take Voting")
	log.Println("============================")

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Error: Failed to load configuration: %v", err)
		log.Println("")
		log.Println("Optional environment variables:")
		log.Println("  LISTEN_ADDR            - HTTP listen address (default: :5000)")
		log.Println("  PUBLIC_URL             - URL this service is reachable at (needed for casting)")
		log.Println("  SONGS_DIR              - Directory with .wav takes (default: songs)")
		log.Println("  WAVEFORM_DIR           - Waveform cache directory (default: data/waveforms)")
		log.Println("  MIN_LISTEN_TIME        - Seconds of playback before voting unlocks (default: 20)")
		log.Println("  SKIP_DISABLED          - Disable skipping songs (default: false)")
		log.Println("  CONTINUOUS_QUEUE       - Reshuffle instead of completing (default: false)")
		log.Println("  AUTO_SUBMIT_ON_END     - Submit a pending vote when a song ends (default: false)")
		log.Println("  DEFAULT_VOLUME         - Default volume level (0-100, default: 100)")
		log.Println("  HEOS_DISCOVER_TIMEOUT  - SSDP discovery timeout in seconds (default: 3)")
		log.Println("")
		log.Println("Database configuration:")
		log.Println("  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE")
		log.Println("")
		log.Println("Redis configuration:")
		log.Println("  REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB")
		os.Exit(1)
	}

	log.Println("")
	log.Println("Configuration loaded successfully")
	log.Println("---------------------------------")
	log.Printf("Songs Directory: %s", cfg.SongsDir)
	log.Printf("Min Listen Time: %ds", cfg.MinListenTime)
	log.Printf("Skip Disabled: %t", cfg.SkipDisabled)
	log.Printf("Continuous Queue: %t", cfg.ContinuousQueue)
	log.Printf("Default Volume: %d%%", cfg.DefaultVolume)

	if cfg.HasDatabase() {
		dbCfg := cfg.GetDBConfig()
		log.Println("")
		log.Println("Database:")
		log.Printf("  Host: %s:%d", dbCfg.Host, dbCfg.Port)
		log.Printf("  Database: %s", dbCfg.Name)

		err := database.Initialize(&database.Config{
			Host:     dbCfg.Host,
			Port:     dbCfg.Port,
			User:     dbCfg.User,
			Password: dbCfg.Password,
			DBName:   dbCfg.Name,
			SSLMode:  dbCfg.SSLMode,
		})
		if err != nil {
			log.Fatalf("Error: Failed to initialize database: %v", err)
		}
	} else {
		log.Println("")
		log.Println("Warning: no database configured; votes and the catalog will not persist")
	}

	var draftStore voting.DraftStore = voting.NewMemoryDraftStore()
	if cfg.HasRedis() {
		redisCfg := cfg.GetRedisConfig()
		log.Println("")
		log.Println("Redis:")
		log.Printf("  Host: %s:%d", redisCfg.Host, redisCfg.Port)

		if _, err := redis.Init(redis.Config{
			Host:     redisCfg.Host,
			Port:     redisCfg.Port,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}); err != nil {
			log.Printf("Warning: Redis unavailable, vote drafts will not survive restarts: %v", err)
		} else {
			draftStore = voting.NewRedisDraftStoreFromDefault()
		}
	}

	log.Println("")
	log.Println("---------------------------------")

	songRepo := database.NewSongRepository()
	voteRepo := database.NewVoteRepository()
	blockRepo := database.NewBlockRepository()

	store := catalog.NewStore(songRepo)
	scanner := catalog.NewScanner(cfg.SongsDir, songRepo)
	waveforms := catalog.NewWaveformCache(cfg.WaveformDir)

	if count, err := scanner.Scan(); err != nil {
		log.Printf("Warning: initial catalog scan failed: %v", err)
	} else {
		log.Printf("Catalog scan found %d songs", count)
	}

	controller := heos.NewController()
	registry := cast.NewRegistry(redis.Client())
	discoverTimeout := time.Duration(cfg.HEOSDiscoverTimeout) * time.Second

	var sink cast.Sink = cast.NoopSink{}
	if cfg.PublicURL != "" {
		sink = heos.NewSink(controller, registry, cfg.PublicURL, discoverTimeout)
	} else {
		log.Println("Warning: PUBLIC_URL not set; casting to HEOS devices is unavailable")
	}

	transport := server.NewRemoteTransport()
	sessionCfg := voting.SessionConfig{
		MinListenTime:   time.Duration(cfg.MinListenTime) * time.Second,
		SkipDisabled:    cfg.SkipDisabled,
		Mode:            queueMode(cfg),
		AutoSubmitOnEnd: cfg.AutoSubmitOnEnd,
		Volume:          cfg.DefaultVolume,
	}
	session, err := voting.NewSession(sessionCfg, voting.Deps{
		ClientID:  uuid.NewString(),
		Transport: transport,
		Drafts:    draftStore,
		Submitter: server.NewStoreSubmitter(voteRepo),
		Sink:      sink,
	})
	if err != nil {
		log.Fatalf("Error: Failed to create voting session: %v", err)
	}

	api := server.NewAPI(cfg, store, voteRepo, blockRepo, scanner, songRepo, waveforms)
	castAPI := server.NewCastAPI(controller, registry, cfg.PublicURL, discoverTimeout)
	hub := server.NewSessionHub(session, transport, store, blockRepo, sessionCfg)

	router := server.SetupRouter(api, castAPI, hub)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error: HTTP server error: %v", err)
		}
	}()

	log.Println("Service is running. Press CTRL+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error: Failed to stop HTTP server: %v", err)
	}

	session.Close()

	if err := redis.Close(); err != nil {
		log.Printf("Error: Failed to close Redis connection: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error: Failed to close database connection: %v", err)
	}
}

func queueMode(cfg *config.Config) voting.QueueMode {
	if cfg.ContinuousQueue {
		return voting.QueueModeContinuous
	}
	return voting.QueueModeFinite
}
