package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kwhite/songvote/internal/database"
)

// Scanner walks the songs directory and upserts WAV files into the
// catalog. Rescanning is idempotent: existing paths keep their ids so
// prior votes stay attached.
type Scanner struct {
	dir   string
	songs *database.SongRepository
}

func NewScanner(dir string, songs *database.SongRepository) *Scanner {
	return &Scanner{dir: dir, songs: songs}
}

func (s *Scanner) Scan() (int, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return 0, fmt.Errorf("songs directory not found: %s", s.dir)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("songs path is not a directory: %s", s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if !strings.HasSuffix(strings.ToLower(filename), ".wav") {
			continue
		}

		fullPath, err := filepath.Abs(filepath.Join(s.dir, filename))
		if err != nil {
			log.Printf("Warning: skipping %s: %v", filename, err)
			continue
		}

		if _, err := s.songs.Upsert(filename, ParseBaseName(filename), fullPath); err != nil {
			return count, fmt.Errorf("failed to add %s: %w", filename, err)
		}
		count++
	}

	return count, nil
}
