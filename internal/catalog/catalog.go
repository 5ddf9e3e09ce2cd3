// Package catalog exposes the song catalog consumed by voting sessions.
// Songs are different recorded takes of the same underlying piece; the
// take grouping key is derived from the filename.
package catalog

import (
	"errors"
	"regexp"
	"strings"

	"github.com/kwhite/songvote/internal/database"
)

var ErrNotFound = errors.New("song not found")

// Song is one recorded take. Immutable once fetched.
type Song struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	BaseName string `json:"base_name"`
	FullPath string `json:"-"`
}

var versionSuffix = regexp.MustCompile(`\s*\(\d+\)\s*$`)

// ParseBaseName strips the extension and a trailing "(N)" take marker,
// so "The Runoff (2).wav" groups under "The Runoff".
func ParseBaseName(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = versionSuffix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// Store reads songs and group keys out of the database.
type Store struct {
	songs *database.SongRepository
}

func NewStore(songs *database.SongRepository) *Store {
	return &Store{songs: songs}
}

func (s *Store) AllSongs() ([]Song, error) {
	rows, err := s.songs.All()
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Store) SongsByBaseName(baseName string) ([]Song, error) {
	rows, err := s.songs.ByBaseName(baseName)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *Store) BaseNames() ([]string, error) {
	return s.songs.BaseNames()
}

func (s *Store) SongByID(id int64) (Song, error) {
	row, err := s.songs.ByID(id)
	if err != nil {
		return Song{}, err
	}
	if row == nil {
		return Song{}, ErrNotFound
	}
	return fromRow(*row), nil
}

func fromRows(rows []database.Song) []Song {
	songs := make([]Song, 0, len(rows))
	for _, row := range rows {
		songs = append(songs, fromRow(row))
	}
	return songs
}

func fromRow(row database.Song) Song {
	return Song{
		ID:       row.ID,
		Filename: row.Filename,
		BaseName: row.BaseName,
		FullPath: row.FullPath,
	}
}
