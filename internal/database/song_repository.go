package database

import (
	"context"
	"database/sql"
	"time"
)

const songRepoTimeout = 2 * time.Second

type Song struct {
	ID       int64
	Filename string
	BaseName string
	FullPath string
}

type SongRepository struct {
	db *sql.DB
}

func NewSongRepository() *SongRepository {
	return &SongRepository{db: GetDB()}
}

// Upsert inserts a song, or returns the existing row id when the path
// was scanned before.
func (r *SongRepository) Upsert(filename, baseName, fullPath string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, nil
	}
	if filename == "" || fullPath == "" {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), songRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO songs (filename, base_name, full_path)
		VALUES ($1, $2, $3)
		ON CONFLICT (full_path)
		DO UPDATE SET
			filename = EXCLUDED.filename,
			base_name = EXCLUDED.base_name
		RETURNING id;
	`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, filename, baseName, fullPath).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *SongRepository) All() ([]Song, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), songRepoTimeout)
	defer cancel()

	const query = `
		SELECT id, filename, base_name, full_path
		FROM songs
		ORDER BY base_name, filename
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSongs(rows)
}

func (r *SongRepository) ByBaseName(baseName string) ([]Song, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if baseName == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), songRepoTimeout)
	defer cancel()

	const query = `
		SELECT id, filename, base_name, full_path
		FROM songs
		WHERE base_name = $1
		ORDER BY filename
	`

	rows, err := r.db.QueryContext(ctx, query, baseName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSongs(rows)
}

func (r *SongRepository) BaseNames() ([]string, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), songRepoTimeout)
	defer cancel()

	const query = `
		SELECT DISTINCT base_name
		FROM songs
		ORDER BY base_name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SongRepository) ByID(id int64) (*Song, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), songRepoTimeout)
	defer cancel()

	const query = `
		SELECT id, filename, base_name, full_path
		FROM songs
		WHERE id = $1
	`

	var s Song
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Filename, &s.BaseName, &s.FullPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SongRepository) Clear() error {
	if r == nil || r.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), songRepoTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM votes`); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM songs`)
	return err
}

func scanSongs(rows *sql.Rows) ([]Song, error) {
	var songs []Song
	for rows.Next() {
		var s Song
		if err := rows.Scan(&s.ID, &s.Filename, &s.BaseName, &s.FullPath); err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}
