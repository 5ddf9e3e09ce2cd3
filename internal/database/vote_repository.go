package database

import (
	"context"
	"database/sql"
	"time"
)

const voteRepoTimeout = 2 * time.Second

// SongStats is the aggregate view of votes for one song.
type SongStats struct {
	VoteCount   int      `json:"vote_count"`
	AvgRating   *float64 `json:"avg_rating"`
	ThumbsUpPct *float64 `json:"thumbs_up_pct"`
}

// SongResult is SongStats joined with the song it belongs to.
type SongResult struct {
	ID          int64    `json:"id"`
	Filename    string   `json:"filename"`
	BaseName    string   `json:"base_name"`
	VoteCount   int      `json:"vote_count"`
	AvgRating   *float64 `json:"avg_rating"`
	ThumbsUpPct *float64 `json:"thumbs_up_pct"`
}

type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository() *VoteRepository {
	return &VoteRepository{db: GetDB()}
}

func (r *VoteRepository) Add(songID int64, thumbsUp *bool, rating *int) error {
	if r == nil || r.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), voteRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO votes (song_id, thumbs_up, rating)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query, songID, thumbsUp, rating)
	return err
}

func (r *VoteRepository) StatsForSong(songID int64) (SongStats, error) {
	if r == nil || r.db == nil {
		return SongStats{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), voteRepoTimeout)
	defer cancel()

	const query = `
		SELECT
			COUNT(*) AS vote_count,
			AVG(rating) AS avg_rating,
			SUM(CASE WHEN thumbs_up THEN 1 ELSE 0 END) AS thumbs_up_count,
			SUM(CASE WHEN NOT thumbs_up THEN 1 ELSE 0 END) AS thumbs_down_count
		FROM votes
		WHERE song_id = $1
	`

	var (
		voteCount int
		avgRating sql.NullFloat64
		upCount   sql.NullInt64
		downCount sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, songID).Scan(&voteCount, &avgRating, &upCount, &downCount)
	if err != nil {
		return SongStats{}, err
	}

	return buildStats(voteCount, avgRating, upCount, downCount), nil
}

func (r *VoteRepository) AllResults() ([]SongResult, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), voteRepoTimeout)
	defer cancel()

	const query = `
		SELECT
			s.id,
			s.filename,
			s.base_name,
			COUNT(v.id) AS vote_count,
			AVG(v.rating) AS avg_rating,
			SUM(CASE WHEN v.thumbs_up THEN 1 ELSE 0 END) AS thumbs_up_count,
			SUM(CASE WHEN NOT v.thumbs_up THEN 1 ELSE 0 END) AS thumbs_down_count
		FROM songs s
		LEFT JOIN votes v ON s.id = v.song_id
		GROUP BY s.id
		ORDER BY s.base_name, s.filename
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SongResult
	for rows.Next() {
		var (
			res       SongResult
			avgRating sql.NullFloat64
			upCount   sql.NullInt64
			downCount sql.NullInt64
		)
		if err := rows.Scan(&res.ID, &res.Filename, &res.BaseName, &res.VoteCount, &avgRating, &upCount, &downCount); err != nil {
			return nil, err
		}

		stats := buildStats(res.VoteCount, avgRating, upCount, downCount)
		res.AvgRating = stats.AvgRating
		res.ThumbsUpPct = stats.ThumbsUpPct
		results = append(results, res)
	}
	return results, rows.Err()
}

func buildStats(voteCount int, avgRating sql.NullFloat64, upCount, downCount sql.NullInt64) SongStats {
	stats := SongStats{VoteCount: voteCount}

	if avgRating.Valid {
		rounded := float64(int(avgRating.Float64*100+0.5)) / 100
		stats.AvgRating = &rounded
	}

	totalThumbs := upCount.Int64 + downCount.Int64
	if totalThumbs > 0 {
		pct := float64(upCount.Int64) / float64(totalThumbs) * 100
		rounded := float64(int(pct*10+0.5)) / 10
		stats.ThumbsUpPct = &rounded
	}

	return stats
}
