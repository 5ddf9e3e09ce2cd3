package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const blockRepoTimeout = 2 * time.Second

// VoteBlock is a named, shareable voting session configuration. Its
// scope plus overrides are consumed opaquely by the session core.
type VoteBlock struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Scope         string `json:"scope"`
	MinListenTime *int   `json:"min_listen_time,omitempty"`
	SkipDisabled  *bool  `json:"skip_disabled,omitempty"`
}

type BlockRepository struct {
	db *sql.DB
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{db: GetDB()}
}

func (r *BlockRepository) Create(name, scope string, minListenTime *int, skipDisabled *bool) (*VoteBlock, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockRepoTimeout)
	defer cancel()

	block := &VoteBlock{
		ID:            uuid.NewString(),
		Name:          name,
		Scope:         scope,
		MinListenTime: minListenTime,
		SkipDisabled:  skipDisabled,
	}

	const query = `
		INSERT INTO vote_blocks (id, name, scope, min_listen_time, skip_disabled)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, block.ID, block.Name, block.Scope, block.MinListenTime, block.SkipDisabled)
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (r *BlockRepository) Get(id string) (*VoteBlock, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if id == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockRepoTimeout)
	defer cancel()

	const query = `
		SELECT id, name, scope, min_listen_time, skip_disabled
		FROM vote_blocks
		WHERE id = $1
	`

	var (
		block         VoteBlock
		minListenTime sql.NullInt64
		skipDisabled  sql.NullBool
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&block.ID, &block.Name, &block.Scope, &minListenTime, &skipDisabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if minListenTime.Valid {
		v := int(minListenTime.Int64)
		block.MinListenTime = &v
	}
	if skipDisabled.Valid {
		v := skipDisabled.Bool
		block.SkipDisabled = &v
	}
	return &block, nil
}

func (r *BlockRepository) List() ([]VoteBlock, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockRepoTimeout)
	defer cancel()

	const query = `
		SELECT id, name, scope, min_listen_time, skip_disabled
		FROM vote_blocks
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []VoteBlock
	for rows.Next() {
		var (
			block         VoteBlock
			minListenTime sql.NullInt64
			skipDisabled  sql.NullBool
		)
		if err := rows.Scan(&block.ID, &block.Name, &block.Scope, &minListenTime, &skipDisabled); err != nil {
			return nil, err
		}
		if minListenTime.Valid {
			v := int(minListenTime.Int64)
			block.MinListenTime = &v
		}
		if skipDisabled.Valid {
			v := skipDisabled.Bool
			block.SkipDisabled = &v
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func (r *BlockRepository) Delete(id string) error {
	if r == nil || r.db == nil {
		return nil
	}
	if id == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockRepoTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM vote_blocks WHERE id = $1`, id)
	return err
}
