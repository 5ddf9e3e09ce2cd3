package server

import (
	"context"

	"github.com/kwhite/songvote/internal/catalog"
	"github.com/kwhite/songvote/internal/voting"
)

// StoreSubmitter resolves the session's vote submissions against the
// vote store directly, skipping the HTTP round-trip the browser path
// takes.
type StoreSubmitter struct {
	votes VoteStore
}

func NewStoreSubmitter(votes VoteStore) *StoreSubmitter {
	return &StoreSubmitter{votes: votes}
}

func (s *StoreSubmitter) Submit(_ context.Context, song catalog.Song, draft voting.Draft) (voting.VoteResult, error) {
	var rating *int
	if draft.Rating > 0 {
		rating = &draft.Rating
	}

	if err := s.votes.Add(song.ID, draft.Thumbs, rating); err != nil {
		return voting.VoteResult{}, err
	}
	return voting.VoteResult{Success: true}, nil
}
