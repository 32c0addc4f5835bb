package feed

import (
	"slices"

	"truuo/internal/models"
)

type voteState int

const (
	notVoted voteState = iota
	upvoted
	downvoted
)

func stateOf(p *models.Post, userID string) voteState {
	switch {
	case slices.Contains(p.Upvotes, userID):
		return upvoted
	case slices.Contains(p.Downvotes, userID):
		return downvoted
	default:
		return notVoted
	}
}

// applyVote moves userID between the vote sets of p and returns the
// points delta of the transition. The caller adds the delta to p.Points.
//
//	not voted  + up   -> upvoted    +1
//	upvoted    + up   -> not voted  -1
//	downvoted  + up   -> upvoted    +2
//	not voted  + down -> downvoted  -1
//	downvoted  + down -> not voted  +1
//	upvoted    + down -> downvoted  -2
func applyVote(p *models.Post, userID string, dir models.VoteDirection) int {
	state := stateOf(p, userID)

	switch dir {
	case models.VoteUp:
		switch state {
		case upvoted:
			p.Upvotes = without(p.Upvotes, userID)
			return -1
		case downvoted:
			p.Downvotes = without(p.Downvotes, userID)
			p.Upvotes = append(p.Upvotes, userID)
			return 2
		default:
			p.Upvotes = append(p.Upvotes, userID)
			return 1
		}
	case models.VoteDown:
		switch state {
		case downvoted:
			p.Downvotes = without(p.Downvotes, userID)
			return 1
		case upvoted:
			p.Upvotes = without(p.Upvotes, userID)
			p.Downvotes = append(p.Downvotes, userID)
			return -2
		default:
			p.Downvotes = append(p.Downvotes, userID)
			return -1
		}
	}
	return 0
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}

// MarkViewer sets the has_upvoted/has_downvoted flags of posts for userID.
// An empty userID clears them.
func MarkViewer(posts []*models.Post, userID string) {
	for _, p := range posts {
		state := notVoted
		if userID != "" {
			state = stateOf(p, userID)
		}
		p.HasUpvoted = state == upvoted
		p.HasDownvoted = state == downvoted
	}
}
