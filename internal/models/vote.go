package models

import "strings"

// VoteDirection is the direction of a vote click.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// ParseVoteDirection accepts "up" or "down" in any case.
func ParseVoteDirection(raw string) (VoteDirection, bool) {
	switch VoteDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case VoteUp:
		return VoteUp, true
	case VoteDown:
		return VoteDown, true
	}
	return "", false
}
