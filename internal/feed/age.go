package feed

import (
	"fmt"
	"time"
)

// TimeAgo renders the age label of a post card.
func TimeAgo(created, now time.Time) string {
	hours := int(now.Sub(created).Hours())
	switch {
	case hours < 1:
		return "just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dd ago", hours/24)
	}
}
