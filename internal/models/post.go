// Package models contains data structures for the application's domain models.
package models

import (
	"slices"
	"time"
)

// Post is a submitted link in the feed.
type Post struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	URL          string    `gorm:"not null" json:"url"`
	Caption      string    `gorm:"type:text" json:"caption"`
	Author       string    `gorm:"not null" json:"author"`
	AuthorID     string    `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Points       int       `gorm:"not null;default:0;index" json:"points"`
	Upvotes      []string  `gorm:"serializer:json;type:text" json:"upvotes"`
	Downvotes    []string  `gorm:"serializer:json;type:text" json:"downvotes"`
	PreviewImage string    `json:"preview_image,omitempty"`
	Domain       string    `gorm:"index" json:"domain,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"-"`

	// Version grows with every mutation so older copies never overwrite
	// newer ones in storage.
	Version int64 `gorm:"not null;default:0" json:"-"`

	// HasUpvoted and HasDownvoted are computed for the requesting user
	HasUpvoted   bool `gorm:"-" json:"has_upvoted"`
	HasDownvoted bool `gorm:"-" json:"has_downvoted"`

	// TimeAgo is the age label at the time of the request
	TimeAgo string `gorm:"-" json:"time_ago,omitempty"`
}

// Clone returns a deep copy of the post so callers never share vote sets.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Upvotes = slices.Clone(p.Upvotes)
	cp.Downvotes = slices.Clone(p.Downvotes)
	if cp.Upvotes == nil {
		cp.Upvotes = []string{}
	}
	if cp.Downvotes == nil {
		cp.Downvotes = []string{}
	}
	return &cp
}
