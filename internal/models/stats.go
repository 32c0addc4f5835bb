package models

// DomainCount is the number of feed posts linking to one domain.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// CommunityStats backs the sidebar of the feed page.
type CommunityStats struct {
	TotalUsers  int64         `json:"total_users"`
	OnlineUsers int64         `json:"online_users"`
	TopDomains  []DomainCount `json:"top_domains"`
}

// URLPreview is the card shown while composing a post.
type URLPreview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Domain      string `json:"domain"`
}
