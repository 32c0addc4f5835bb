package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey   = "ws:online_users"
	presenceLastSeenPrefix = "ws:last_seen:"
	presenceTTL            = 90 * time.Second
)

// Presence tracks which users hold a feed stream. Connection counts are
// kept per process and mirrored into Redis so every instance reports the
// same online total; a user whose last-seen key expired is no longer online.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration

	mu     sync.RWMutex
	counts map[string]int
}

// NewPresence creates a tracker. A nil client keeps presence local.
func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{
		rdb:    rdb,
		ttl:    presenceTTL,
		counts: make(map[string]int),
	}
}

// Register records one more connection for userID.
func (p *Presence) Register(ctx context.Context, userID string) {
	p.mu.Lock()
	p.counts[userID]++
	p.mu.Unlock()

	p.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID string) {
	if p.rdb == nil {
		return
	}
	if err := p.rdb.SAdd(ctx, presenceOnlineSetKey, userID).Err(); err != nil {
		log.Printf("presence touch SADD failed for user %s: %v", userID, err)
	}
	if err := p.rdb.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), p.ttl).Err(); err != nil {
		log.Printf("presence touch SETEX failed for user %s: %v", userID, err)
	}
}

// Unregister drops one connection for userID. The user leaves the Redis
// set once this process holds none of their connections.
func (p *Presence) Unregister(ctx context.Context, userID string) {
	p.mu.Lock()
	n := p.counts[userID] - 1
	if n > 0 {
		p.counts[userID] = n
		p.mu.Unlock()
		return
	}
	delete(p.counts, userID)
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	pipe := p.rdb.TxPipeline()
	pipe.SRem(ctx, presenceOnlineSetKey, userID)
	pipe.Del(ctx, p.lastSeenKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("presence unregister failed for user %s: %v", userID, err)
	}
}

// IsOnline reports whether userID holds a connection on any instance.
func (p *Presence) IsOnline(ctx context.Context, userID string) bool {
	p.mu.RLock()
	local := p.counts[userID] > 0
	p.mu.RUnlock()
	if local || p.rdb == nil {
		return local
	}
	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && exists > 0
}

// OnlineUserIDs returns live users from Redis, pruning stale members,
// unioned with local connections.
func (p *Presence) OnlineUserIDs(ctx context.Context) []string {
	local := p.localUserIDs()
	if p.rdb == nil {
		return local
	}

	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return local
	}

	seen := make(map[string]struct{}, len(members)+len(local))
	result := make([]string, 0, len(members)+len(local))
	for _, userID := range members {
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists == 0 {
			_ = p.rdb.SRem(ctx, presenceOnlineSetKey, userID).Err()
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}
	for _, userID := range local {
		if _, ok := seen[userID]; ok {
			continue
		}
		result = append(result, userID)
	}
	return result
}

func (p *Presence) localUserIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.counts))
	for userID, n := range p.counts {
		if n > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (p *Presence) lastSeenKey(userID string) string {
	return presenceLastSeenPrefix + userID
}
