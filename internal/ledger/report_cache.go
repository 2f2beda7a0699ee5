package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache keeps recent verification reports in Redis. Replaying a large
// range recomputes every hash in it, so operational dashboards polling the
// same window should not pay that cost on every refresh.
//
// Best-effort only: cache failures degrade to recomputation, never to a
// missing or stale-forever report. Entries expire by TTL.
type ReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReportCache(rdb *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ReportCache{rdb: rdb, ttl: ttl}
}

func reportKey(branchID string, fromID, toID int64) string {
	return fmt.Sprintf("audit:verify:%s:%d:%d", branchID, fromID, toID)
}

func (c *ReportCache) Get(ctx context.Context, branchID string, fromID, toID int64) (Report, bool) {
	if c == nil || c.rdb == nil {
		return Report{}, false
	}
	b, err := c.rdb.Get(ctx, reportKey(branchID, fromID, toID)).Bytes()
	if err != nil {
		return Report{}, false
	}
	var rep Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return Report{}, false
	}
	return rep, true
}

func (c *ReportCache) Put(ctx context.Context, branchID string, fromID, toID int64, rep Report) {
	if c == nil || c.rdb == nil {
		return
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, reportKey(branchID, fromID, toID), b, c.ttl).Err()
}
