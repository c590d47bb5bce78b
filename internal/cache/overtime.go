// 列表缓存的键中带有代数，任何写入都会使代数加一，旧的键随 TTL 过期
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	GenerationKey = "overtime:list:generation"
	listKeyPrefix = "overtime:list:"
)

type Lister interface {
	ListOvertimeRequests(filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error)
}

type OvertimeLists struct {
	rdb     *redis.Client
	store   Lister
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

func NewOvertimeLists(rdb *redis.Client, store Lister, ttl, timeout time.Duration, logger *slog.Logger) *OvertimeLists {
	if logger == nil {
		logger = slog.Default()
	}
	return &OvertimeLists{
		rdb:     rdb,
		store:   store,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

// ListOvertimeRequests 优先从缓存读取，缓存不可用时直接查询数据库
func (c *OvertimeLists) ListOvertimeRequests(filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	generation, err := c.rdb.Get(ctx, GenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("无法读取缓存版本，直接查询数据库", "error", err)
		return c.store.ListOvertimeRequests(filter)
	}

	key := ListKey(generation, filter)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		requests := []*domain.OvertimeRequest{}
		if err := json.Unmarshal([]byte(cached), &requests); err == nil {
			return requests, nil
		}
		c.logger.Warn("缓存内容无法解析", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("无法读取列表缓存", "key", key, "error", err)
	}

	// 同一个 key 的并发未命中只查询一次数据库
	v, err, _ := c.group.Do(key, func() (any, error) {
		requests, err := c.store.ListOvertimeRequests(filter)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(requests)
		if err != nil {
			return requests, nil
		}
		if err := c.rdb.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
			c.logger.Warn("无法写入列表缓存", "key", key, "error", err)
		}
		return requests, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]*domain.OvertimeRequest), nil
}

// Invalidate 递增缓存版本号，使所有已缓存的列表失效
func (c *OvertimeLists) Invalidate() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	return c.rdb.Incr(ctx, GenerationKey).Err()
}

func ListKey(generation int64, filter domain.OvertimeFilter) string {
	return fmt.Sprintf("%s%d:%s", listKeyPrefix, generation, FilterKey(filter))
}

// FilterKey 把过滤条件编码成稳定的字符串，状态的顺序不影响结果
func FilterKey(f domain.OvertimeFilter) string {
	statuses := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = string(s)
	}
	slices.Sort(statuses)

	parts := []string{
		"s=" + strings.Join(statuses, ","),
		"k=" + string(f.Kind),
		"from=" + formatDate(f.From),
		"to=" + formatDate(f.To),
		"rb=" + formatID(f.RequestedBy),
		"sv=" + formatID(f.SupervisorID),
		"d=" + f.Department,
		"scope=" + formatID(f.ScopeUserID),
	}
	return strings.Join(parts, "|")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}
