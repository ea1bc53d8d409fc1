package redis_repository

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/influo/discovery/repository"
)

const trendingKey = "discovery:trending"

// redisTrendingRepository implements repository.Trending on a sorted set:
// one member per normalized query, score incremented per search.
type redisTrendingRepository struct {
	client *redis.Client
}

func NewRedisTrendingRepository(client *redis.Client) repository.Trending {
	return &redisTrendingRepository{client: client}
}

func (r *redisTrendingRepository) RecordSearch(ctx context.Context, term string, tags []string) error {
	member := normalizeQuery(term, tags)
	if member == "" {
		return nil
	}
	return r.client.ZIncrBy(ctx, trendingKey, 1, member).Err()
}

func (r *redisTrendingRepository) TopSearches(ctx context.Context, n int) ([]repository.SearchCount, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, trendingKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]repository.SearchCount, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, repository.SearchCount{Query: member, Count: int64(z.Score)})
	}
	return out, nil
}

func normalizeQuery(term string, tags []string) string {
	parts := make([]string, 0, 1+len(tags))
	if t := strings.ToLower(strings.TrimSpace(term)); t != "" {
		parts = append(parts, t)
	}
	for _, tag := range tags {
		if t := strings.ToLower(strings.TrimSpace(tag)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
