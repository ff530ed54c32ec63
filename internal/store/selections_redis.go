package store

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/rhymebinder/internal/allocator"
)

// RedisSelections persists selections as JSON documents inside one hash per
// (school, grade), plus a school registry set. Document-store semantics only:
// no cross-key transactions, so the allocator's delete-then-insert is not
// isolated.
type RedisSelections struct {
	client *redis.Client
	keyNS  string
}

func NewRedisSelections(redisURL string) (*RedisSelections, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisSelections{client: c, keyNS: "rhymes"}, nil
}

func (s *RedisSelections) gradeKey(school string, grade allocator.Grade) string {
	return fmt.Sprintf("%s:sel:%s:%s", s.keyNS, school, grade)
}

func (s *RedisSelections) schoolsKey() string { return s.keyNS + ":schools" }

func (s *RedisSelections) Insert(ctx context.Context, sel allocator.Selection) error {
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.gradeKey(sel.SchoolID, sel.Grade), sel.ID, string(b)).Err()
}

func (s *RedisSelections) Delete(ctx context.Context, school string, grade allocator.Grade, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.gradeKey(school, grade), ids...).Err()
}

func (s *RedisSelections) ByGrade(ctx context.Context, school string, grade allocator.Grade) ([]allocator.Selection, error) {
	res, err := s.client.HGetAll(ctx, s.gradeKey(school, grade)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]allocator.Selection, 0, len(res))
	for id, doc := range res {
		var sel allocator.Selection
		if err := json.Unmarshal([]byte(doc), &sel); err != nil {
			return nil, fmt.Errorf("selection %s: %w", id, err)
		}
		out = append(out, sel)
	}
	return out, nil
}

func (s *RedisSelections) ByPage(ctx context.Context, school string, grade allocator.Grade, pageIndex int) ([]allocator.Selection, error) {
	all, err := s.ByGrade(ctx, school, grade)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sel := range all {
		if sel.PageIndex == pageIndex {
			out = append(out, sel)
		}
	}
	return out, nil
}

func (s *RedisSelections) AddSchool(ctx context.Context, school string) error {
	return s.client.SAdd(ctx, s.schoolsKey(), school).Err()
}

func (s *RedisSelections) Close() error { return s.client.Close() }
