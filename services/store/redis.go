package store

import (
	"context"
	"encoding/json"
	"fmt"

	"snsworker/internal/applicant"
	"snsworker/internal/selection"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements ApplicantStore on Redis: one hash per project
// keyed by the applicant identity key, plus a small criteria record.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed applicant store.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

func applicantsKey(projectID string) string {
	return "applicants:" + projectID
}

func criteriaKey(projectID string) string {
	return "criteria:" + projectID
}

// KnownApplicants loads every applicant record for the project.
func (s *RedisStore) KnownApplicants(ctx context.Context, projectID string) ([]applicant.Applicant, error) {
	entries, err := s.client.HGetAll(ctx, applicantsKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read applicants: %w", err)
	}

	applicants := make([]applicant.Applicant, 0, len(entries))
	for key, raw := range entries {
		var a applicant.Applicant
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("corrupt applicant record %s/%s: %w", projectID, key, err)
		}
		applicants = append(applicants, a)
	}
	return applicants, nil
}

// AppendApplicants writes each applicant under its identity key. HSetNX
// keeps an already-persisted record authoritative if a concurrent pass
// raced this one.
func (s *RedisStore) AppendApplicants(ctx context.Context, projectID string, batch []applicant.Applicant) error {
	if len(batch) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for i := range batch {
		a := batch[i]
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal applicant %s: %w", a.Key(), err)
		}
		pipe.HSetNX(ctx, applicantsKey(projectID), a.Key(), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append applicants: %w", err)
	}
	return nil
}

// criteriaRecord is the stored shape of per-project thresholds.
type criteriaRecord struct {
	ThreadsMin   int64 `json:"threads_min"`
	BlogMin      int64 `json:"blog_min"`
	InstagramMin int64 `json:"instagram_min"`
}

// SelectionCriteria reads the project thresholds, defaulting any missing
// or non-positive value.
func (s *RedisStore) SelectionCriteria(ctx context.Context, projectID string) (selection.Criteria, error) {
	raw, err := s.client.Get(ctx, criteriaKey(projectID)).Result()
	if err == redis.Nil {
		return selection.DefaultCriteria(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read criteria: %w", err)
	}

	var rec criteriaRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("corrupt criteria record for %s: %w", projectID, err)
	}
	return selection.ProjectCriteria(rec.ThreadsMin, rec.BlogMin, rec.InstagramMin), nil
}

// SetSelectionCriteria stores project thresholds. Used by the admin API.
func (s *RedisStore) SetSelectionCriteria(ctx context.Context, projectID string, threadsMin, blogMin, instagramMin int64) error {
	data, err := json.Marshal(criteriaRecord{
		ThreadsMin:   threadsMin,
		BlogMin:      blogMin,
		InstagramMin: instagramMin,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, criteriaKey(projectID), data, 0).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
