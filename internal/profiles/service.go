// Package profiles is the read-only profile directory: single and batch
// lookups with an optional Redis cache in front of the gateway.
package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/cache"
	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/models"
)

// cacheTTL bounds profile staleness; profile edits happen rarely and
// outside this repo, so a short TTL is plenty.
const cacheTTL = 5 * time.Minute

// Service looks up profiles by id. A nil cache disables caching entirely.
type Service struct {
	gw    gateway.Gateway
	cache *cache.RedisClient
}

// NewService builds the directory. cache may be nil.
func NewService(gw gateway.Gateway, cache *cache.RedisClient) *Service {
	return &Service{gw: gw, cache: cache}
}

// Get returns one profile, or gateway.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	if p := s.fromCache(ctx, id); p != nil {
		return p, nil
	}

	rows, err := s.gw.Select(ctx, gateway.Query{
		Table:   gateway.TableProfiles,
		Filters: []gateway.Filter{gateway.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, gateway.ErrNotFound
	}
	var p models.Profile
	if err := gateway.Decode(rows[0], &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	s.toCache(ctx, &p)
	return &p, nil
}

// GetByIDs batch-loads profiles with a single IN query for the ids the
// cache cannot answer. Missing ids are simply absent from the result.
func (s *Service) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(ids))
	var misses []string
	for _, id := range ids {
		if p := s.fromCache(ctx, id); p != nil {
			out[id] = p
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	rows, err := s.gw.Select(ctx, gateway.Query{
		Table:   gateway.TableProfiles,
		Filters: []gateway.Filter{gateway.In("id", misses)},
	})
	if err != nil {
		return nil, fmt.Errorf("batch fetch profiles: %w", err)
	}
	var fetched []models.Profile
	if err := gateway.DecodeRows(rows, &fetched); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	for i := range fetched {
		out[fetched[i].ID] = &fetched[i]
		s.toCache(ctx, &fetched[i])
	}
	return out, nil
}

// Invalidate drops a profile from the cache after an external edit.
func (s *Service) Invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(id)); err != nil {
		logger.Log.Warn("Profile cache invalidation failed", logger.WithUserID(id), zap.Error(err))
	}
}

func (s *Service) fromCache(ctx context.Context, id string) *models.Profile {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(id))
	if err != nil {
		if !cache.IsMiss(err) {
			logger.Log.Warn("Profile cache read failed", logger.WithUserID(id), zap.Error(err))
		}
		return nil
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	return &p
}

func (s *Service) toCache(ctx context.Context, p *models.Profile) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.SetEx(ctx, cacheKey(p.ID), string(raw), cacheTTL); err != nil {
		logger.Log.Warn("Profile cache write failed", logger.WithUserID(p.ID), zap.Error(err))
	}
}

func cacheKey(id string) string {
	return "profile:" + id
}
