// Package search runs simple filter-based lookups over profiles and
// communities. Queries driven by keystrokes are debounced so the gateway
// only sees the settled text; there is no ranking, just filters.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/models"
)

// Category filters user results by account type.
type Category string

const (
	CategoryAll      Category = "all"
	CategoryStudents Category = "students"
	CategoryFaculty  Category = "faculty"
)

// resultLimit caps each relation's result set.
const resultLimit = 20

// defaultDebounce is the pause after the last keystroke before querying.
const defaultDebounce = 300 * time.Millisecond

// UserResult is a profile with its derived display fields.
type UserResult struct {
	models.Profile
	Initials        string `json:"initials"`
	Name            string `json:"name"`
	DisplayUsername string `json:"display_username"`
}

// Results carries one settled query's matches.
type Results struct {
	Query       string             `json:"query"`
	Users       []UserResult       `json:"users"`
	Communities []models.Community `json:"communities"`
}

// Service is a debounced search box backend. One per mounted search view.
type Service struct {
	gw       gateway.Gateway
	debounce time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	category  Category
	seq       uint64
	closed    bool
	onResults func(Results)
}

// NewService builds a search service with the default debounce window.
func NewService(gw gateway.Gateway) *Service {
	return &Service{gw: gw, debounce: defaultDebounce, category: CategoryAll}
}

// SetResultsCallback registers the sink for settled query results.
func (s *Service) SetResultsCallback(fn func(Results)) {
	s.mu.Lock()
	s.onResults = fn
	s.mu.Unlock()
}

// SetCategory narrows user results to one account type.
func (s *Service) SetCategory(c Category) {
	s.mu.Lock()
	s.category = c
	s.mu.Unlock()
}

// SetQuery feeds a keystroke. The search fires once the input has been
// quiet for the debounce window; an empty query clears results right away.
func (s *Service) SetQuery(ctx context.Context, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		if s.onResults != nil {
			go s.onResults(Results{})
		}
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		res := s.Search(ctx, query)

		s.mu.Lock()
		stale := s.closed || s.seq != seq
		cb := s.onResults
		s.mu.Unlock()
		if stale || cb == nil {
			return
		}
		cb(res)
	})
}

// Search runs the query immediately. Failures degrade to empty slices.
func (s *Service) Search(ctx context.Context, query string) Results {
	s.mu.Lock()
	category := s.category
	s.mu.Unlock()

	return Results{
		Query:       query,
		Users:       s.searchUsers(ctx, query, category),
		Communities: s.searchCommunities(ctx, query),
	}
}

func (s *Service) searchUsers(ctx context.Context, query string, category Category) []UserResult {
	pattern := "%" + query + "%"
	rows, err := s.gw.Select(ctx, gateway.Query{
		Table: gateway.TableProfiles,
		OrFilters: []gateway.Filter{
			gateway.ILike("display_name", pattern),
			gateway.ILike("username", pattern),
			gateway.ILike("student_id", pattern),
			gateway.ILike("school_email", pattern),
			gateway.ILike("user_type", pattern),
		},
		Limit: resultLimit,
	})
	if err != nil {
		logger.Log.Error("User search failed", zap.String("query", query), zap.Error(err))
		return []UserResult{}
	}
	var profiles []models.Profile
	if err := gateway.DecodeRows(rows, &profiles); err != nil {
		logger.Log.Error("User search decode failed", zap.Error(err))
		return []UserResult{}
	}

	out := make([]UserResult, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		if !matchesCategory(&p, category) {
			continue
		}
		out = append(out, UserResult{
			Profile:         p,
			Initials:        p.Initials(),
			Name:            p.BestDisplayName(),
			DisplayUsername: displayUsername(&p),
		})
	}
	return out
}

func (s *Service) searchCommunities(ctx context.Context, query string) []models.Community {
	pattern := "%" + query + "%"
	rows, err := s.gw.Select(ctx, gateway.Query{
		Table: gateway.TableCommunities,
		OrFilters: []gateway.Filter{
			gateway.ILike("name", pattern),
			gateway.ILike("description", pattern),
		},
		Limit: resultLimit,
	})
	if err != nil {
		logger.Log.Error("Community search failed", zap.String("query", query), zap.Error(err))
		return []models.Community{}
	}
	var communities []models.Community
	if err := gateway.DecodeRows(rows, &communities); err != nil {
		logger.Log.Error("Community search decode failed", zap.Error(err))
		return []models.Community{}
	}
	return communities
}

func matchesCategory(p *models.Profile, c Category) bool {
	switch c {
	case CategoryStudents:
		return p.UserType == models.UserTypeStudent
	case CategoryFaculty:
		return p.UserType == models.UserTypeFaculty
	default:
		return true
	}
}

func displayUsername(p *models.Profile) string {
	if p.StudentID != "" {
		return p.StudentID
	}
	if p.Username != "" {
		return p.Username
	}
	return "user"
}

// Close cancels any pending debounce.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// String renders a compact summary for CLI output.
func (r Results) String() string {
	return fmt.Sprintf("query=%q users=%d communities=%d", r.Query, len(r.Users), len(r.Communities))
}
