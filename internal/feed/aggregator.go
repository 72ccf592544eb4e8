// Package feed produces the two feed projections (all posts, and posts by
// followed authors) with author profiles joined in memory and interaction
// counts replaced by authoritative recounts.
package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/interaction"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/metrics"
	"github.com/trailtalk/trailtalk/internal/models"
	"github.com/trailtalk/trailtalk/internal/session"
)

// Tab selects which projection Posts returns.
type Tab string

const (
	TabForYou    Tab = "forYou"
	TabFollowing Tab = "following"
)

// defaultDebounce coalesces bursts of realtime events into one refetch.
const defaultDebounce = 250 * time.Millisecond

// EnrichedPost is a post row with its author profile attached and counters
// overwritten by fresh counts.
type EnrichedPost struct {
	models.Post
	Author *models.Profile `json:"author,omitempty"`
}

// Aggregator fetches and caches both feed projections. One aggregator per
// mounted feed view; Close tears down its realtime subscriptions.
type Aggregator struct {
	gw       gateway.Gateway
	sess     *session.Session
	rec      *interaction.Reconciler
	debounce time.Duration

	mu         sync.Mutex
	all        []EnrichedPost
	following  []EnrichedPost
	refreshing bool
	closed     bool
	subs       []gateway.Subscription
	timer      *time.Timer
	onRefresh  func()
}

// NewAggregator builds a feed aggregator for the session's user.
func NewAggregator(gw gateway.Gateway, sess *session.Session) *Aggregator {
	return &Aggregator{
		gw:       gw,
		sess:     sess,
		rec:      interaction.NewReconciler(gw),
		debounce: defaultDebounce,
	}
}

// SetRefreshCallback registers a hook invoked after every completed refresh.
func (a *Aggregator) SetRefreshCallback(fn func()) {
	a.mu.Lock()
	a.onRefresh = fn
	a.mu.Unlock()
}

// Posts returns the cached projection for the active tab.
func (a *Aggregator) Posts(tab Tab) []EnrichedPost {
	a.mu.Lock()
	defer a.mu.Unlock()
	src := a.all
	if tab == TabFollowing {
		src = a.following
	}
	out := make([]EnrichedPost, len(src))
	copy(out, src)
	return out
}

// Refreshing reports whether a refresh is in flight.
func (a *Aggregator) Refreshing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshing
}

// Refresh fetches both projections concurrently and replaces the cache.
func (a *Aggregator) Refresh(ctx context.Context) {
	a.refresh(ctx, "manual")
}

func (a *Aggregator) refresh(ctx context.Context, trigger string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.refreshing = true
	a.mu.Unlock()

	metrics.FeedRefreshes.WithLabelValues(trigger).Inc()

	var wg sync.WaitGroup
	var all, following []EnrichedPost
	wg.Add(2)
	go func() {
		defer wg.Done()
		all = a.fetchAllPosts(ctx)
	}()
	go func() {
		defer wg.Done()
		following = a.fetchFollowingPosts(ctx)
	}()
	wg.Wait()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.all = all
	a.following = following
	a.refreshing = false
	cb := a.onRefresh
	a.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// fetchAllPosts returns every post, newest first. Any stage failure logs
// and degrades to an empty slice rather than an error screen.
func (a *Aggregator) fetchAllPosts(ctx context.Context) []EnrichedPost {
	rows, err := a.gw.Select(ctx, gateway.Query{
		Table:      gateway.TablePosts,
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("select").Inc()
		logger.Log.Error("Feed posts fetch failed", zap.Error(err))
		return []EnrichedPost{}
	}
	var posts []models.Post
	if err := gateway.DecodeRows(rows, &posts); err != nil {
		logger.Log.Error("Feed posts decode failed", zap.Error(err))
		return []EnrichedPost{}
	}
	if len(posts) == 0 {
		return []EnrichedPost{}
	}
	return a.enrich(ctx, posts)
}

// fetchFollowingPosts returns posts by authors the user follows. A user
// following no one short-circuits to an empty slice without touching the
// posts relation.
func (a *Aggregator) fetchFollowingPosts(ctx context.Context) []EnrichedPost {
	uid, signedIn := a.sess.UserID()
	if !signedIn {
		return []EnrichedPost{}
	}

	followRows, err := a.gw.Select(ctx, gateway.Query{
		Table:   gateway.TableFollows,
		Columns: []string{"following_user_id"},
		Filters: []gateway.Filter{gateway.Eq("follower_user_id", uid)},
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("select").Inc()
		logger.Log.Error("Follows fetch failed", logger.WithUserID(uid), zap.Error(err))
		return []EnrichedPost{}
	}
	followed := make([]string, 0, len(followRows))
	for _, row := range followRows {
		if id := gateway.StringField(row, "following_user_id"); id != "" {
			followed = append(followed, id)
		}
	}
	if len(followed) == 0 {
		return []EnrichedPost{}
	}

	rows, err := a.gw.Select(ctx, gateway.Query{
		Table:      gateway.TablePosts,
		Filters:    []gateway.Filter{gateway.In("author_id", followed)},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("select").Inc()
		logger.Log.Error("Followed posts fetch failed", logger.WithUserID(uid), zap.Error(err))
		return []EnrichedPost{}
	}
	var posts []models.Post
	if err := gateway.DecodeRows(rows, &posts); err != nil {
		logger.Log.Error("Followed posts decode failed", zap.Error(err))
		return []EnrichedPost{}
	}
	if len(posts) == 0 {
		return []EnrichedPost{}
	}
	return a.enrich(ctx, posts)
}

// enrich joins author profiles in memory (one batch IN query, no
// server-side join) and overwrites every stored counter with a fresh count.
// Per-post failures fall back to the stored value and never abort the batch.
func (a *Aggregator) enrich(ctx context.Context, posts []models.Post) []EnrichedPost {
	authors := a.fetchAuthors(ctx, posts)

	enriched := make([]EnrichedPost, len(posts))
	var wg sync.WaitGroup
	for i := range posts {
		enriched[i] = EnrichedPost{Post: posts[i], Author: authors[posts[i].AuthorID]}

		wg.Add(1)
		go func(p *EnrichedPost) {
			defer wg.Done()
			for _, k := range interaction.Kinds {
				n, err := a.rec.Recount(ctx, p.ID, k)
				if err != nil {
					// Keep the stored (cached) counter for this kind
					logger.Log.Warn("Feed count enrichment failed",
						logger.WithPostID(p.ID), zap.String("kind", string(k)), zap.Error(err))
					continue
				}
				switch k {
				case interaction.KindLike:
					p.LikesCount = n
				case interaction.KindComment:
					p.CommentsCount = n
				case interaction.KindRepost:
					p.RepostsCount = n
				case interaction.KindBookmark:
					p.BookmarksCount = n
				}
			}
		}(&enriched[i])
	}
	wg.Wait()
	return enriched
}

// fetchAuthors batch-loads the distinct author profiles for the posts.
// Failure yields an empty map: posts render without author data.
func (a *Aggregator) fetchAuthors(ctx context.Context, posts []models.Post) map[string]*models.Profile {
	idSet := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		idSet[p.AuthorID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	rows, err := a.gw.Select(ctx, gateway.Query{
		Table:   gateway.TableProfiles,
		Filters: []gateway.Filter{gateway.In("id", ids)},
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("select").Inc()
		logger.Log.Error("Author profiles fetch failed", zap.Error(err))
		return map[string]*models.Profile{}
	}
	var profiles []models.Profile
	if err := gateway.DecodeRows(rows, &profiles); err != nil {
		logger.Log.Error("Author profiles decode failed", zap.Error(err))
		return map[string]*models.Profile{}
	}
	byID := make(map[string]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	return byID
}

// ApplyCount patches one post's cached counter in both projections. Wired
// to the interaction store's parent callback so a toggle updates the list
// without a full refetch.
func (a *Aggregator) ApplyCount(postID, countField string, newCount int64) {
	if newCount < 0 {
		newCount = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, list := range [][]EnrichedPost{a.all, a.following} {
		for i := range list {
			if list[i].ID != postID {
				continue
			}
			switch countField {
			case "likes_count":
				list[i].LikesCount = newCount
			case "comments_count":
				list[i].CommentsCount = newCount
			case "reposts_count":
				list[i].RepostsCount = newCount
			case "bookmarks_count":
				list[i].BookmarksCount = newCount
			}
		}
	}
}

// Start subscribes to every interaction relation with no row filter; any
// change anywhere schedules a debounced full refresh. Deliberately coarse:
// consistency over cleverness.
func (a *Aggregator) Start(ctx context.Context) error {
	tables := []string{
		gateway.TablePostLikes,
		gateway.TableComments,
		gateway.TableReposts,
		gateway.TableBookmarks,
	}
	for _, table := range tables {
		sub, err := a.gw.SubscribeChanges(ctx, table, nil, gateway.MaskAll)
		if err != nil {
			a.Close()
			return err
		}
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			sub.Close()
			return nil
		}
		a.subs = append(a.subs, sub)
		a.mu.Unlock()

		go func() {
			for range sub.Events() {
				a.scheduleRefresh(ctx)
			}
		}()
	}
	return nil
}

// scheduleRefresh coalesces event bursts: the refetch runs once the stream
// has been quiet for the debounce window.
func (a *Aggregator) scheduleRefresh(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, func() {
		a.refresh(ctx, "realtime")
	})
}

// Close tears down subscriptions and pending refreshes.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	subs := a.subs
	a.subs = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
