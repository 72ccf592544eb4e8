package interaction

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/metrics"
	"github.com/trailtalk/trailtalk/internal/models"
	"github.com/trailtalk/trailtalk/internal/session"
)

// State is one post's interaction snapshot: the current user's flags plus
// the last reconciled counters.
type State struct {
	IsLiked      bool `json:"is_liked"`
	IsReposted   bool `json:"is_reposted"`
	IsBookmarked bool `json:"is_bookmarked"`
	HasCommented bool `json:"has_commented"`

	LikesCount     int64 `json:"likes_count"`
	CommentsCount  int64 `json:"comments_count"`
	RepostsCount   int64 `json:"reposts_count"`
	BookmarksCount int64 `json:"bookmarks_count"`
}

func (st *State) flag(k Kind) bool {
	switch k {
	case KindLike:
		return st.IsLiked
	case KindComment:
		return st.HasCommented
	case KindRepost:
		return st.IsReposted
	case KindBookmark:
		return st.IsBookmarked
	}
	return false
}

func (st *State) setFlag(k Kind, v bool) {
	switch k {
	case KindLike:
		st.IsLiked = v
	case KindComment:
		st.HasCommented = v
	case KindRepost:
		st.IsReposted = v
	case KindBookmark:
		st.IsBookmarked = v
	}
}

func (st *State) setCount(k Kind, n int64) {
	if n < 0 {
		n = 0
	}
	switch k {
	case KindLike:
		st.LikesCount = n
	case KindComment:
		st.CommentsCount = n
	case KindRepost:
		st.RepostsCount = n
	case KindBookmark:
		st.BookmarksCount = n
	}
}

// CountCallback is invoked after a successful toggle so aggregating views
// (feed lists) can patch their cached copy of the post without a refetch.
type CountCallback func(postID, countField string, newCount int64)

// Store owns the interaction state of exactly one post. It is created when
// the post enters view, started to receive realtime pushes, and closed when
// the post leaves view. All mutation goes through the gateway before local
// state changes; there is no surviving optimistic flip on a failed write.
//
// Overlapping toggles are not serialized. Each recount carries a per-kind
// sequence token and only the most recently issued recount may write its
// result, so a slow response can never clobber a newer one. A realtime push
// racing a toggle is still adopted as-received; that race is accepted.
type Store struct {
	postID string
	gw     gateway.Gateway
	sess   *session.Session
	rec    *Reconciler

	mu      sync.Mutex
	state   State
	issued  map[Kind]uint64
	closed  bool
	subs    []gateway.Subscription
	onCount CountCallback
}

// NewStore builds a store for one post. Call Initialize to load flags and
// authoritative counts, and Start to attach realtime subscriptions.
func NewStore(gw gateway.Gateway, sess *session.Session, postID string) *Store {
	return &Store{
		postID: postID,
		gw:     gw,
		sess:   sess,
		rec:    NewReconciler(gw),
		issued: make(map[Kind]uint64),
	}
}

// SetCountCallback registers the parent notification hook.
func (s *Store) SetCountCallback(cb CountCallback) {
	s.mu.Lock()
	s.onCount = cb
	s.mu.Unlock()
}

// SeedCounts primes the counters from a post row fetched by the feed, so
// the card shows something before the first reconciliation lands.
func (s *Store) SeedCounts(p *models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state.setCount(KindLike, p.LikesCount)
	s.state.setCount(KindComment, p.CommentsCount)
	s.state.setCount(KindRepost, p.RepostsCount)
	s.state.setCount(KindBookmark, p.BookmarksCount)
}

// State returns a snapshot of the current interaction state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PostID returns the post this store belongs to.
func (s *Store) PostID() string {
	return s.postID
}

// Initialize loads the current user's interaction flags (when signed in)
// and authoritative counts for all four kinds. Each check is independent:
// one failing query is logged and does not abort the others.
func (s *Store) Initialize(ctx context.Context) {
	flags := make(map[Kind]bool)
	if uid, signedIn := s.sess.UserID(); signedIn {
		for _, k := range Kinds {
			n, err := s.gw.Count(ctx, k.Table(), []gateway.Filter{
				gateway.Eq("post_id", s.postID),
				gateway.Eq("user_id", uid),
			})
			if err != nil {
				metrics.GatewayErrors.WithLabelValues("count").Inc()
				logger.Log.Warn("Interaction flag check failed",
					logger.WithPostID(s.postID), zap.String("kind", string(k)), zap.Error(err))
				continue
			}
			flags[k] = n > 0
		}
	}

	counts, errs := s.rec.RecountAll(ctx, s.postID)
	for k, err := range errs {
		logger.Log.Warn("Initial recount failed, keeping seeded value",
			logger.WithPostID(s.postID), zap.String("kind", string(k)), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for k, v := range flags {
		s.state.setFlag(k, v)
	}
	for k, n := range counts {
		s.state.setCount(k, n)
	}
}

// ToggleLike likes or unlikes the post for the current user.
func (s *Store) ToggleLike(ctx context.Context) error {
	return s.toggle(ctx, KindLike)
}

// ToggleRepost reposts or un-reposts the post for the current user.
func (s *Store) ToggleRepost(ctx context.Context) error {
	return s.toggle(ctx, KindRepost)
}

// ToggleBookmark bookmarks or un-bookmarks the post for the current user.
func (s *Store) ToggleBookmark(ctx context.Context) error {
	return s.toggle(ctx, KindBookmark)
}

func (s *Store) toggle(ctx context.Context, k Kind) error {
	uid, signedIn := s.sess.UserID()
	if !signedIn {
		return gateway.ErrAuthRequired
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	active := s.state.flag(k)
	seq := s.issued[k] + 1
	s.issued[k] = seq
	s.mu.Unlock()

	filters := []gateway.Filter{
		gateway.Eq("post_id", s.postID),
		gateway.Eq("user_id", uid),
	}
	var err error
	if active {
		err = s.gw.Delete(ctx, k.Table(), filters)
	} else {
		_, err = s.gw.Insert(ctx, k.Table(), []gateway.Row{{
			"post_id": s.postID,
			"user_id": uid,
		}})
	}
	if err != nil {
		// No optimistic flip survives a failed write
		metrics.GatewayErrors.WithLabelValues("toggle").Inc()
		logger.Log.Error("Toggle write failed, interaction state unchanged",
			logger.WithPostID(s.postID), zap.String("kind", string(k)), zap.Error(err))
		return fmt.Errorf("toggle %s: %w", k, err)
	}

	count, recErr := s.rec.Recount(ctx, s.postID, k)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state.setFlag(k, !active)
	latest := s.issued[k] == seq
	if recErr == nil && latest {
		s.state.setCount(k, count)
	}
	cb := s.onCount
	s.mu.Unlock()

	if recErr != nil {
		logger.Log.Warn("Recount after toggle failed, keeping previous count",
			logger.WithPostID(s.postID), zap.String("kind", string(k)), zap.Error(recErr))
		return nil
	}
	if latest && cb != nil {
		cb(s.postID, k.CountField(), count)
	}
	return nil
}

// Start attaches the realtime subscriptions for this post: counter pushes
// on the posts row are adopted directly, and any change on an interaction
// relation scoped to this post triggers a recount of that kind.
func (s *Store) Start(ctx context.Context) error {
	postSub, err := s.gw.SubscribeChanges(ctx, gateway.TablePosts,
		[]gateway.Filter{gateway.Eq("id", s.postID)}, gateway.MaskUpdate)
	if err != nil {
		return fmt.Errorf("subscribe post updates: %w", err)
	}
	s.addSub(postSub)
	go func() {
		for ev := range postSub.Events() {
			s.ApplyPostUpdate(ev)
		}
	}()

	for _, k := range Kinds {
		sub, err := s.gw.SubscribeChanges(ctx, k.Table(),
			[]gateway.Filter{gateway.Eq("post_id", s.postID)}, gateway.MaskAll)
		if err != nil {
			s.Close()
			return fmt.Errorf("subscribe %s changes: %w", k.Table(), err)
		}
		s.addSub(sub)
		kind := k
		go func() {
			for range sub.Events() {
				s.reconcile(ctx, kind)
			}
		}()
	}
	return nil
}

// ApplyPostUpdate adopts counter values pushed on the posts row. This is
// the one path where a pushed value is used without an independent recount.
func (s *Store) ApplyPostUpdate(ev gateway.ChangeEvent) {
	if ev.After == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, k := range Kinds {
		if n, ok := gateway.IntField(ev.After, k.CountField()); ok {
			s.state.setCount(k, n)
		}
	}
}

// reconcile replaces the kind's counter with a fresh authoritative count.
func (s *Store) reconcile(ctx context.Context, k Kind) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	seq := s.issued[k] + 1
	s.issued[k] = seq
	s.mu.Unlock()

	count, err := s.rec.Recount(ctx, s.postID, k)
	if err != nil {
		logger.Log.Warn("Realtime-triggered recount failed",
			logger.WithPostID(s.postID), zap.String("kind", string(k)), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.issued[k] != seq {
		return
	}
	s.state.setCount(k, count)
}

func (s *Store) addSub(sub gateway.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.Close()
		return
	}
	s.subs = append(s.subs, sub)
}

// Close tears down the subscriptions and marks the store dead. In-flight
// results resolving after Close are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
