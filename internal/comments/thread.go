// Package comments owns one post's comment thread: the ordered list, the
// current user's "has commented" flag, and add/delete with best-effort
// reconciliation of the post's denormalized comment counter.
package comments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/logger"
	"github.com/trailtalk/trailtalk/internal/metrics"
	"github.com/trailtalk/trailtalk/internal/models"
	"github.com/trailtalk/trailtalk/internal/session"
)

// LoadState tracks the thread's fetch lifecycle. Loading is re-entered from
// either terminal state by any mutating operation or realtime event.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateLoaded
	StateErrored
)

// Result reports a user-initiated comment mutation. Failures carry the
// error for an alertable message; the list state is untouched on failure.
type Result struct {
	Success bool
	Comment *models.Comment
	Err     error
}

// Thread manages the comment list for a single post.
type Thread struct {
	postID string
	gw     gateway.Gateway
	sess   *session.Session

	mu           sync.Mutex
	comments     []models.Comment
	state        LoadState
	errMsg       string
	hasCommented bool
	closed       bool
	sub          gateway.Subscription
}

// NewThread builds a thread manager for one post.
func NewThread(gw gateway.Gateway, sess *session.Session, postID string) *Thread {
	return &Thread{postID: postID, gw: gw, sess: sess}
}

// Comments returns a snapshot of the thread in created-at order.
func (t *Thread) Comments() []models.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Comment, len(t.comments))
	copy(out, t.comments)
	return out
}

// HasCommented reports whether the current user has a comment on the post.
func (t *Thread) HasCommented() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasCommented
}

// State returns the thread's load state.
func (t *Thread) State() LoadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the last fetch error message, empty when healthy.
func (t *Thread) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// Fetch loads all comments for the post with minimal author profiles
// attached, ordered ascending by creation time, and recomputes the
// has-commented flag. On error the previous list stays available.
func (t *Thread) Fetch(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateLoading
	t.errMsg = ""
	t.mu.Unlock()

	rows, err := t.gw.Select(ctx, gateway.Query{
		Table:   gateway.TableComments,
		Filters: []gateway.Filter{gateway.Eq("post_id", t.postID)},
		OrderBy: "created_at",
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("select").Inc()
		logger.Log.Error("Comment fetch failed, keeping previous list",
			logger.WithPostID(t.postID), zap.Error(err))
		t.mu.Lock()
		if !t.closed {
			t.state = StateErrored
			t.errMsg = "Failed to fetch comments"
		}
		t.mu.Unlock()
		return fmt.Errorf("fetch comments: %w", err)
	}

	var fetched []models.Comment
	if err := gateway.DecodeRows(rows, &fetched); err != nil {
		t.mu.Lock()
		if !t.closed {
			t.state = StateErrored
			t.errMsg = "Failed to fetch comments"
		}
		t.mu.Unlock()
		return fmt.Errorf("fetch comments: %w", err)
	}

	t.attachAuthors(ctx, fetched)

	uid, signedIn := t.sess.UserID()
	has := false
	if signedIn {
		for _, c := range fetched {
			if c.UserID == uid {
				has = true
				break
			}
		}
	}

	t.mu.Lock()
	if !t.closed {
		t.comments = fetched
		t.state = StateLoaded
		t.hasCommented = has
	}
	t.mu.Unlock()
	return nil
}

// attachAuthors joins minimal profile fields onto non-anonymous comments.
// A failed profile fetch degrades the display, never the thread.
func (t *Thread) attachAuthors(ctx context.Context, list []models.Comment) {
	idSet := make(map[string]struct{})
	for _, c := range list {
		if !c.IsAnonymous && c.UserID != "" {
			idSet[c.UserID] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	rows, err := t.gw.Select(ctx, gateway.Query{
		Table:   gateway.TableProfiles,
		Columns: []string{"id", "display_name", "username", "avatar_url"},
		Filters: []gateway.Filter{gateway.In("id", ids)},
	})
	if err != nil {
		logger.Log.Warn("Comment author fetch failed",
			logger.WithPostID(t.postID), zap.Error(err))
		return
	}
	var profiles []models.Profile
	if err := gateway.DecodeRows(rows, &profiles); err != nil {
		logger.Log.Warn("Comment author decode failed", zap.Error(err))
		return
	}
	byID := make(map[string]*models.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	for i := range list {
		if !list[i].IsAnonymous {
			list[i].Author = byID[list[i].UserID]
		}
	}
}

// Add inserts a comment, opportunistically bumps the post's denormalized
// comment counter, refetches the thread, and marks the user as having
// commented. The signed-in check is duplicated here defensively even though
// the gateway policy would reject the insert anyway.
func (t *Thread) Add(ctx context.Context, content string, isAnonymous bool, anonymousName string) Result {
	if strings.TrimSpace(content) == "" {
		return Result{Err: fmt.Errorf("comment content must not be empty")}
	}
	uid, signedIn := t.sess.UserID()
	if !signedIn {
		return Result{Err: gateway.ErrAuthRequired}
	}
	if isAnonymous && anonymousName == "" {
		anonymousName = models.DefaultAnonymousName
	}

	rows, err := t.gw.Insert(ctx, gateway.TableComments, []gateway.Row{{
		"post_id":        t.postID,
		"user_id":        uid,
		"content":        content,
		"is_anonymous":   isAnonymous,
		"anonymous_name": anonymousName,
	}})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("insert").Inc()
		logger.Log.Error("Add comment failed",
			logger.WithPostID(t.postID), logger.WithUserID(uid), zap.Error(err))
		return Result{Err: fmt.Errorf("add comment: %w", err)}
	}

	var inserted models.Comment
	if len(rows) > 0 {
		if err := gateway.Decode(rows[0], &inserted); err != nil {
			logger.Log.Warn("Inserted comment decode failed", zap.Error(err))
		}
	}

	t.bumpCommentCount(ctx, +1)

	if err := t.Fetch(ctx); err != nil {
		logger.Log.Warn("Refetch after add failed", logger.WithPostID(t.postID), zap.Error(err))
	}

	t.mu.Lock()
	if !t.closed {
		t.hasCommented = true
	}
	t.mu.Unlock()

	return Result{Success: true, Comment: &inserted}
}

// Delete removes a comment. Ownership is enforced by the gateway's access
// policy, not here: a rejection surfaces as a failed result and the list is
// left unchanged. An id that matches nothing is a silent no-op that still
// decrements the denormalized counter; the next authoritative recount
// corrects it.
func (t *Thread) Delete(ctx context.Context, commentID string) Result {
	err := t.gw.Delete(ctx, gateway.TableComments,
		[]gateway.Filter{gateway.Eq("id", commentID)})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("delete").Inc()
		logger.Log.Error("Delete comment failed",
			logger.WithPostID(t.postID), zap.String("comment_id", commentID), zap.Error(err))
		return Result{Err: fmt.Errorf("delete comment: %w", err)}
	}

	t.bumpCommentCount(ctx, -1)

	if err := t.Fetch(ctx); err != nil {
		logger.Log.Warn("Refetch after delete failed", logger.WithPostID(t.postID), zap.Error(err))
	}
	return Result{Success: true}
}

// bumpCommentCount patches the post's denormalized comments_count with a
// read-current-then-write-new update, floored at zero. It is best-effort:
// the write is not atomic, may lose against a concurrent writer, and any
// failure is logged and swallowed. The authoritative value always comes
// from counting the comments relation.
func (t *Thread) bumpCommentCount(ctx context.Context, change int64) {
	rows, err := t.gw.Select(ctx, gateway.Query{
		Table:   gateway.TablePosts,
		Columns: []string{"id", "comments_count"},
		Filters: []gateway.Filter{gateway.Eq("id", t.postID)},
		Limit:   1,
	})
	if err != nil || len(rows) == 0 {
		logger.Log.Warn("Comment counter read failed", logger.WithPostID(t.postID), zap.Error(err))
		return
	}
	current, _ := gateway.IntField(rows[0], "comments_count")
	newCount := current + change
	if newCount < 0 {
		newCount = 0
	}
	err = t.gw.Update(ctx, gateway.TablePosts,
		gateway.Row{"comments_count": newCount},
		[]gateway.Filter{gateway.Eq("id", t.postID)})
	if err != nil {
		logger.Log.Warn("Comment counter update failed",
			logger.WithPostID(t.postID), zap.Int64("count", newCount), zap.Error(err))
	}
}

// Start subscribes to all comment changes scoped to this post. Any event
// refetches the thread; the has-commented flag is additionally updated from
// the event payload so it does not wait on the refetch.
func (t *Thread) Start(ctx context.Context) error {
	sub, err := t.gw.SubscribeChanges(ctx, gateway.TableComments,
		[]gateway.Filter{gateway.Eq("post_id", t.postID)}, gateway.MaskAll)
	if err != nil {
		return fmt.Errorf("subscribe comments: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		sub.Close()
		return nil
	}
	t.sub = sub
	t.mu.Unlock()

	go func() {
		for ev := range sub.Events() {
			t.applyEvent(ev)
			if err := t.Fetch(ctx); err != nil {
				logger.Log.Warn("Realtime comment refetch failed",
					logger.WithPostID(t.postID), zap.Error(err))
			}
		}
	}()
	return nil
}

// applyEvent updates the has-commented flag directly from the payload.
func (t *Thread) applyEvent(ev gateway.ChangeEvent) {
	uid, signedIn := t.sess.UserID()
	if !signedIn {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	switch ev.Type {
	case gateway.EventInsert:
		if gateway.StringField(ev.After, "user_id") == uid {
			t.hasCommented = true
		}
	case gateway.EventDelete:
		if gateway.StringField(ev.Before, "user_id") != uid {
			return
		}
		// Check the cached list for another comment by this user; the
		// refetch that follows settles any disagreement.
		deletedID := gateway.StringField(ev.Before, "id")
		still := false
		for _, c := range t.comments {
			if c.ID != deletedID && c.UserID == uid {
				still = true
				break
			}
		}
		t.hasCommented = still
	}
}

// Close unsubscribes and marks the thread dead; in-flight fetches resolving
// afterwards are discarded.
func (t *Thread) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}
