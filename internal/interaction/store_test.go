package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/gateway/gormgw"
	"github.com/trailtalk/trailtalk/internal/models"
	"github.com/trailtalk/trailtalk/internal/session"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type testUser struct{ id string }

func (u testUser) UserID() (string, bool) { return u.id, u.id != "" }

func createPost(t *testing.T, db *gorm.DB, authorID string) models.Post {
	p := models.Post{AuthorID: authorID, Content: "test post"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// flakyGateway injects write failures while delegating everything else.
type flakyGateway struct {
	gateway.Gateway

	mu         sync.Mutex
	failInsert bool
	failCount  bool
}

func (f *flakyGateway) Insert(ctx context.Context, table string, rows []gateway.Row) ([]gateway.Row, error) {
	f.mu.Lock()
	fail := f.failInsert
	f.mu.Unlock()
	if fail {
		return nil, errors.New("injected insert failure")
	}
	return f.Gateway.Insert(ctx, table, rows)
}

func (f *flakyGateway) Count(ctx context.Context, table string, filters []gateway.Filter) (int64, error) {
	f.mu.Lock()
	fail := f.failCount
	f.mu.Unlock()
	if fail {
		return 0, errors.New("injected count failure")
	}
	return f.Gateway.Count(ctx, table, filters)
}

func (f *flakyGateway) set(insert, count bool) {
	f.mu.Lock()
	f.failInsert = insert
	f.failCount = count
	f.mu.Unlock()
}

func TestToggleLikeRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	gw := gormgw.New(db, testUser{id: "u1"})
	store := NewStore(gw, session.NewSignedIn("u1"), post.ID)
	defer store.Close()

	require.NoError(t, store.ToggleLike(ctx))
	st := store.State()
	assert.True(t, st.IsLiked)
	assert.Equal(t, int64(1), st.LikesCount)

	require.NoError(t, store.ToggleLike(ctx))
	st = store.State()
	assert.False(t, st.IsLiked)
	assert.Equal(t, int64(0), st.LikesCount, "count must return to zero, never below")
}

func TestToggleRequiresSignIn(t *testing.T) {
	db := setupTestDB(t)
	post := createPost(t, db, "author")
	gw := gormgw.New(db, nil)
	store := NewStore(gw, session.New(), post.ID)
	defer store.Close()

	err := store.ToggleLike(context.Background())
	assert.ErrorIs(t, err, gateway.ErrAuthRequired)
	assert.Equal(t, State{}, store.State(), "signed-out toggle must not touch state")
}

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	db := setupTestDB(t)
	post := createPost(t, db, "author")
	flaky := &flakyGateway{Gateway: gormgw.New(db, testUser{id: "u1"})}
	store := NewStore(flaky, session.NewSignedIn("u1"), post.ID)
	defer store.Close()

	flaky.set(true, false)
	err := store.ToggleBookmark(context.Background())
	require.Error(t, err)

	st := store.State()
	assert.False(t, st.IsBookmarked, "no optimistic flip may survive a failed write")
	assert.Equal(t, int64(0), st.BookmarksCount)
}

func TestFailedRecountKeepsFlagAndPreviousCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	flaky := &flakyGateway{Gateway: gormgw.New(db, testUser{id: "u1"})}
	store := NewStore(flaky, session.NewSignedIn("u1"), post.ID)
	defer store.Close()

	store.SeedCounts(&models.Post{RepostsCount: 5})

	flaky.set(false, true)
	require.NoError(t, store.ToggleRepost(ctx), "a failed recount is not a failed toggle")

	st := store.State()
	assert.True(t, st.IsReposted, "the write succeeded, so the flag flips")
	assert.Equal(t, int64(5), st.RepostsCount, "seeded count survives until a recount lands")
}

func TestCountCallbackFiresOnSuccessfulToggle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	gw := gormgw.New(db, testUser{id: "u1"})
	store := NewStore(gw, session.NewSignedIn("u1"), post.ID)
	defer store.Close()

	type call struct {
		postID, field string
		count         int64
	}
	calls := make(chan call, 1)
	store.SetCountCallback(func(postID, countField string, newCount int64) {
		calls <- call{postID, countField, newCount}
	})

	require.NoError(t, store.ToggleLike(ctx))

	select {
	case c := <-calls:
		assert.Equal(t, post.ID, c.postID)
		assert.Equal(t, "likes_count", c.field)
		assert.Equal(t, int64(1), c.count)
	case <-time.After(time.Second):
		t.Fatal("expected the count callback to fire")
	}
}

func TestInitializeLoadsFlagsAndCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")

	require.NoError(t, db.Create(&models.PostLike{PostID: post.ID, UserID: "u1"}).Error)
	require.NoError(t, db.Create(&models.PostLike{PostID: post.ID, UserID: "u2"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: "u2", Content: "hi"}).Error)
	require.NoError(t, db.Create(&models.Bookmark{PostID: post.ID, UserID: "u1"}).Error)

	gw := gormgw.New(db, testUser{id: "u1"})
	store := NewStore(gw, session.NewSignedIn("u1"), post.ID)
	defer store.Close()
	store.Initialize(ctx)

	st := store.State()
	assert.True(t, st.IsLiked)
	assert.False(t, st.IsReposted)
	assert.True(t, st.IsBookmarked)
	assert.False(t, st.HasCommented, "another user's comment is not ours")
	assert.Equal(t, int64(2), st.LikesCount)
	assert.Equal(t, int64(1), st.CommentsCount)
	assert.Equal(t, int64(0), st.RepostsCount)
	assert.Equal(t, int64(1), st.BookmarksCount)
}

func TestRealtimeInteractionConvergence(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")

	base := gormgw.New(db, testUser{id: "u1"})
	store := NewStore(base, session.NewSignedIn("u1"), post.ID)
	defer store.Close()
	store.Initialize(ctx)
	require.NoError(t, store.Start(ctx))

	// Another user likes the post through a gateway sharing the broker
	other := base.WithUser(testUser{id: "u2"})
	_, err := other.Insert(ctx, gateway.TablePostLikes, []gateway.Row{{
		"post_id": post.ID,
		"user_id": "u2",
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.State().LikesCount == 1
	}, 2*time.Second, 10*time.Millisecond, "pushed like must converge into the counter")

	assert.False(t, store.State().IsLiked, "someone else's like never flips our flag")
}

func TestPostUpdatePushAdoptsCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	gw := gormgw.New(db, testUser{id: "u1"})
	store := NewStore(gw, session.NewSignedIn("u1"), post.ID)
	defer store.Close()
	require.NoError(t, store.Start(ctx))

	gw.Publish(gateway.ChangeEvent{
		Type:  gateway.EventUpdate,
		Table: gateway.TablePosts,
		After: gateway.Row{
			"id":          post.ID,
			"likes_count": float64(12),
		},
	})

	require.Eventually(t, func() bool {
		return store.State().LikesCount == 12
	}, 2*time.Second, 10*time.Millisecond, "pushed counter values are adopted as-is")
}

func TestCloseDiscardsLateResults(t *testing.T) {
	db := setupTestDB(t)
	post := createPost(t, db, "author")
	gw := gormgw.New(db, testUser{id: "u1"})
	store := NewStore(gw, session.NewSignedIn("u1"), post.ID)

	store.Close()
	store.Initialize(context.Background())
	assert.Equal(t, State{}, store.State(), "a closed store never mutates")

	require.NoError(t, store.ToggleLike(context.Background()))
	assert.Equal(t, State{}, store.State())
}
