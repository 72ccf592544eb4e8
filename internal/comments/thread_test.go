package comments

import (
	"context"
	"fmt"
	"strings"
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

func TestFetchOrdersAscendingAndAttachesAuthors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")

	alice := models.Profile{DisplayName: "Alice Smith", Username: "alice"}
	require.NoError(t, db.Create(&alice).Error)

	now := time.Now()
	require.NoError(t, db.Create(&models.Comment{
		PostID: post.ID, UserID: alice.ID, Content: "first", CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&models.Comment{
		PostID: post.ID, UserID: "ghost", Content: "second",
		IsAnonymous: true, CreatedAt: now.Add(time.Minute),
	}).Error)

	thread := NewThread(gormgw.New(db, nil), session.New(), post.ID)
	defer thread.Close()
	require.NoError(t, thread.Fetch(ctx))
	assert.Equal(t, StateLoaded, thread.State())

	list := thread.Comments()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Content)
	assert.Equal(t, "second", list[1].Content)

	require.NotNil(t, list[0].Author)
	assert.Equal(t, "Alice Smith", list[0].DisplayName())

	assert.Nil(t, list[1].Author, "anonymous comments never expose the author profile")
	assert.Equal(t, models.DefaultAnonymousName, list[1].DisplayName())
}

func TestAddRejectsEmptyContent(t *testing.T) {
	db := setupTestDB(t)
	post := createPost(t, db, "author")
	thread := NewThread(gormgw.New(db, testUser{id: "u1"}), session.NewSignedIn("u1"), post.ID)
	defer thread.Close()

	res := thread.Add(context.Background(), "   ", false, "")
	assert.Error(t, res.Err)
	assert.False(t, res.Success)
}

func TestAddRequiresSignIn(t *testing.T) {
	db := setupTestDB(t)
	post := createPost(t, db, "author")
	thread := NewThread(gormgw.New(db, nil), session.New(), post.ID)
	defer thread.Close()

	res := thread.Add(context.Background(), "hello", false, "")
	assert.ErrorIs(t, res.Err, gateway.ErrAuthRequired)
}

func TestAddInsertsAndBumpsCounter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	thread := NewThread(gormgw.New(db, testUser{id: "u1"}), session.NewSignedIn("u1"), post.ID)
	defer thread.Close()

	res := thread.Add(ctx, "hello there", false, "")
	require.NoError(t, res.Err)
	require.True(t, res.Success)
	require.NotNil(t, res.Comment)
	assert.NotEmpty(t, res.Comment.ID)

	assert.True(t, thread.HasCommented())
	require.Len(t, thread.Comments(), 1)

	var stored models.Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	assert.Equal(t, int64(1), stored.CommentsCount, "the denormalized counter is bumped opportunistically")
}

func TestAddAnonymousDefaultsName(t *testing.T) {
	db := setupTestDB(t)
	post := createPost(t, db, "author")
	thread := NewThread(gormgw.New(db, testUser{id: "u1"}), session.NewSignedIn("u1"), post.ID)
	defer thread.Close()

	res := thread.Add(context.Background(), "whisper", true, "")
	require.NoError(t, res.Err)
	assert.Equal(t, models.DefaultAnonymousName, res.Comment.AnonymousName)
	assert.Equal(t, models.DefaultAnonymousName, res.Comment.DisplayName())
}

func TestDeleteByNonOwnerLeavesThreadUnchanged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")

	owner := models.Comment{PostID: post.ID, UserID: "u1", Content: "mine"}
	require.NoError(t, db.Create(&owner).Error)

	thread := NewThread(gormgw.New(db, testUser{id: "u2"}), session.NewSignedIn("u2"), post.ID)
	defer thread.Close()
	require.NoError(t, thread.Fetch(ctx))

	res := thread.Delete(ctx, owner.ID)
	assert.ErrorIs(t, res.Err, gateway.ErrPermissionDenied)
	assert.False(t, res.Success)
	assert.Len(t, thread.Comments(), 1, "a rejected delete leaves the list alone")
}

func TestDeleteByOwnerRemovesAndDecrements(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	thread := NewThread(gormgw.New(db, testUser{id: "u1"}), session.NewSignedIn("u1"), post.ID)
	defer thread.Close()

	res := thread.Add(ctx, "short lived", false, "")
	require.NoError(t, res.Err)

	res = thread.Delete(ctx, res.Comment.ID)
	require.NoError(t, res.Err)
	assert.Empty(t, thread.Comments())
	assert.False(t, thread.HasCommented(), "no comment of ours remains on the post")

	var stored models.Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	assert.Equal(t, int64(0), stored.CommentsCount, "counter is floored at zero")
}

func TestDeleteWithRemainingOwnCommentKeepsHasCommented(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")
	thread := NewThread(gormgw.New(db, testUser{id: "u1"}), session.NewSignedIn("u1"), post.ID)
	defer thread.Close()

	first := thread.Add(ctx, "first of two", false, "")
	require.NoError(t, first.Err)
	second := thread.Add(ctx, "second of two", false, "")
	require.NoError(t, second.Err)

	res := thread.Delete(ctx, first.Comment.ID)
	require.NoError(t, res.Err)
	assert.True(t, thread.HasCommented(), "our other comment is still on the post")

	res = thread.Delete(ctx, second.Comment.ID)
	require.NoError(t, res.Err)
	assert.False(t, thread.HasCommented())
	assert.Empty(t, thread.Comments())
}

func TestRealtimeCommentRefetch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")

	base := gormgw.New(db, testUser{id: "u1"})
	thread := NewThread(base, session.NewSignedIn("u1"), post.ID)
	defer thread.Close()
	require.NoError(t, thread.Fetch(ctx))
	require.NoError(t, thread.Start(ctx))

	other := base.WithUser(testUser{id: "u2"})
	_, err := other.Insert(ctx, gateway.TableComments, []gateway.Row{{
		"post_id": post.ID,
		"user_id": "u2",
		"content": "from elsewhere",
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(thread.Comments()) == 1
	}, 2*time.Second, 10*time.Millisecond, "a pushed insert must refresh the thread")
	assert.False(t, thread.HasCommented(), "another user's comment is not ours")
}

func TestRealtimeOwnInsertSetsHasCommented(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	post := createPost(t, db, "author")

	base := gormgw.New(db, testUser{id: "u1"})
	thread := NewThread(base, session.NewSignedIn("u1"), post.ID)
	defer thread.Close()
	require.NoError(t, thread.Start(ctx))

	// Same user commenting from another device
	_, err := base.Insert(ctx, gateway.TableComments, []gateway.Row{{
		"post_id": post.ID,
		"user_id": "u1",
		"content": "from my other tab",
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return thread.HasCommented()
	}, 2*time.Second, 10*time.Millisecond)
}

// Exercises the incremental flag update against the cached list, before any
// refetch settles it.
func TestDeleteEventRecomputesHasCommentedFromCache(t *testing.T) {
	thread := NewThread(nil, session.NewSignedIn("u1"), "p1")
	defer thread.Close()

	thread.comments = []models.Comment{
		{ID: "c1", PostID: "p1", UserID: "u1", Content: "mine"},
		{ID: "c2", PostID: "p1", UserID: "u2", Content: "theirs"},
	}
	thread.hasCommented = true

	thread.applyEvent(gateway.ChangeEvent{
		Type:   gateway.EventDelete,
		Table:  gateway.TableComments,
		Before: gateway.Row{"id": "c2", "user_id": "u2"},
	})
	assert.True(t, thread.HasCommented(), "another user's delete never clears the flag")

	thread.applyEvent(gateway.ChangeEvent{
		Type:   gateway.EventDelete,
		Table:  gateway.TableComments,
		Before: gateway.Row{"id": "c1", "user_id": "u1"},
	})
	assert.False(t, thread.HasCommented(), "the deleted comment was our only one")
}

func TestDeleteEventKeepsFlagWithAnotherOwnComment(t *testing.T) {
	thread := NewThread(nil, session.NewSignedIn("u1"), "p1")
	defer thread.Close()

	thread.comments = []models.Comment{
		{ID: "c1", PostID: "p1", UserID: "u1", Content: "first"},
		{ID: "c2", PostID: "p1", UserID: "u1", Content: "second"},
	}
	thread.hasCommented = true

	thread.applyEvent(gateway.ChangeEvent{
		Type:   gateway.EventDelete,
		Table:  gateway.TableComments,
		Before: gateway.Row{"id": "c1", "user_id": "u1"},
	})
	assert.True(t, thread.HasCommented(), "a second comment of ours remains in the cached list")
}
