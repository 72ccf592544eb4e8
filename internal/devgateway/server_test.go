package devgateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/gateway/rest"
	"github.com/trailtalk/trailtalk/internal/models"
)

var testSecret = []byte("test-secret")

func setupServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	srv := httptest.NewServer(New(db, testSecret).Handler())
	t.Cleanup(srv.Close)
	return srv, db
}

func signedClient(t *testing.T, srv *httptest.Server, userID string) *rest.Client {
	client := rest.NewClient(srv.URL)
	t.Cleanup(client.Close)

	token, err := client.MintToken(context.Background(), userID)
	require.NoError(t, err)
	client.SetToken(token)
	return client
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()
	client := signedClient(t, srv, "u1")

	rows, err := client.Insert(ctx, gateway.TablePosts, []gateway.Row{{
		"author_id": "u1",
		"content":   "hello campus",
		"category":  models.CategoryGeneral,
	}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	postID := gateway.StringField(rows[0], "id")
	assert.NotEmpty(t, postID)

	fetched, err := client.Select(ctx, gateway.Query{
		Table:   gateway.TablePosts,
		Filters: []gateway.Filter{gateway.Eq("id", postID)},
	})
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "hello campus", gateway.StringField(fetched[0], "content"))
}

func TestInsertWithoutTokenIsUnauthorized(t *testing.T) {
	srv, _ := setupServer(t)
	client := rest.NewClient(srv.URL)
	defer client.Close()

	_, err := client.Insert(context.Background(), gateway.TablePostLikes, []gateway.Row{{
		"post_id": "p1",
		"user_id": "u1",
	}})
	assert.ErrorIs(t, err, gateway.ErrAuthRequired)
}

func TestDeleteOtherUsersCommentIsForbidden(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()

	owner := signedClient(t, srv, "u1")
	rows, err := owner.Insert(ctx, gateway.TableComments, []gateway.Row{{
		"post_id": "p1",
		"user_id": "u1",
		"content": "mine",
	}})
	require.NoError(t, err)
	commentID := gateway.StringField(rows[0], "id")

	intruder := signedClient(t, srv, "u2")
	err = intruder.Delete(ctx, gateway.TableComments, []gateway.Filter{gateway.Eq("id", commentID)})
	assert.ErrorIs(t, err, gateway.ErrPermissionDenied)

	n, err := owner.Count(ctx, gateway.TableComments, []gateway.Filter{gateway.Eq("id", commentID)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCountOverWire(t *testing.T) {
	srv, db := setupServer(t)
	ctx := context.Background()

	post := models.Post{AuthorID: "u1", Content: "counted"}
	require.NoError(t, db.Create(&post).Error)
	for _, uid := range []string{"a", "b"} {
		require.NoError(t, db.Create(&models.PostLike{PostID: post.ID, UserID: uid}).Error)
	}

	client := rest.NewClient(srv.URL)
	defer client.Close()
	n, err := client.Count(ctx, gateway.TablePostLikes, []gateway.Filter{gateway.Eq("post_id", post.ID)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTokenEndpointRejectsEmptyUser(t *testing.T) {
	srv, _ := setupServer(t)
	client := rest.NewClient(srv.URL)
	defer client.Close()

	_, err := client.MintToken(context.Background(), "")
	assert.Error(t, err)
}

func TestRealtimeSubscriptionOverWebsocket(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()

	listener := rest.NewClient(srv.URL)
	defer listener.Close()
	sub, err := listener.SubscribeChanges(ctx, gateway.TableComments,
		[]gateway.Filter{gateway.Eq("post_id", "p1")}, gateway.MaskAll)
	require.NoError(t, err)
	defer sub.Close()

	writer := signedClient(t, srv, "u1")
	_, err = writer.Insert(ctx, gateway.TableComments, []gateway.Row{{
		"post_id": "p1",
		"user_id": "u1",
		"content": "pushed",
	}})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, gateway.EventInsert, ev.Type)
		assert.Equal(t, gateway.TableComments, ev.Table)
		assert.Equal(t, "pushed", gateway.StringField(ev.After, "content"))
	case <-time.After(3 * time.Second):
		t.Fatal("expected the insert to arrive over the websocket")
	}
}

func TestRealtimeUnsubscribeStopsEvents(t *testing.T) {
	srv, _ := setupServer(t)
	ctx := context.Background()

	listener := rest.NewClient(srv.URL)
	defer listener.Close()
	sub, err := listener.SubscribeChanges(ctx, gateway.TablePostLikes, nil, gateway.MaskAll)
	require.NoError(t, err)
	sub.Close()

	writer := signedClient(t, srv, "u1")
	_, err = writer.Insert(ctx, gateway.TablePostLikes, []gateway.Row{{
		"post_id": "p1",
		"user_id": "u1",
	}})
	require.NoError(t, err)

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "a closed subscription's channel must be closed")
	case <-time.After(500 * time.Millisecond):
	}
}
