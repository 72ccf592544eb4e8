package search

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

	"github.com/trailtalk/trailtalk/internal/gateway/gormgw"
	"github.com/trailtalk/trailtalk/internal/models"
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

func seedDirectory(t *testing.T, db *gorm.DB) {
	profiles := []models.Profile{
		{DisplayName: "Morgan Hill", Username: "mhill", StudentID: "S100200", UserType: models.UserTypeStudent},
		{DisplayName: "Morgan Price", Username: "mprice", StudentID: "S300400", UserType: models.UserTypeFaculty},
		{DisplayName: "Jamie Fox", Username: "jfox", StudentID: "S500600", UserType: models.UserTypeStudent},
	}
	for i := range profiles {
		require.NoError(t, db.Create(&profiles[i]).Error)
	}
	communities := []models.Community{
		{Name: "Morgan Society", Description: "alumni group"},
		{Name: "Chess Club", Description: "weekly games"},
	}
	for i := range communities {
		require.NoError(t, db.Create(&communities[i]).Error)
	}
}

func TestSearchMatchesUsersAndCommunities(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	svc := NewService(gormgw.New(db, nil))
	defer svc.Close()

	res := svc.Search(context.Background(), "morgan")
	assert.Len(t, res.Users, 2)
	require.Len(t, res.Communities, 1)
	assert.Equal(t, "Morgan Society", res.Communities[0].Name)
}

func TestSearchByStudentID(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	svc := NewService(gormgw.New(db, nil))
	defer svc.Close()

	res := svc.Search(context.Background(), "S500600")
	require.Len(t, res.Users, 1)
	assert.Equal(t, "Jamie Fox", res.Users[0].Name)
}

func TestCategoryFilter(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	svc := NewService(gormgw.New(db, nil))
	defer svc.Close()

	svc.SetCategory(CategoryFaculty)
	res := svc.Search(context.Background(), "morgan")
	require.Len(t, res.Users, 1)
	assert.Equal(t, "Morgan Price", res.Users[0].Name)

	svc.SetCategory(CategoryStudents)
	res = svc.Search(context.Background(), "morgan")
	require.Len(t, res.Users, 1)
	assert.Equal(t, "Morgan Hill", res.Users[0].Name)
}

func TestDebounceCoalescesKeystrokes(t *testing.T) {
	db := setupTestDB(t)
	seedDirectory(t, db)
	svc := NewService(gormgw.New(db, nil))
	defer svc.Close()
	svc.debounce = 30 * time.Millisecond

	results := make(chan Results, 4)
	svc.SetResultsCallback(func(r Results) { results <- r })

	ctx := context.Background()
	svc.SetQuery(ctx, "m")
	svc.SetQuery(ctx, "mo")
	svc.SetQuery(ctx, "morgan")

	select {
	case r := <-results:
		assert.Equal(t, "morgan", r.Query, "only the settled query runs")
		assert.Len(t, r.Users, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the debounced search to fire")
	}

	select {
	case r := <-results:
		t.Fatalf("intermediate keystroke produced results: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmptyQueryClearsResults(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(gormgw.New(db, nil))
	defer svc.Close()

	results := make(chan Results, 1)
	svc.SetResultsCallback(func(r Results) { results <- r })

	svc.SetQuery(context.Background(), "   ")

	select {
	case r := <-results:
		assert.Empty(t, r.Query)
		assert.Empty(t, r.Users)
		assert.Empty(t, r.Communities)
	case <-time.After(time.Second):
		t.Fatal("expected an immediate clear for the empty query")
	}
}
