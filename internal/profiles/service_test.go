package profiles

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trailtalk/trailtalk/internal/gateway"
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

func TestGetReturnsProfile(t *testing.T) {
	db := setupTestDB(t)
	p := models.Profile{DisplayName: "Alice Smith", Username: "alice"}
	require.NoError(t, db.Create(&p).Error)

	svc := NewService(gormgw.New(db, nil), nil)
	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.DisplayName)
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(gormgw.New(db, nil), nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestGetByIDsSkipsMissing(t *testing.T) {
	db := setupTestDB(t)
	a := models.Profile{DisplayName: "Alice Smith", Username: "alice"}
	b := models.Profile{DisplayName: "Bob Jones", Username: "bob"}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	svc := NewService(gormgw.New(db, nil), nil)
	got, err := svc.GetByIDs(context.Background(), []string{a.ID, "missing", b.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Alice Smith", got[a.ID].DisplayName)
	assert.Equal(t, "Bob Jones", got[b.ID].DisplayName)
	assert.NotContains(t, got, "missing")
}
