package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/internal/pkg/database"
	"github.com/digiworld/backoffice/internal/pkg/database/dbtest"
	"github.com/digiworld/backoffice/internal/pkg/env"
)

func TestSeedAdminOnlyOnce(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	created, err := database.SeedAdmin(ctx, db, "owner@digiworld.test", "initial-secret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = database.SeedAdmin(ctx, db, "other@digiworld.test", "another-secret")
	require.NoError(t, err)
	assert.False(t, created)

	var admins []models.Admin
	require.NoError(t, db.Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "owner@digiworld.test", admins[0].Email)
}

func TestSeedAdminSkipsWithoutCredentials(t *testing.T) {
	db := dbtest.Open(t)

	created, err := database.SeedAdmin(context.Background(), db, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDSNUsesUTC(t *testing.T) {
	env.Env = map[string]string{
		"DB_USER":     "app",
		"DB_PASSWORD": "pw",
		"DB_HOST":     "db",
		"DB_NAME":     "backoffice",
	}
	t.Cleanup(func() { env.Env = nil })

	assert.Equal(t, "app:pw@tcp(db:3306)/backoffice?charset=utf8mb4&parseTime=True&loc=UTC", database.DSN())
}
