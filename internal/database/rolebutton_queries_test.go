package database

import (
	"context"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/phoenix/internal/models"
)

func generateRoleButtonInterface(name string) *models.RoleButtonInterface {
	iface := &models.RoleButtonInterface{
		GuildID:   testGuildID,
		Name:      name,
		ChannelID: 1009624603942981100,
		MessageID: 1009624603942981200,
	}
	iface.SetRoleIDs([]snowflake.ID{11, 12})
	return iface
}

func TestCreateRoleButtonInterface_Success(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := setupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	iface := generateRoleButtonInterface("pronouns")

	require.NoError(t, db.CreateRoleButtonInterface(ctx, iface))
	assert.NotZero(t, iface.ID)
	assert.NotZero(t, iface.CreatedAt)

	stored, err := db.GetRoleButtonInterface(ctx, testGuildID, "pronouns")
	require.NoError(t, err)
	assert.Equal(t, iface.MessageID, stored.MessageID)
	assert.Equal(t, []snowflake.ID{11, 12}, stored.RoleIDs())
}

func TestCreateRoleButtonInterface_Duplicate(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := setupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, db.CreateRoleButtonInterface(ctx, generateRoleButtonInterface("pronouns")))

	err = db.CreateRoleButtonInterface(ctx, generateRoleButtonInterface("pronouns"))
	assert.ErrorIs(t, err, ErrUniqueViolation)
}

func TestGetRoleButtonInterface_NotFound(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := setupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	iface, err := db.GetRoleButtonInterface(ctx, testGuildID, "missing")

	assert.Nil(t, iface)
	assert.ErrorIs(t, err, ErrRoleButtonInterfaceNotFound)
}

func TestUpdateRoleButtonRoles(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := setupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	iface := generateRoleButtonInterface("pronouns")
	require.NoError(t, db.CreateRoleButtonInterface(ctx, iface))

	iface.SetRoleIDs([]snowflake.ID{13})
	require.NoError(t, db.UpdateRoleButtonRoles(ctx, iface))

	all, err := db.GetRoleButtonInterfaces(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []snowflake.ID{13}, all[0].RoleIDs())

	missing := generateRoleButtonInterface("missing")
	assert.ErrorIs(t, db.UpdateRoleButtonRoles(ctx, missing), ErrRoleButtonInterfaceNotFound)
}

func TestDeleteRoleButtonInterface(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := setupTestDB(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, db.CreateRoleButtonInterface(ctx, generateRoleButtonInterface("pronouns")))

	require.NoError(t, db.DeleteRoleButtonInterface(ctx, testGuildID, "pronouns"))
	require.NoError(t, db.DeleteRoleButtonInterface(ctx, testGuildID, "pronouns"))

	all, err := db.GetRoleButtonInterfaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
