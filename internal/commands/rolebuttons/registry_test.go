package rolebuttons

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/phoenix/internal/models"
)

func newInterface(guildID snowflake.ID, name string, messageID snowflake.ID, roles ...snowflake.ID) *models.RoleButtonInterface {
	iface := &models.RoleButtonInterface{GuildID: guildID, Name: name, ChannelID: 1, MessageID: messageID}
	iface.SetRoleIDs(roles)
	return iface
}

func TestRegistry_PutGet(t *testing.T) {
	r := NewRegistry()
	iface := newInterface(10, "colors", 100, 1, 2)
	r.Put(iface)

	got, ok := r.Get(10, "colors")
	require.True(t, ok)
	assert.Equal(t, []snowflake.ID{1, 2}, got.RoleIDs())

	_, ok = r.Get(11, "colors")
	assert.False(t, ok, "names are scoped to their guild")

	byMessage, ok := r.ByMessage(100)
	require.True(t, ok)
	assert.Equal(t, "colors", byMessage.Name)
}

func TestRegistry_CopiesEntries(t *testing.T) {
	r := NewRegistry()
	iface := newInterface(10, "colors", 100, 1)
	r.Put(iface)

	iface.SetRoleIDs([]snowflake.ID{1, 2, 3})
	got, _ := r.Get(10, "colors")
	assert.Equal(t, []snowflake.ID{1}, got.RoleIDs(), "later changes to the caller's record are not seen")

	got.Roles[0] = 99
	again, _ := r.Get(10, "colors")
	assert.Equal(t, []snowflake.ID{1}, again.RoleIDs(), "returned records are private copies")
}

func TestRegistry_PutReplacesMessageIndex(t *testing.T) {
	r := NewRegistry()
	r.Put(newInterface(10, "colors", 100))
	r.Put(newInterface(10, "colors", 200))

	_, ok := r.ByMessage(100)
	assert.False(t, ok)
	_, ok = r.ByMessage(200)
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.Put(newInterface(10, "colors", 100))
	r.Put(newInterface(10, "pronouns", 101))

	r.Remove(10, "colors")
	r.Remove(10, "missing")

	_, ok := r.Get(10, "colors")
	assert.False(t, ok)
	_, ok = r.ByMessage(100)
	assert.False(t, ok)
	assert.Equal(t, []string{"pronouns"}, r.Names(10))
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	for i, name := range []string{"pronouns", "colors", "games"} {
		r.Put(newInterface(10, name, snowflake.ID(100+i)))
	}
	r.Put(newInterface(11, "other", 200))

	assert.Equal(t, []string{"colors", "games", "pronouns"}, r.Names(10))
	assert.Empty(t, r.Names(12))
}
