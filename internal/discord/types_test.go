package discord

import (
	"encoding/json"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commandPayload = `{
	"id": "1100",
	"application_id": "1",
	"type": 2,
	"token": "tok",
	"guild_id": "2",
	"channel_id": "3",
	"member": {
		"user": {"id": "4", "username": "alice"},
		"roles": ["10"],
		"permissions": "8"
	},
	"data": {
		"id": "55",
		"name": "team",
		"options": [{
			"name": "members",
			"type": 2,
			"options": [{
				"name": "add",
				"type": 1,
				"options": [
					{"name": "user", "type": 6, "value": "4"},
					{"name": "team", "type": 3, "value": "Red", "focused": true}
				]
			}]
		}],
		"resolved": {"users": {"4": {"id": "4", "username": "alice"}}}
	}
}`

func TestInteraction_Decode(t *testing.T) {
	var i Interaction
	require.NoError(t, json.Unmarshal([]byte(commandPayload), &i))

	assert.Equal(t, InteractionTypeApplicationCommand, i.Type)
	assert.Equal(t, snowflake.ID(2), i.GuildID)
	assert.True(t, i.InGuild())
	assert.Equal(t, "team members add", i.CommandName())
	assert.Equal(t, snowflake.ID(4), i.Author().ID)
	assert.True(t, i.Member.Permissions.Has(PermissionManageRoles), "administrator implies every permission")
	assert.True(t, i.Member.HasRole(10))
	assert.Contains(t, i.Data.Resolved.Users, snowflake.ID(4))

	opts := i.Options()
	require.Len(t, opts, 2)

	user, ok := FindOption(opts, "user")
	require.True(t, ok)
	id, err := user.IDValue()
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(4), id)

	focused, ok := FocusedOption(opts)
	require.True(t, ok)
	assert.Equal(t, "Red", focused.StringValue())

	_, ok = FindOption(opts, "missing")
	assert.False(t, ok)
}

func TestInteraction_RespondedFlag(t *testing.T) {
	i := &Interaction{}
	assert.False(t, i.Responded())
	i.MarkResponded()
	assert.True(t, i.Responded())
}

func TestInteraction_AuthorFromDM(t *testing.T) {
	i := &Interaction{User: &User{ID: 9, Username: "bob"}}
	assert.False(t, i.InGuild())
	assert.Equal(t, snowflake.ID(9), i.Author().ID)
}

func TestPermissions_JSON(t *testing.T) {
	var p Permissions
	require.NoError(t, json.Unmarshal([]byte(`"268435456"`), &p))
	assert.Equal(t, PermissionManageRoles, p)
	assert.False(t, p.Has(PermissionAdministrator))

	require.NoError(t, json.Unmarshal([]byte(`32`), &p))
	assert.Equal(t, PermissionManageGuild, p)

	out, err := json.Marshal(PermissionAdministrator)
	require.NoError(t, err)
	assert.Equal(t, `"8"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &p))
}

func TestCommandOption_Values(t *testing.T) {
	intOpt := &CommandOption{Name: "n", Type: OptionTypeInteger, Value: json.RawMessage(`12`)}
	n, err := intOpt.IntValue()
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	boolOpt := &CommandOption{Name: "b", Type: OptionTypeBoolean, Value: json.RawMessage(`true`)}
	assert.True(t, boolOpt.BoolValue())

	badID := &CommandOption{Name: "role", Type: OptionTypeRole, Value: json.RawMessage(`"x"`)}
	_, err = badID.IDValue()
	assert.Error(t, err)
}

func TestInteractionData_TextInputValue(t *testing.T) {
	data := &InteractionData{
		Components: []*Component{
			ActionRow(&Component{Type: ComponentTypeTextInput, CustomID: "content", Value: "Pick a role"}),
		},
	}

	v, ok := data.TextInputValue("content")
	require.True(t, ok)
	assert.Equal(t, "Pick a role", v)

	_, ok = data.TextInputValue("other")
	assert.False(t, ok)
}

func TestMessageEdit_ClearsComponents(t *testing.T) {
	empty := []*Component{}
	out, err := json.Marshal(&MessageEdit{Components: &empty})
	require.NoError(t, err)
	assert.JSONEq(t, `{"components": []}`, string(out))

	out, err = json.Marshal(&MessageEdit{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<@4>", (&User{ID: 4}).Mention())
	assert.Equal(t, "<@&5>", RoleMention(5))
	assert.Equal(t, "<#6>", ChannelMention(6))
}

func TestUser_AvatarURL(t *testing.T) {
	assert.Equal(t, "https://cdn.discordapp.com/avatars/4/abc123.png", (&User{ID: 4, Avatar: "abc123"}).AvatarURL())
	assert.Equal(t, "https://cdn.discordapp.com/embed/avatars/0.png", (&User{ID: 4}).AvatarURL())
}
