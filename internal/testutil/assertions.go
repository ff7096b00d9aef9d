package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/models"
)

// AssertTeamEqual compares the persisted fields of two teams.
func AssertTeamEqual(t *testing.T, expected, actual *models.Team) {
	t.Helper()

	assert.Equal(t, expected.ID, actual.ID, "ID should match")
	assert.Equal(t, expected.GuildID, actual.GuildID, "GuildID should match")
	assert.Equal(t, expected.Name, actual.Name, "Name should match")
	assert.Equal(t, expected.LeadRoleID, actual.LeadRoleID, "LeadRoleID should match")
	assert.Equal(t, expected.MemberRoleID, actual.MemberRoleID, "MemberRoleID should match")
}

// DecodeMessage decodes a recorded message or followup request.
func DecodeMessage(t *testing.T, req RecordedRequest) *discord.MessageSend {
	t.Helper()

	var msg discord.MessageSend
	require.NoError(t, req.DecodeJSON(&msg), "request body should be a message")
	return &msg
}

// DecodeInteractionResponse decodes a recorded interaction callback whose data is a message.
func DecodeInteractionResponse(t *testing.T, req RecordedRequest) (discord.InteractionResponseType, *discord.MessageSend) {
	t.Helper()

	var resp struct {
		Type discord.InteractionResponseType `json:"type"`
		Data *discord.MessageSend            `json:"data"`
	}
	require.NoError(t, req.DecodeJSON(&resp), "request body should be an interaction response")
	return resp.Type, resp.Data
}

// AssertEphemeral checks that msg is only visible to the invoker.
func AssertEphemeral(t *testing.T, msg *discord.MessageSend) {
	t.Helper()

	require.NotNil(t, msg)
	assert.Equal(t, discord.MessageFlagEphemeral, msg.Flags&discord.MessageFlagEphemeral, "message should be ephemeral")
}
