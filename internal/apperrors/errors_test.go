package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsascontentcorner/phoenix/internal/discord"
)

func TestKind_Hierarchy(t *testing.T) {
	tests := []struct {
		kind   Kind
		target Kind
		want   bool
	}{
		{KindTransformation, KindInvalidParameter, true},
		{KindTransformation, KindCheckFailure, true},
		{KindTransformation, KindInternal, true},
		{KindInvalidAuthorization, KindCheckFailure, true},
		{KindInvalidInvocation, KindInternal, true},
		{KindInitialization, KindInternal, true},
		{KindInitialization, KindCheckFailure, false},
		{KindCheckFailure, KindInvalidParameter, false},
		{KindInternal, KindCheckFailure, false},
		{KindUnknown, KindInternal, false},
		{KindUnknown, KindUnknown, true},
		{Kind(99), KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_is_%s", tt.kind, tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.IsA(tt.target))
		})
	}
}

func TestDefaults(t *testing.T) {
	e := Internal()
	assert.Equal(t, "Internal Error", e.Title)
	assert.Equal(t, "an unhandled internal error occurred. if this continues please submit a ticket", e.Content)

	e = InvalidAuthorization()
	assert.Equal(t, "Invalid Authorization", e.Title)
	assert.Equal(t, "```\nYou do not have access to run this command\n```", e.Content)

	e = InvalidInvocation()
	assert.Equal(t, "Invalid Invocation", e.Title)

	e = Transformation()
	assert.Equal(t, "Invalid Parameters", e.Title)
	assert.Equal(t, KindTransformation, e.Kind)

	e = CheckFailure()
	assert.Equal(t, "You can not use this command", e.Title)

	e = New(Kind(42))
	assert.Equal(t, KindUnknown, e.Kind)
}

func TestOptions(t *testing.T) {
	cause := errors.New("boom")
	e := Transformation(
		WithTitle("Bad team"),
		WithContentf("Team with name '%s' not found.", "Red"),
		WithCause(cause),
	)

	assert.Equal(t, "Bad team", e.Title)
	assert.Equal(t, "Team with name 'Red' not found.", e.Content)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "boom")

	e = InvalidParameter(WithContent("nope"))
	assert.Equal(t, "nope", e.Content)
}

func TestErrorsIs_FollowsHierarchy(t *testing.T) {
	wrapped := fmt.Errorf("handler failed: %w", Transformation())

	assert.ErrorIs(t, wrapped, ErrTransformation)
	assert.ErrorIs(t, wrapped, ErrInvalidParameter)
	assert.ErrorIs(t, wrapped, ErrCheckFailure)
	assert.ErrorIs(t, wrapped, ErrInternal)
	assert.NotErrorIs(t, wrapped, ErrInvalidAuthorization)
	assert.NotErrorIs(t, wrapped, ErrInitialization)

	assert.NotErrorIs(t, Unknown(errors.New("x")), ErrInternal)
}

func TestAs(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)

	appErr, ok := As(fmt.Errorf("wrap: %w", InvalidInvocation()))
	require.True(t, ok)
	assert.Equal(t, KindInvalidInvocation, appErr.Kind)
}

func TestUnknown(t *testing.T) {
	e := Unknown(errors.New("connection reset"))
	assert.Equal(t, KindUnknown, e.Kind)
	assert.Equal(t, "Unknown Error", e.Title)
	assert.Equal(t, "connection reset", e.Content)

	e = Unknown(nil)
	assert.Equal(t, "an unexpected error occurred", e.Content)
}

func TestNotification(t *testing.T) {
	i := &discord.Interaction{
		GuildID:   2,
		ChannelID: 3,
		Member:    &discord.Member{User: &discord.User{ID: 4}},
		Data: &discord.InteractionData{
			Name:    "team",
			Options: []*discord.CommandOption{{Name: "create", Type: discord.OptionTypeSubCommand}},
		},
	}

	e := InvalidAuthorization(WithContent("{user} can not run {command} in {channel} of {guild}"))
	embed := e.Notification(i)

	assert.Equal(t, "Invalid Authorization", embed.Title)
	assert.Equal(t, "<@4> can not run /team create in <#3> of 2", embed.Description)
	assert.Equal(t, Color, embed.Color)
}

func TestNotification_ContentVerbatim(t *testing.T) {
	e := InvalidAuthorization(WithContent("X"))
	embed := e.Notification(&discord.Interaction{})
	assert.Equal(t, "X", embed.Description)

	e = Internal(WithContent("{user}"))
	assert.Equal(t, "{user}", e.Notification(nil).Description)
}
