package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
	"github.com/parsascontentcorner/phoenix/internal/testutil"
)

func newTestTree(t *testing.T, mutate ...func(*config.Config)) (*dispatch.Tree, *testutil.MockDiscordServer) {
	t.Helper()

	mockServer := testutil.NewMockDiscordServer()
	t.Cleanup(mockServer.Close)

	cfg := testutil.GenerateTestConfig()
	for _, m := range mutate {
		m(cfg)
	}

	logger := zap.NewNop()
	client := discord.NewClient(&cfg.Discord, logger)
	client.SetBaseURL(mockServer.BaseURL())

	return dispatch.NewTree(client, cfg, nil, logger), mockServer
}

func admin() *discord.Member {
	return testutil.GenerateMember(testutil.TestUserID, discord.PermissionAdministrator)
}

func failingCommand(name string, err error) *dispatch.Command {
	return &dispatch.Command{
		Name:        name,
		Description: "fails",
		Handler: func(context.Context, *dispatch.Event) error {
			return err
		},
	}
}

func operatorPath() string {
	return fmt.Sprintf("/channels/%s/messages", testutil.TestOperatorChannelID)
}

// ============================================================================
// Error classification
// ============================================================================

func TestOnError_UserFacingErrorIsShownWithoutAlert(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(failingCommand("team create",
		apperrors.InvalidAuthorization(apperrors.WithContent("X"))))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team create"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1, "exactly one message and no alert")
	assert.True(t, strings.HasSuffix(reqs[0].Path, "/callback"))

	typ, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	assert.Equal(t, discord.ResponseChannelMessageWithSource, typ)
	testutil.AssertEphemeral(t, msg)
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "X", msg.Embeds[0].Description)
	assert.Equal(t, "Invalid Authorization", msg.Embeds[0].Title)
	assert.Equal(t, apperrors.Color, msg.Embeds[0].Color)
}

func TestOnError_WrappedUserFacingErrorIsStillShown(t *testing.T) {
	tree, mockServer := newTestTree(t)
	wrapped := fmt.Errorf("while transforming: %w",
		apperrors.Transformation(apperrors.WithContentf("Team with name '%s' not found.", "ghosts")))
	tree.AddCommand(failingCommand("team info", wrapped))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team info"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "Team with name 'ghosts' not found.", msg.Embeds[0].Description)
	assert.Empty(t, mockServer.RequestsTo(http.MethodPost, operatorPath()))
}

func TestOnError_AlertSummaryKeepsWholeCharacters(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(failingCommand("team list", errors.New(strings.Repeat("é", 1200))))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team list"))

	alerts := mockServer.RequestsTo(http.MethodPost, operatorPath())
	require.Len(t, alerts, 1)
	description := testutil.DecodeMessage(t, alerts[0]).Embeds[0].Description

	assert.True(t, utf8.ValidString(description))
	assert.NotContains(t, description, string(utf8.RuneError))
	assert.Equal(t, "```\n"+strings.Repeat("é", 1000)+"...\n```", description)
}

func TestOnError_ContentInterpolatesInteraction(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(failingCommand("team clean",
		apperrors.InvalidInvocation(apperrors.WithContent("{user} cannot run {command} here"))))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team clean"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	assert.Equal(t, fmt.Sprintf("<@%s> cannot run /team clean here", testutil.TestUserID), msg.Embeds[0].Description)
}

func TestOnError_GenericErrorNotifiesThenAlerts(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(failingCommand("team list", errors.New("connection reset by peer")))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team list"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 2, "one user message and one alert")

	// User notification first
	assert.True(t, strings.HasSuffix(reqs[0].Path, "/callback"))
	_, notice := testutil.DecodeInteractionResponse(t, reqs[0])
	testutil.AssertEphemeral(t, notice)
	require.Len(t, notice.Embeds, 1)
	assert.Equal(t, "Internal Error", notice.Embeds[0].Title)
	assert.NotContains(t, notice.Embeds[0].Description, "connection reset", "internal details stay out of the user notice")

	// Then the operator alert
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, operatorPath(), reqs[1].Path)
	assert.Equal(t, []string{"traceback.txt"}, reqs[1].Files)
	assert.True(t, strings.HasPrefix(reqs[1].ContentType, "multipart/form-data"))

	alert := testutil.DecodeMessage(t, reqs[1])
	require.Len(t, alert.Embeds, 1)
	assert.Equal(t, "Unhandled Exception Alert", alert.Embeds[0].Title)
	assert.Contains(t, alert.Embeds[0].Description, "connection reset by peer")
	require.NotNil(t, alert.Embeds[0].Footer)
	assert.True(t, strings.HasPrefix(alert.Embeds[0].Footer.Text, "Incident "))

	fields := map[string]string{}
	for _, f := range alert.Embeds[0].Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "/team list", fields["Command"])
	assert.Equal(t, testutil.TestGuildID.String(), fields["Guild"])
	assert.Contains(t, fields["User"], testutil.TestUserID.String())
}

func TestOnError_PanicIsRecoveredAndAlerted(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(&dispatch.Command{
		Name:        "team delete",
		Description: "panics",
		Handler: func(context.Context, *dispatch.Event) error {
			var m map[string]int
			m["boom"]++
			return nil
		},
	})

	require.NotPanics(t, func() {
		tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team delete"))
	})

	assert.Len(t, mockServer.RequestsTo(http.MethodPost, "/interactions/"), 1)
	alerts := mockServer.RequestsTo(http.MethodPost, operatorPath())
	require.Len(t, alerts, 1)
	assert.Contains(t, testutil.DecodeMessage(t, alerts[0]).Embeds[0].Description, "panic")
}

func TestOnError_UnknownErrorShowsErrorString(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(&dispatch.Command{
		Name:        "team list",
		Description: "guarded",
		Checks: []dispatch.Check{func(*dispatch.Event) error {
			return errors.New("cooldown active")
		}},
		Handler: func(context.Context, *dispatch.Event) error { return nil },
	})

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team list"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1, "no alert for errors raised outside the handler")
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	testutil.AssertEphemeral(t, msg)
	assert.Equal(t, "Unknown Error", msg.Embeds[0].Title)
	assert.Equal(t, "cooldown active", msg.Embeds[0].Description)
}

func TestOnError_FollowupWhenAlreadyResponded(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(&dispatch.Command{
		Name:        "team edit",
		Description: "defers then fails",
		Handler: func(ctx context.Context, e *dispatch.Event) error {
			if err := e.Defer(ctx, false); err != nil {
				return err
			}
			return apperrors.InvalidParameter(apperrors.WithContent("name is too long"))
		},
	})

	i := testutil.GenerateCommandInteraction(admin(), "team edit")
	tree.HandleInteraction(context.Background(), i)

	reqs := mockServer.Requests()
	require.Len(t, reqs, 2)

	typ, _ := testutil.DecodeInteractionResponse(t, reqs[0])
	assert.Equal(t, discord.ResponseDeferredChannelMessageWithSource, typ)

	assert.Equal(t, fmt.Sprintf("/webhooks/%s/%s", testutil.TestApplicationID, i.Token), reqs[1].Path)
	followup := testutil.DecodeMessage(t, reqs[1])
	testutil.AssertEphemeral(t, followup)
	assert.Equal(t, "name is too long", followup.Embeds[0].Description)
}

func TestOnError_NoOperatorChannelSkipsAlert(t *testing.T) {
	tree, mockServer := newTestTree(t, func(cfg *config.Config) {
		cfg.Discord.OperatorChannelID = 0
	})
	tree.AddCommand(failingCommand("team list", errors.New("boom")))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team list"))

	assert.Len(t, mockServer.Requests(), 1, "only the user notification")
}

func TestOnError_FailedAlertStillNotifiesOnce(t *testing.T) {
	tree, mockServer := newTestTree(t)
	mockServer.FailNext(http.MethodPost, operatorPath(), http.StatusForbidden)
	tree.AddCommand(failingCommand("team list", errors.New("boom")))

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team list"))

	assert.Len(t, mockServer.RequestsTo(http.MethodPost, "/interactions/"), 1)
	assert.Len(t, mockServer.RequestsTo(http.MethodPost, operatorPath()), 1)
}

// ============================================================================
// Routing and checks
// ============================================================================

func TestHandleInteraction_UnknownCommand(t *testing.T) {
	tree, mockServer := newTestTree(t)

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "nope"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	assert.Equal(t, "Unknown command `/nope`", msg.Embeds[0].Description)
}

func TestHandleInteraction_RoutesQualifiedName(t *testing.T) {
	tree, _ := newTestTree(t)

	var got []string
	for _, name := range []string{"team create", "team members"} {
		tree.AddCommand(&dispatch.Command{
			Name:        name,
			Description: name,
			Handler: func(_ context.Context, e *dispatch.Event) error {
				got = append(got, e.CommandName())
				return nil
			},
		})
	}

	tree.HandleInteraction(context.Background(), testutil.GenerateCommandInteraction(admin(), "team members",
		testutil.StringOption("action", "add")))

	assert.Equal(t, []string{"team members"}, got)
}

func TestAddCommand_DuplicatePanics(t *testing.T) {
	tree, _ := newTestTree(t)
	tree.AddCommand(failingCommand("team list", nil))

	assert.Panics(t, func() { tree.AddCommand(failingCommand("team  list", nil)) })
}

func TestChecks_GuildOnly(t *testing.T) {
	tree, mockServer := newTestTree(t)
	called := false
	tree.AddCommand(&dispatch.Command{
		Name:        "team list",
		Description: "guild only",
		Checks:      []dispatch.Check{dispatch.GuildOnly()},
		Handler: func(context.Context, *dispatch.Event) error {
			called = true
			return nil
		},
	})

	i := testutil.GenerateCommandInteraction(nil, "team list")
	i.GuildID = 0
	i.User = &discord.User{ID: testutil.TestUserID}
	tree.HandleInteraction(context.Background(), i)

	assert.False(t, called)
	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	assert.Equal(t, "This command should be used within a guild", msg.Embeds[0].Description)
}

func TestChecks_RequirePermissions(t *testing.T) {
	check := dispatch.RequirePermissions(discord.PermissionManageRoles)
	tests := []struct {
		name    string
		perms   discord.Permissions
		wantErr bool
	}{
		{"missing", discord.PermissionSendMessages, true},
		{"granted", discord.PermissionManageRoles | discord.PermissionSendMessages, false},
		{"administrator", discord.PermissionAdministrator, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &dispatch.Event{Interaction: testutil.GenerateCommandInteraction(
				testutil.GenerateMember(testutil.TestUserID, tt.perms), "team create")}

			err := check(e)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidAuthorization))
		})
	}
}

func TestChecks_Developer(t *testing.T) {
	check := dispatch.Developer(testutil.TestDeveloperID)

	dev := &dispatch.Event{Interaction: testutil.GenerateCommandInteraction(
		testutil.GenerateMember(testutil.TestDeveloperID, 0), "dev sync")}
	assert.NoError(t, check(dev))

	other := &dispatch.Event{Interaction: testutil.GenerateCommandInteraction(admin(), "dev sync")}
	assert.True(t, errors.Is(check(other), apperrors.ErrCheckFailure))
}

// ============================================================================
// Autocomplete and components
// ============================================================================

func TestAutocomplete_CapsChoices(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(&dispatch.Command{
		Name:        "team info",
		Description: "info",
		Handler:     func(context.Context, *dispatch.Event) error { return nil },
		Autocomplete: map[string]dispatch.AutocompleteFunc{
			"team": func(_ context.Context, _ *dispatch.Event, value string) ([]*discord.Choice, error) {
				var choices []*discord.Choice
				for n := 0; n < 30; n++ {
					name := fmt.Sprintf("%s-%d", value, n)
					choices = append(choices, &discord.Choice{Name: name, Value: name})
				}
				return choices, nil
			},
		},
	})

	tree.HandleInteraction(context.Background(),
		testutil.GenerateAutocompleteInteraction(admin(), "team info", "team", "dev"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)

	var resp struct {
		Type discord.InteractionResponseType `json:"type"`
		Data discord.AutocompleteChoices     `json:"data"`
	}
	require.NoError(t, reqs[0].DecodeJSON(&resp))
	assert.Equal(t, discord.ResponseAutocompleteResult, resp.Type)
	assert.Len(t, resp.Data.Choices, 25)
	assert.Equal(t, "dev-0", resp.Data.Choices[0].Name)
}

func TestAutocomplete_ErrorAnswersEmpty(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(&dispatch.Command{
		Name:        "team info",
		Description: "info",
		Handler:     func(context.Context, *dispatch.Event) error { return nil },
		Autocomplete: map[string]dispatch.AutocompleteFunc{
			"team": func(context.Context, *dispatch.Event, string) ([]*discord.Choice, error) {
				return nil, errors.New("db down")
			},
		},
	})

	tree.HandleInteraction(context.Background(),
		testutil.GenerateAutocompleteInteraction(admin(), "team info", "team", ""))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"type":8,"data":{"choices":[]}}`, string(reqs[0].Body))
}

func TestComponent_LongestPrefixWins(t *testing.T) {
	tree, _ := newTestTree(t)

	var hit string
	tree.AddComponentHandler("rolebutton:", func(context.Context, *dispatch.Event) error {
		hit = "short"
		return nil
	})
	tree.AddComponentHandler("rolebutton:admin:", func(context.Context, *dispatch.Event) error {
		hit = "long"
		return nil
	})

	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "rolebutton:admin:1"))
	assert.Equal(t, "long", hit)

	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "rolebutton:42"))
	assert.Equal(t, "short", hit)
}

func TestComponent_ExpiredReportsOnce(t *testing.T) {
	tree, mockServer := newTestTree(t)

	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "teams:members:1:add"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	testutil.AssertEphemeral(t, msg)
	assert.Equal(t, "This interaction is no longer active.", msg.Embeds[0].Description)
}

// ============================================================================
// Await
// ============================================================================

func TestAwait_DeliversComponent(t *testing.T) {
	tree, mockServer := newTestTree(t)

	type result struct {
		e  *dispatch.Event
		ok bool
	}
	done := make(chan result, 1)
	go func() {
		e, ok := tree.AwaitAny(context.Background(), time.Second, "view:select", "view:submit")
		done <- result{e, ok}
	}()

	require.Eventually(t, func() bool { return tree.Waiting("view:submit") }, time.Second, 5*time.Millisecond)
	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "view:submit"))

	r := <-done
	require.True(t, r.ok)
	assert.Equal(t, "view:submit", r.e.Data.CustomID)
	assert.False(t, tree.Waiting("view:select"), "all ids of a resolved waiter are released")
	assert.Empty(t, mockServer.Requests(), "the awaiting handler owns the reply")
}

func TestAwait_TimesOut(t *testing.T) {
	tree, _ := newTestTree(t)

	start := time.Now()
	e, ok := tree.Await(context.Background(), "view:never", 50*time.Millisecond)

	assert.False(t, ok)
	assert.Nil(t, e)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, tree.Waiting("view:never"))
}

func TestAwait_DefaultsToUITimeout(t *testing.T) {
	tree, _ := newTestTree(t, func(cfg *config.Config) {
		cfg.UI.Timeout = 20 * time.Millisecond
	})

	_, ok := tree.Await(context.Background(), "view:never", 0)
	assert.False(t, ok)
}

func TestAwait_ContextCancelled(t *testing.T) {
	tree, _ := newTestTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := tree.Await(ctx, "view:never", time.Minute)
	assert.False(t, ok)
}

func TestListener_QueuesClicksWhileHandlerIsBusy(t *testing.T) {
	tree, mockServer := newTestTree(t)
	view := tree.Listen(time.Second, "view:select", "view:add")
	defer view.Close(context.Background())

	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "view:add"))
	first, ok := view.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "view:add", first.Data.CustomID)

	// The handler is still working on the first click when the next arrives
	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "view:select", "1"))
	assert.True(t, tree.Waiting("view:add"), "the view stays registered between clicks")
	assert.Empty(t, mockServer.Requests(), "queued clicks are not expired")

	second, ok := view.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "view:select", second.Data.CustomID)
}

func TestListener_IdleTimeout(t *testing.T) {
	tree, _ := newTestTree(t, func(cfg *config.Config) {
		cfg.UI.Timeout = 20 * time.Millisecond
	})
	view := tree.Listen(0, "view:never")
	defer view.Close(context.Background())

	_, ok := view.Next(context.Background())
	assert.False(t, ok)
}

func TestListener_CloseExpiresQueuedClicks(t *testing.T) {
	tree, mockServer := newTestTree(t)
	view := tree.Listen(time.Second, "view:add")

	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "view:add"))
	view.Close(context.Background())
	assert.False(t, tree.Waiting("view:add"))

	reqs := mockServer.Requests()
	require.Len(t, reqs, 1)
	_, msg := testutil.DecodeInteractionResponse(t, reqs[0])
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "This interaction is no longer active.", msg.Embeds[0].Description)

	mockServer.ResetRequests()
	tree.HandleInteraction(context.Background(), testutil.GenerateComponentInteraction(admin(), "view:add"))
	require.Len(t, mockServer.Requests(), 1, "clicks after Close are expired directly")
}

// ============================================================================
// Registration payloads
// ============================================================================

func TestCommands_NestsSubcommands(t *testing.T) {
	tree, _ := newTestTree(t)
	tree.AddGroup(&dispatch.Group{
		Name:        "team",
		Description: "Edits and manages teams",
		Permissions: discord.PermissionManageRoles,
		GuildOnly:   true,
	})
	tree.AddCommand(failingCommand("team create", nil))
	tree.AddCommand(failingCommand("team members", nil))
	tree.AddCommand(failingCommand("rolebutton roles add", nil))
	tree.AddCommand(failingCommand("rolebutton roles remove", nil))

	cmds := tree.Commands()
	require.Len(t, cmds, 2)

	rb, team := cmds[0], cmds[1]
	assert.Equal(t, "rolebutton", rb.Name)
	assert.Equal(t, "team", team.Name)

	assert.Equal(t, "Edits and manages teams", team.Description)
	require.NotNil(t, team.DefaultMemberPermissions)
	assert.Equal(t, discord.PermissionManageRoles, *team.DefaultMemberPermissions)
	require.NotNil(t, team.DMPermission)
	assert.False(t, *team.DMPermission)
	require.Len(t, team.Options, 2)
	assert.Equal(t, "create", team.Options[0].Name)
	assert.Equal(t, discord.OptionTypeSubCommand, team.Options[0].Type)

	require.Len(t, rb.Options, 1)
	assert.Equal(t, discord.OptionTypeSubCommandGroup, rb.Options[0].Type)
	require.Len(t, rb.Options[0].Options, 2)
	assert.Equal(t, "add", rb.Options[0].Options[0].Name)
	assert.Equal(t, "remove", rb.Options[0].Options[1].Name)
}

func TestSync_TargetsCommandGuild(t *testing.T) {
	guildID := snowflake.ID(123456789012345678)
	tree, mockServer := newTestTree(t, func(cfg *config.Config) {
		cfg.Discord.CommandGuildID = guildID
	})
	tree.AddCommand(failingCommand("team list", nil))

	require.NoError(t, tree.Sync(context.Background()))

	reqs := mockServer.RequestsTo(http.MethodPut, "/applications/")
	require.Len(t, reqs, 1)
	assert.Equal(t, fmt.Sprintf("/applications/%s/guilds/%s/commands", testutil.TestApplicationID, guildID), reqs[0].Path)
}

func TestSync_Global(t *testing.T) {
	tree, mockServer := newTestTree(t)
	tree.AddCommand(failingCommand("team list", nil))

	require.NoError(t, tree.Sync(context.Background()))

	reqs := mockServer.RequestsTo(http.MethodPut, "/applications/")
	require.Len(t, reqs, 1)
	assert.Equal(t, fmt.Sprintf("/applications/%s/commands", testutil.TestApplicationID), reqs[0].Path)
}
