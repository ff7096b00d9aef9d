// Package teamcmd implements the /team commands.
package teamcmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/database"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
	"github.com/parsascontentcorner/phoenix/internal/models"
	"github.com/parsascontentcorner/phoenix/internal/teams"
)

const (
	clearanceContent = "You do not have proper clearance to use this command"
	notMemberContent = "This command is returning a user rather than a server member"

	// maxEmbedFields is the number of fields Discord renders in one embed
	maxEmbedFields = 25
	// maxEditSelection is how many users the members editor accepts at once
	maxEditSelection = 10

	// teamIDPrefix marks autocomplete values that hold a team id
	teamIDPrefix = "id:"
)

// GuildClient is the part of the REST API used to manage member roles
type GuildClient interface {
	GetMember(ctx context.Context, guildID, userID snowflake.ID) (*discord.Member, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
}

// Module holds the /team command handlers
type Module struct {
	registry *teams.Registry
	client   GuildClient
	logger   *zap.Logger
}

// New creates the /team command module
func New(registry *teams.Registry, client GuildClient, logger *zap.Logger) *Module {
	return &Module{
		registry: registry,
		client:   client,
		logger:   logger,
	}
}

// Register adds the /team commands to tree
func (m *Module) Register(tree *dispatch.Tree) {
	tree.AddGroup(&dispatch.Group{
		Name:        "team",
		Description: "Edits and manages teams",
		Permissions: discord.PermissionManageRoles,
		GuildOnly:   true,
	})

	admin := []dispatch.Check{dispatch.RequirePermissions(discord.PermissionAdministrator)}
	guild := []dispatch.Check{dispatch.GuildOnly()}
	complete := map[string]dispatch.AutocompleteFunc{"team": m.completeTeam}

	tree.AddCommand(&dispatch.Command{
		Name:        "team create",
		Description: "Create a new team for the server",
		Options: []*discord.ApplicationCommandOption{
			{Type: discord.OptionTypeString, Name: "name", Description: "The name of the team", Required: true},
			{Type: discord.OptionTypeRole, Name: "lead", Description: "The role that corresponds to the team lead", Required: true},
			{Type: discord.OptionTypeRole, Name: "role", Description: "The role that is given to members of the team", Required: true},
		},
		Checks:  admin,
		Handler: m.create,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "team delete",
		Description:  "Delete a team from the server",
		Options:      []*discord.ApplicationCommandOption{teamOption("The name of the team")},
		Checks:       admin,
		Handler:      m.delete,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:        "team edit",
		Description: "Edit a team's properties",
		Options: []*discord.ApplicationCommandOption{
			teamOption("The name of the team"),
			{Type: discord.OptionTypeRole, Name: "lead", Description: "The new role to correspond to the team lead"},
			{Type: discord.OptionTypeRole, Name: "role", Description: "The new role that is given to members of the team"},
			{Type: discord.OptionTypeString, Name: "name", Description: "The new name to give to the team"},
		},
		Checks:       admin,
		Handler:      m.edit,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:        "team members",
		Description: "Add or remove members of a team",
		Options: []*discord.ApplicationCommandOption{
			{
				Type:        discord.OptionTypeString,
				Name:        "action",
				Description: "The action to take on the user",
				Required:    true,
				Choices: []*discord.Choice{
					{Name: "add", Value: actionAdd},
					{Name: "remove", Value: actionRemove},
					{Name: "edit", Value: actionEdit},
				},
			},
			{Type: discord.OptionTypeUser, Name: "user", Description: "The user to manage", Required: true},
			teamOption("The name of the team to add"),
		},
		Checks:       guild,
		Handler:      m.members,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:        "team list",
		Description: "List the teams of the server",
		Checks:      admin,
		Handler:     m.list,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "team info",
		Description:  "Show information about a team",
		Options:      []*discord.ApplicationCommandOption{teamOption("The name of the team")},
		Checks:       guild,
		Handler:      m.info,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "team memberlist",
		Description:  "List the members of a team",
		Options:      []*discord.ApplicationCommandOption{teamOption("The name of the team")},
		Checks:       guild,
		Handler:      m.memberlist,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "team clean",
		Description:  "Remove every member from a team",
		Options:      []*discord.ApplicationCommandOption{teamOption("The name of the team")},
		Checks:       admin,
		Handler:      m.clean,
		Autocomplete: complete,
	})
}

func teamOption(description string) *discord.ApplicationCommandOption {
	return &discord.ApplicationCommandOption{
		Type:         discord.OptionTypeString,
		Name:         "team",
		Description:  description,
		Required:     true,
		Autocomplete: true,
	}
}

// completeTeam suggests the guild's teams whose name contains the typed text
func (m *Module) completeTeam(ctx context.Context, e *dispatch.Event, value string) ([]*discord.Choice, error) {
	if !e.InGuild() {
		return nil, apperrors.InvalidInvocation()
	}

	all, err := m.registry.Guild(e.GuildID).FetchTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch teams: %w", err)
	}

	var choices []*discord.Choice
	for _, team := range all {
		if strings.Contains(team.Name(), value) {
			choices = append(choices, &discord.Choice{Name: team.Name(), Value: teamIDPrefix + strconv.FormatInt(team.ID(), 10)})
		}
	}
	return choices, nil
}

// resolveTeam turns the "team" option into the guild's team. Values picked
// from autocomplete carry the team id; typed values are matched by name.
func (m *Module) resolveTeam(ctx context.Context, e *dispatch.Event) (*teams.Team, error) {
	opt, ok := discord.FindOption(e.Options(), "team")
	if !ok {
		return nil, apperrors.InvalidParameter(apperrors.WithContent("A team name is required."))
	}
	value := opt.StringValue()
	guild := m.registry.Guild(e.GuildID)

	if raw, ok := strings.CutPrefix(value, teamIDPrefix); ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return m.teamByID(ctx, guild, id)
		}
	}

	team, found, err := guild.FindTeam(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("failed to look up team %q: %w", value, err)
	}
	if !found {
		return nil, apperrors.Transformation(apperrors.WithContentf("Team with name '%s' not found.", value))
	}
	return team, nil
}

func (m *Module) teamByID(ctx context.Context, guild *teams.Guild, id int64) (*teams.Team, error) {
	if team, ok := guild.GetTeam(id); ok {
		return team, nil
	}

	team, found, err := guild.FetchTeam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team %d: %w", id, err)
	}
	if !found {
		return nil, apperrors.Transformation(apperrors.WithContent("That team no longer exists."))
	}
	return team, nil
}

func canAdministrate(member *discord.Member) bool {
	return member != nil && member.Permissions.Has(discord.PermissionAdministrator)
}

func canControl(member *discord.Member, team *teams.Team) bool {
	return canAdministrate(member) || (member != nil && member.HasRole(team.LeadRoleID()))
}

func conflictMessage(name string) string {
	return fmt.Sprintf("A team with name `%s` already exists in this server", name)
}

func roleOption(e *dispatch.Event, name string) (snowflake.ID, bool, error) {
	opt, ok := discord.FindOption(e.Options(), name)
	if !ok {
		return 0, false, nil
	}
	id, err := opt.IDValue()
	if err != nil {
		return 0, false, apperrors.InvalidParameter(apperrors.WithContentf("`%s` is not a valid role.", name))
	}
	return id, true, nil
}

func (m *Module) create(ctx context.Context, e *dispatch.Event) error {
	var name string
	if opt, ok := discord.FindOption(e.Options(), "name"); ok {
		name = strings.TrimSpace(opt.StringValue())
	}
	if name == "" {
		return apperrors.InvalidParameter(apperrors.WithContent("A team name can not be empty."))
	}

	lead, _, err := roleOption(e, "lead")
	if err != nil {
		return err
	}
	role, _, err := roleOption(e, "role")
	if err != nil {
		return err
	}

	team, err := m.registry.Guild(e.GuildID).CreateTeam(ctx, name, lead, role)
	if errors.Is(err, database.ErrUniqueViolation) {
		return e.Respond(ctx, &discord.MessageSend{Content: conflictMessage(name), AllowedMentions: discord.NoMentions()})
	}
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	return e.Respond(ctx, &discord.MessageSend{
		Content:         fmt.Sprintf("%s was created", team.Name()),
		AllowedMentions: discord.NoMentions(),
	})
}

func (m *Module) delete(ctx context.Context, e *dispatch.Event) error {
	team, err := m.resolveTeam(ctx, e)
	if err != nil {
		return err
	}

	if err := m.registry.Guild(e.GuildID).DeleteTeam(ctx, team); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	return e.Respond(ctx, &discord.MessageSend{
		Content:         fmt.Sprintf("%s was deleted", team.Name()),
		AllowedMentions: discord.NoMentions(),
	})
}

func (m *Module) edit(ctx context.Context, e *dispatch.Event) error {
	team, err := m.resolveTeam(ctx, e)
	if err != nil {
		return err
	}

	var update models.TeamUpdate
	if opt, ok := discord.FindOption(e.Options(), "name"); ok {
		name := strings.TrimSpace(opt.StringValue())
		if name == "" {
			return apperrors.InvalidParameter(apperrors.WithContent("A team name can not be empty."))
		}
		update.Name = &name
	}
	if lead, ok, err := roleOption(e, "lead"); err != nil {
		return err
	} else if ok {
		update.LeadRoleID = &lead
	}
	if role, ok, err := roleOption(e, "role"); err != nil {
		return err
	} else if ok {
		update.MemberRoleID = &role
	}

	if err := e.Defer(ctx, false); err != nil {
		return err
	}

	if err := team.Edit(ctx, update); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) && update.Name != nil {
			return e.Respond(ctx, &discord.MessageSend{Content: conflictMessage(*update.Name), AllowedMentions: discord.NoMentions()})
		}
		return fmt.Errorf("failed to edit team: %w", err)
	}

	embed, err := infoEmbed(ctx, team)
	if err != nil {
		return err
	}
	return e.Respond(ctx, &discord.MessageSend{
		Content:         fmt.Sprintf("%s updated | new team info", team.Name()),
		Embeds:          []*discord.Embed{embed},
		AllowedMentions: discord.NoMentions(),
	})
}

func (m *Module) list(ctx context.Context, e *dispatch.Event) error {
	all, err := m.registry.Guild(e.GuildID).FetchTeams(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch teams: %w", err)
	}

	embed := &discord.Embed{Title: "Team List"}
	if len(all) == 0 {
		embed.Description = "No teams have been created in this server"
	}
	for _, team := range all {
		if len(embed.Fields) == maxEmbedFields {
			embed.Footer = &discord.EmbedFooter{Text: fmt.Sprintf("%d more not shown", len(all)-maxEmbedFields)}
			break
		}
		info, err := team.Info(ctx)
		if err != nil {
			return err
		}
		embed.Fields = append(embed.Fields, &discord.EmbedField{Name: team.Name(), Value: info, Inline: true})
	}

	return e.Respond(ctx, &discord.MessageSend{Embeds: []*discord.Embed{embed}})
}

func (m *Module) info(ctx context.Context, e *dispatch.Event) error {
	team, err := m.resolveTeam(ctx, e)
	if err != nil {
		return err
	}
	if !canControl(e.Member, team) {
		return apperrors.InvalidAuthorization(apperrors.WithContent(clearanceContent))
	}

	embed, err := infoEmbed(ctx, team)
	if err != nil {
		return err
	}
	return e.Respond(ctx, &discord.MessageSend{
		Embeds: []*discord.Embed{embed},
		Flags:  discord.MessageFlagEphemeral,
	})
}

func (m *Module) memberlist(ctx context.Context, e *dispatch.Event) error {
	team, err := m.resolveTeam(ctx, e)
	if err != nil {
		return err
	}
	if !canControl(e.Member, team) {
		return apperrors.InvalidAuthorization(apperrors.WithContent(clearanceContent))
	}

	ids, err := team.FetchMembers(ctx)
	if err != nil {
		return err
	}

	result := "No members in the team"
	if len(ids) > 0 {
		result = strings.Join(mentions(ids), ", ")
	}
	return e.RespondEphemeral(ctx, result)
}

// clean removes every member from the team, reporting the ones that failed
func (m *Module) clean(ctx context.Context, e *dispatch.Event) error {
	team, err := m.resolveTeam(ctx, e)
	if err != nil {
		return err
	}

	if err := e.Defer(ctx, true); err != nil {
		return err
	}

	ids, err := team.FetchMembers(ctx)
	if err != nil {
		return err
	}

	var failed []snowflake.ID
	for _, id := range ids {
		if err := team.RemoveMember(ctx, id); err != nil {
			m.logger.Warn("failed to remove team member", zap.Stringer("user_id", id), zap.Error(err))
			failed = append(failed, id)
			continue
		}
		if err := m.client.RemoveMemberRole(ctx, e.GuildID, id, team.MemberRoleID(), "team cleaned"); err != nil {
			m.logger.Warn("failed to remove team role", zap.Stringer("user_id", id), zap.Error(err))
			failed = append(failed, id)
		}
	}

	failedFor := "nobody"
	if len(failed) > 0 {
		failedFor = strings.Join(mentions(failed), ", ")
	}
	content := fmt.Sprintf("Completed interaction\nFailed for %s", failedFor)
	return e.EditResponse(ctx, &discord.MessageEdit{Content: &content, AllowedMentions: discord.NoMentions()})
}

func infoEmbed(ctx context.Context, team *teams.Team) (*discord.Embed, error) {
	info, err := team.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &discord.Embed{Title: "Team Info", Description: info}, nil
}

func mentions(ids []snowflake.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, "<@"+id.String()+">")
	}
	return out
}
