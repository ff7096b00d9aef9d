package teamcmd

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
	"github.com/parsascontentcorner/phoenix/internal/teams"
)

const (
	actionAdd    = "add"
	actionRemove = "remove"
	actionEdit   = "edit"

	reasonAdd    = "add to team"
	reasonRemove = "remove from team"
)

func (m *Module) members(ctx context.Context, e *dispatch.Event) error {
	team, err := m.resolveTeam(ctx, e)
	if err != nil {
		return err
	}
	if !canControl(e.Member, team) {
		return apperrors.InvalidAuthorization(apperrors.WithContent(clearanceContent))
	}

	var action string
	if opt, ok := discord.FindOption(e.Options(), "action"); ok {
		action = opt.StringValue()
	}

	if action == actionEdit {
		return m.editMembers(ctx, e, team)
	}

	userOpt, ok := discord.FindOption(e.Options(), "user")
	if !ok {
		return apperrors.InvalidParameter(apperrors.WithContent("A user is required."))
	}
	userID, err := userOpt.IDValue()
	if err != nil {
		return apperrors.InvalidParameter(apperrors.WithContent("`user` is not a valid user."))
	}

	switch action {
	case actionAdd:
		if _, err := m.member(ctx, e.GuildID, userID); err != nil {
			return err
		}
		if err := team.AddMember(ctx, userID); err != nil {
			return fmt.Errorf("failed to add team member: %w", err)
		}
		if err := m.client.AddMemberRole(ctx, e.GuildID, userID, team.MemberRoleID(), reasonAdd); err != nil {
			return fmt.Errorf("failed to add team role: %w", err)
		}
		return e.RespondEphemeral(ctx, fmt.Sprintf("<@%s> added to %s", userID, team.Name()))

	case actionRemove:
		if err := team.RemoveMember(ctx, userID); err != nil {
			return fmt.Errorf("failed to remove team member: %w", err)
		}
		// Users who already left the guild only lose the membership row
		if _, err := m.client.GetMember(ctx, e.GuildID, userID); err == nil {
			if err := m.client.RemoveMemberRole(ctx, e.GuildID, userID, team.MemberRoleID(), reasonRemove); err != nil {
				return fmt.Errorf("failed to remove team role: %w", err)
			}
		} else if !discord.IsNotFound(err) {
			return fmt.Errorf("failed to fetch member: %w", err)
		}
		return e.RespondEphemeral(ctx, fmt.Sprintf("<@%s> removed from %s", userID, team.Name()))

	default:
		return apperrors.InvalidParameter(apperrors.WithContentf("`%s` is not a valid action.", action))
	}
}

// member fetches a guild member, rejecting users outside the guild
func (m *Module) member(ctx context.Context, guildID, userID snowflake.ID) (*discord.Member, error) {
	member, err := m.client.GetMember(ctx, guildID, userID)
	if discord.IsNotFound(err) {
		return nil, apperrors.InvalidInvocation(apperrors.WithContent(notMemberContent))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	return member, nil
}

// editMembers shows a user picker with add and remove buttons and applies
// each click until the editor goes idle
func (m *Module) editMembers(ctx context.Context, e *dispatch.Event, team *teams.Team) error {
	base := fmt.Sprintf("teams:members:%s", e.ID)
	selectID, addID, removeID := base+":select", base+":add", base+":remove"

	picker := discord.UserSelect(selectID, "Members")
	minValues := 0
	picker.MinValues = &minValues
	picker.MaxValues = maxEditSelection

	err := e.Respond(ctx, &discord.MessageSend{
		Content: fmt.Sprintf("Select up to %d members to add to the team %s", maxEditSelection, team.Name()),
		Flags:   discord.MessageFlagEphemeral,
		Components: []*discord.Component{
			discord.ActionRow(picker),
			discord.ActionRow(
				discord.Button(discord.ButtonStylePrimary, "Add to team", addID),
				discord.Button(discord.ButtonStyleSecondary, "Remove from Team", removeID),
			),
		},
	})
	if err != nil {
		return err
	}

	view := e.Listen(selectID, addID, removeID)
	defer view.Close(ctx)

	var selected []snowflake.ID
	for {
		click, ok := view.Next(ctx)
		if !ok {
			m.logger.Debug("team member editor timed out", zap.Int64("team_id", team.ID()))
			return nil
		}

		switch click.Data.CustomID {
		case selectID:
			ids, err := parseUsers(click.Data.Values)
			if err != nil {
				click.Fail(ctx, err)
				continue
			}
			selected = ids
			if err := click.DeferUpdate(ctx); err != nil {
				return err
			}

		case addID, removeID:
			if err := click.Defer(ctx, true); err != nil {
				return err
			}
			if err := m.applyMembers(ctx, click, team, selected, click.Data.CustomID == addID); err != nil {
				click.Fail(ctx, err)
				continue
			}
			if err := click.RespondEphemeral(ctx, "Members edited"); err != nil {
				return err
			}
		}
	}
}

func parseUsers(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := snowflake.Parse(value)
		if err != nil {
			return nil, apperrors.InvalidParameter(apperrors.WithContentf("`%s` is not a valid user.", value))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// applyMembers adds or removes each selected user, skipping users whose
// role already matches
func (m *Module) applyMembers(ctx context.Context, e *dispatch.Event, team *teams.Team, users []snowflake.ID, add bool) error {
	roleID := team.MemberRoleID()

	for _, userID := range users {
		member, err := m.member(ctx, e.GuildID, userID)
		if err != nil {
			return err
		}

		if add {
			if member.HasRole(roleID) {
				continue
			}
			if err := team.AddMember(ctx, userID); err != nil {
				return fmt.Errorf("failed to add team member: %w", err)
			}
			if err := m.client.AddMemberRole(ctx, e.GuildID, userID, roleID, reasonAdd); err != nil {
				return fmt.Errorf("failed to add team role: %w", err)
			}
			continue
		}

		if !member.HasRole(roleID) {
			continue
		}
		if err := team.RemoveMember(ctx, userID); err != nil {
			return fmt.Errorf("failed to remove team member: %w", err)
		}
		if err := m.client.RemoveMemberRole(ctx, e.GuildID, userID, roleID, reasonRemove); err != nil {
			return fmt.Errorf("failed to remove team role: %w", err)
		}
	}

	return nil
}
