package dispatch

import (
	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/discord"
)

const (
	guildOnlyContent = "This command should be used within a guild"
	clearanceContent = "You do not have proper clearance to use this command"
)

// Check runs before a command handler; a non-nil error stops the invocation
type Check func(e *Event) error

// GuildOnly rejects invocations outside a guild
func GuildOnly() Check {
	return func(e *Event) error {
		if !e.InGuild() || e.Member == nil {
			return apperrors.InvalidInvocation(apperrors.WithContent(guildOnlyContent))
		}
		return nil
	}
}

// RequirePermissions rejects members lacking any of perms. Administrators
// always pass.
func RequirePermissions(perms discord.Permissions) Check {
	guild := GuildOnly()
	return func(e *Event) error {
		if err := guild(e); err != nil {
			return err
		}
		if !e.Member.Permissions.Has(perms) {
			return apperrors.InvalidAuthorization(apperrors.WithContent(clearanceContent))
		}
		return nil
	}
}

// Developer only lets the listed users through
func Developer(ids ...snowflake.ID) Check {
	return func(e *Event) error {
		author := e.Author()
		if author == nil {
			return apperrors.InvalidAuthorization()
		}
		for _, id := range ids {
			if id == author.ID {
				return nil
			}
		}
		return apperrors.InvalidAuthorization()
	}
}
