package models

import (
	"github.com/disgoorg/snowflake/v2"
)

// Team represents a sub-group of members within one guild
type Team struct {
	ID           int64        `db:"id" json:"id"`
	GuildID      snowflake.ID `db:"guild_id" json:"guild_id"`
	Name         string       `db:"name" json:"name"`
	LeadRoleID   snowflake.ID `db:"lead_role_id" json:"lead_role_id"`
	MemberRoleID snowflake.ID `db:"member_role_id" json:"member_role_id"`
}

// TeamUpdate carries a partial team update. Nil fields keep their stored value.
type TeamUpdate struct {
	Name         *string
	LeadRoleID   *snowflake.ID
	MemberRoleID *snowflake.ID
}

// IsEmpty reports whether the update would change nothing
func (u TeamUpdate) IsEmpty() bool {
	return u.Name == nil && u.LeadRoleID == nil && u.MemberRoleID == nil
}

// TeamMember represents a user's membership in a team
type TeamMember struct {
	TeamID int64        `db:"team_id" json:"team_id"`
	UserID snowflake.ID `db:"user_id" json:"user_id"`
}
