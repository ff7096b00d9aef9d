package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lib/pq"
)

// MaxRoleButtons is the number of buttons a single message can carry (5 rows of 5)
const MaxRoleButtons = 25

// RoleButtonInterface is a persisted message whose buttons toggle guild roles
type RoleButtonInterface struct {
	ID        int64         `db:"id" json:"id"`
	GuildID   snowflake.ID  `db:"guild_id" json:"guild_id"`
	Name      string        `db:"name" json:"name"`
	ChannelID snowflake.ID  `db:"channel_id" json:"channel_id"`
	MessageID snowflake.ID  `db:"message_id" json:"message_id"`
	Roles     pq.Int64Array `db:"roles" json:"roles"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// RoleIDs returns the stored roles as snowflakes, preserving order
func (r *RoleButtonInterface) RoleIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(r.Roles))
	for _, id := range r.Roles {
		ids = append(ids, snowflake.ID(id))
	}
	return ids
}

// SetRoleIDs replaces the stored roles
func (r *RoleButtonInterface) SetRoleIDs(ids []snowflake.ID) {
	roles := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		roles = append(roles, int64(id))
	}
	r.Roles = roles
}

// HasRole reports whether the interface already carries a button for the role
func (r *RoleButtonInterface) HasRole(id snowflake.ID) bool {
	for _, existing := range r.Roles {
		if snowflake.ID(existing) == id {
			return true
		}
	}
	return false
}
