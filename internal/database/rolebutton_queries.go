package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/models"
)

const roleButtonColumns = `id, guild_id, name, channel_id, message_id, roles, created_at, updated_at`

// CreateRoleButtonInterface stores a new interface and fills in its id and timestamps.
// Returns ErrUniqueViolation if the guild already has an interface with that name.
func (db *DB) CreateRoleButtonInterface(ctx context.Context, iface *models.RoleButtonInterface) error {
	if iface.Roles == nil {
		iface.SetRoleIDs(nil)
	}

	query := `
		INSERT INTO role_button_interface (guild_id, name, channel_id, message_id, roles)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := db.QueryRowxContext(ctx, query,
		iface.GuildID,
		iface.Name,
		iface.ChannelID,
		iface.MessageID,
		iface.Roles,
	).Scan(&iface.ID, &iface.CreatedAt, &iface.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create role button interface %q: %w", iface.Name, ErrUniqueViolation)
		}
		return fmt.Errorf("failed to create role button interface: %w", err)
	}

	return nil
}

// GetRoleButtonInterface retrieves an interface by guild and name
func (db *DB) GetRoleButtonInterface(ctx context.Context, guildID snowflake.ID, name string) (*models.RoleButtonInterface, error) {
	query := `SELECT ` + roleButtonColumns + ` FROM role_button_interface WHERE guild_id = $1 AND name = $2`

	var iface models.RoleButtonInterface
	if err := db.GetContext(ctx, &iface, query, guildID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleButtonInterfaceNotFound
		}
		return nil, fmt.Errorf("failed to get role button interface: %w", err)
	}

	return &iface, nil
}

// GetRoleButtonInterfaces retrieves every stored interface, used to restore them on startup
func (db *DB) GetRoleButtonInterfaces(ctx context.Context) ([]*models.RoleButtonInterface, error) {
	query := `SELECT ` + roleButtonColumns + ` FROM role_button_interface ORDER BY guild_id, name`

	var ifaces []*models.RoleButtonInterface
	if err := db.SelectContext(ctx, &ifaces, query); err != nil {
		return nil, fmt.Errorf("failed to query role button interfaces: %w", err)
	}

	return ifaces, nil
}

// UpdateRoleButtonRoles replaces the role list of an interface
func (db *DB) UpdateRoleButtonRoles(ctx context.Context, iface *models.RoleButtonInterface) error {
	query := `
		UPDATE role_button_interface
		SET roles = $1, updated_at = NOW()
		WHERE guild_id = $2 AND name = $3
		RETURNING updated_at
	`

	err := db.QueryRowxContext(ctx, query, iface.Roles, iface.GuildID, iface.Name).Scan(&iface.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoleButtonInterfaceNotFound
		}
		return fmt.Errorf("failed to update role button interface: %w", err)
	}

	return nil
}

// DeleteRoleButtonInterface removes an interface; unknown names are not an error
func (db *DB) DeleteRoleButtonInterface(ctx context.Context, guildID snowflake.ID, name string) error {
	query := `DELETE FROM role_button_interface WHERE guild_id = $1 AND name = $2`

	if _, err := db.ExecContext(ctx, query, guildID, name); err != nil {
		return fmt.Errorf("failed to delete role button interface: %w", err)
	}

	return nil
}
