package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/models"
)

// teamColumns maps NULL role columns to zero so they scan into snowflake.ID
const teamColumns = `id, guild_id, name,
	COALESCE(lead_role_id, 0) AS lead_role_id,
	COALESCE(member_role_id, 0) AS member_role_id`

// CreateTeam inserts a new team and returns the stored row.
// Returns ErrUniqueViolation if the guild already has a team with that name.
func (db *DB) CreateTeam(ctx context.Context, guildID snowflake.ID, name string, leadRoleID, memberRoleID snowflake.ID) (*models.Team, error) {
	query := `
		INSERT INTO team (guild_id, name, lead_role_id, member_role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + teamColumns

	var team models.Team
	err := db.GetContext(ctx, &team, query, guildID, name, leadRoleID, memberRoleID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create team %q: %w", name, ErrUniqueViolation)
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	db.logger.Debug("team created",
		zap.Int64("team_id", team.ID),
		zap.String("guild_id", guildID.String()),
	)

	return &team, nil
}

// GetTeam retrieves a team by id
func (db *DB) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM team WHERE id = $1`

	var team models.Team
	err := db.GetContext(ctx, &team, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return &team, nil
}

// GetTeamsByGuild retrieves every team of a guild ordered by name
func (db *DB) GetTeamsByGuild(ctx context.Context, guildID snowflake.ID) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM team WHERE guild_id = $1 ORDER BY name ASC`

	var teams []*models.Team
	if err := db.SelectContext(ctx, &teams, query, guildID); err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}

	return teams, nil
}

// UpdateTeam applies a partial update in a single statement. Fields left nil
// keep their stored value. Returns the updated row, ErrTeamNotFound when the
// id does not exist, or ErrUniqueViolation when renaming onto a taken name.
func (db *DB) UpdateTeam(ctx context.Context, id int64, update models.TeamUpdate) (*models.Team, error) {
	query := `
		UPDATE team SET
			name = COALESCE($1, name),
			lead_role_id = COALESCE($2, lead_role_id),
			member_role_id = COALESCE($3, member_role_id)
		WHERE id = $4
		RETURNING ` + teamColumns

	var team models.Team
	err := db.GetContext(ctx, &team, query, update.Name, update.LeadRoleID, update.MemberRoleID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to update team %d: %w", id, ErrUniqueViolation)
		}
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	return &team, nil
}

// DeleteTeam removes a team and, through the foreign key, its members.
// Deleting an unknown id is not an error.
func (db *DB) DeleteTeam(ctx context.Context, id int64) error {
	query := `DELETE FROM team WHERE id = $1`

	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	db.logger.Debug("team deleted", zap.Int64("team_id", id))
	return nil
}

// GetTeamMembers returns the user ids stored as members of a team
func (db *DB) GetTeamMembers(ctx context.Context, teamID int64) ([]snowflake.ID, error) {
	query := `SELECT user_id FROM team_member WHERE team_id = $1 ORDER BY user_id ASC`

	var members []snowflake.ID
	if err := db.SelectContext(ctx, &members, query, teamID); err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}

	return members, nil
}

// AddTeamMember adds a user to a team; adding an existing member is a no-op
func (db *DB) AddTeamMember(ctx context.Context, teamID int64, userID snowflake.ID) error {
	query := `
		INSERT INTO team_member (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`

	if _, err := db.ExecContext(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	return nil
}

// RemoveTeamMember removes a user from a team; removing a non-member is a no-op
func (db *DB) RemoveTeamMember(ctx context.Context, teamID int64, userID snowflake.ID) error {
	query := `DELETE FROM team_member WHERE team_id = $1 AND user_id = $2`

	if _, err := db.ExecContext(ctx, query, teamID, userID); err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	return nil
}
