// Package teams holds the in-memory team aggregates. Each guild keeps a
// bounded cache of its teams in front of the database, and the registry
// keeps a bounded cache of guilds.
package teams

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/models"
)

// Store is the persistence used by the aggregates. *database.DB implements it.
type Store interface {
	CreateTeam(ctx context.Context, guildID snowflake.ID, name string, leadRoleID, memberRoleID snowflake.ID) (*models.Team, error)
	GetTeam(ctx context.Context, id int64) (*models.Team, error)
	GetTeamsByGuild(ctx context.Context, guildID snowflake.ID) ([]*models.Team, error)
	UpdateTeam(ctx context.Context, id int64, update models.TeamUpdate) (*models.Team, error)
	DeleteTeam(ctx context.Context, id int64) error
	GetTeamMembers(ctx context.Context, teamID int64) ([]snowflake.ID, error)
	AddTeamMember(ctx context.Context, teamID int64, userID snowflake.ID) error
	RemoveTeamMember(ctx context.Context, teamID int64, userID snowflake.ID) error
}

// Team wraps one persisted team. Scalar fields mirror the last row read
// from or written to the store; membership is never cached.
type Team struct {
	store Store

	mu     sync.RWMutex
	record models.Team
}

func newTeam(store Store, record *models.Team) *Team {
	return &Team{store: store, record: *record}
}

// ID returns the team's primary key
func (t *Team) ID() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record.ID
}

// GuildID returns the guild the team belongs to
func (t *Team) GuildID() snowflake.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record.GuildID
}

// Name returns the team name
func (t *Team) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record.Name
}

// LeadRoleID returns the role identifying team leads
func (t *Team) LeadRoleID() snowflake.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record.LeadRoleID
}

// MemberRoleID returns the role granted to team members
func (t *Team) MemberRoleID() snowflake.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record.MemberRoleID
}

// Snapshot returns a copy of the current fields
func (t *Team) Snapshot() models.Team {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.record
}

// Equal reports whether both aggregates refer to the same team row
func (t *Team) Equal(other *Team) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID() == other.ID()
}

func (t *Team) refresh(record *models.Team) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record = *record
}

// FetchMembers returns the user ids of the team's members
func (t *Team) FetchMembers(ctx context.Context) ([]snowflake.ID, error) {
	return t.store.GetTeamMembers(ctx, t.ID())
}

// AddMember records userID as a member. Adding an existing member is a no-op.
func (t *Team) AddMember(ctx context.Context, userID snowflake.ID) error {
	return t.store.AddTeamMember(ctx, t.ID(), userID)
}

// RemoveMember removes userID from the team. Removing a non-member is a no-op.
func (t *Team) RemoveMember(ctx context.Context, userID snowflake.ID) error {
	return t.store.RemoveTeamMember(ctx, t.ID(), userID)
}

// Edit persists the non-nil fields of update and then takes every field
// from the returned row. On error the aggregate is left unchanged.
func (t *Team) Edit(ctx context.Context, update models.TeamUpdate) error {
	record, err := t.store.UpdateTeam(ctx, t.ID(), update)
	if err != nil {
		return err
	}

	t.refresh(record)
	return nil
}

// Delete removes the team row. The caller evicts it from any cache.
func (t *Team) Delete(ctx context.Context) error {
	return t.store.DeleteTeam(ctx, t.ID())
}

// Info renders the team summary block shown by the info and list commands
func (t *Team) Info(ctx context.Context) (string, error) {
	members, err := t.FetchMembers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch team members: %w", err)
	}

	record := t.Snapshot()
	return fmt.Sprintf("```\nTeam: %s\nLead: %s\nRole: %s\nMember Count: %d\n```",
		record.Name, record.LeadRoleID, record.MemberRoleID, len(members)), nil
}
