package teams

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/parsascontentcorner/phoenix/internal/cache"
	"github.com/parsascontentcorner/phoenix/internal/database"
	"github.com/parsascontentcorner/phoenix/internal/metrics"
	"github.com/parsascontentcorner/phoenix/internal/models"
)

const (
	teamCacheName = "teams"
	fetchTimeout  = 10 * time.Second
)

// Guild is the team view of one guild
type Guild struct {
	id      snowflake.ID
	store   Store
	teams   *cache.Bounded[int64, *Team]
	fetches singleflight.Group
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newGuild(id snowflake.ID, store Store, limit int, m *metrics.Metrics, logger *zap.Logger) *Guild {
	return &Guild{
		id:      id,
		store:   store,
		teams:   cache.New[int64, *Team](limit),
		metrics: m,
		logger:  logger.With(zap.String("guild_id", id.String())),
	}
}

// ID returns the guild id
func (g *Guild) ID() snowflake.ID {
	return g.id
}

// cacheRecord refreshes the cached aggregate for record in place, or caches a new one
func (g *Guild) cacheRecord(record *models.Team) *Team {
	if team, ok := g.teams.Get(record.ID); ok {
		team.refresh(record)
		return team
	}

	team := newTeam(g.store, record)
	g.teams.Put(record.ID, team)
	return team
}

// CreateTeam persists a new team and caches it. A name already used in
// the guild yields database.ErrUniqueViolation.
func (g *Guild) CreateTeam(ctx context.Context, name string, leadRoleID, memberRoleID snowflake.ID) (*Team, error) {
	record, err := g.store.CreateTeam(ctx, g.id, name, leadRoleID, memberRoleID)
	if err != nil {
		return nil, err
	}

	g.logger.Info("team created",
		zap.Int64("team_id", record.ID),
		zap.String("name", record.Name),
	)

	return g.cacheRecord(record), nil
}

// GetTeam looks up a team in the cache only
func (g *Guild) GetTeam(id int64) (*Team, bool) {
	team, ok := g.teams.Get(id)
	g.metrics.ObserveCacheLookup(teamCacheName, ok)
	return team, ok
}

// FetchTeam reads a team from the database and caches it. The second
// return value is false when no team with that id exists in this guild.
// Concurrent fetches of the same id share one query; a caller whose ctx
// ends stops waiting without failing the others.
func (g *Guild) FetchTeam(ctx context.Context, id int64) (*Team, bool, error) {
	ch := g.fetches.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		record, err := g.store.GetTeam(fetchCtx, id)
		if err != nil {
			if errors.Is(err, database.ErrTeamNotFound) {
				return (*Team)(nil), nil
			}
			return nil, err
		}

		if record.GuildID != g.id {
			return (*Team)(nil), nil
		}

		return g.cacheRecord(record), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		team := res.Val.(*Team)
		return team, team != nil, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// FetchTeams reads every team of the guild from the database and refreshes
// each cache entry. It always queries.
func (g *Guild) FetchTeams(ctx context.Context) ([]*Team, error) {
	records, err := g.store.GetTeamsByGuild(ctx, g.id)
	if err != nil {
		return nil, err
	}

	teams := make([]*Team, 0, len(records))
	for _, record := range records {
		teams = append(teams, g.cacheRecord(record))
	}

	return teams, nil
}

// FindTeam returns the team with exactly the given name
func (g *Guild) FindTeam(ctx context.Context, name string) (*Team, bool, error) {
	teams, err := g.FetchTeams(ctx)
	if err != nil {
		return nil, false, err
	}

	for _, team := range teams {
		if team.Name() == name {
			return team, true, nil
		}
	}

	return nil, false, nil
}

// DeleteTeam deletes the team and evicts it from the cache
func (g *Guild) DeleteTeam(ctx context.Context, team *Team) error {
	if err := team.Delete(ctx); err != nil {
		return err
	}

	g.teams.Remove(team.ID())
	g.logger.Info("team deleted",
		zap.Int64("team_id", team.ID()),
		zap.String("name", team.Name()),
	)

	return nil
}
