package teams

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/cache"
	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/metrics"
)

const guildCacheName = "guilds"

// Registry hands out the Guild aggregate for a guild id, keeping the most
// recently used ones in memory
type Registry struct {
	store     Store
	teamLimit int
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu     sync.Mutex
	guilds *cache.Bounded[snowflake.ID, *Guild]
}

// NewRegistry creates a registry with the cache capacities from cfg
func NewRegistry(store Store, cfg config.CacheConfig, m *metrics.Metrics, logger *zap.Logger) *Registry {
	return &Registry{
		store:     store,
		teamLimit: cfg.TeamsPerGuild,
		metrics:   m,
		logger:    logger,
		guilds:    cache.New[snowflake.ID, *Guild](cfg.Guilds),
	}
}

// Guild returns the cached aggregate for guildID, creating it on a miss
func (r *Registry) Guild(guildID snowflake.ID) *Guild {
	r.mu.Lock()
	defer r.mu.Unlock()

	if guild, ok := r.guilds.Get(guildID); ok {
		r.metrics.ObserveCacheLookup(guildCacheName, true)
		return guild
	}
	r.metrics.ObserveCacheLookup(guildCacheName, false)

	guild := newGuild(guildID, r.store, r.teamLimit, r.metrics, r.logger)
	r.guilds.Put(guildID, guild)
	return guild
}
