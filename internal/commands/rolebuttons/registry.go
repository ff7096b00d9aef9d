package rolebuttons

import (
	"sort"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/models"
)

// Registry holds the live role button interfaces. Entries are copied on
// the way in and out so callers never share a record.
type Registry struct {
	mu        sync.RWMutex
	byGuild   map[snowflake.ID]map[string]*models.RoleButtonInterface
	byMessage map[snowflake.ID]*models.RoleButtonInterface
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byGuild:   make(map[snowflake.ID]map[string]*models.RoleButtonInterface),
		byMessage: make(map[snowflake.ID]*models.RoleButtonInterface),
	}
}

func clone(iface *models.RoleButtonInterface) *models.RoleButtonInterface {
	out := *iface
	out.Roles = append(out.Roles[:0:0], iface.Roles...)
	return &out
}

// Put adds or replaces the interface with the same guild and name
func (r *Registry) Put(iface *models.RoleButtonInterface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	guild, ok := r.byGuild[iface.GuildID]
	if !ok {
		guild = make(map[string]*models.RoleButtonInterface)
		r.byGuild[iface.GuildID] = guild
	}
	if old, ok := guild[iface.Name]; ok {
		delete(r.byMessage, old.MessageID)
	}

	stored := clone(iface)
	guild[iface.Name] = stored
	r.byMessage[iface.MessageID] = stored
}

// Get returns the guild's interface called name
func (r *Registry) Get(guildID snowflake.ID, name string) (*models.RoleButtonInterface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iface, ok := r.byGuild[guildID][name]
	if !ok {
		return nil, false
	}
	return clone(iface), true
}

// ByMessage returns the interface whose buttons live on messageID
func (r *Registry) ByMessage(messageID snowflake.ID) (*models.RoleButtonInterface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iface, ok := r.byMessage[messageID]
	if !ok {
		return nil, false
	}
	return clone(iface), true
}

// Remove drops the guild's interface called name
func (r *Registry) Remove(guildID snowflake.ID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	guild := r.byGuild[guildID]
	iface, ok := guild[name]
	if !ok {
		return
	}
	delete(r.byMessage, iface.MessageID)
	delete(guild, name)
	if len(guild) == 0 {
		delete(r.byGuild, guildID)
	}
}

// Names lists the guild's interface names in order
func (r *Registry) Names(guildID snowflake.ID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byGuild[guildID]))
	for name := range r.byGuild[guildID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of interfaces across all guilds
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMessage)
}
