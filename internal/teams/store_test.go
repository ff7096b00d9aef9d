package teams

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/database"
	"github.com/parsascontentcorner/phoenix/internal/models"
)

// fakeStore is an in-memory Store with the same observable semantics as
// the PostgreSQL implementation.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	teams   map[int64]*models.Team
	members map[int64]map[snowflake.ID]struct{}

	getCalls     atomic.Int32
	listCalls    atomic.Int32
	getGate      chan struct{} // when set, GetTeam blocks until it is closed
	failNextWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:   make(map[int64]*models.Team),
		members: make(map[int64]map[snowflake.ID]struct{}),
	}
}

func (s *fakeStore) takeFailure() error {
	err := s.failNextWith
	s.failNextWith = nil
	return err
}

func (s *fakeStore) CreateTeam(_ context.Context, guildID snowflake.ID, name string, lead, member snowflake.ID) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	for _, t := range s.teams {
		if t.GuildID == guildID && t.Name == name {
			return nil, database.ErrUniqueViolation
		}
	}

	s.nextID++
	t := &models.Team{ID: s.nextID, GuildID: guildID, Name: name, LeadRoleID: lead, MemberRoleID: member}
	s.teams[t.ID] = t
	out := *t
	return &out, nil
}

func (s *fakeStore) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	s.getCalls.Add(1)
	if s.getGate != nil {
		select {
		case <-s.getGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := s.teams[id]
	if !ok {
		return nil, database.ErrTeamNotFound
	}
	out := *t
	return &out, nil
}

func (s *fakeStore) GetTeamsByGuild(_ context.Context, guildID snowflake.ID) ([]*models.Team, error) {
	s.listCalls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []*models.Team
	for _, t := range s.teams {
		if t.GuildID == guildID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) UpdateTeam(_ context.Context, id int64, update models.TeamUpdate) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	t, ok := s.teams[id]
	if !ok {
		return nil, database.ErrTeamNotFound
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.LeadRoleID != nil {
		t.LeadRoleID = *update.LeadRoleID
	}
	if update.MemberRoleID != nil {
		t.MemberRoleID = *update.MemberRoleID
	}
	out := *t
	return &out, nil
}

func (s *fakeStore) DeleteTeam(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}
	delete(s.teams, id)
	delete(s.members, id)
	return nil
}

func (s *fakeStore) GetTeamMembers(_ context.Context, teamID int64) ([]snowflake.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []snowflake.ID
	for id := range s.members[teamID] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *fakeStore) AddTeamMember(_ context.Context, teamID int64, userID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[teamID] == nil {
		s.members[teamID] = make(map[snowflake.ID]struct{})
	}
	s.members[teamID][userID] = struct{}{}
	return nil
}

func (s *fakeStore) RemoveTeamMember(_ context.Context, teamID int64, userID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.members[teamID], userID)
	return nil
}
