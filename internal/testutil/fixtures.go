package testutil

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/discord"
)

// Fixed ids used across tests.
const (
	TestApplicationID     snowflake.ID = 100000000000000001
	TestGuildID           snowflake.ID = 200000000000000002
	TestChannelID         snowflake.ID = 300000000000000003
	TestOperatorChannelID snowflake.ID = 300000000000000099
	TestRequestChannelID  snowflake.ID = 300000000000000098
	TestUserID            snowflake.ID = 400000000000000004
	TestDeveloperID       snowflake.ID = 400000000000000077
)

var interactionSeq atomic.Uint64

// NewInteractionID returns a fresh interaction id.
func NewInteractionID() snowflake.ID {
	return snowflake.ID(500000000000000000 + interactionSeq.Add(1))
}

// GenerateTestConfig creates a test configuration with valid values.
func GenerateTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			HTTPPort: "8080",
			GRPCPort: "50051",
			Env:      "test",
		},
		Discord: config.DiscordConfig{
			BotToken:          "test_bot_token",
			ApplicationID:     TestApplicationID,
			OperatorChannelID: TestOperatorChannelID,
			RequestChannelID:  TestRequestChannelID,
			DeveloperIDs:      []snowflake.ID{TestDeveloperID},
			APIBaseURL:        "https://discord.com/api/v10",
		},
		Database: config.DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "testuser",
			Password:     "testpass",
			Name:         "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Cache: config.CacheConfig{
			TeamsPerGuild: 128,
			Guilds:        128,
		},
		UI: config.UIConfig{
			Timeout: 2 * time.Second,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}

// GenerateMember creates a guild member holding the given roles.
func GenerateMember(userID snowflake.ID, perms discord.Permissions, roles ...snowflake.ID) *discord.Member {
	return &discord.Member{
		User: &discord.User{
			ID:       userID,
			Username: "testuser_" + userID.String(),
		},
		Roles:       roles,
		Permissions: perms,
	}
}

// GenerateCommandInteraction creates a slash command interaction. name may
// contain spaces ("team members") and is expanded into subcommand options.
func GenerateCommandInteraction(member *discord.Member, name string, opts ...*discord.CommandOption) *discord.Interaction {
	parts := strings.Fields(name)
	leaf := opts
	for i := len(parts) - 1; i > 0; i-- {
		typ := discord.OptionTypeSubCommand
		if i < len(parts)-1 {
			typ = discord.OptionTypeSubCommandGroup
		}
		leaf = []*discord.CommandOption{{Name: parts[i], Type: typ, Options: leaf}}
	}

	i := baseInteraction(member, discord.InteractionTypeApplicationCommand)
	i.Data = &discord.InteractionData{
		ID:      NewInteractionID(),
		Name:    parts[0],
		Options: leaf,
	}
	return i
}

// GenerateAutocompleteInteraction creates an autocomplete interaction with one focused option.
func GenerateAutocompleteInteraction(member *discord.Member, name, option, typed string) *discord.Interaction {
	focused := StringOption(option, typed)
	focused.Focused = true
	i := GenerateCommandInteraction(member, name, focused)
	i.Type = discord.InteractionTypeAutocomplete
	return i
}

// GenerateComponentInteraction creates a button or select interaction.
func GenerateComponentInteraction(member *discord.Member, customID string, values ...string) *discord.Interaction {
	componentType := discord.ComponentTypeButton
	if len(values) > 0 {
		componentType = discord.ComponentTypeUserSelect
	}

	i := baseInteraction(member, discord.InteractionTypeMessageComponent)
	i.Data = &discord.InteractionData{
		CustomID:      customID,
		ComponentType: componentType,
		Values:        values,
	}
	i.Message = &discord.Message{ID: NewInteractionID(), ChannelID: TestChannelID}
	return i
}

// GenerateModalSubmitInteraction creates a modal submission with text input values keyed by custom id.
func GenerateModalSubmitInteraction(member *discord.Member, customID string, fields map[string]string) *discord.Interaction {
	var rows []*discord.Component
	for id, value := range fields {
		rows = append(rows, discord.ActionRow(&discord.Component{
			Type:     discord.ComponentTypeTextInput,
			CustomID: id,
			Value:    value,
		}))
	}

	i := baseInteraction(member, discord.InteractionTypeModalSubmit)
	i.Data = &discord.InteractionData{
		CustomID:   customID,
		Components: rows,
	}
	return i
}

func baseInteraction(member *discord.Member, typ discord.InteractionType) *discord.Interaction {
	id := NewInteractionID()
	return &discord.Interaction{
		ID:            id,
		ApplicationID: TestApplicationID,
		Type:          typ,
		GuildID:       TestGuildID,
		ChannelID:     TestChannelID,
		Member:        member,
		Token:         "token_" + id.String(),
	}
}

// StringOption creates a string command option.
func StringOption(name, value string) *discord.CommandOption {
	raw, _ := json.Marshal(value)
	return &discord.CommandOption{Name: name, Type: discord.OptionTypeString, Value: raw}
}

// UserOption creates a user command option.
func UserOption(name string, id snowflake.ID) *discord.CommandOption {
	raw, _ := json.Marshal(id.String())
	return &discord.CommandOption{Name: name, Type: discord.OptionTypeUser, Value: raw}
}

// RoleOption creates a role command option.
func RoleOption(name string, id snowflake.ID) *discord.CommandOption {
	raw, _ := json.Marshal(id.String())
	return &discord.CommandOption{Name: name, Type: discord.OptionTypeRole, Value: raw}
}
