// Package requestcmd implements /request schedule, a form that posts room
// schedule requests to a staff channel.
package requestcmd

import (
	"context"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
)

// Blurple is the embed color of a posted request
const Blurple = 0x5865F2

const (
	formPrefix = "request:schedule:"

	startInput       = "start"
	endInput         = "end"
	reasonInput      = "reason"
	reoccurringInput = "reoccurring"
	extraInput       = "extra"

	maxShortLength = 100
	maxFieldLength = 1024
)

// Client is the part of the REST API the module uses
type Client interface {
	CreateMessage(ctx context.Context, channelID snowflake.ID, msg *discord.MessageSend) (*discord.Message, error)
}

// Module holds the /request commands
type Module struct {
	client    Client
	channelID snowflake.ID
	logger    *zap.Logger
}

// New creates the request module. Requests are posted to channelID; zero
// leaves the command registered but refusing requests.
func New(client Client, channelID snowflake.ID, logger *zap.Logger) *Module {
	return &Module{
		client:    client,
		channelID: channelID,
		logger:    logger,
	}
}

// Register adds the /request commands to tree
func (m *Module) Register(tree *dispatch.Tree) {
	tree.AddGroup(&dispatch.Group{
		Name:        "request",
		Description: "Requests made to the staff",
		GuildOnly:   true,
	})

	tree.AddCommand(&dispatch.Command{
		Name:        "request schedule",
		Description: "Request a time slot in the room schedule",
		Handler:     m.schedule,
	})
}

func scheduleForm(formID string) *discord.Modal {
	optional := false

	start := discord.TextInput(discord.TextInputStyleShort, "Start Time", formID+":"+startInput, maxShortLength)
	start.Placeholder = "DOTW MM-DD(-YY) HH:MM AM/PM"
	start.Value = "Tuesday 12-01 10:00 PM"

	end := discord.TextInput(discord.TextInputStyleShort, "End Time", formID+":"+endInput, maxShortLength)
	end.Placeholder = "(MM-DD-YY) HH:MM AM/PM"
	end.Value = "11:00 PM"

	reason := discord.TextInput(discord.TextInputStyleParagraph, "1) What is this form being filled out for:", formID+":"+reasonInput, maxFieldLength)
	reason.Placeholder = "Ex: Overwatch Practice / Overwatch Away Game"

	reoccurring := discord.TextInput(discord.TextInputStyleShort, "2) Is this reoccurring weekly:", formID+":"+reoccurringInput, maxShortLength)
	reoccurring.Placeholder = "Yes or No"

	extra := discord.TextInput(discord.TextInputStyleParagraph, "3) Extra Information:", formID+":"+extraInput, maxFieldLength)
	extra.Required = &optional

	return &discord.Modal{
		CustomID: formID,
		Title:    "Schedule Request",
		Components: []*discord.Component{
			discord.ActionRow(start),
			discord.ActionRow(end),
			discord.ActionRow(reason),
			discord.ActionRow(reoccurring),
			discord.ActionRow(extra),
		},
	}
}

func (m *Module) schedule(ctx context.Context, e *dispatch.Event) error {
	if m.channelID == 0 {
		return apperrors.InvalidInvocation(apperrors.WithContent("Room requests are not enabled on this server."))
	}

	formID := formPrefix + e.ID.String()
	if err := e.Modal(ctx, scheduleForm(formID)); err != nil {
		return err
	}

	form := e.Listen(formID)
	defer form.Close(ctx)

	submit, ok := form.Next(ctx)
	if !ok {
		m.logger.Debug("schedule request form timed out", zap.Stringer("interaction_id", e.ID))
		return nil
	}

	if err := m.post(ctx, submit, formID); err != nil {
		submit.Fail(ctx, err)
	}
	return nil
}

// post sends the request embed to the request channel
func (m *Module) post(ctx context.Context, submit *dispatch.Event, formID string) error {
	value := func(input string) string {
		v, _ := submit.Data.TextInputValue(formID + ":" + input)
		return strings.TrimSpace(v)
	}

	request := &discord.Embed{
		Title: "Room Schedule Request",
		Color: Blurple,
		Fields: []*discord.EmbedField{
			{Name: "Start", Value: value(startInput), Inline: true},
			{Name: "End", Value: value(endInput), Inline: true},
			{Name: "Reason", Value: value(reasonInput)},
			{Name: "Reoccurring", Value: value(reoccurringInput), Inline: true},
		},
	}
	for _, field := range request.Fields {
		if field.Value == "" {
			return apperrors.InvalidParameter(apperrors.WithContentf("`%s` can not be empty.", field.Name))
		}
	}
	if extra := value(extraInput); extra != "" {
		request.Fields = append(request.Fields, &discord.EmbedField{Name: "Extra", Value: extra, Inline: true})
	}
	if author := submit.Author(); author != nil {
		request.Author = &discord.EmbedAuthor{Name: author.DisplayName(), IconURL: author.AvatarURL()}
	}

	if _, err := m.client.CreateMessage(ctx, m.channelID, &discord.MessageSend{
		Embeds:          []*discord.Embed{request},
		AllowedMentions: discord.NoMentions(),
	}); err != nil {
		return err
	}

	m.logger.Info("schedule request posted",
		zap.Stringer("guild_id", submit.GuildID),
		zap.Stringer("channel_id", m.channelID),
	)
	return submit.RespondEphemeral(ctx, "Time Requested")
}
