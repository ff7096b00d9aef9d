package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/discord"
)

// Event is an interaction being handled, with the reply helpers bound to it
type Event struct {
	*discord.Interaction
	tree *Tree
}

// Logger returns the tree logger annotated with the interaction
func (e *Event) Logger() *zap.Logger {
	return e.tree.logger.With(zap.Stringer("interaction_id", e.ID))
}

// Respond sends msg as the initial response, or as a followup when the
// interaction already has one. Every reply path goes through here.
func (e *Event) Respond(ctx context.Context, msg *discord.MessageSend) error {
	if e.Responded() {
		if _, err := e.tree.client.CreateFollowupMessage(ctx, e.Interaction, msg); err != nil {
			return fmt.Errorf("failed to send followup: %w", err)
		}
		return nil
	}

	err := e.tree.client.CreateInteractionResponse(ctx, e.Interaction, &discord.InteractionResponse{
		Type: discord.ResponseChannelMessageWithSource,
		Data: msg,
	})
	if err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}

// RespondEphemeral replies with plain content only the invoker can see
func (e *Event) RespondEphemeral(ctx context.Context, content string) error {
	return e.Respond(ctx, &discord.MessageSend{
		Content:         content,
		Flags:           discord.MessageFlagEphemeral,
		AllowedMentions: discord.NoMentions(),
	})
}

// Defer acknowledges the interaction; the reply follows later through
// EditResponse or Respond
func (e *Event) Defer(ctx context.Context, ephemeral bool) error {
	data := &discord.MessageSend{}
	if ephemeral {
		data.Flags = discord.MessageFlagEphemeral
	}
	return e.initial(ctx, discord.ResponseDeferredChannelMessageWithSource, data)
}

// DeferUpdate acknowledges a component interaction without changing its message
func (e *Event) DeferUpdate(ctx context.Context) error {
	return e.initial(ctx, discord.ResponseDeferredUpdateMessage, nil)
}

// UpdateMessage replaces the message a component is attached to
func (e *Event) UpdateMessage(ctx context.Context, msg *discord.MessageSend) error {
	return e.initial(ctx, discord.ResponseUpdateMessage, msg)
}

// Modal opens a modal in response to the interaction
func (e *Event) Modal(ctx context.Context, modal *discord.Modal) error {
	return e.initial(ctx, discord.ResponseModal, modal)
}

// Autocomplete answers an autocomplete interaction
func (e *Event) Autocomplete(ctx context.Context, choices []*discord.Choice) error {
	if choices == nil {
		choices = []*discord.Choice{}
	}
	return e.initial(ctx, discord.ResponseAutocompleteResult, &discord.AutocompleteChoices{Choices: choices})
}

// EditResponse edits the original response
func (e *Event) EditResponse(ctx context.Context, edit *discord.MessageEdit) error {
	if _, err := e.tree.client.EditOriginalResponse(ctx, e.Interaction, edit); err != nil {
		return fmt.Errorf("failed to edit response: %w", err)
	}
	return nil
}

// Listen opens a long-lived view on customIDs with the UI timeout
func (e *Event) Listen(customIDs ...string) *Listener {
	return e.tree.Listen(0, customIDs...)
}

func (e *Event) initial(ctx context.Context, typ discord.InteractionResponseType, data any) error {
	if e.Responded() {
		return fmt.Errorf("interaction %s already has a response", e.ID)
	}
	if err := e.tree.client.CreateInteractionResponse(ctx, e.Interaction, &discord.InteractionResponse{Type: typ, Data: data}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}
