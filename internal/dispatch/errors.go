package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/discord"
)

const (
	alertTitle         = "Unhandled Exception Alert"
	alertTracebackFile = "traceback.txt"
	maxAlertSummary    = 1000
)

var errNoOperatorChannel = errors.New("operator channel not configured")

// InvokeError wraps an unexpected failure raised by a handler
type InvokeError struct {
	Command string
	Err     error
	Stack   string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// Traceback is the error and the stack where it surfaced
func (e *InvokeError) Traceback() string {
	return fmt.Sprintf("%s\n\n%s", e.Error(), e.Stack)
}

// OnError reports err to the user who triggered e:
//   - user-facing errors are shown as they are, without alerting;
//   - handler failures get the generic internal notice, an operator alert
//     and an error log;
//   - anything else is shown as an unknown error and logged.
func (t *Tree) OnError(ctx context.Context, e *Event, err error) {
	if appErr, ok := apperrors.As(err); ok && appErr.Kind.IsA(apperrors.KindInternal) {
		t.metrics.ObserveHandledError(appErr.Kind.String())
		t.notify(ctx, e, appErr)
		t.logger.Debug("interaction rejected",
			zap.String("kind", appErr.Kind.String()),
			zap.Stringer("interaction_id", e.ID),
			zap.Error(err),
		)
		return
	}

	var invokeErr *InvokeError
	if errors.As(err, &invokeErr) {
		t.metrics.ObserveHandledError("invoke")
		t.notify(ctx, e, apperrors.Internal())

		incident, alertErr := t.alert(ctx, e, invokeErr)
		if !errors.Is(alertErr, errNoOperatorChannel) {
			t.metrics.ObserveAlert(alertErr)
		}
		if alertErr != nil {
			t.logger.Warn("failed to alert operators", zap.String("incident", incident), zap.Error(alertErr))
		}

		t.logger.Error("command raised an unexpected error",
			zap.String("command", invokeErr.Command),
			zap.Stringer("interaction_id", e.ID),
			zap.String("incident", incident),
			zap.Error(invokeErr.Err),
			zap.String("stack", invokeErr.Stack),
		)
		return
	}

	unknown := apperrors.Unknown(err)
	t.metrics.ObserveHandledError(unknown.Kind.String())
	t.notify(ctx, e, unknown)
	t.logger.Error("unhandled interaction error", zap.Stringer("interaction_id", e.ID), zap.Error(err))
}

// notify sends the error's notification as one ephemeral message
func (t *Tree) notify(ctx context.Context, e *Event, appErr *apperrors.Error) {
	err := e.Respond(ctx, &discord.MessageSend{
		Embeds:          []*discord.Embed{appErr.Notification(e.Interaction)},
		Flags:           discord.MessageFlagEphemeral,
		AllowedMentions: discord.NoMentions(),
	})
	if err != nil {
		t.logger.Error("failed to deliver error notification", zap.Stringer("interaction_id", e.ID), zap.Error(err))
	}
}

// alert posts the failure to the operator channel with the traceback attached
func (t *Tree) alert(ctx context.Context, e *Event, invokeErr *InvokeError) (string, error) {
	incident := uuid.NewString()
	if t.operatorChannelID == 0 {
		return incident, errNoOperatorChannel
	}

	user := "unknown"
	if author := e.Author(); author != nil {
		user = fmt.Sprintf("%s (%s)", author.Mention(), author.ID)
	}
	guild := "direct message"
	if e.InGuild() {
		guild = e.GuildID.String()
	}
	channel := "unknown"
	if e.ChannelID != 0 {
		channel = discord.ChannelMention(e.ChannelID)
	}

	summary := strings.ReplaceAll(truncate(invokeErr.Err.Error(), maxAlertSummary), "```", "'''")

	msg := &discord.MessageSend{
		Embeds: []*discord.Embed{{
			Title:       alertTitle,
			Description: fmt.Sprintf("```\n%s\n```", summary),
			Color:       apperrors.Color,
			Fields: []*discord.EmbedField{
				{Name: "Command", Value: "/" + invokeErr.Command, Inline: true},
				{Name: "Guild", Value: guild, Inline: true},
				{Name: "Channel", Value: channel, Inline: true},
				{Name: "User", Value: user},
			},
			Footer: &discord.EmbedFooter{Text: "Incident " + incident},
		}},
		AllowedMentions: discord.NoMentions(),
		Files: []*discord.File{{
			Name:        alertTracebackFile,
			ContentType: "text/plain",
			Data:        []byte(invokeErr.Traceback()),
		}},
	}

	if _, err := t.client.CreateMessage(ctx, t.operatorChannelID, msg); err != nil {
		return incident, fmt.Errorf("failed to post operator alert: %w", err)
	}
	return incident, nil
}

// truncate cuts s to at most n characters, marking the cut with "..."
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Fail reports err for an interaction handled outside the tree's own
// invocation, such as an awaited component, exactly as a failed handler
// would be reported
func (e *Event) Fail(ctx context.Context, err error) {
	var invokeErr *InvokeError
	if !errors.As(err, &invokeErr) {
		name := e.CommandName()
		if name == "" && e.Data != nil {
			name = e.Data.CustomID
		}
		err = &InvokeError{Command: name, Err: err, Stack: string(debug.Stack())}
	}
	e.tree.OnError(ctx, e, err)
}
