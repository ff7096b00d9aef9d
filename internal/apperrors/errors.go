// Package apperrors defines the user-facing error kinds raised by command
// handlers and how they are rendered back to the invoking user.
package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parsascontentcorner/phoenix/internal/discord"
)

// Color is the embed color of every error notification
const Color = 0xC6612A

// Kind is the closed set of error kinds
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindCheckFailure
	KindInvalidAuthorization
	KindInvalidInvocation
	KindInvalidParameter
	KindTransformation
	KindInitialization
)

type kindInfo struct {
	name    string
	parent  Kind
	title   string
	content string
}

var kinds = map[Kind]kindInfo{
	KindUnknown: {
		name:    "unknown",
		parent:  KindUnknown,
		title:   "Unknown Error",
		content: "an unexpected error occurred",
	},
	KindInternal: {
		name:    "internal",
		parent:  KindInternal,
		title:   "Internal Error",
		content: "an unhandled internal error occurred. if this continues please submit a ticket",
	},
	KindCheckFailure: {
		name:    "check_failure",
		parent:  KindInternal,
		title:   "You can not use this command",
		content: "Default, Bot Devs need to provide better info here",
	},
	KindInvalidAuthorization: {
		name:    "invalid_authorization",
		parent:  KindCheckFailure,
		title:   "Invalid Authorization",
		content: "```\nYou do not have access to run this command\n```",
	},
	KindInvalidInvocation: {
		name:    "invalid_invocation",
		parent:  KindCheckFailure,
		title:   "Invalid Invocation",
		content: "```\nThis command can not be ran here\n```",
	},
	KindInvalidParameter: {
		name:    "invalid_parameter",
		parent:  KindCheckFailure,
		title:   "Invalid Parameters",
		content: "The information provided to the command was invalid",
	},
	KindTransformation: {
		name:    "transformation",
		parent:  KindInvalidParameter,
		title:   "Invalid Parameters",
		content: "The information provided to the command was invalid",
	},
	KindInitialization: {
		name:    "initialization",
		parent:  KindInternal,
		title:   "Internal Error",
		content: "an unhandled internal error occurred. if this continues please submit a ticket",
	},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return kinds[KindUnknown].name
}

// IsA reports whether k is target or one of its subkinds
func (k Kind) IsA(target Kind) bool {
	for {
		if k == target {
			return true
		}
		info, ok := kinds[k]
		if !ok || info.parent == k {
			return false
		}
		k = info.parent
	}
}

// Error is an error with a user-facing title and content.
// Content may contain {user}, {guild}, {channel} and {command} placeholders.
type Error struct {
	Kind    Kind
	Title   string
	Content string
	Cause   error
}

// Sentinels for errors.Is. Matching follows the kind hierarchy, so
// errors.Is(InvalidAuthorization(), ErrCheckFailure) is true.
var (
	ErrInternal             = &Error{Kind: KindInternal}
	ErrCheckFailure         = &Error{Kind: KindCheckFailure}
	ErrInvalidAuthorization = &Error{Kind: KindInvalidAuthorization}
	ErrInvalidInvocation    = &Error{Kind: KindInvalidInvocation}
	ErrInvalidParameter     = &Error{Kind: KindInvalidParameter}
	ErrTransformation       = &Error{Kind: KindTransformation}
	ErrInitialization       = &Error{Kind: KindInitialization}
)

func (e *Error) Error() string {
	msg := e.Title
	if e.Content != "" {
		msg += ": " + strings.Trim(e.Content, "`\n")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error whose kind is e's kind or an ancestor of it
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind.IsA(t.Kind)
}

// Option overrides a default field of a new Error
type Option func(*Error)

// WithTitle overrides the default title
func WithTitle(title string) Option {
	return func(e *Error) { e.Title = title }
}

// WithContent overrides the default content
func WithContent(content string) Option {
	return func(e *Error) { e.Content = content }
}

// WithContentf overrides the default content with a formatted string
func WithContentf(format string, args ...any) Option {
	return func(e *Error) { e.Content = fmt.Sprintf(format, args...) }
}

// WithCause attaches the underlying error
func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

// New creates an error of the given kind with its default title and content
func New(kind Kind, opts ...Option) *Error {
	info, ok := kinds[kind]
	if !ok {
		kind, info = KindUnknown, kinds[KindUnknown]
	}
	e := &Error{Kind: kind, Title: info.title, Content: info.content}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Internal(opts ...Option) *Error             { return New(KindInternal, opts...) }
func CheckFailure(opts ...Option) *Error         { return New(KindCheckFailure, opts...) }
func InvalidAuthorization(opts ...Option) *Error { return New(KindInvalidAuthorization, opts...) }
func InvalidInvocation(opts ...Option) *Error    { return New(KindInvalidInvocation, opts...) }
func InvalidParameter(opts ...Option) *Error     { return New(KindInvalidParameter, opts...) }
func Transformation(opts ...Option) *Error       { return New(KindTransformation, opts...) }
func Initialization(opts ...Option) *Error       { return New(KindInitialization, opts...) }

// Unknown wraps an error that carries no user-facing information. Its
// content is the error string.
func Unknown(err error) *Error {
	e := New(KindUnknown, WithCause(err))
	if err != nil {
		e.Content = err.Error()
	}
	return e
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Notification renders the error as an embed for the interaction that failed
func (e *Error) Notification(i *discord.Interaction) *discord.Embed {
	return &discord.Embed{
		Title:       e.Title,
		Description: interpolate(e.Content, i),
		Color:       Color,
	}
}

func interpolate(content string, i *discord.Interaction) string {
	if i == nil || !strings.Contains(content, "{") {
		return content
	}

	user, guild, channel, command := "", "", "", ""
	if author := i.Author(); author != nil {
		user = author.Mention()
	}
	if i.InGuild() {
		guild = i.GuildID.String()
	}
	if i.ChannelID != 0 {
		channel = discord.ChannelMention(i.ChannelID)
	}
	if name := i.CommandName(); name != "" {
		command = "/" + name
	}

	return strings.NewReplacer(
		"{user}", user,
		"{guild}", guild,
		"{channel}", channel,
		"{command}", command,
	).Replace(content)
}
