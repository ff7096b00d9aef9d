// Package discord contains the Discord API types the bot exchanges with the
// gateway and the REST API, and a rate-limited REST client.
package discord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"
)

// InteractionType identifies what kind of interaction Discord delivered
type InteractionType int

const (
	InteractionTypePing               InteractionType = 1
	InteractionTypeApplicationCommand InteractionType = 2
	InteractionTypeMessageComponent   InteractionType = 3
	InteractionTypeAutocomplete       InteractionType = 4
	InteractionTypeModalSubmit        InteractionType = 5
)

func (t InteractionType) String() string {
	switch t {
	case InteractionTypePing:
		return "ping"
	case InteractionTypeApplicationCommand:
		return "application_command"
	case InteractionTypeMessageComponent:
		return "message_component"
	case InteractionTypeAutocomplete:
		return "autocomplete"
	case InteractionTypeModalSubmit:
		return "modal_submit"
	default:
		return "unknown"
	}
}

// Interaction is an inbound slash command, component click, autocomplete
// request or modal submission
type Interaction struct {
	ID            snowflake.ID     `json:"id"`
	ApplicationID snowflake.ID     `json:"application_id"`
	Type          InteractionType  `json:"type"`
	Data          *InteractionData `json:"data,omitempty"`
	GuildID       snowflake.ID     `json:"guild_id,omitempty"`
	ChannelID     snowflake.ID     `json:"channel_id,omitempty"`
	Member        *Member          `json:"member,omitempty"`
	User          *User            `json:"user,omitempty"`
	Token         string           `json:"token"`
	Message       *Message         `json:"message,omitempty"`
	Locale        string           `json:"locale,omitempty"`

	responded atomic.Bool
}

// Responded reports whether an initial response was already sent
func (i *Interaction) Responded() bool {
	return i.responded.Load()
}

// MarkResponded records that the initial response was sent
func (i *Interaction) MarkResponded() {
	i.responded.Store(true)
}

// InGuild reports whether the interaction was invoked inside a guild
func (i *Interaction) InGuild() bool {
	return i.GuildID != 0
}

// Author returns the invoking user, whether the interaction came from a guild or a DM
func (i *Interaction) Author() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// CommandName returns the fully qualified command name, e.g. "team members"
func (i *Interaction) CommandName() string {
	if i.Data == nil || i.Data.Name == "" {
		return ""
	}
	parts := []string{i.Data.Name}
	opts := i.Data.Options
	for len(opts) == 1 && opts[0].Type.IsSubcommand() {
		parts = append(parts, opts[0].Name)
		opts = opts[0].Options
	}
	return strings.Join(parts, " ")
}

// Options returns the leaf options after descending through subcommands
func (i *Interaction) Options() []*CommandOption {
	if i.Data == nil {
		return nil
	}
	opts := i.Data.Options
	for len(opts) == 1 && opts[0].Type.IsSubcommand() {
		opts = opts[0].Options
	}
	return opts
}

// InteractionData carries the payload specific to the interaction type
type InteractionData struct {
	ID            snowflake.ID     `json:"id,omitempty"`
	Name          string           `json:"name,omitempty"`
	Type          int              `json:"type,omitempty"`
	Options       []*CommandOption `json:"options,omitempty"`
	Resolved      *Resolved        `json:"resolved,omitempty"`
	CustomID      string           `json:"custom_id,omitempty"`
	ComponentType ComponentType    `json:"component_type,omitempty"`
	Values        []string         `json:"values,omitempty"`
	Components    []*Component     `json:"components,omitempty"`
}

// TextInputValue finds a submitted text input by custom id in a modal submission
func (d *InteractionData) TextInputValue(customID string) (string, bool) {
	var walk func([]*Component) (string, bool)
	walk = func(components []*Component) (string, bool) {
		for _, c := range components {
			if c.Type == ComponentTypeTextInput && c.CustomID == customID {
				return c.Value, true
			}
			if v, ok := walk(c.Components); ok {
				return v, true
			}
		}
		return "", false
	}
	return walk(d.Components)
}

// Resolved holds the full objects for ids referenced by options and selects
type Resolved struct {
	Users   map[snowflake.ID]*User   `json:"users,omitempty"`
	Members map[snowflake.ID]*Member `json:"members,omitempty"`
	Roles   map[snowflake.ID]*Role   `json:"roles,omitempty"`
}

// OptionType is the type of an application command option
type OptionType int

const (
	OptionTypeSubCommand      OptionType = 1
	OptionTypeSubCommandGroup OptionType = 2
	OptionTypeString          OptionType = 3
	OptionTypeInteger         OptionType = 4
	OptionTypeBoolean         OptionType = 5
	OptionTypeUser            OptionType = 6
	OptionTypeChannel         OptionType = 7
	OptionTypeRole            OptionType = 8
	OptionTypeMentionable     OptionType = 9
	OptionTypeNumber          OptionType = 10
)

// IsSubcommand reports whether the option nests further options
func (t OptionType) IsSubcommand() bool {
	return t == OptionTypeSubCommand || t == OptionTypeSubCommandGroup
}

// CommandOption is a single option value sent with an interaction
type CommandOption struct {
	Name    string           `json:"name"`
	Type    OptionType       `json:"type"`
	Value   json.RawMessage  `json:"value,omitempty"`
	Options []*CommandOption `json:"options,omitempty"`
	Focused bool             `json:"focused,omitempty"`
}

// StringValue decodes the option value as a string
func (o *CommandOption) StringValue() string {
	var s string
	if err := json.Unmarshal(o.Value, &s); err != nil {
		return strings.Trim(string(o.Value), `"`)
	}
	return s
}

// IntValue decodes the option value as an integer
func (o *CommandOption) IntValue() (int64, error) {
	var n json.Number
	if err := json.Unmarshal(o.Value, &n); err != nil {
		return 0, fmt.Errorf("failed to decode option %q: %w", o.Name, err)
	}
	return n.Int64()
}

// BoolValue decodes the option value as a boolean
func (o *CommandOption) BoolValue() bool {
	var b bool
	_ = json.Unmarshal(o.Value, &b)
	return b
}

// IDValue decodes a user, role, channel or mentionable option
func (o *CommandOption) IDValue() (snowflake.ID, error) {
	id, err := snowflake.Parse(o.StringValue())
	if err != nil {
		return 0, fmt.Errorf("failed to parse option %q as id: %w", o.Name, err)
	}
	return id, nil
}

// FindOption returns the option with the given name
func FindOption(opts []*CommandOption, name string) (*CommandOption, bool) {
	for _, opt := range opts {
		if opt.Name == name {
			return opt, true
		}
	}
	return nil, false
}

// FocusedOption returns the option the user is typing in during autocomplete
func FocusedOption(opts []*CommandOption) (*CommandOption, bool) {
	for _, opt := range opts {
		if opt.Focused {
			return opt, true
		}
	}
	return nil, false
}

const cdnURL = "https://cdn.discordapp.com"

// User is a Discord user
type User struct {
	ID         snowflake.ID `json:"id"`
	Username   string       `json:"username"`
	GlobalName string       `json:"global_name,omitempty"`
	Avatar     string       `json:"avatar,omitempty"`
	Bot        bool         `json:"bot,omitempty"`
}

// Mention returns the user mention markup
func (u *User) Mention() string {
	return "<@" + u.ID.String() + ">"
}

// AvatarURL returns the CDN url of the user's avatar, or of the default
// avatar when none is set
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return fmt.Sprintf("%s/embed/avatars/%d.png", cdnURL, (u.ID>>22)%6)
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", cdnURL, u.ID, u.Avatar)
}

// DisplayName prefers the global display name over the username
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Member is a user's membership in a guild
type Member struct {
	User        *User          `json:"user,omitempty"`
	Nick        string         `json:"nick,omitempty"`
	Roles       []snowflake.ID `json:"roles"`
	Permissions Permissions    `json:"permissions,omitempty"`
}

// HasRole reports whether the member holds roleID
func (m *Member) HasRole(roleID snowflake.ID) bool {
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a guild role
type Role struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Color       int          `json:"color"`
	Position    int          `json:"position"`
	Permissions Permissions  `json:"permissions"`
	Managed     bool         `json:"managed"`
}

// Mention returns the role mention markup
func (r *Role) Mention() string {
	return RoleMention(r.ID)
}

// RoleMention returns the mention markup for a role id
func RoleMention(id snowflake.ID) string {
	return "<@&" + id.String() + ">"
}

// ChannelMention returns the mention markup for a channel id
func ChannelMention(id snowflake.ID) string {
	return "<#" + id.String() + ">"
}

// Permissions is a Discord permission bit set, serialized as a decimal string
type Permissions int64

const (
	PermissionAdministrator  Permissions = 1 << 3
	PermissionManageChannels Permissions = 1 << 4
	PermissionManageGuild    Permissions = 1 << 5
	PermissionSendMessages   Permissions = 1 << 11
	PermissionManageMessages Permissions = 1 << 13
	PermissionManageRoles    Permissions = 1 << 28
)

// Has reports whether all bits of perm are set; Administrator implies everything
func (p Permissions) Has(perm Permissions) bool {
	if p&PermissionAdministrator == PermissionAdministrator {
		return true
	}
	return p&perm == perm
}

// MarshalJSON encodes the bit set as a string
func (p Permissions) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(int64(p), 10))), nil
}

// UnmarshalJSON accepts both string and numeric encodings
func (p *Permissions) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse permissions: %w", err)
	}
	*p = Permissions(v)
	return nil
}

// Embed is a rich message embed
type Embed struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Color       int           `json:"color,omitempty"`
	Author      *EmbedAuthor  `json:"author,omitempty"`
	Fields      []*EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter  `json:"footer,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"`
}

// EmbedField is a name/value pair inside an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedAuthor is the attribution line at the top of an embed
type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

// EmbedFooter is the footer line of an embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// ComponentType identifies a message component
type ComponentType int

const (
	ComponentTypeActionRow  ComponentType = 1
	ComponentTypeButton     ComponentType = 2
	ComponentTypeTextSelect ComponentType = 3
	ComponentTypeTextInput  ComponentType = 4
	ComponentTypeUserSelect ComponentType = 5
	ComponentTypeRoleSelect ComponentType = 6
)

// ButtonStyle is the visual style of a button
type ButtonStyle int

const (
	ButtonStylePrimary   ButtonStyle = 1
	ButtonStyleSecondary ButtonStyle = 2
	ButtonStyleSuccess   ButtonStyle = 3
	ButtonStyleDanger    ButtonStyle = 4
)

// TextInputStyle is the size of a modal text input
type TextInputStyle int

const (
	TextInputStyleShort     TextInputStyle = 1
	TextInputStyleParagraph TextInputStyle = 2
)

// Component is any message or modal component. Only the fields relevant
// to Type are sent.
type Component struct {
	Type        ComponentType  `json:"type"`
	CustomID    string         `json:"custom_id,omitempty"`
	Style       int            `json:"style,omitempty"`
	Label       string         `json:"label,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	MinValues   *int           `json:"min_values,omitempty"`
	MaxValues   int            `json:"max_values,omitempty"`
	MinLength   int            `json:"min_length,omitempty"`
	MaxLength   int            `json:"max_length,omitempty"`
	Required    *bool          `json:"required,omitempty"`
	Value       string         `json:"value,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	Components  []*Component   `json:"components,omitempty"`
}

// SelectOption is one choice of a string select
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ActionRow groups up to five components on one row
func ActionRow(components ...*Component) *Component {
	return &Component{Type: ComponentTypeActionRow, Components: components}
}

// Button builds a clickable button
func Button(style ButtonStyle, label, customID string) *Component {
	return &Component{Type: ComponentTypeButton, Style: int(style), Label: label, CustomID: customID}
}

// UserSelect builds a single user picker
func UserSelect(customID, placeholder string) *Component {
	return &Component{Type: ComponentTypeUserSelect, CustomID: customID, Placeholder: placeholder, MaxValues: 1}
}

// TextInput builds a modal text input
func TextInput(style TextInputStyle, label, customID string, maxLength int) *Component {
	return &Component{Type: ComponentTypeTextInput, Style: int(style), Label: label, CustomID: customID, MaxLength: maxLength}
}

// MessageFlags modify how a message is displayed
type MessageFlags int

// MessageFlagEphemeral makes an interaction reply visible only to the invoker
const MessageFlagEphemeral MessageFlags = 1 << 6

// AllowedMentions restricts which mentions in a message ping
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// NoMentions suppresses all pings
func NoMentions() *AllowedMentions {
	return &AllowedMentions{Parse: []string{}}
}

// File is an attachment uploaded with a message
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// MessageSend is the payload for creating a message or an interaction reply
type MessageSend struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []*Embed         `json:"embeds,omitempty"`
	Components      []*Component     `json:"components,omitempty"`
	Flags           MessageFlags     `json:"flags,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
	Files           []*File          `json:"-"`
}

// MessageEdit is the payload for editing a message; nil fields are left unchanged
type MessageEdit struct {
	Content         *string          `json:"content,omitempty"`
	Embeds          *[]*Embed        `json:"embeds,omitempty"`
	Components      *[]*Component    `json:"components,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// Message is a message returned by the API
type Message struct {
	ID         snowflake.ID `json:"id"`
	ChannelID  snowflake.ID `json:"channel_id"`
	Author     *User        `json:"author,omitempty"`
	Content    string       `json:"content"`
	Embeds     []*Embed     `json:"embeds,omitempty"`
	Components []*Component `json:"components,omitempty"`
}

// InteractionResponseType is the kind of initial interaction response
type InteractionResponseType int

const (
	ResponsePong                             InteractionResponseType = 1
	ResponseChannelMessageWithSource         InteractionResponseType = 4
	ResponseDeferredChannelMessageWithSource InteractionResponseType = 5
	ResponseDeferredUpdateMessage            InteractionResponseType = 6
	ResponseUpdateMessage                    InteractionResponseType = 7
	ResponseAutocompleteResult               InteractionResponseType = 8
	ResponseModal                            InteractionResponseType = 9
)

// InteractionResponse is the initial response to an interaction. Data is a
// *MessageSend, *AutocompleteChoices or *Modal depending on Type.
type InteractionResponse struct {
	Type InteractionResponseType `json:"type"`
	Data any                     `json:"data,omitempty"`
}

// Choice is an autocomplete or static option choice
type Choice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// AutocompleteChoices is the data of an autocomplete result
type AutocompleteChoices struct {
	Choices []*Choice `json:"choices"`
}

// Modal is the data of a modal response
type Modal struct {
	CustomID   string       `json:"custom_id"`
	Title      string       `json:"title"`
	Components []*Component `json:"components"`
}

// ApplicationCommand is a slash command registration payload
type ApplicationCommand struct {
	ID                       snowflake.ID                `json:"id,omitempty"`
	Name                     string                      `json:"name"`
	Description              string                      `json:"description"`
	Options                  []*ApplicationCommandOption `json:"options,omitempty"`
	DefaultMemberPermissions *Permissions                `json:"default_member_permissions,omitempty"`
	DMPermission             *bool                       `json:"dm_permission,omitempty"`
}

// ApplicationCommandOption describes one option or subcommand of a slash command
type ApplicationCommandOption struct {
	Type         OptionType                  `json:"type"`
	Name         string                      `json:"name"`
	Description  string                      `json:"description"`
	Required     bool                        `json:"required,omitempty"`
	Autocomplete bool                        `json:"autocomplete,omitempty"`
	Choices      []*Choice                   `json:"choices,omitempty"`
	Options      []*ApplicationCommandOption `json:"options,omitempty"`
}

// GatewayBot is the response of GET /gateway/bot
type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit reports how many IDENTIFYs are left
type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}
