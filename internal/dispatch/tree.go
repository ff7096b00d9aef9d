// Package dispatch routes inbound interactions to command handlers and
// turns handler failures into exactly one user-visible reply.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/metrics"
)

// maxChoices is the number of autocomplete choices Discord accepts
const (
	maxChoices = 25
	// listenerBuffer is how many interactions a busy Listener queues
	listenerBuffer  = 16
	inactiveContent = "This interaction is no longer active."
)

// Client is the part of the REST API the tree needs to reply and alert
type Client interface {
	CreateInteractionResponse(ctx context.Context, i *discord.Interaction, resp *discord.InteractionResponse) error
	CreateFollowupMessage(ctx context.Context, i *discord.Interaction, msg *discord.MessageSend) (*discord.Message, error)
	EditOriginalResponse(ctx context.Context, i *discord.Interaction, edit *discord.MessageEdit) (*discord.Message, error)
	CreateMessage(ctx context.Context, channelID snowflake.ID, msg *discord.MessageSend) (*discord.Message, error)
	BulkOverwriteCommands(ctx context.Context, guildID snowflake.ID, commands []*discord.ApplicationCommand) ([]*discord.ApplicationCommand, error)
}

// HandlerFunc handles a command, component click or modal submission
type HandlerFunc func(ctx context.Context, e *Event) error

// AutocompleteFunc returns choices for the focused option's typed value
type AutocompleteFunc func(ctx context.Context, e *Event, value string) ([]*discord.Choice, error)

// Group describes a top-level command that only holds subcommands
type Group struct {
	Name        string
	Description string
	// Permissions is the default member permission set; zero leaves it unset
	Permissions discord.Permissions
	GuildOnly   bool
}

// Command is one invokable slash command, addressed by its qualified name
// ("team members")
type Command struct {
	Name         string
	Description  string
	Options      []*discord.ApplicationCommandOption
	Checks       []Check
	Handler      HandlerFunc
	Autocomplete map[string]AutocompleteFunc
}

type waiter struct {
	ids []string
	ch  chan *Event
	// persistent waiters stay registered after a delivery
	persistent bool
}

// Tree holds the registered commands and component handlers
type Tree struct {
	client            Client
	operatorChannelID snowflake.ID
	commandGuildID    snowflake.ID
	uiTimeout         time.Duration
	metrics           *metrics.Metrics
	logger            *zap.Logger

	mu         sync.RWMutex
	groups     map[string]*Group
	commands   map[string]*Command
	order      []string
	components map[string]HandlerFunc
	waiters    map[string]*waiter
}

// NewTree creates an empty command tree
func NewTree(client Client, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Tree {
	return &Tree{
		client:            client,
		operatorChannelID: cfg.Discord.OperatorChannelID,
		commandGuildID:    cfg.Discord.CommandGuildID,
		uiTimeout:         cfg.UI.Timeout,
		metrics:           m,
		logger:            logger,
		groups:            make(map[string]*Group),
		commands:          make(map[string]*Command),
		components:        make(map[string]HandlerFunc),
		waiters:           make(map[string]*waiter),
	}
}

// AddGroup registers the description and defaults of a top-level command
func (t *Tree) AddGroup(g *Group) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups[g.Name] = g
}

// AddCommand registers a command. Registering the same name twice panics.
func (t *Tree) AddCommand(cmd *Command) {
	name := strings.Join(strings.Fields(cmd.Name), " ")
	if name == "" || cmd.Handler == nil {
		panic("dispatch: command needs a name and a handler")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.commands[name]; exists {
		panic(fmt.Sprintf("dispatch: command %q registered twice", name))
	}
	cmd.Name = name
	t.commands[name] = cmd
	t.order = append(t.order, name)
}

// AddComponentHandler routes component and modal interactions whose custom
// id starts with prefix. The longest matching prefix wins.
func (t *Tree) AddComponentHandler(prefix string, h HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.components[prefix] = h
}

// Command returns a registered command by qualified name
func (t *Tree) Command(name string) (*Command, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cmd, ok := t.commands[name]
	return cmd, ok
}

// HandleInteraction routes one interaction. It is safe to call from many
// goroutines and never returns an error: failures are reported to the user.
func (t *Tree) HandleInteraction(ctx context.Context, i *discord.Interaction) {
	e := &Event{Interaction: i, tree: t}

	switch i.Type {
	case discord.InteractionTypePing:
		return
	case discord.InteractionTypeApplicationCommand:
		t.handleCommand(ctx, e)
	case discord.InteractionTypeAutocomplete:
		t.handleAutocomplete(ctx, e)
	case discord.InteractionTypeMessageComponent, discord.InteractionTypeModalSubmit:
		t.handleComponent(ctx, e)
	default:
		t.logger.Debug("ignoring interaction", zap.Stringer("type", i.Type))
	}
}

func (t *Tree) handleCommand(ctx context.Context, e *Event) {
	name := e.CommandName()
	fields := []zap.Field{
		zap.String("command", name),
		zap.Stringer("interaction_id", e.ID),
	}
	if author := e.Author(); author != nil {
		fields = append(fields, zap.Stringer("user_id", author.ID))
	}
	t.logger.Debug("interaction issued", fields...)

	cmd, ok := t.Command(name)
	if !ok {
		t.metrics.ObserveInteraction(e.Type.String(), name, "unknown")
		t.OnError(ctx, e, apperrors.InvalidInvocation(apperrors.WithContentf("Unknown command `/%s`", name)))
		return
	}

	if err := t.invoke(ctx, e, cmd.Name, cmd.Checks, cmd.Handler); err != nil {
		t.metrics.ObserveInteraction(e.Type.String(), name, "error")
		t.OnError(ctx, e, err)
		return
	}
	t.metrics.ObserveInteraction(e.Type.String(), name, "ok")
}

func (t *Tree) handleAutocomplete(ctx context.Context, e *Event) {
	name := e.CommandName()
	focused, ok := discord.FocusedOption(e.Options())
	if !ok {
		t.logger.Warn("autocomplete without a focused option", zap.String("command", name))
		return
	}

	var choices []*discord.Choice
	if cmd, found := t.Command(name); found {
		if complete, has := cmd.Autocomplete[focused.Name]; has {
			var err error
			choices, err = complete(ctx, e, focused.StringValue())
			if err != nil {
				t.logger.Warn("autocomplete failed",
					zap.String("command", name),
					zap.String("option", focused.Name),
					zap.Error(err),
				)
				choices = nil
			}
		}
	}
	if len(choices) > maxChoices {
		choices = choices[:maxChoices]
	}

	outcome := "ok"
	if err := e.Autocomplete(ctx, choices); err != nil {
		outcome = "error"
		t.logger.Error("failed to send autocomplete choices", zap.String("command", name), zap.Error(err))
	}
	t.metrics.ObserveInteraction(e.Type.String(), name, outcome)
}

func (t *Tree) handleComponent(ctx context.Context, e *Event) {
	if e.Data == nil {
		return
	}
	customID := e.Data.CustomID

	if t.resolveWaiter(customID, e) {
		t.metrics.ObserveInteraction(e.Type.String(), "awaited", "ok")
		return
	}

	prefix, h, ok := t.componentHandler(customID)
	if !ok {
		t.logger.Debug("component interaction has no handler", zap.String("custom_id", customID))
		t.expire(ctx, e)
		return
	}

	if err := t.invoke(ctx, e, prefix, nil, h); err != nil {
		t.metrics.ObserveInteraction(e.Type.String(), prefix, "error")
		t.OnError(ctx, e, err)
		return
	}
	t.metrics.ObserveInteraction(e.Type.String(), prefix, "ok")
}

// expire tells the user a component no longer leads anywhere
func (t *Tree) expire(ctx context.Context, e *Event) {
	t.metrics.ObserveInteraction(e.Type.String(), "expired", "error")
	t.OnError(ctx, e, apperrors.InvalidInvocation(apperrors.WithContent(inactiveContent)))
}

func (t *Tree) componentHandler(customID string) (string, HandlerFunc, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	best := ""
	var handler HandlerFunc
	for prefix, h := range t.components {
		if strings.HasPrefix(customID, prefix) && len(prefix) >= len(best) {
			best, handler = prefix, h
		}
	}
	return best, handler, handler != nil
}

// invoke runs checks then the handler. Handler failures, panics included,
// come back as *InvokeError; check failures are returned as they are.
func (t *Tree) invoke(ctx context.Context, e *Event, name string, checks []Check, h HandlerFunc) (err error) {
	for _, check := range checks {
		if err := check(e); err != nil {
			return err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &InvokeError{Command: name, Err: fmt.Errorf("panic: %v", r), Stack: string(debug.Stack())}
		}
	}()

	if err := h(ctx, e); err != nil {
		return &InvokeError{Command: name, Err: err, Stack: string(debug.Stack())}
	}
	return nil
}

// Await waits for the component or modal interaction with the given custom
// id. It reports false when nothing arrives within timeout (the configured
// UI timeout when timeout is zero) or ctx ends.
func (t *Tree) Await(ctx context.Context, customID string, timeout time.Duration) (*Event, bool) {
	return t.AwaitAny(ctx, timeout, customID)
}

// AwaitAny is Await for whichever of several custom ids is used first
func (t *Tree) AwaitAny(ctx context.Context, timeout time.Duration, customIDs ...string) (*Event, bool) {
	if timeout <= 0 {
		timeout = t.uiTimeout
	}

	w := &waiter{ids: customIDs, ch: make(chan *Event, 1)}
	t.mu.Lock()
	for _, id := range customIDs {
		t.waiters[id] = w
	}
	t.mu.Unlock()
	defer t.dropWaiter(w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-w.ch:
		return e, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Listener routes a fixed set of custom ids to one handler until it is
// closed. Interactions that arrive while the handler is busy are queued.
type Listener struct {
	tree    *Tree
	w       *waiter
	timeout time.Duration
}

// Listen registers customIDs for a long-lived view. Each Next call waits up
// to timeout (the configured UI timeout when zero). Callers must Close it.
func (t *Tree) Listen(timeout time.Duration, customIDs ...string) *Listener {
	if timeout <= 0 {
		timeout = t.uiTimeout
	}

	w := &waiter{ids: customIDs, ch: make(chan *Event, listenerBuffer), persistent: true}
	t.mu.Lock()
	for _, id := range customIDs {
		t.waiters[id] = w
	}
	t.mu.Unlock()

	return &Listener{tree: t, w: w, timeout: timeout}
}

// Next returns the next interaction on the view. It reports false when the
// view stays idle for the timeout or ctx ends.
func (l *Listener) Next(ctx context.Context) (*Event, bool) {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case e := <-l.w.ch:
		return e, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// Close unregisters the view. Queued interactions that were never taken
// are answered as no longer active.
func (l *Listener) Close(ctx context.Context) {
	l.tree.dropWaiter(l.w)
	for {
		select {
		case e := <-l.w.ch:
			l.tree.expire(ctx, e)
		default:
			return
		}
	}
}

// Waiting reports whether a handler is currently awaiting customID
func (t *Tree) Waiting(customID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.waiters[customID]
	return ok
}

func (t *Tree) resolveWaiter(customID string, e *Event) bool {
	t.mu.Lock()
	w, ok := t.waiters[customID]
	if !ok {
		t.mu.Unlock()
		return false
	}

	// Listener sends happen under the lock so Close never misses one
	if w.persistent {
		defer t.mu.Unlock()
		select {
		case w.ch <- e:
			return true
		default:
			return false
		}
	}

	t.removeWaiterLocked(w)
	t.mu.Unlock()
	w.ch <- e
	return true
}

func (t *Tree) dropWaiter(w *waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeWaiterLocked(w)
}

func (t *Tree) removeWaiterLocked(w *waiter) {
	for _, id := range w.ids {
		if t.waiters[id] == w {
			delete(t.waiters, id)
		}
	}
}

// Commands builds the registration payloads for every registered command,
// nesting qualified names into subcommand groups
func (t *Tree) Commands() []*discord.ApplicationCommand {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roots := make(map[string]*discord.ApplicationCommand)
	var rootOrder []string

	for _, name := range t.order {
		cmd := t.commands[name]
		parts := strings.Fields(name)

		root, ok := roots[parts[0]]
		if !ok {
			root = t.rootCommand(parts[0])
			roots[parts[0]] = root
			rootOrder = append(rootOrder, parts[0])
		}

		if len(parts) == 1 {
			root.Description = cmd.Description
			root.Options = cmd.Options
			continue
		}

		parent := &root.Options
		for _, group := range parts[1 : len(parts)-1] {
			parent = &subcommandGroup(parent, group).Options
		}
		*parent = append(*parent, &discord.ApplicationCommandOption{
			Type:        discord.OptionTypeSubCommand,
			Name:        parts[len(parts)-1],
			Description: cmd.Description,
			Options:     cmd.Options,
		})
	}

	sort.Strings(rootOrder)
	out := make([]*discord.ApplicationCommand, 0, len(rootOrder))
	for _, name := range rootOrder {
		out = append(out, roots[name])
	}
	return out
}

func (t *Tree) rootCommand(name string) *discord.ApplicationCommand {
	root := &discord.ApplicationCommand{Name: name, Description: name}

	g, ok := t.groups[name]
	if !ok {
		return root
	}
	if g.Description != "" {
		root.Description = g.Description
	}
	if g.Permissions != 0 {
		perms := g.Permissions
		root.DefaultMemberPermissions = &perms
	}
	if g.GuildOnly {
		dm := false
		root.DMPermission = &dm
	}
	return root
}

func subcommandGroup(options *[]*discord.ApplicationCommandOption, name string) *discord.ApplicationCommandOption {
	for _, opt := range *options {
		if opt.Name == name && opt.Type == discord.OptionTypeSubCommandGroup {
			return opt
		}
	}
	group := &discord.ApplicationCommandOption{
		Type:        discord.OptionTypeSubCommandGroup,
		Name:        name,
		Description: name,
	}
	*options = append(*options, group)
	return group
}

// Sync overwrites the registered application commands, in the development
// guild when one is configured and globally otherwise
func (t *Tree) Sync(ctx context.Context) error {
	cmds := t.Commands()
	if _, err := t.client.BulkOverwriteCommands(ctx, t.commandGuildID, cmds); err != nil {
		return fmt.Errorf("failed to sync application commands: %w", err)
	}

	scope := "global"
	if t.commandGuildID != 0 {
		scope = t.commandGuildID.String()
	}
	t.logger.Info("application commands synced", zap.Int("count", len(cmds)), zap.String("scope", scope))
	return nil
}
