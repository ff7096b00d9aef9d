// Package rolebuttons implements messages whose buttons let members assign
// themselves roles, and the /rolebutton commands that manage them.
package rolebuttons

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsascontentcorner/phoenix/internal/apperrors"
	"github.com/parsascontentcorner/phoenix/internal/database"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
	"github.com/parsascontentcorner/phoenix/internal/models"
)

const (
	// ButtonPrefix starts the custom id of every role button; the role id follows
	ButtonPrefix = "rolebutton:"

	formPrefix       = "rolebuttons:form:"
	contentInputID   = "content"
	maxContentLength = 2000
	maxNameLength    = 50
	buttonsPerRow    = 5
	restoreWorkers   = 4

	toggleReason    = "self assigned role"
	inactiveContent = "This interaction is no longer active."
)

// Store is the persistence of role button interfaces. *database.DB implements it.
type Store interface {
	CreateRoleButtonInterface(ctx context.Context, iface *models.RoleButtonInterface) error
	GetRoleButtonInterfaces(ctx context.Context) ([]*models.RoleButtonInterface, error)
	UpdateRoleButtonRoles(ctx context.Context, iface *models.RoleButtonInterface) error
	DeleteRoleButtonInterface(ctx context.Context, guildID snowflake.ID, name string) error
}

// Client is the part of the REST API the interfaces use
type Client interface {
	CreateMessage(ctx context.Context, channelID snowflake.ID, msg *discord.MessageSend) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID snowflake.ID, edit *discord.MessageEdit) (*discord.Message, error)
	GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error)
	GetGuildRoles(ctx context.Context, guildID snowflake.ID) ([]*discord.Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error
}

// Module holds the /rolebutton commands and the role button click handler
type Module struct {
	store    Store
	client   Client
	registry *Registry
	logger   *zap.Logger
}

// New creates the role button module
func New(store Store, client Client, registry *Registry, logger *zap.Logger) *Module {
	return &Module{
		store:    store,
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// Register adds the /rolebutton commands and the button handler to tree
func (m *Module) Register(tree *dispatch.Tree) {
	tree.AddGroup(&dispatch.Group{
		Name:        "rolebutton",
		Description: "Manages self assignable role buttons",
		Permissions: discord.PermissionManageRoles,
		GuildOnly:   true,
	})

	checks := []dispatch.Check{dispatch.RequirePermissions(discord.PermissionManageRoles)}
	complete := map[string]dispatch.AutocompleteFunc{"interface": m.completeInterface}
	roleOption := &discord.ApplicationCommandOption{
		Type:        discord.OptionTypeRole,
		Name:        "role",
		Description: "The role the button assigns",
		Required:    true,
	}

	tree.AddCommand(&dispatch.Command{
		Name:        "rolebutton create",
		Description: "Post a new message with role buttons",
		Options: []*discord.ApplicationCommandOption{
			{Type: discord.OptionTypeString, Name: "name", Description: "The name identifying the interface", Required: true},
		},
		Checks:  checks,
		Handler: m.create,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "rolebutton edit",
		Description:  "Edit the text of a role button message",
		Options:      []*discord.ApplicationCommandOption{interfaceOption()},
		Checks:       checks,
		Handler:      m.edit,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "rolebutton add",
		Description:  "Add a role button to an interface",
		Options:      []*discord.ApplicationCommandOption{interfaceOption(), roleOption},
		Checks:       checks,
		Handler:      m.add,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "rolebutton remove",
		Description:  "Remove a role button from an interface",
		Options:      []*discord.ApplicationCommandOption{interfaceOption(), roleOption},
		Checks:       checks,
		Handler:      m.remove,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "rolebutton refresh",
		Description:  "Reorder and rename the buttons of an interface",
		Options:      []*discord.ApplicationCommandOption{interfaceOption()},
		Checks:       checks,
		Handler:      m.refresh,
		Autocomplete: complete,
	})

	tree.AddCommand(&dispatch.Command{
		Name:         "rolebutton delete",
		Description:  "Delete an interface and disable its buttons",
		Options:      []*discord.ApplicationCommandOption{interfaceOption()},
		Checks:       checks,
		Handler:      m.delete,
		Autocomplete: complete,
	})

	tree.AddComponentHandler(ButtonPrefix, m.toggle)
}

// Restore loads the stored interfaces into the registry. Interfaces whose
// message was deleted are removed from the database.
func (m *Module) Restore(ctx context.Context) error {
	records, err := m.store.GetRoleButtonInterfaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to load role button interfaces: %w", err)
	}

	var loaded, removed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restoreWorkers)

	for _, iface := range records {
		g.Go(func() error {
			_, err := m.client.GetMessage(gctx, iface.ChannelID, iface.MessageID)
			if discord.IsNotFound(err) {
				if err := m.store.DeleteRoleButtonInterface(gctx, iface.GuildID, iface.Name); err != nil {
					return fmt.Errorf("failed to remove unresolved interface %q: %w", iface.Name, err)
				}
				removed.Add(1)
				return nil
			}
			if err != nil {
				m.logger.Warn("failed to verify role button interface, keeping it",
					zap.Stringer("guild_id", iface.GuildID),
					zap.String("name", iface.Name),
					zap.Error(err),
				)
			}

			m.registry.Put(iface)
			loaded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.Info("role button interfaces loaded",
		zap.Int32("loaded", loaded.Load()),
		zap.Int32("removed", removed.Load()),
	)
	return nil
}

func interfaceOption() *discord.ApplicationCommandOption {
	return &discord.ApplicationCommandOption{
		Type:         discord.OptionTypeString,
		Name:         "interface",
		Description:  "The name of the role button interface",
		Required:     true,
		Autocomplete: true,
	}
}

func (m *Module) completeInterface(_ context.Context, e *dispatch.Event, value string) ([]*discord.Choice, error) {
	var choices []*discord.Choice
	for _, name := range m.registry.Names(e.GuildID) {
		if strings.Contains(name, value) {
			choices = append(choices, &discord.Choice{Name: name, Value: name})
		}
	}
	return choices, nil
}

// resolve turns the "interface" option into the guild's interface of that name
func (m *Module) resolve(e *dispatch.Event) (*models.RoleButtonInterface, error) {
	var name string
	if opt, ok := discord.FindOption(e.Options(), "interface"); ok {
		name = opt.StringValue()
	}

	iface, ok := m.registry.Get(e.GuildID, name)
	if !ok {
		return nil, apperrors.Transformation(apperrors.WithContentf("%s is not a valid role button interface", name))
	}
	return iface, nil
}

func conflictMessage(name string) string {
	return fmt.Sprintf("A role button interface with name `%s` already exists in this server", name)
}

func contentForm(customID, content string) *discord.Modal {
	input := discord.TextInput(discord.TextInputStyleParagraph, "Text Content", customID+":"+contentInputID, maxContentLength)
	input.Value = content
	return &discord.Modal{
		CustomID:   customID,
		Title:      "Role Button Form",
		Components: []*discord.Component{discord.ActionRow(input)},
	}
}

// awaitContent opens the content form and waits for its submission
func (m *Module) awaitContent(ctx context.Context, e *dispatch.Event, content string) (*dispatch.Event, string, bool, error) {
	formID := formPrefix + e.ID.String()
	if err := e.Modal(ctx, contentForm(formID, content)); err != nil {
		return nil, "", false, err
	}

	form := e.Listen(formID)
	defer form.Close(ctx)

	submit, ok := form.Next(ctx)
	if !ok {
		m.logger.Debug("role button form timed out", zap.Stringer("interaction_id", e.ID))
		return nil, "", false, nil
	}

	value, _ := submit.Data.TextInputValue(formID + ":" + contentInputID)
	return submit, strings.TrimSpace(value), true, nil
}

func (m *Module) create(ctx context.Context, e *dispatch.Event) error {
	var name string
	if opt, ok := discord.FindOption(e.Options(), "name"); ok {
		name = strings.TrimSpace(opt.StringValue())
	}
	if name == "" || len(name) > maxNameLength {
		return apperrors.InvalidParameter(apperrors.WithContentf("A name must be between 1 and %d characters.", maxNameLength))
	}
	if _, ok := m.registry.Get(e.GuildID, name); ok {
		return e.RespondEphemeral(ctx, conflictMessage(name))
	}

	submit, content, ok, err := m.awaitContent(ctx, e, "")
	if err != nil || !ok {
		return err
	}

	if err := m.post(ctx, submit, name, content); err != nil {
		submit.Fail(ctx, err)
	}
	return nil
}

// post sends the interface message and persists the interface
func (m *Module) post(ctx context.Context, e *dispatch.Event, name, content string) error {
	if content == "" {
		return apperrors.InvalidParameter(apperrors.WithContent("The message content can not be empty."))
	}

	msg, err := m.client.CreateMessage(ctx, e.ChannelID, &discord.MessageSend{
		Content:         content,
		AllowedMentions: discord.NoMentions(),
	})
	if err != nil {
		return err
	}

	iface := &models.RoleButtonInterface{
		GuildID:   e.GuildID,
		Name:      name,
		ChannelID: e.ChannelID,
		MessageID: msg.ID,
	}
	if err := m.store.CreateRoleButtonInterface(ctx, iface); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return e.RespondEphemeral(ctx, conflictMessage(name))
		}
		return err
	}
	m.registry.Put(iface)

	m.logger.Info("role button interface created",
		zap.Stringer("guild_id", iface.GuildID),
		zap.String("name", name),
		zap.Stringer("message_id", iface.MessageID),
	)

	return e.RespondEphemeral(ctx, fmt.Sprintf("`%s` created, add roles with /rolebutton add", name))
}

func (m *Module) edit(ctx context.Context, e *dispatch.Event) error {
	iface, err := m.resolve(e)
	if err != nil {
		return err
	}

	current, err := m.client.GetMessage(ctx, iface.ChannelID, iface.MessageID)
	if discord.IsNotFound(err) {
		return goneError(iface)
	}
	if err != nil {
		return err
	}

	submit, content, ok, err := m.awaitContent(ctx, e, current.Content)
	if err != nil || !ok {
		return err
	}

	err = func() error {
		if content == "" {
			return apperrors.InvalidParameter(apperrors.WithContent("The message content can not be empty."))
		}
		if _, err := m.client.EditMessage(ctx, iface.ChannelID, iface.MessageID, &discord.MessageEdit{Content: &content}); err != nil {
			return err
		}
		return submit.RespondEphemeral(ctx, "Interface updated")
	}()
	if err != nil {
		submit.Fail(ctx, err)
	}
	return nil
}

func goneError(iface *models.RoleButtonInterface) error {
	return apperrors.InvalidInvocation(apperrors.WithContentf("The message of `%s` no longer exists", iface.Name))
}

func roleID(e *dispatch.Event) (snowflake.ID, error) {
	opt, ok := discord.FindOption(e.Options(), "role")
	if !ok {
		return 0, apperrors.InvalidParameter(apperrors.WithContent("A role is required."))
	}
	id, err := opt.IDValue()
	if err != nil {
		return 0, apperrors.InvalidParameter(apperrors.WithContent("`role` is not a valid role."))
	}
	return id, nil
}

func (m *Module) add(ctx context.Context, e *dispatch.Event) error {
	iface, err := m.resolve(e)
	if err != nil {
		return err
	}
	id, err := roleID(e)
	if err != nil {
		return err
	}

	if iface.HasRole(id) {
		return apperrors.InvalidParameter(apperrors.WithContentf("%s is already on `%s`", discord.RoleMention(id), iface.Name))
	}
	if len(iface.Roles) >= models.MaxRoleButtons {
		return apperrors.InvalidParameter(apperrors.WithContentf("An interface can hold at most %d roles", models.MaxRoleButtons))
	}

	roles, err := m.client.GetGuildRoles(ctx, e.GuildID)
	if err != nil {
		return err
	}
	role := findRole(roles, id)
	if role == nil || role.Managed || role.ID == e.GuildID {
		return apperrors.InvalidParameter(apperrors.WithContentf("%s can not be self assigned", discord.RoleMention(id)))
	}

	iface.SetRoleIDs(append(iface.RoleIDs(), id))
	if err := m.apply(ctx, iface, roles); err != nil {
		return err
	}
	return e.RespondEphemeral(ctx, fmt.Sprintf("%s added to `%s`", role.Mention(), iface.Name))
}

func (m *Module) remove(ctx context.Context, e *dispatch.Event) error {
	iface, err := m.resolve(e)
	if err != nil {
		return err
	}
	id, err := roleID(e)
	if err != nil {
		return err
	}

	if !iface.HasRole(id) {
		return apperrors.InvalidParameter(apperrors.WithContentf("%s is not on `%s`", discord.RoleMention(id), iface.Name))
	}

	roles, err := m.client.GetGuildRoles(ctx, e.GuildID)
	if err != nil {
		return err
	}

	kept := make([]snowflake.ID, 0, len(iface.Roles))
	for _, existing := range iface.RoleIDs() {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	iface.SetRoleIDs(kept)

	if err := m.apply(ctx, iface, roles); err != nil {
		return err
	}
	return e.RespondEphemeral(ctx, fmt.Sprintf("%s removed from `%s`", discord.RoleMention(id), iface.Name))
}

func (m *Module) refresh(ctx context.Context, e *dispatch.Event) error {
	iface, err := m.resolve(e)
	if err != nil {
		return err
	}

	roles, err := m.client.GetGuildRoles(ctx, e.GuildID)
	if err != nil {
		return err
	}
	if err := m.apply(ctx, iface, roles); err != nil {
		return err
	}
	return e.RespondEphemeral(ctx, "Interface refreshed")
}

func (m *Module) delete(ctx context.Context, e *dispatch.Event) error {
	iface, err := m.resolve(e)
	if err != nil {
		return err
	}

	if err := m.store.DeleteRoleButtonInterface(ctx, iface.GuildID, iface.Name); err != nil {
		return err
	}
	m.registry.Remove(iface.GuildID, iface.Name)

	none := []*discord.Component{}
	if _, err := m.client.EditMessage(ctx, iface.ChannelID, iface.MessageID, &discord.MessageEdit{Components: &none}); err != nil && !discord.IsNotFound(err) {
		return err
	}

	m.logger.Info("role button interface deleted",
		zap.Stringer("guild_id", iface.GuildID),
		zap.String("name", iface.Name),
	)
	return e.RespondEphemeral(ctx, fmt.Sprintf("`%s` was deleted", iface.Name))
}

// apply redraws the interface buttons from the guild's current roles, then
// persists the role list. Roles deleted from the guild are dropped.
func (m *Module) apply(ctx context.Context, iface *models.RoleButtonInterface, guildRoles []*discord.Role) error {
	active := activeRoles(iface.RoleIDs(), guildRoles)

	ids := make([]snowflake.ID, 0, len(active))
	for _, role := range active {
		ids = append(ids, role.ID)
	}
	iface.SetRoleIDs(ids)

	rows := buttonRows(active)
	if _, err := m.client.EditMessage(ctx, iface.ChannelID, iface.MessageID, &discord.MessageEdit{Components: &rows}); err != nil {
		if discord.IsNotFound(err) {
			return goneError(iface)
		}
		return err
	}

	if err := m.store.UpdateRoleButtonRoles(ctx, iface); err != nil {
		return err
	}
	m.registry.Put(iface)
	return nil
}

// activeRoles keeps the guild roles listed in ids, highest position first
func activeRoles(ids []snowflake.ID, guildRoles []*discord.Role) []*discord.Role {
	active := make([]*discord.Role, 0, len(ids))
	for _, id := range ids {
		if role := findRole(guildRoles, id); role != nil {
			active = append(active, role)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Position > active[j].Position })
	return active
}

func findRole(roles []*discord.Role, id snowflake.ID) *discord.Role {
	for _, role := range roles {
		if role.ID == id {
			return role
		}
	}
	return nil
}

func buttonRows(roles []*discord.Role) []*discord.Component {
	rows := make([]*discord.Component, 0, (len(roles)+buttonsPerRow-1)/buttonsPerRow)
	for start := 0; start < len(roles); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(roles))

		buttons := make([]*discord.Component, 0, end-start)
		for _, role := range roles[start:end] {
			buttons = append(buttons, discord.Button(discord.ButtonStylePrimary, role.Name, ButtonPrefix+role.ID.String()))
		}
		rows = append(rows, discord.ActionRow(buttons...))
	}
	return rows
}

// toggle gives or takes the clicked button's role
func (m *Module) toggle(ctx context.Context, e *dispatch.Event) error {
	inactive := apperrors.InvalidInvocation(apperrors.WithContent(inactiveContent))

	id, err := snowflake.Parse(strings.TrimPrefix(e.Data.CustomID, ButtonPrefix))
	if err != nil || e.Message == nil {
		return inactive
	}
	iface, ok := m.registry.ByMessage(e.Message.ID)
	if !ok || !iface.HasRole(id) {
		return inactive
	}
	if e.Member == nil || e.Author() == nil {
		return apperrors.InvalidInvocation()
	}

	userID := e.Author().ID
	if e.Member.HasRole(id) {
		err = m.client.RemoveMemberRole(ctx, e.GuildID, userID, id, toggleReason)
	} else {
		err = m.client.AddMemberRole(ctx, e.GuildID, userID, id, toggleReason)
	}
	if err != nil {
		return err
	}

	return e.RespondEphemeral(ctx, fmt.Sprintf("%s, your roles have been updated", e.Author().Mention()))
}
