// Package devcmd holds commands reserved for the bot's developers.
package devcmd

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
)

// Module is the /dev command group
type Module struct {
	tree       *dispatch.Tree
	developers []snowflake.ID
	logger     *zap.Logger
}

// New creates the /dev module for the given developer ids
func New(developers []snowflake.ID, logger *zap.Logger) *Module {
	return &Module{
		developers: developers,
		logger:     logger,
	}
}

// Register adds the /dev commands to tree
func (m *Module) Register(tree *dispatch.Tree) {
	m.tree = tree

	tree.AddGroup(&dispatch.Group{
		Name:        "dev",
		Description: "Developer tools",
		Permissions: discord.PermissionAdministrator,
	})

	tree.AddCommand(&dispatch.Command{
		Name:        "dev sync",
		Description: "Push the current command list to Discord",
		Checks:      []dispatch.Check{dispatch.Developer(m.developers...)},
		Handler:     m.sync,
	})
}

func (m *Module) sync(ctx context.Context, e *dispatch.Event) error {
	if err := e.Defer(ctx, true); err != nil {
		return err
	}

	if err := m.tree.Sync(ctx); err != nil {
		return err
	}

	m.logger.Info("commands synced on request", zap.Stringer("user_id", e.Author().ID))
	content := fmt.Sprintf("Synced %d commands", len(m.tree.Commands()))
	return e.EditResponse(ctx, &discord.MessageEdit{Content: &content})
}
