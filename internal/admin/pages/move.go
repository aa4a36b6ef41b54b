package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

var ErrInvalidDirection = errors.New("direction must be up or down")

// MovePage swaps the page with its previous or next sibling. Moving the
// first page up or the last page down leaves the order unchanged. It
// returns the parent page.
func MovePage(ctx context.Context, db database.DatabaseService, user *database.User, pageID int64, dir Direction) (*database.Page, error) {
	if dir != Up && dir != Down {
		return nil, ErrInvalidDirection
	}
	page, err := db.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page.IsRoot() {
		return nil, fmt.Errorf("the root page has no siblings: %w", ErrPermissionDenied)
	}
	ancestors, err := db.GetAncestors(ctx, page)
	if err != nil {
		return nil, err
	}
	parent := ancestors[len(ancestors)-1]

	perms, err := LoadUserPagePermissions(ctx, db, user)
	if err != nil {
		return nil, err
	}
	if !perms.CanReorderChildren(parent) {
		return nil, ErrPermissionDenied
	}

	siblings, err := db.GetChildren(ctx, parent.ID, database.OrderingNative)
	if err != nil {
		return nil, err
	}
	order := make([]int64, len(siblings))
	at := -1
	for i, s := range siblings {
		order[i] = s.ID
		if s.ID == page.ID {
			at = i
		}
	}
	target := at - 1
	if dir == Down {
		target = at + 1
	}
	if at < 0 || target < 0 || target >= len(order) {
		return parent, nil
	}
	order[at], order[target] = order[target], order[at]
	if err := db.MovePage(ctx, parent.ID, order); err != nil {
		return nil, fmt.Errorf("moving page %d %s: %w", page.ID, dir, err)
	}
	slog.Info("page moved", "page_id", page.ID, "direction", string(dir), "parent_id", parent.ID)
	return parent, nil
}
