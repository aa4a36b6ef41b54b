package pages

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

// ErrPermissionDenied is returned when the user may not perform an action.
var ErrPermissionDenied = errors.New("permission denied")

// UserPagePermissions holds the page permissions of one user.
type UserPagePermissions struct {
	User        *database.User
	Permissions []*database.PagePermission
}

func LoadUserPagePermissions(ctx context.Context, db database.DatabaseService, user *database.User) (*UserPagePermissions, error) {
	perms := &UserPagePermissions{User: user}
	if user == nil || !user.IsActive || user.IsSuperuser {
		return perms, nil
	}
	var err error
	perms.Permissions, err = db.GetPagePermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading page permissions of user %d: %w", user.ID, err)
	}
	return perms, nil
}

func (u *UserPagePermissions) isSuperuser() bool {
	return u.User != nil && u.User.IsActive && u.User.IsSuperuser
}

// HasAnyPagePermission reports whether the user may use the page explorer.
func (u *UserPagePermissions) HasAnyPagePermission() bool {
	if u.User == nil || !u.User.IsActive {
		return false
	}
	return u.User.IsSuperuser || len(u.Permissions) > 0
}

// rootPaths returns the paths of the pages permissions are granted on,
// without those nested in another one.
func (u *UserPagePermissions) rootPaths(permission string) []string {
	var paths []string
	for _, p := range u.Permissions {
		if permission != "" && p.Permission != permission {
			continue
		}
		if !slices.Contains(paths, p.Page.Path) {
			paths = append(paths, p.Page.Path)
		}
	}
	slices.Sort(paths)
	var out []string
	for _, path := range paths {
		if len(out) > 0 && strings.HasPrefix(path, out[len(out)-1]) {
			continue
		}
		out = append(out, path)
	}
	return out
}

// ExplorableFilter narrows a page query to the pages the user may explore:
// the subtrees they hold a permission on and the ancestors of those.
func (u *UserPagePermissions) ExplorableFilter(filter database.PageFilter) database.PageFilter {
	if u.isSuperuser() {
		return filter
	}
	roots := u.rootPaths("")
	filter.PathPrefixes = roots
	filter.Paths = nil
	for _, root := range roots {
		for _, ancestor := range database.AncestorPaths(root) {
			if !slices.Contains(filter.Paths, ancestor) {
				filter.Paths = append(filter.Paths, ancestor)
			}
		}
	}
	if len(filter.PathPrefixes) == 0 {
		// nothing is explorable; match no path
		filter.Paths = []string{""}
	}
	return filter
}

// ExplorableRootPage returns the deepest page from which the user can
// reach every page they hold a permission on.
func (u *UserPagePermissions) ExplorableRootPage(ctx context.Context, db database.DatabaseService) (*database.Page, error) {
	if u.isSuperuser() {
		return db.GetRootPage(ctx)
	}
	if !u.HasAnyPagePermission() {
		return nil, ErrPermissionDenied
	}
	path := database.CommonAncestorPath(u.rootPaths(""))
	pages, err := db.ListPages(ctx, database.PageFilter{Paths: []string{path}})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("explorable root %q: %w", path, database.ErrNotFound)
	}
	return pages[0], nil
}

// covers reports whether a permission of the given type is granted on
// page or one of its ancestors.
func (u *UserPagePermissions) covers(page *database.Page, permission string) bool {
	for _, p := range u.Permissions {
		if p.Permission != permission {
			continue
		}
		if p.Page.ID == page.ID || page.IsDescendantOf(p.Page) {
			return true
		}
	}
	return false
}

// CanEdit reports whether the user may edit page: an edit permission
// covering it, or an add permission covering a page they own.
func (u *UserPagePermissions) CanEdit(page *database.Page) bool {
	if u.isSuperuser() {
		return true
	}
	if u.User == nil || !u.User.IsActive {
		return false
	}
	if u.covers(page, database.PermissionEdit) {
		return true
	}
	return page.OwnerID != nil && *page.OwnerID == u.User.ID && u.covers(page, database.PermissionAdd)
}

// CanReorderChildren reports whether the user may change the order of the
// children of parent.
func (u *UserPagePermissions) CanReorderChildren(parent *database.Page) bool {
	if u.isSuperuser() {
		return true
	}
	return u.covers(parent, database.PermissionPublish) || u.covers(parent, database.PermissionEdit)
}

// EditablePagesFilter narrows a page query to the pages the user can edit.
// The owner condition of add permissions is applied by the caller through
// CanEdit.
func (u *UserPagePermissions) EditablePagesFilter(filter database.PageFilter) database.PageFilter {
	if u.isSuperuser() {
		return filter
	}
	filter.PathPrefixes = append(u.rootPaths(database.PermissionEdit), u.rootPaths(database.PermissionAdd)...)
	filter.Paths = nil
	if len(filter.PathPrefixes) == 0 {
		filter.Paths = []string{""}
	}
	return filter
}
