package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

const (
	DefaultOrdering = "-latest_revision_created_at"
	DefaultPageSize = 50
	Title           = "Exploring"
)

// ValidOrderings are the accepted values of the ordering query parameter.
var ValidOrderings = []string{
	"title",
	"-title",
	"content_type",
	"-content_type",
	"live",
	"-live",
	"latest_revision_created_at",
	"-latest_revision_created_at",
	string(database.OrderingNative),
}

// RedirectError asks the caller to explore PageID instead of the requested
// parent.
type RedirectError struct {
	PageID int64
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to page %d", e.PageID)
}

// QuerysetHook may filter or reorder the child pages listed under parent.
type QuerysetHook func(ctx context.Context, parent *database.Page, pages []*database.Page, user *database.User) []*database.Page

type ListingConfig struct {
	PageSize    int  `yaml:"listingPageSize" validate:"min=0"`
	I18nEnabled bool `yaml:"i18nEnabled"`
}

// ListingView lists the children of a page in the explorer.
type ListingView struct {
	db     database.DatabaseService
	config ListingConfig
	hooks  []QuerysetHook
}

func NewListingView(db database.DatabaseService, cfg ListingConfig) *ListingView {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &ListingView{db: db, config: cfg}
}

// RegisterQuerysetHook adds a hook run after the listing query, in
// registration order.
func (v *ListingView) RegisterQuerysetHook(hook QuerysetHook) {
	v.hooks = append(v.hooks, hook)
}

type ListingRequest struct {
	User *database.User
	// ParentID is the page to explore; nil explores the root.
	ParentID *int64
	Ordering string
	// Page is the raw value of the page number parameter.
	Page string
}

type Translation struct {
	Locale string
	PageID int64
}

type Paginator struct {
	Number   int
	NumPages int
	Count    int
	PerPage  int
}

func (p *Paginator) HasNext() bool     { return p.Number < p.NumPages }
func (p *Paginator) HasPrevious() bool { return p.Number > 1 }

type ListingContext struct {
	Title              string
	PageSubtitle       string
	Ordering           string
	Locale             string
	ParentPage         *database.Page
	Pages              []*database.Page
	Paginator          *Paginator
	ShowBulkActions    bool
	ShowLocaleLabels   bool
	ShowOrderingColumn bool
	Translations       []Translation
}

// Ordering returns ordering when it is valid, otherwise the default.
func Ordering(ordering string) string {
	if slices.Contains(ValidOrderings, ordering) {
		return ordering
	}
	return DefaultOrdering
}

// List builds the listing of the children of the requested parent. It
// returns ErrPermissionDenied for users without page permissions and a
// *RedirectError when the parent lies outside the explorable tree.
func (v *ListingView) List(ctx context.Context, req ListingRequest) (*ListingContext, error) {
	perms, err := LoadUserPagePermissions(ctx, v.db, req.User)
	if err != nil {
		return nil, err
	}
	if !perms.HasAnyPagePermission() {
		return nil, ErrPermissionDenied
	}

	var parent *database.Page
	if req.ParentID != nil {
		parent, err = v.db.GetPage(ctx, *req.ParentID)
	} else {
		parent, err = v.db.GetRootPage(ctx)
	}
	if err != nil {
		return nil, err
	}

	root, err := perms.ExplorableRootPage(ctx, v.db)
	if err != nil {
		return nil, err
	}
	if parent.ID != root.ID && !parent.IsDescendantOf(root) {
		return nil, &RedirectError{PageID: root.ID}
	}

	ordering := Ordering(req.Ordering)
	parentID := parent.ID
	filter := perms.ExplorableFilter(database.PageFilter{
		ParentID: &parentID,
		Ordering: database.PageOrdering(ordering),
	})
	pages, err := v.db.ListPages(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing children of page %d: %w", parent.ID, err)
	}
	for _, hook := range v.hooks {
		pages = hook(ctx, parent, pages, req.User)
	}

	showOrderingColumn := ordering == string(database.OrderingNative)
	lc := &ListingContext{
		Title:              Title,
		PageSubtitle:       parent.AdminDisplayTitle(),
		Ordering:           ordering,
		ParentPage:         parent,
		Pages:              pages,
		ShowBulkActions:    !showOrderingColumn,
		ShowOrderingColumn: showOrderingColumn,
		Translations:       []Translation{},
	}
	// ordering by page order shows every child so they can be dragged
	if !showOrderingColumn {
		lc.Pages, lc.Paginator = Paginate(pages, req.Page, v.config.PageSize)
	}

	if v.config.I18nEnabled {
		if parent.IsRoot() {
			lc.ShowLocaleLabels = true
		} else {
			lc.Locale = parent.Locale
			translations, err := v.db.GetTranslations(ctx, parent)
			if err != nil {
				return nil, fmt.Errorf("loading translations of page %d: %w", parent.ID, err)
			}
			for _, t := range translations {
				lc.Translations = append(lc.Translations, Translation{Locale: t.Locale, PageID: t.ID})
			}
		}
	}

	slog.Debug("explorer listing", "parent_id", parent.ID, "ordering", ordering, "count", len(pages))
	return lc, nil
}

// Paginate returns the requested page of items. Missing or malformed page
// numbers select the first page and numbers past the end the last one.
func Paginate[T any](items []T, raw string, perPage int) ([]T, *Paginator) {
	p := &Paginator{Count: len(items), PerPage: perPage}
	p.NumPages = max(1, (len(items)+perPage-1)/perPage)
	number, err := strconv.Atoi(raw)
	switch {
	case raw == "last":
		number = p.NumPages
	case err != nil || number < 1:
		number = 1
	case number > p.NumPages:
		number = p.NumPages
	}
	p.Number = number
	start := min((number-1)*perPage, len(items))
	end := min(start+perPage, len(items))
	return items[start:end], p
}

// IsRedirect reports whether err asks for a redirect and to which page.
func IsRedirect(err error) (int64, bool) {
	var redirect *RedirectError
	if errors.As(err, &redirect) {
		return redirect.PageID, true
	}
	return 0, false
}
