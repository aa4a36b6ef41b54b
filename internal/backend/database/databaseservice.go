package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("database: not found")

// PageOrdering names a column ordering for page queries. A leading "-" sorts
// descending; OrderingNative keeps the sibling rank order.
type PageOrdering string

const OrderingNative PageOrdering = "ord"

// PageFilter narrows ListPages. Zero values do not filter.
type PageFilter struct {
	ParentID *int64
	// PathPrefixes and Paths are OR-ed: a page is kept when its path starts
	// with any prefix or equals any of Paths.
	PathPrefixes []string
	Paths        []string
	ContentTypes []string
	OwnerID      *int64
	TitleSearch  string
	Ordering     PageOrdering
	Limit        int
}

// SubmissionFilter selects submissions of one form page.
type SubmissionFilter struct {
	PageID int64
	// OrderBy holds validated "id", "-id", "submit_time" or "-submit_time" terms.
	OrderBy []string
	From    *time.Time
	To      *time.Time
}

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// Pages
	CreateRootPage(ctx context.Context, page *Page) error
	// CreateChildPage appends page as the last child of parentID, filling
	// in Path, Depth, Rank and TranslationKey.
	CreateChildPage(ctx context.Context, parentID int64, page *Page) error
	UpdatePage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, id int64) (*Page, error)
	GetRootPage(ctx context.Context) (*Page, error)
	GetChildren(ctx context.Context, parentID int64, ordering PageOrdering) ([]*Page, error)
	GetAncestors(ctx context.Context, page *Page) ([]*Page, error)
	GetTranslations(ctx context.Context, page *Page) ([]*Page, error)
	ListPages(ctx context.Context, filter PageFilter) ([]*Page, error)
	// MovePage applies a new sibling order, rewriting only the ranks that
	// need to change.
	MovePage(ctx context.Context, parentID int64, order []int64) error

	// Users and permissions
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GrantPagePermission(ctx context.Context, userID, pageID int64, permission string) error
	GetPagePermissions(ctx context.Context, userID int64) ([]*PagePermission, error)

	// Form pages
	SetFormFields(ctx context.Context, pageID int64, fields []*FormField) error
	GetFormFields(ctx context.Context, pageID int64) ([]*FormField, error)
	AddSubmission(ctx context.Context, submission *FormSubmission) error
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]*FormSubmission, error)
	CountSubmissions(ctx context.Context, pageID int64) (int, error)
	GetSubmissionsByID(ctx context.Context, pageID int64, ids []int64) ([]*FormSubmission, error)
	DeleteSubmissions(ctx context.Context, pageID int64, ids []int64) (int64, error)

	// Images and renditions
	CreateImage(ctx context.Context, image *Image) error
	GetImage(ctx context.Context, id int64) (*Image, error)
	ListImages(ctx context.Context) ([]*Image, error)
	FindImagesByHash(ctx context.Context, hash string) ([]*Image, error)
	DeleteImage(ctx context.Context, id int64) error
	CreateRendition(ctx context.Context, rendition *Rendition) error
	FindRendition(ctx context.Context, imageID int64, filterSpec, focalPointKey string) (*Rendition, error)
	UpdateRenditionFile(ctx context.Context, rendition *Rendition) error
	GetAllRenditions(ctx context.Context) ([]*Rendition, error)
	DeleteRendition(ctx context.Context, id int64) error
	CountRenditions(ctx context.Context) (int, error)
}
