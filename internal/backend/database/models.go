package database

import (
	"encoding/json"
	"strings"
	"time"
)

// Page is a node of the page tree. Path is a materialized path made of
// fixed-width steps, so ancestry checks are prefix checks.
type Page struct {
	ID                      int64      `db:"id"`
	Path                    string     `db:"path"`
	Depth                   int        `db:"depth"`
	NumChild                int        `db:"numchild"`
	Title                   string     `db:"title"`
	DraftTitle              string     `db:"draft_title"`
	Slug                    string     `db:"slug"`
	ContentType             string     `db:"content_type"`
	Live                    bool       `db:"live"`
	HasUnpublishedChanges   bool       `db:"has_unpublished_changes"`
	LatestRevisionCreatedAt *time.Time `db:"latest_revision_created_at"`
	OwnerID                 *int64     `db:"owner_id"`
	Locale                  string     `db:"locale"`
	TranslationKey          string     `db:"translation_key"`
	Rank                    string     `db:"rank"` // LexoRank string ordering siblings
	Content                 string     `db:"content"`
}

func (p *Page) IsRoot() bool {
	return p.Depth == 1
}

// IsDescendantOf reports whether p sits strictly below other in the tree.
func (p *Page) IsDescendantOf(other *Page) bool {
	if other == nil {
		return false
	}
	return p.Depth > other.Depth && strings.HasPrefix(p.Path, other.Path)
}

// IsAncestorOf reports whether p sits strictly above other in the tree.
func (p *Page) IsAncestorOf(other *Page) bool {
	if other == nil {
		return false
	}
	return other.IsDescendantOf(p)
}

// AdminDisplayTitle is the title shown in the admin, preferring the draft title.
func (p *Page) AdminDisplayTitle() string {
	if p.IsRoot() {
		return "Root"
	}
	if p.DraftTitle != "" {
		return p.DraftTitle
	}
	return p.Title
}

// User is an admin account.
type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	IsSuperuser  bool   `db:"is_superuser"`
	IsActive     bool   `db:"is_active"`
}

// Page permission types.
const (
	PermissionAdd        = "add"
	PermissionEdit       = "edit"
	PermissionPublish    = "publish"
	PermissionBulkDelete = "bulk_delete"
	PermissionLock       = "lock"
	PermissionUnlock     = "unlock"
)

// PagePermission grants a permission on a page and its whole subtree.
type PagePermission struct {
	UserID     int64  `db:"user_id"`
	Permission string `db:"permission_type"`
	Page       *Page
}

// FormField is one user-defined field of a form page.
type FormField struct {
	ID           int64  `db:"id"`
	PageID       int64  `db:"page_id"`
	SortOrder    int    `db:"sort_order"`
	Label        string `db:"label"`
	CleanName    string `db:"clean_name"`
	FieldType    string `db:"field_type"`
	Required     bool   `db:"required"`
	Choices      string `db:"choices"`
	DefaultValue string `db:"default_value"`
	HelpText     string `db:"help_text"`
}

// FormSubmission stores a single submission of a form page as JSON.
type FormSubmission struct {
	ID         int64     `db:"id"`
	PageID     int64     `db:"page_id"`
	FormData   string    `db:"form_data"`
	SubmitTime time.Time `db:"submit_time"`
}

// Data decodes the stored form data and adds the submit time.
func (s *FormSubmission) Data() (map[string]any, error) {
	data := make(map[string]any)
	if strings.TrimSpace(s.FormData) != "" {
		if err := json.Unmarshal([]byte(s.FormData), &data); err != nil {
			return nil, err
		}
	}
	data["submit_time"] = s.SubmitTime
	return data, nil
}

// FocalPoint is a rectangle of interest inside an image, centred on (X, Y).
type FocalPoint struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Image is an uploaded original. File holds the raw bytes as uploaded.
type Image struct {
	ID               int64       `db:"id"`
	Title            string      `db:"title"`
	Filename         string      `db:"filename"`
	File             []byte      `db:"file"`
	Width            int         `db:"width"`
	Height           int         `db:"height"`
	FileSize         int64       `db:"file_size"`
	FileHash         string      `db:"file_hash"`
	FocalPoint       *FocalPoint `db:"-"`
	UploadedByUserID *int64      `db:"uploaded_by_user_id"`
	CreatedAt        time.Time   `db:"created_at"`
}

func (i *Image) IsSVG() bool {
	return strings.HasSuffix(strings.ToLower(i.Filename), ".svg")
}

func (i *Image) IsPortrait() bool {
	return i.Width < i.Height
}

func (i *Image) IsLandscape() bool {
	return i.Height < i.Width
}

// Rendition is a derived copy of an image produced by a filter spec.
type Rendition struct {
	ID            int64  `db:"id"`
	ImageID       int64  `db:"image_id"`
	FilterSpec    string `db:"filter_spec"`
	FocalPointKey string `db:"focal_point_key"`
	File          []byte `db:"file"`
	Width         int    `db:"width"`
	Height        int    `db:"height"`
	Format        string `db:"format"`
}
