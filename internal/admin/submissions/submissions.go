package submissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/cmsadmin/internal/admin/forms"
	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

const (
	DefaultPageSize = 20
	submitTimeField = "submit_time"
	submitTimeLabel = "Submission date"
	timeLayout      = "2006-01-02 15:04:05"
)

// FormsHook may narrow the form pages whose submissions a user can access.
type FormsHook func(user *database.User, pages []*database.Page) []*database.Page

type Config struct {
	PageSize int `yaml:"submissionsPageSize" validate:"min=0"`
	// FormTypes are the content types of pages that collect submissions.
	FormTypes []string
}

// Service serves the form submission views of the admin.
type Service struct {
	db     database.DatabaseService
	config Config
	hooks  []FormsHook
}

func NewService(db database.DatabaseService, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Service{db: db, config: cfg}
}

func (s *Service) RegisterFormsHook(hook FormsHook) {
	s.hooks = append(s.hooks, hook)
}

// GetFormsForUser returns the form pages the user may read submissions of:
// the form pages they can edit.
func (s *Service) GetFormsForUser(ctx context.Context, user *database.User) ([]*database.Page, error) {
	if len(s.config.FormTypes) == 0 {
		return nil, nil
	}
	perms, err := pages.LoadUserPagePermissions(ctx, s.db, user)
	if err != nil {
		return nil, err
	}
	if !perms.HasAnyPagePermission() {
		return nil, nil
	}
	candidates, err := s.db.ListPages(ctx, perms.EditablePagesFilter(database.PageFilter{
		ContentTypes: s.config.FormTypes,
		Ordering:     "title",
	}))
	if err != nil {
		return nil, fmt.Errorf("listing form pages: %w", err)
	}
	var editable []*database.Page
	for _, p := range candidates {
		if perms.CanEdit(p) {
			editable = append(editable, p)
		}
	}
	for _, hook := range s.hooks {
		editable = hook(user, editable)
	}
	return editable, nil
}

// Index returns one page of the form pages available to the user.
func (s *Service) Index(ctx context.Context, user *database.User, page string) ([]*database.Page, *pages.Paginator, error) {
	formPages, err := s.GetFormsForUser(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	items, paginator := pages.Paginate(formPages, page, s.config.PageSize)
	return items, paginator, nil
}

// FormPage returns the form page if the user may access its submissions,
// otherwise pages.ErrPermissionDenied.
func (s *Service) FormPage(ctx context.Context, user *database.User, pageID int64) (*database.Page, error) {
	formPages, err := s.GetFormsForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(formPages, func(p *database.Page) bool { return p.ID == pageID })
	if i < 0 {
		return nil, pages.ErrPermissionDenied
	}
	return formPages[i], nil
}

// DataField is a column of the submissions table.
type DataField struct {
	Name  string
	Label string
}

// DataFields returns the submission date followed by the form fields.
func DataFields(fields []*database.FormField) []DataField {
	out := []DataField{{Name: submitTimeField, Label: submitTimeLabel}}
	for _, f := range fields {
		out = append(out, DataField{Name: f.CleanName, Label: f.Label})
	}
	return out
}

type OrderTerm struct {
	Desc  bool
	Field string
}

func (o OrderTerm) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// ValidateOrderBy keeps the order_by terms naming a sortable field, dropping
// invalid ones and later terms for a field already ordered on. No terms at
// all orders by descending submission date.
func ValidateOrderBy(values []string) []OrderTerm {
	if len(values) == 0 {
		return []OrderTerm{{Desc: true, Field: submitTimeField}}
	}
	var terms []OrderTerm
	for _, v := range values {
		term := OrderTerm{Desc: strings.HasPrefix(v, "-"), Field: strings.TrimPrefix(v, "-")}
		if term.Field != "id" && term.Field != submitTimeField {
			continue
		}
		if slices.ContainsFunc(terms, func(o OrderTerm) bool { return o.Field == term.Field }) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// NewSelectDateForm builds the date range filter of the submissions list.
func NewSelectDateForm() *forms.Form {
	return forms.NewForm("",
		&forms.Field{Name: "date_from", Label: "Start date", Kind: forms.DateField},
		&forms.Field{Name: "date_to", Label: "End date", Kind: forms.DateField},
	)
}

type ListRequest struct {
	User   *database.User
	PageID int64
	// Query holds the raw query parameters: order_by, date_from, date_to, p.
	Query url.Values
}

type Heading struct {
	Name  string
	Label string
	// Ordering is "asc", "desc" or empty when the column is not ordered on.
	Ordering string
}

type Row struct {
	ID     int64
	Fields []string
}

type ListContext struct {
	FormPage       *database.Page
	SelectDateForm *forms.Form
	Headings       []Heading
	Rows           []Row
	Paginator      *pages.Paginator
	OrderBy        []OrderTerm
}

type queryResult struct {
	formPage    *database.Page
	dataFields  []DataField
	orderBy     []OrderTerm
	dateForm    *forms.Form
	submissions []*database.FormSubmission
}

func (s *Service) query(ctx context.Context, req ListRequest) (*queryResult, error) {
	formPage, err := s.FormPage(ctx, req.User, req.PageID)
	if err != nil {
		return nil, err
	}
	fields, err := s.db.GetFormFields(ctx, formPage.ID)
	if err != nil {
		return nil, err
	}
	res := &queryResult{
		formPage:   formPage,
		dataFields: DataFields(fields),
		orderBy:    ValidateOrderBy(req.Query["order_by"]),
		dateForm:   NewSelectDateForm(),
	}
	filter := database.SubmissionFilter{PageID: formPage.ID}
	for _, o := range res.orderBy {
		filter.OrderBy = append(filter.OrderBy, o.String())
	}

	if err := res.dateForm.Bind(req.Query); err != nil {
		return nil, err
	}
	if res.dateForm.IsValid() {
		cleaned := res.dateForm.CleanedData()
		if from, ok := cleaned["date_from"].(time.Time); ok {
			filter.From = &from
		}
		// submissions are timestamped, so the end date covers its whole day
		if to, ok := cleaned["date_to"].(time.Time); ok {
			to = to.AddDate(0, 0, 1)
			filter.To = &to
		}
	}

	res.submissions, err = s.db.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing submissions of page %d: %w", formPage.ID, err)
	}
	return res, nil
}

// List returns one page of the submissions of a form page.
func (s *Service) List(ctx context.Context, req ListRequest) (*ListContext, error) {
	res, err := s.query(ctx, req)
	if err != nil {
		return nil, err
	}
	lc := &ListContext{FormPage: res.formPage, SelectDateForm: res.dateForm, OrderBy: res.orderBy}
	for _, f := range res.dataFields {
		h := Heading{Name: f.Name, Label: f.Label}
		for _, o := range res.orderBy {
			if o.Field == f.Name {
				h.Ordering = "asc"
				if o.Desc {
					h.Ordering = "desc"
				}
			}
		}
		lc.Headings = append(lc.Headings, h)
	}

	submissions, paginator := pages.Paginate(res.submissions, req.Query.Get("p"), s.config.PageSize)
	lc.Paginator = paginator
	for _, sub := range submissions {
		values, err := rowValues(sub, res.dataFields)
		if err != nil {
			return nil, err
		}
		lc.Rows = append(lc.Rows, Row{ID: sub.ID, Fields: values})
	}
	return lc, nil
}

func rowValues(sub *database.FormSubmission, dataFields []DataField) ([]string, error) {
	data, err := sub.Data()
	if err != nil {
		return nil, fmt.Errorf("decoding submission %d: %w", sub.ID, err)
	}
	values := make([]string, 0, len(dataFields))
	for _, f := range dataFields {
		values = append(values, formatValue(data[f.Name]))
	}
	return values, nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case time.Time:
		return v.Format(timeLayout)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

// SelectedSubmissions returns the submissions chosen for deletion, for the
// confirmation view.
func (s *Service) SelectedSubmissions(ctx context.Context, user *database.User, pageID int64, ids []int64) (*database.Page, []*database.FormSubmission, error) {
	formPage, err := s.FormPage(ctx, user, pageID)
	if err != nil {
		return nil, nil, err
	}
	selected, err := s.db.GetSubmissionsByID(ctx, formPage.ID, ids)
	if err != nil {
		return nil, nil, err
	}
	return formPage, selected, nil
}

// DeleteSubmissions deletes the selected submissions of a form page and
// returns the success message.
func (s *Service) DeleteSubmissions(ctx context.Context, user *database.User, pageID int64, ids []int64) (string, error) {
	formPage, err := s.FormPage(ctx, user, pageID)
	if err != nil {
		return "", err
	}
	n, err := s.db.DeleteSubmissions(ctx, formPage.ID, ids)
	if err != nil {
		return "", fmt.Errorf("deleting submissions of page %d: %w", formPage.ID, err)
	}
	slog.Info("form submissions deleted", "page_id", formPage.ID, "count", n)
	return DeletedMessage(n), nil
}

func DeletedMessage(n int64) string {
	if n == 1 {
		return "One submission has been deleted."
	}
	return fmt.Sprintf("%d submissions have been deleted.", n)
}

// IsPermissionDenied reports whether err denies access to a form page.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, pages.ErrPermissionDenied)
}
