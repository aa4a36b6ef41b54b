package content

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jo-hoe/cmsadmin/internal/admin/pages"
	"github.com/jo-hoe/cmsadmin/internal/admin/panels"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/richtext"
)

type fixture struct {
	db        database.DatabaseService
	editor    *Editor
	contact   *database.Page
	superuser *database.User
	nobody    *database.User
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	if _, err := db.CreateDatabase(); err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	registry, err := DefaultRegistry(Config{AllowUnicodeSlugs: true})
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}
	f := &fixture{db: db, now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	f.editor = NewEditor(db, registry, richtext.NewEditorHTMLConverter(), Config{AllowUnicodeSlugs: true})
	f.editor.now = func() time.Time { return f.now }

	root := &database.Page{Title: "Root", Slug: "root", ContentType: PageType}
	if err := db.CreateRootPage(ctx, root); err != nil {
		t.Fatal(err)
	}
	f.contact = &database.Page{Title: "Contact", Slug: "contact", ContentType: FormPageType}
	if err := db.CreateChildPage(ctx, root.ID, f.contact); err != nil {
		t.Fatal(err)
	}
	err = db.SetFormFields(ctx, f.contact.ID, []*database.FormField{
		{Label: "Name", CleanName: "name", FieldType: "singleline", Required: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	f.superuser = &database.User{Username: "admin", IsSuperuser: true, IsActive: true}
	f.nobody = &database.User{Username: "nobody", IsActive: true}
	for _, u := range []*database.User{f.superuser, f.nobody} {
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestDefaultRegistry(t *testing.T) {
	registry, err := DefaultRegistry(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{PageType, HomePageType, FormPageType}, registry.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{FormPageType}, registry.FormTypes()); diff != "" {
		t.Errorf("form types mismatch (-want +got):\n%s", diff)
	}

	ct, ok := registry.Get(FormPageType)
	if !ok {
		t.Fatal("form page not registered")
	}
	opts := ct.EditHandler.GetFormClass().Options
	if diff := cmp.Diff([]string{"title", "slug", "body"}, opts.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"title", "slug"}, opts.DeferRequiredOnFields); diff != "" {
		t.Errorf("deferred fields mismatch (-want +got):\n%s", diff)
	}
	if _, ok := opts.Formsets[FormFieldsRelation]; !ok {
		t.Error("form fields formset missing")
	}

	if err := registry.Register(PageType, &panels.ModelMeta{Name: "Other"}, false); err == nil {
		t.Error("expected an error registering a content type twice")
	}
	if _, ok := registry.Get("blogpage"); ok {
		t.Error("unexpected content type")
	}
}

func TestEdit_Unbound(t *testing.T) {
	f := newFixture(t)
	view, err := f.editor.Edit(context.Background(), EditRequest{User: f.superuser, PageID: f.contact.ID})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if view.Saved || view.Form.IsBound() {
		t.Errorf("unbound view saved %v bound %v", view.Saved, view.Form.IsBound())
	}
	if n := len(view.Form.Formsets[FormFieldsRelation].Forms); n != 1 {
		t.Errorf("%d form field forms, want 1", n)
	}

	html, err := view.Panel.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{
		`name="title" value="Contact"`,
		`data-controller="w-slug"`,
		`data-formset-prefix="form_fields"`,
		`name="form_fields-0-label" value="Name"`,
		`id="inline_child_panel-child-form_fields-0"`,
		`Add form field`,
	} {
		if !strings.Contains(string(html), want) {
			t.Errorf("rendered edit view lacks %s", want)
		}
	}
}

func TestEdit_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	_, err := f.editor.Edit(context.Background(), EditRequest{User: f.nobody, PageID: f.contact.ID})
	if !errors.Is(err, pages.ErrPermissionDenied) {
		t.Fatalf("Edit() error = %v, want ErrPermissionDenied", err)
	}
}

func formData(values map[string]string) url.Values {
	data := url.Values{}
	for k, v := range values {
		data.Set(k, v)
	}
	return data
}

func TestEdit_Publish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := formData(map[string]string{
		"title":                     "Contact us",
		"slug":                      "Contact Us!",
		"body":                      `<div>Write <b class="x">us</b></div>`,
		"form_fields-TOTAL_FORMS":   "2",
		"form_fields-INITIAL_FORMS": "1",
		"form_fields-MIN_NUM_FORMS": "0",
		"form_fields-MAX_NUM_FORMS": "1000",
		"form_fields-0-label":       "Your name",
		"form_fields-0-field_type":  "singleline",
		"form_fields-0-required":    "on",
		"form_fields-0-ORDER":       "2",
		"form_fields-1-label":       "Größe",
		"form_fields-1-field_type":  "number",
		"form_fields-1-help_text":   "in cm",
		"form_fields-1-ORDER":       "1",
	})
	view, err := f.editor.Edit(ctx, EditRequest{User: f.superuser, PageID: f.contact.ID, Data: data, Publish: true})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if !view.Saved {
		t.Fatalf("page not saved: %v", view.Form.Errors())
	}

	page, err := f.db.GetPage(ctx, f.contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "Contact us" || page.DraftTitle != "Contact us" || !page.Live || page.HasUnpublishedChanges {
		t.Errorf("page = %+v", page)
	}
	if page.Slug != "contact-us" {
		t.Errorf("slug = %q", page.Slug)
	}
	if page.Content != `<p>Write <b>us</b></p>` {
		t.Errorf("content = %q", page.Content)
	}
	if page.LatestRevisionCreatedAt == nil || !page.LatestRevisionCreatedAt.Equal(f.now) {
		t.Errorf("revision time = %v", page.LatestRevisionCreatedAt)
	}

	fields, err := f.db.GetFormFields(ctx, f.contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	type stored struct {
		Label, CleanName, FieldType, HelpText string
		Required                              bool
	}
	var got []stored
	for _, ff := range fields {
		got = append(got, stored{ff.Label, ff.CleanName, ff.FieldType, ff.HelpText, ff.Required})
	}
	want := []stored{
		{"Größe", "grou0308xdfe", "number", "in cm", false},
		{"Your name", "your_name", "singleline", "", true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("form fields mismatch (-want +got):\n%s", diff)
	}
	if n := len(view.Form.Formsets[FormFieldsRelation].Forms); n != 2 {
		t.Errorf("rebuilt view has %d form field forms, want 2", n)
	}
}

func TestEdit_DraftDefersRequiredFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := formData(map[string]string{
		"title":                     "",
		"slug":                      "",
		"form_fields-TOTAL_FORMS":   "1",
		"form_fields-INITIAL_FORMS": "1",
		"form_fields-0-label":       "Name",
		"form_fields-0-field_type":  "singleline",
		"form_fields-0-DELETE":      "on",
	})
	view, err := f.editor.Edit(ctx, EditRequest{User: f.superuser, PageID: f.contact.ID, Data: data})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if !view.Saved {
		t.Fatalf("draft not saved: %v", view.Form.Errors())
	}
	page, err := f.db.GetPage(ctx, f.contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "Contact" || page.Live || !page.HasUnpublishedChanges || page.Slug != "contact" {
		t.Errorf("page = %+v", page)
	}
	if fields, _ := f.db.GetFormFields(ctx, f.contact.ID); len(fields) != 0 {
		t.Errorf("deleted form field kept: %+v", fields)
	}
}

func TestEdit_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data url.Values
	}{
		{"missing title on publish", formData(map[string]string{
			"slug":                      "contact",
			"form_fields-TOTAL_FORMS":   "0",
			"form_fields-INITIAL_FORMS": "0",
		})},
		{"missing management form", formData(map[string]string{"title": "Contact", "slug": "contact"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.editor.Edit(ctx, EditRequest{User: f.superuser, PageID: f.contact.ID, Data: tt.data, Publish: true})
			if err != nil {
				t.Fatalf("Edit() error = %v", err)
			}
			if view.Saved {
				t.Fatal("invalid form saved")
			}
			if _, err := view.Panel.Render(); err != nil {
				t.Errorf("Render() error = %v", err)
			}
		})
	}

	page, err := f.db.GetPage(ctx, f.contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.LatestRevisionCreatedAt != nil {
		t.Errorf("page modified: %+v", page)
	}
}
