package submissions

import (
	"bytes"
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

const formPageType = "formpage"

type fixture struct {
	db                    database.DatabaseService
	service               *Service
	contact, survey, blog *database.Page
	superuser, editor     *database.User
	adder, nobody         *database.User
	first, second, third  *database.FormSubmission
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

	f := &fixture{db: db, service: NewService(db, Config{FormTypes: []string{formPageType}})}

	newUser := func(name string, superuser bool) *database.User {
		u := &database.User{Username: name, IsSuperuser: superuser, IsActive: true}
		if err := db.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		return u
	}
	f.superuser = newUser("admin", true)
	f.editor = newUser("editor", false)
	f.adder = newUser("adder", false)
	f.nobody = newUser("nobody", false)

	root := &database.Page{Title: "Root", Slug: "root", ContentType: "page"}
	if err := db.CreateRootPage(ctx, root); err != nil {
		t.Fatal(err)
	}
	home := &database.Page{Title: "Home", Slug: "home", ContentType: "homepage"}
	if err := db.CreateChildPage(ctx, root.ID, home); err != nil {
		t.Fatal(err)
	}
	f.contact = &database.Page{Title: "Contact", Slug: "contact", ContentType: formPageType}
	f.survey = &database.Page{Title: "Survey", Slug: "survey", ContentType: formPageType, OwnerID: &f.adder.ID}
	f.blog = &database.Page{Title: "Blog", Slug: "blog", ContentType: "page"}
	for _, p := range []*database.Page{f.contact, f.survey, f.blog} {
		if err := db.CreateChildPage(ctx, home.ID, p); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.GrantPagePermission(ctx, f.editor.ID, home.ID, database.PermissionEdit); err != nil {
		t.Fatal(err)
	}
	if err := db.GrantPagePermission(ctx, f.adder.ID, home.ID, database.PermissionAdd); err != nil {
		t.Fatal(err)
	}

	err = db.SetFormFields(ctx, f.contact.ID, []*database.FormField{
		{Label: "Your name", CleanName: "your_name", FieldType: SingleLine, Required: true},
		{Label: "Topics", CleanName: "topics", FieldType: Checkboxes, Choices: "a,b,c"},
		{Label: "Age", CleanName: "age", FieldType: Number},
	})
	if err != nil {
		t.Fatal(err)
	}

	add := func(data string, at time.Time) *database.FormSubmission {
		s := &database.FormSubmission{PageID: f.contact.ID, FormData: data, SubmitTime: at}
		if err := db.AddSubmission(ctx, s); err != nil {
			t.Fatal(err)
		}
		return s
	}
	f.first = add(`{"your_name":"Ann","topics":["a","b"],"age":"30"}`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	f.second = add(`{"your_name":"Bob"}`, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC))
	f.third = add(`{"your_name":"Cy","topics":["c"]}`, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))
	return f
}

func pageTitles(pages []*database.Page) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.Title)
	}
	return out
}

func TestGetFormsForUser(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		user *database.User
		want []string
	}{
		{"superuser", f.superuser, []string{"Contact", "Survey"}},
		{"edit permission", f.editor, []string{"Contact", "Survey"}},
		{"add permission covers owned pages", f.adder, []string{"Survey"}},
		{"no permission", f.nobody, nil},
		{"anonymous", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.service.GetFormsForUser(context.Background(), tt.user)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, pageTitles(got)); diff != "" {
				t.Errorf("forms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetFormsForUser_Hook(t *testing.T) {
	f := newFixture(t)
	f.service.RegisterFormsHook(func(user *database.User, pages []*database.Page) []*database.Page {
		return pages[:1]
	})
	got, err := f.service.GetFormsForUser(context.Background(), f.superuser)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Contact"}, pageTitles(got)); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOrderBy(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []OrderTerm
	}{
		{"default", nil, []OrderTerm{{Desc: true, Field: "submit_time"}}},
		{"duplicates dropped", []string{"id", "-id", "submit_time"}, []OrderTerm{{Field: "id"}, {Field: "submit_time"}}},
		{"invalid skipped", []string{"bogus", "-submit_time"}, []OrderTerm{{Desc: true, Field: "submit_time"}}},
		{"nothing valid", []string{"your_name"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ValidateOrderBy(tt.in)); diff != "" {
				t.Errorf("ValidateOrderBy mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lc, err := f.service.List(ctx, ListRequest{User: f.editor, PageID: f.contact.ID})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	wantHeadings := []Heading{
		{Name: "submit_time", Label: "Submission date", Ordering: "desc"},
		{Name: "your_name", Label: "Your name"},
		{Name: "topics", Label: "Topics"},
		{Name: "age", Label: "Age"},
	}
	if diff := cmp.Diff(wantHeadings, lc.Headings); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}
	wantRows := []Row{
		{ID: f.third.ID, Fields: []string{"2024-03-05 09:00:00", "Cy", "c", ""}},
		{ID: f.second.ID, Fields: []string{"2024-03-02 12:00:00", "Bob", "", ""}},
		{ID: f.first.ID, Fields: []string{"2024-03-01 10:00:00", "Ann", "a, b", "30"}},
	}
	if diff := cmp.Diff(wantRows, lc.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if lc.Paginator.Count != 3 || lc.Paginator.PerPage != DefaultPageSize {
		t.Errorf("paginator = %+v", lc.Paginator)
	}
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query url.Values
		want  []int64
	}{
		{"order by id", url.Values{"order_by": {"id"}}, []int64{f.first.ID, f.second.ID, f.third.ID}},
		{"single day", url.Values{"date_from": {"2024-03-02"}, "date_to": {"2024-03-02"}}, []int64{f.second.ID}},
		{"from only", url.Values{"date_from": {"2024-03-02"}, "order_by": {"submit_time"}}, []int64{f.second.ID, f.third.ID}},
		{"to only", url.Values{"date_to": {"2024-03-01"}}, []int64{f.first.ID}},
		{"invalid date ignored", url.Values{"date_from": {"yesterday"}, "order_by": {"id"}}, []int64{f.first.ID, f.second.ID, f.third.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc, err := f.service.List(ctx, ListRequest{User: f.superuser, PageID: f.contact.ID, Query: tt.query})
			if err != nil {
				t.Fatal(err)
			}
			var got []int64
			for _, r := range lc.Rows {
				got = append(got, r.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t)
	service := NewService(f.db, Config{PageSize: 2, FormTypes: []string{formPageType}})
	lc, err := service.List(context.Background(), ListRequest{User: f.superuser, PageID: f.contact.ID, Query: url.Values{"p": {"2"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(lc.Rows) != 1 || lc.Rows[0].ID != f.first.ID {
		t.Errorf("rows = %+v", lc.Rows)
	}
	if lc.Paginator.Number != 2 || lc.Paginator.NumPages != 2 {
		t.Errorf("paginator = %+v", lc.Paginator)
	}
}

func TestList_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, req := range []ListRequest{
		{User: f.nobody, PageID: f.contact.ID},
		{User: f.adder, PageID: f.contact.ID},
		{User: f.superuser, PageID: f.blog.ID},
	} {
		if _, err := f.service.List(ctx, req); !IsPermissionDenied(err) {
			t.Errorf("List(%s, %d) error = %v, want permission denied", req.User.Username, req.PageID, err)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	err := f.service.WriteCSV(context.Background(), ListRequest{User: f.superuser, PageID: f.contact.ID, Query: url.Values{"order_by": {"id"}}}, &buf)
	if err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "Submission date,Your name,Topics,Age\n" +
		"2024-03-01 10:00:00,Ann,\"a, b\",30\n" +
		"2024-03-02 12:00:00,Bob,,\n" +
		"2024-03-05 09:00:00,Cy,c,\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, selected, err := f.service.SelectedSubmissions(ctx, f.editor, f.contact.ID, []int64{f.first.ID, f.third.ID})
	if err != nil {
		t.Fatal(err)
	}
	if page.ID != f.contact.ID || len(selected) != 2 {
		t.Fatalf("selected = %d submissions of page %d", len(selected), page.ID)
	}

	msg, err := f.service.DeleteSubmissions(ctx, f.editor, f.contact.ID, []int64{f.first.ID, f.third.ID})
	if err != nil {
		t.Fatal(err)
	}
	if msg != "2 submissions have been deleted." {
		t.Errorf("message = %q", msg)
	}
	msg, err = f.service.DeleteSubmissions(ctx, f.editor, f.contact.ID, []int64{f.second.ID})
	if err != nil {
		t.Fatal(err)
	}
	if msg != "One submission has been deleted." {
		t.Errorf("message = %q", msg)
	}
	if n, _ := f.db.CountSubmissions(ctx, f.contact.ID); n != 0 {
		t.Errorf("%d submissions left", n)
	}

	if _, err := f.service.DeleteSubmissions(ctx, f.nobody, f.contact.ID, []int64{f.first.ID}); !IsPermissionDenied(err) {
		t.Errorf("nobody: error = %v", err)
	}
}

func TestDeletedMessage(t *testing.T) {
	tests := map[int64]string{
		0:  "0 submissions have been deleted.",
		1:  "One submission has been deleted.",
		12: "12 submissions have been deleted.",
	}
	for n, want := range tests {
		if got := DeletedMessage(n); got != want {
			t.Errorf("DeletedMessage(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestParseChoices(t *testing.T) {
	tests := map[string][]string{
		"a,b , c":       {"a", "b", "c"},
		"one\ntwo, too": {"one", "two, too"},
		"":              nil,
	}
	for in, want := range tests {
		if diff := cmp.Diff(want, ParseChoices(in)); diff != "" {
			t.Errorf("ParseChoices(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, sub, err := f.service.Submit(ctx, f.contact, url.Values{
		"your_name": {"Dee"},
		"topics":    {"a", "c"},
		"age":       {"41.5"},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if sub == nil {
		t.Fatalf("form invalid: %v", form.Errors())
	}
	data, err := sub.Data()
	if err != nil {
		t.Fatal(err)
	}
	delete(data, "submit_time")
	want := map[string]any{"your_name": "Dee", "topics": []any{"a", "c"}, "age": "41.5"}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("stored data mismatch (-want +got):\n%s", diff)
	}

	form, sub, err = f.service.Submit(ctx, f.contact, url.Values{
		"topics": {"a", "z"},
		"age":    {"old"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sub != nil {
		t.Fatal("invalid submission stored")
	}
	wantErrors := map[string][]string{
		"your_name": {"This field is required."},
		"topics":    {"Select a valid choice. z is not one of the available choices."},
		"age":       {"Enter a number."},
	}
	if diff := cmp.Diff(wantErrors, form.Errors()); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if n, _ := f.db.CountSubmissions(ctx, f.contact.ID); n != 4 {
		t.Errorf("CountSubmissions() = %d, want 4", n)
	}
}
