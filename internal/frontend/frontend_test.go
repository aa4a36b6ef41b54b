package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jo-hoe/cmsadmin/internal/admin/content"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/common"
	"github.com/jo-hoe/cmsadmin/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUser     = "admin"
	testPassword = "correct horse"
)

type testServer struct {
	core    *core.CoreService
	echo    *echo.Echo
	home    *database.Page
	contact *database.Page
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	cfg := core.DefaultConfig()
	cfg.Database.ConnectionString = ":memory:"
	svc, err := core.NewCoreService(&cfg)
	if err != nil {
		t.Fatalf("NewCoreService() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if _, err := svc.CreateSuperuser(ctx, testUser, testPassword); err != nil {
		t.Fatal(err)
	}
	root, err := svc.EnsureRootPage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	children, err := svc.Database().GetChildren(ctx, root.ID, database.OrderingNative)
	if err != nil || len(children) != 1 {
		t.Fatalf("GetChildren() = %v, %v", children, err)
	}
	ts := &testServer{core: svc, home: children[0]}

	ts.contact = &database.Page{Title: "Contact", Slug: "contact", ContentType: content.FormPageType, Live: true, Content: "<p>Say hello</p>"}
	if err := svc.Database().CreateChildPage(ctx, ts.home.ID, ts.contact); err != nil {
		t.Fatal(err)
	}
	err = svc.Database().SetFormFields(ctx, ts.contact.ID, []*database.FormField{
		{Label: "Your name", CleanName: "your_name", FieldType: "singleline", Required: true},
		{Label: "Topics", CleanName: "topics", FieldType: "checkboxes", Choices: "news,events"},
	})
	if err != nil {
		t.Fatal(err)
	}

	ts.echo = echo.New()
	ts.echo.Pre(middleware.RemoveTrailingSlash())
	ts.echo.Validator = &common.GenericEchoValidator{}
	NewFrontendService(svc).SetRoutes(ts.echo)
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	if auth {
		req.SetBasicAuth(testUser, testPassword)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, httptest.NewRequest(http.MethodGet, target, nil), true)
}

func (ts *testServer) postForm(t *testing.T, target string, data url.Values, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(data.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return ts.do(t, req, auth)
}

func TestProbe(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/probe", nil), false)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAdminRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/admin/pages", nil), false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/pages", nil)
	req.SetBasicAuth(testUser, "wrong")
	if rec := ts.do(t, req, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = ts.get(t, "/admin/")
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/admin/pages" {
		t.Errorf("admin root = %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestExplore(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/admin/pages/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Home") {
		t.Fatalf("root listing = %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = ts.get(t, fmt.Sprintf("/admin/pages/%d?ordering=title", ts.home.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Exploring", "Contact", fmt.Sprintf("/admin/pages/%d/edit", ts.contact.ID)} {
		if !strings.Contains(body, want) {
			t.Errorf("listing lacks %q", want)
		}
	}

	if rec := ts.get(t, "/admin/pages/9999"); rec.Code != http.StatusNotFound {
		t.Errorf("missing page status = %d, want 404", rec.Code)
	}
}

func TestExplore_PermissionDenied(t *testing.T) {
	ts := newTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	// an active account without any page permission
	plain := &database.User{Username: "plain", PasswordHash: string(hash), IsActive: true}
	if err := ts.core.Database().CreateUser(context.Background(), plain); err != nil {
		t.Fatal(err)
	}

	for _, target := range []string{"/admin/pages", "/admin/search?q=home", fmt.Sprintf("/admin/pages/%d/edit", ts.home.ID)} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.SetBasicAuth("plain", "pw")
		if rec := ts.do(t, req, false); rec.Code != http.StatusForbidden {
			t.Errorf("%s status = %d, want 403", target, rec.Code)
		}
	}
}

func TestMovePage(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	about := &database.Page{Title: "About", Slug: "about", ContentType: content.PageType}
	if err := ts.core.Database().CreateChildPage(ctx, ts.home.ID, about); err != nil {
		t.Fatal(err)
	}

	rec := ts.postForm(t, fmt.Sprintf("/admin/pages/%d/move?direction=up", about.ID), url.Values{}, true)
	want := fmt.Sprintf("/admin/pages/%d?ordering=ord", ts.home.ID)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != want {
		t.Fatalf("move = %d %q, want redirect to %q", rec.Code, rec.Header().Get(echo.HeaderLocation), want)
	}
	children, err := ts.core.Database().GetChildren(ctx, ts.home.ID, database.OrderingNative)
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, c := range children {
		titles = append(titles, c.Title)
	}
	if diff := cmp.Diff([]string{"About", "Contact"}, titles); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	rec = ts.postForm(t, fmt.Sprintf("/admin/pages/%d/move?direction=sideways", about.ID), url.Values{}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid direction status = %d, want 400", rec.Code)
	}
}

func TestEditPage(t *testing.T) {
	ts := newTestServer(t)
	editURL := fmt.Sprintf("/admin/pages/%d/edit", ts.home.ID)

	rec := ts.get(t, editURL)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="title" value="Home"`) {
		t.Fatalf("edit form = %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = ts.postForm(t, editURL, url.Values{"title": {""}, "slug": {"home"}, "action-publish": {"action-publish"}}, true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "could not be saved") {
		t.Errorf("invalid publish = %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = ts.postForm(t, editURL, url.Values{"title": {"Welcome"}, "slug": {"home"}, "body": {"<p>Hi</p>"}, "action-publish": {"action-publish"}}, true)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != editURL {
		t.Fatalf("publish = %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	page, err := ts.core.Database().GetPage(context.Background(), ts.home.ID)
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "Welcome" || !page.Live || page.Content != "<p>Hi</p>" {
		t.Errorf("page = %+v", page)
	}

	// the success message is shown once after the redirect
	req := httptest.NewRequest(http.MethodGet, editURL, nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = ts.do(t, req, true)
	if !strings.Contains(rec.Body.String(), "Page &#39;Welcome&#39; has been published.") {
		t.Errorf("message missing:\n%s", rec.Body.String())
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.get(t, "/admin/search?q=contact")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), fmt.Sprintf("/admin/pages/%d/edit", ts.contact.ID)) {
		t.Errorf("result missing:\n%s", rec.Body.String())
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (ts *testServer) upload(t *testing.T, filename string, data []byte) uploadResponse {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files[]", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/images/multiple/add", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := ts.do(t, req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestImages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get(t, "/admin/images/multiple/add")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="files[]"`) {
		t.Fatalf("add form = %d", rec.Code)
	}

	data := pngBytes(t, 400, 200)
	first := ts.upload(t, "sunset.png", data)
	if !first.Success || first.Title != "sunset" || len(first.Duplicates) != 0 {
		t.Fatalf("first upload = %+v", first)
	}
	second := ts.upload(t, "copy.png", data)
	if !second.Success || len(second.Duplicates) != 1 || second.Duplicates[0].ID != first.ImageID {
		t.Errorf("duplicate upload = %+v", second)
	}
	if bad := ts.upload(t, "notes.txt", []byte("hello")); bad.Success || bad.ErrorMessage == "" {
		t.Errorf("text upload = %+v", bad)
	}

	rec = ts.get(t, fmt.Sprintf("/admin/images/%d/thumbnail", first.ImageID))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Fatalf("thumbnail = %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 165 || cfg.Height != 82 {
		t.Errorf("thumbnail is %dx%d, want 165x82", cfg.Width, cfg.Height)
	}

	if rec := ts.get(t, "/admin/images/9999/thumbnail"); rec.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d, want 404", rec.Code)
	}
}

func TestFormSubmissions(t *testing.T) {
	ts := newTestServer(t)
	formURL := fmt.Sprintf("/forms/%d", ts.contact.ID)
	listURL := fmt.Sprintf("/admin/forms/submissions/%d", ts.contact.ID)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, formURL, nil), false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="your_name"`) {
		t.Fatalf("public form = %d:\n%s", rec.Code, rec.Body.String())
	}
	rec = ts.postForm(t, formURL, url.Values{"topics": {"news"}}, false)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "Thank you") {
		t.Errorf("incomplete submission accepted: %d", rec.Code)
	}
	rec = ts.postForm(t, formURL, url.Values{"your_name": {"Ada"}, "topics": {"news", "events"}}, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Thank you") {
		t.Fatalf("submission = %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = ts.get(t, "/admin/forms/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), listURL) {
		t.Errorf("forms index = %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = ts.get(t, listURL+"/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "news, events") {
		t.Fatalf("submissions list = %d:\n%s", rec.Code, rec.Body.String())
	}

	rec = ts.get(t, listURL+"?action=CSV")
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentDisposition) != "attachment;filename=export.csv" {
		t.Fatalf("csv = %d %q", rec.Code, rec.Header().Get(echo.HeaderContentDisposition))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || strings.TrimSpace(lines[0]) != "Submission date,Your name,Topics" {
		t.Errorf("csv body:\n%s", rec.Body.String())
	}

	subs, err := ts.core.Database().ListSubmissions(context.Background(), database.SubmissionFilter{PageID: ts.contact.ID})
	if err != nil || len(subs) != 1 {
		t.Fatalf("ListSubmissions() = %v, %v", subs, err)
	}
	selected := url.Values{"selected-submissions": {fmt.Sprint(subs[0].ID)}}

	rec = ts.get(t, listURL+"/delete?"+selected.Encode())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "delete this form submission") {
		t.Errorf("confirm = %d:\n%s", rec.Code, rec.Body.String())
	}
	rec = ts.postForm(t, listURL+"/delete", selected, true)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != listURL {
		t.Fatalf("delete = %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	if n, _ := ts.core.Database().CountSubmissions(context.Background(), ts.contact.ID); n != 0 {
		t.Errorf("%d submissions left", n)
	}

	if rec := ts.get(t, "/admin/forms/submissions/9999"); rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Errorf("unknown form page status = %d", rec.Code)
	}
}

func TestFormPage_NotAForm(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/forms/%d", ts.home.ID), nil), false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMessagesExpire(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	ctx := ts.echo.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	addMessage(ctx, "Saved at "+time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Format(time.DateOnly))

	req := httptest.NewRequest(http.MethodGet, "/admin/pages", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	ctx = ts.echo.NewContext(req, rec)
	if diff := cmp.Diff([]string{"Saved at 2024-01-02"}, popMessages(ctx)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("message cookie not cleared: %+v", cookies)
	}
}
