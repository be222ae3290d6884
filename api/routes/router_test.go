package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trekjournal/media-proxy/internal/accesscontrol"
	"github.com/trekjournal/media-proxy/internal/journeys"
	"github.com/trekjournal/media-proxy/internal/mcp"
	"github.com/trekjournal/media-proxy/internal/objects"
	pkgauth "github.com/trekjournal/media-proxy/pkg/auth"
	"github.com/trekjournal/media-proxy/pkg/config"
	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
	"github.com/trekjournal/media-proxy/pkg/storage/bucket"
)

const (
	publicJourney  = "7b1e4a9e-0000-4000-8000-00000000000a"
	privateJourney = "7b1e4a9e-0000-4000-8000-00000000000b"
	photoID        = "8c2f5b0f-1111-4111-9111-111111111111"
)

// fakeStore holds bucket objects in memory.
type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
	statErr error
}

func (f *fakeStore) Stat(_ context.Context, key string) (*bucket.ObjectInfo, error) {
	if f.statErr != nil {
		return nil, f.statErr
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, bucket.ErrObjectNotFound
	}
	return &bucket.ObjectInfo{
		Key: key, Size: int64(len(body)), ContentType: f.types[key], ETag: "etag-" + key,
	}, nil
}

func (f *fakeStore) Read(_ context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, bucket.ErrObjectNotFound
	}
	if length < 0 {
		return io.NopCloser(bytes.NewReader(body[offset:])), nil
	}
	return io.NopCloser(bytes.NewReader(body[offset : offset+length])), nil
}

func (f *fakeStore) Write(_ context.Context, key string, body io.Reader, contentType string, _ map[string]string) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	f.types[key] = contentType
	return nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if _, ok := f.objects[key]; !ok {
		return bucket.ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

// fakeRepo backs the access checker and MCP gateway with fixture rows.
type fakeRepo struct {
	rows       map[string]*journeys.Journey
	membership map[string]*journeys.Membership
}

func (f *fakeRepo) GetJourney(_ context.Context, id string) (*journeys.Journey, error) {
	if j, ok := f.rows[id]; ok {
		return j, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "journey not found")
}

func (f *fakeRepo) ResolveSlug(_ context.Context, slug string) (string, error) {
	for _, j := range f.rows {
		if j.Slug == slug {
			return j.ID, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeNotFound, "journey not found")
}

func (f *fakeRepo) GetMembership(_ context.Context, journeyID, userID string) (*journeys.Membership, error) {
	return f.membership[journeyID+":"+userID], nil
}

func (f *fakeRepo) ListMembershipJourneyIDs(context.Context, string) ([]string, error) {
	return []string{publicJourney, privateJourney}, nil
}

func (f *fakeRepo) ListJourneysByIDs(_ context.Context, ids []string) ([]journeys.Journey, error) {
	var rows []journeys.Journey
	for _, id := range ids {
		if j, ok := f.rows[id]; ok {
			rows = append(rows, *j)
		}
	}
	return rows, nil
}

func (f *fakeRepo) Waypoints(context.Context, string) ([]journeys.Waypoint, error) {
	return nil, nil
}

func (f *fakeRepo) Photos(context.Context, string, *string) ([]journeys.Photo, error) {
	return nil, nil
}

func (f *fakeRepo) GetPhoto(context.Context, string, string) (*journeys.Photo, error) {
	return nil, nil
}

func (f *fakeRepo) InsertPhoto(_ context.Context, photo journeys.Photo) (*journeys.Photo, error) {
	return &photo, nil
}

func (f *fakeRepo) DeletePhotoRow(context.Context, string, string) error {
	return nil
}

// fakeVerifier accepts editor-token and viewer-token.
type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (*pkgauth.TokenClaims, error) {
	subjects := map[string]string{
		"editor-token":   "editor-user",
		"viewer-token":   "viewer-user",
		"outsider-token": "outsider-user",
	}
	subject, ok := subjects[token]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return &pkgauth.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeStore) {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	publicPhoto := "journeys/" + publicJourney + "/photos/p1.jpg"
	privatePhoto := "journeys/" + privateJourney + "/photos/p1.jpg"
	privateVideo := "journeys/" + privateJourney + "/photos/p1.mp4"
	privateThumb := "journeys/" + privateJourney + "/photos/thumbs/p1.jpg"
	indexedPhoto := "journeys/" + privateJourney + "/photos/" + photoID + ".jpg"
	store := &fakeStore{
		objects: map[string][]byte{
			"public/logo.png": []byte("logo-bytes"),
			publicPhoto:       []byte("public-jpg"),
			privatePhoto:      []byte("private-jpg"),
			privateVideo:      []byte("0123456789"),
			privateThumb:      []byte("private-thumb"),
			indexedPhoto:      []byte("jpg"),
		},
		types: map[string]string{
			"public/logo.png": "image/png",
			publicPhoto:       "image/jpeg",
			privatePhoto:      "image/jpeg",
			privateVideo:      "video/mp4",
			privateThumb:      "image/jpeg",
			indexedPhoto:      "image/jpeg",
		},
	}
	repo := &fakeRepo{
		rows: map[string]*journeys.Journey{
			publicJourney:  {ID: publicJourney, Slug: "open-trail", Name: "Open Trail", IsPublic: true},
			privateJourney: {ID: privateJourney, Slug: "hidden-trail", Name: "Hidden Trail", IsPublic: false},
		},
		membership: map[string]*journeys.Membership{
			privateJourney + ":editor-user": {JourneyID: privateJourney, UserID: "editor-user", Role: "editor"},
			privateJourney + ":viewer-user": {JourneyID: privateJourney, UserID: "viewer-user", Role: "viewer"},
		},
	}

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Media.MaxImageBytes = 1 << 20
	cfg.Media.MaxVideoBytes = 1 << 20

	checker := accesscontrol.NewChecker(repo, logg)
	objectsSvc := objects.NewService(store, repo, cfg.Media, logg)
	gateway := mcp.NewGateway(repo, fakeVerifier{}, logg)

	router := NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		Verifier: fakeVerifier{},
		Checker:  checker,
		Objects:  objectsSvc,
		MCP:      gateway,
	})
	return router, store
}

func do(t *testing.T, router http.Handler, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestPublicAssetIsServedUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, "GET", "/public/logo.png", "", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000" {
		t.Fatalf("cache control %q", got)
	}
	if rec.Body.String() != "logo-bytes" {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestPublicJourneyPhotoIsViewableAnonymously(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, "GET", "/journeys/"+publicJourney+"/photos/p1.jpg", "", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=3600" {
		t.Fatalf("cache control %q", got)
	}
}

func TestPrivateJourneyPhotoRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, "GET", "/journeys/"+privateJourney+"/photos/p1.jpg", "", nil)
	if rec.Code != 401 {
		t.Fatalf("anonymous status %d", rec.Code)
	}

	rec = do(t, router, "GET", "/journeys/"+privateJourney+"/photos/p1.jpg", "viewer-token", nil)
	if rec.Code != 200 {
		t.Fatalf("viewer status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestPrivateThumbnailRequiresMembership(t *testing.T) {
	router, _ := newTestRouter(t)
	target := "/journeys/" + privateJourney + "/photos/thumbs/p1.jpg"

	rec := do(t, router, "GET", target, "", nil)
	if rec.Code != 401 {
		t.Fatalf("anonymous status %d", rec.Code)
	}

	rec = do(t, router, "GET", target, "outsider-token", nil)
	if rec.Code != 403 {
		t.Fatalf("outsider status %d body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, "GET", target, "viewer-token", nil)
	if rec.Code != 200 {
		t.Fatalf("viewer status %d body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "private-thumb" {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestQueryTokenAuthenticatesMediaRequests(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, "GET", "/journeys/"+privateJourney+"/photos/p1.jpg?token=viewer-token", "", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestVideoRangeRequest(t *testing.T) {
	router, _ := newTestRouter(t)
	r := httptest.NewRequest("GET", "/journeys/"+privateJourney+"/photos/p1.mp4", nil)
	r.Header.Set("Authorization", "Bearer viewer-token")
	r.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	if rec.Code != 206 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Fatalf("content range %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("accept ranges %q", got)
	}
	if rec.Body.String() != "2345" {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestVideoUnsatisfiableRange(t *testing.T) {
	router, _ := newTestRouter(t)
	r := httptest.NewRequest("GET", "/journeys/"+privateJourney+"/photos/p1.mp4", nil)
	r.Header.Set("Authorization", "Bearer viewer-token")
	r.Header.Set("Range", "bytes=10-10")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	if rec.Code != 416 {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
		t.Fatalf("content range %q", got)
	}
}

func TestUploadRequiresEditorRole(t *testing.T) {
	router, _ := newTestRouter(t)
	target := "/upload/journeys/" + privateJourney + "/photos"

	rec := do(t, router, "POST", target, "", strings.NewReader("jpg"))
	if rec.Code != 401 {
		t.Fatalf("anonymous upload status %d", rec.Code)
	}

	r := httptest.NewRequest("POST", target, strings.NewReader("jpg"))
	r.Header.Set("Authorization", "Bearer viewer-token")
	r.Header.Set("Content-Type", "image/jpeg")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != 403 {
		t.Fatalf("viewer upload status %d", rec.Code)
	}
}

func TestUploadMultipart(t *testing.T) {
	router, store := newTestRouter(t)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "summit.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("jpeg-bytes"))
	_ = form.Close()

	r := httptest.NewRequest("POST", "/upload/journeys/"+privateJourney+"/photos", &buf)
	r.Header.Set("Authorization", "Bearer editor-token")
	r.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	if rec.Code != 201 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		PhotoID     string `json:"photoId"`
		Path        string `json:"path"`
		Size        int64  `json:"size"`
		ContentType string `json:"contentType"`
		MediaType   string `json:"mediaType"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.PhotoID == "" || result.Size != 10 || result.ContentType != "image/jpeg" || result.MediaType != "image" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := store.objects[result.Path]; !ok {
		t.Fatalf("object %q not stored", result.Path)
	}
}

func TestUploadRawBody(t *testing.T) {
	router, _ := newTestRouter(t)
	r := httptest.NewRequest("POST", "/upload/journeys/"+privateJourney+"/photos", strings.NewReader("webm-bytes"))
	r.Header.Set("Authorization", "Bearer editor-token")
	r.Header.Set("Content-Type", "video/webm")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != 201 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUploadRejectsDisallowedContentType(t *testing.T) {
	router, _ := newTestRouter(t)
	r := httptest.NewRequest("POST", "/upload/journeys/"+privateJourney+"/photos", strings.NewReader("%PDF"))
	r.Header.Set("Authorization", "Bearer editor-token")
	r.Header.Set("Content-Type", "application/pdf")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != 400 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestDeletePhotoIsIdempotent(t *testing.T) {
	router, _ := newTestRouter(t)
	target := "/journeys/" + privateJourney + "/photos/" + photoID

	rec := do(t, router, "DELETE", target, "viewer-token", nil)
	if rec.Code != 403 {
		t.Fatalf("viewer delete status %d", rec.Code)
	}

	rec = do(t, router, "DELETE", target, "editor-token", nil)
	if rec.Code != 200 {
		t.Fatalf("first delete status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success {
		t.Fatalf("result %+v", result)
	}

	rec = do(t, router, "DELETE", target, "editor-token", nil)
	if rec.Code != 200 {
		t.Fatalf("second delete status %d", rec.Code)
	}
}

func TestMCPEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	rec := do(t, router, "POST", "/mcp", "", strings.NewReader(body))
	if rec.Code != 200 {
		t.Fatalf("tools/list status %d body %s", rec.Code, rec.Body.String())
	}

	body = `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_journeys","arguments":{}}}`
	rec = do(t, router, "POST", "/mcp", "", strings.NewReader(body))
	if rec.Code != 401 {
		t.Fatalf("unauthenticated tools/call status %d", rec.Code)
	}
}

func TestUnknownPostPathIsBadRequest(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, "POST", "/upload/unknown", "", nil)
	if rec.Code != 400 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestUnsupportedMethodIsMethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, "PUT", "/journeys/"+privateJourney+"/photos/p1.jpg", "viewer-token", nil)
	if rec.Code != 405 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestProtectedCatchAllRequiresIdentity(t *testing.T) {
	router, store := newTestRouter(t)
	store.objects["shared/map.png"] = []byte("map")
	store.types["shared/map.png"] = "image/png"

	rec := do(t, router, "GET", "/shared/map.png", "", nil)
	if rec.Code != 401 {
		t.Fatalf("anonymous status %d", rec.Code)
	}

	rec = do(t, router, "GET", "/shared/map.png", "viewer-token", nil)
	if rec.Code != 200 {
		t.Fatalf("authenticated status %d", rec.Code)
	}
}

func TestBucketFailureIsInternalError(t *testing.T) {
	router, store := newTestRouter(t)
	store.statErr = fmt.Errorf("bucket unreachable")

	rec := do(t, router, "GET", "/public/logo.png", "", nil)
	if rec.Code != 500 {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, "GET", "/health/live", "", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
}
