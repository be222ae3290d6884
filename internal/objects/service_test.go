package objects

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/trekjournal/media-proxy/internal/journeys"
	"github.com/trekjournal/media-proxy/pkg/config"
	"github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
	"github.com/trekjournal/media-proxy/pkg/storage/bucket"
)

type stubObjectStore struct {
	objects map[string][]byte
	info    map[string]*bucket.ObjectInfo

	writes  map[string][]byte
	written map[string]map[string]string
	deleted []string

	readCalls []struct{ offset, length int64 }
}

func newStubObjectStore() *stubObjectStore {
	return &stubObjectStore{
		objects: map[string][]byte{},
		info:    map[string]*bucket.ObjectInfo{},
		writes:  map[string][]byte{},
		written: map[string]map[string]string{},
	}
}

func (s *stubObjectStore) put(key string, body []byte, contentType string) {
	s.objects[key] = body
	s.info[key] = &bucket.ObjectInfo{
		Key:         key,
		Size:        int64(len(body)),
		ContentType: contentType,
		ETag:        "etag-" + key,
	}
}

func (s *stubObjectStore) Stat(_ context.Context, key string) (*bucket.ObjectInfo, error) {
	info, ok := s.info[key]
	if !ok {
		return nil, bucket.ErrObjectNotFound
	}
	return info, nil
}

func (s *stubObjectStore) Read(_ context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	s.readCalls = append(s.readCalls, struct{ offset, length int64 }{offset, length})
	body, ok := s.objects[key]
	if !ok {
		return nil, bucket.ErrObjectNotFound
	}
	if length < 0 {
		return io.NopCloser(bytes.NewReader(body[offset:])), nil
	}
	return io.NopCloser(bytes.NewReader(body[offset : offset+length])), nil
}

func (s *stubObjectStore) Write(_ context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.writes[key] = raw
	s.written[key] = metadata
	s.put(key, raw, contentType)
	return nil
}

func (s *stubObjectStore) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	if _, ok := s.objects[key]; !ok {
		return bucket.ErrObjectNotFound
	}
	delete(s.objects, key)
	delete(s.info, key)
	return nil
}

type stubPhotoIndex struct {
	photo     *journeys.Photo
	photoErr  error
	inserted  []journeys.Photo
	insertErr error
	rowDels   []string
}

func (s *stubPhotoIndex) GetPhoto(context.Context, string, string) (*journeys.Photo, error) {
	return s.photo, s.photoErr
}

func (s *stubPhotoIndex) InsertPhoto(_ context.Context, photo journeys.Photo) (*journeys.Photo, error) {
	s.inserted = append(s.inserted, photo)
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return &photo, nil
}

func (s *stubPhotoIndex) DeletePhotoRow(_ context.Context, _, photoID string) error {
	s.rowDels = append(s.rowDels, photoID)
	return nil
}

func newTestService(store *stubObjectStore, index *stubPhotoIndex) *Service {
	svc := NewService(store, index, config.MediaConfig{
		MaxImageBytes: 32,
		MaxVideoBytes: 64,
	}, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "photo-fixed" }
	return svc
}

func TestServeFullObject(t *testing.T) {
	store := newStubObjectStore()
	store.put("public/logo.png", []byte("png-bytes"), "image/png")
	svc := newTestService(store, &stubPhotoIndex{})

	result, err := svc.Serve(context.Background(), "public/logo.png", "", true)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer result.Body.Close()

	if result.Status != 200 || result.ContentType != "image/png" || result.ContentLength != 9 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.CacheControl != "public, max-age=31536000" {
		t.Fatalf("cache control %q", result.CacheControl)
	}
	if result.AcceptRanges {
		t.Fatal("images must not advertise range support")
	}
	if body, _ := io.ReadAll(result.Body); string(body) != "png-bytes" {
		t.Fatalf("body %q", body)
	}
}

func TestServeMissingObject(t *testing.T) {
	svc := newTestService(newStubObjectStore(), &stubPhotoIndex{})

	_, err := svc.Serve(context.Background(), "public/missing.png", "", true)
	coded := errors.As(err)
	if coded == nil || coded.Code() != errors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestServeVideoRange(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j1/photos/p1.mp4", []byte("0123456789"), "video/mp4")
	svc := newTestService(store, &stubPhotoIndex{})

	result, err := svc.Serve(context.Background(), "journeys/j1/photos/p1.mp4", "bytes=2-5", false)
	if err != nil {
		t.Fatalf("serve range: %v", err)
	}
	defer result.Body.Close()

	if result.Status != 206 {
		t.Fatalf("status %d", result.Status)
	}
	if result.ContentRange != "bytes 2-5/10" || result.ContentLength != 4 {
		t.Fatalf("unexpected range headers %+v", result)
	}
	if !result.AcceptRanges {
		t.Fatal("video must advertise Accept-Ranges")
	}
	if result.CacheControl != "private, max-age=3600" {
		t.Fatalf("cache control %q", result.CacheControl)
	}
	if body, _ := io.ReadAll(result.Body); string(body) != "2345" {
		t.Fatalf("body %q", body)
	}
}

func TestServeRangeZeroDashMatchesFullBody(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j1/photos/p1.mp4", []byte("0123456789"), "video/mp4")
	svc := newTestService(store, &stubPhotoIndex{})

	full, err := svc.Serve(context.Background(), "journeys/j1/photos/p1.mp4", "", false)
	if err != nil {
		t.Fatalf("full serve: %v", err)
	}
	fullBody, _ := io.ReadAll(full.Body)
	full.Body.Close()

	ranged, err := svc.Serve(context.Background(), "journeys/j1/photos/p1.mp4", "bytes=0-", false)
	if err != nil {
		t.Fatalf("ranged serve: %v", err)
	}
	rangedBody, _ := io.ReadAll(ranged.Body)
	ranged.Body.Close()

	if !bytes.Equal(fullBody, rangedBody) {
		t.Fatalf("bodies differ: %q vs %q", fullBody, rangedBody)
	}
	if full.Status != 200 || ranged.Status != 206 {
		t.Fatalf("statuses %d and %d", full.Status, ranged.Status)
	}
}

func TestServeUnsatisfiableRange(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j1/photos/p1.mp4", []byte("0123456789"), "video/mp4")
	svc := newTestService(store, &stubPhotoIndex{})

	_, err := svc.Serve(context.Background(), "journeys/j1/photos/p1.mp4", "bytes=10-10", false)
	var unsat *UnsatisfiableRangeError
	if !stderrors.As(err, &unsat) {
		t.Fatalf("expected UnsatisfiableRangeError, got %v", err)
	}
	if unsat.ContentRange() != "bytes */10" {
		t.Fatalf("416 content range %q", unsat.ContentRange())
	}
}

func TestServeIgnoresRangeOnImages(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j1/photos/p1.jpg", []byte("jpeg-bytes"), "image/jpeg")
	svc := newTestService(store, &stubPhotoIndex{})

	result, err := svc.Serve(context.Background(), "journeys/j1/photos/p1.jpg", "bytes=0-3", false)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer result.Body.Close()
	if result.Status != 200 {
		t.Fatalf("range on image should be ignored, status %d", result.Status)
	}
}

func TestUploadStoresObjectAndIndexRow(t *testing.T) {
	store := newStubObjectStore()
	index := &stubPhotoIndex{}
	svc := newTestService(store, index)

	result, err := svc.Upload(context.Background(), UploadInput{
		JourneyID:    "j-1",
		CallerID:     "user-1",
		ContentType:  "image/jpeg",
		OriginalName: "summit.jpg",
		Body:         strings.NewReader("jpeg-bytes"),
		DeclaredSize: 10,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	wantPath := "journeys/j-1/photos/photo-fixed.jpg"
	if result.PhotoID != "photo-fixed" || result.Path != wantPath {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Size != 10 || result.ContentType != "image/jpeg" || result.MediaType != MediaClassImage {
		t.Fatalf("unexpected result %+v", result)
	}

	if string(store.writes[wantPath]) != "jpeg-bytes" {
		t.Fatalf("stored body %q", store.writes[wantPath])
	}
	metadata := store.written[wantPath]
	if metadata["uploadedBy"] != "user-1" || metadata["originalName"] != "summit.jpg" {
		t.Fatalf("stored metadata %v", metadata)
	}
	if metadata["uploadedAt"] != "2026-08-01T12:00:00Z" {
		t.Fatalf("uploadedAt %q", metadata["uploadedAt"])
	}

	if len(index.inserted) != 1 {
		t.Fatalf("expected one photo row, got %d", len(index.inserted))
	}
	row := index.inserted[0]
	if row.StoragePath != wantPath || row.ContentType != "image/jpeg" || row.UploadedBy != "user-1" {
		t.Fatalf("unexpected photo row %+v", row)
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	svc := newTestService(newStubObjectStore(), &stubPhotoIndex{})

	_, err := svc.Upload(context.Background(), UploadInput{
		JourneyID:    "j-1",
		CallerID:     "user-1",
		ContentType:  "application/pdf",
		Body:         strings.NewReader("%PDF"),
		DeclaredSize: 4,
	})
	coded := errors.As(err)
	if coded == nil || coded.Code() != errors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUploadSizeCeilingIsInclusive(t *testing.T) {
	// Test ceilings are 32 bytes for images and 64 for videos.
	cases := []struct {
		name        string
		contentType string
		size        int
		wantErr     bool
	}{
		{"image at ceiling", "image/png", 32, false},
		{"image over ceiling", "image/png", 33, true},
		{"video at ceiling", "video/mp4", 64, false},
		{"video over ceiling", "video/mp4", 65, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(newStubObjectStore(), &stubPhotoIndex{})
			_, err := svc.Upload(context.Background(), UploadInput{
				JourneyID:    "j-1",
				CallerID:     "user-1",
				ContentType:  tc.contentType,
				Body:         bytes.NewReader(make([]byte, tc.size)),
				DeclaredSize: -1,
			})
			if tc.wantErr {
				coded := errors.As(err)
				if coded == nil || coded.Code() != errors.CodeValidation {
					t.Fatalf("expected VALIDATION_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("upload at ceiling: %v", err)
			}
		})
	}
}

func TestUploadSurvivesIndexInsertFailure(t *testing.T) {
	store := newStubObjectStore()
	index := &stubPhotoIndex{insertErr: stderrors.New("store unreachable")}
	svc := newTestService(store, index)

	result, err := svc.Upload(context.Background(), UploadInput{
		JourneyID:    "j-1",
		CallerID:     "user-1",
		ContentType:  "image/gif",
		Body:         strings.NewReader("gif"),
		DeclaredSize: 3,
	})
	if err != nil {
		t.Fatalf("upload should succeed despite index failure: %v", err)
	}
	if len(store.writes) != 1 {
		t.Fatalf("object not stored: %v", store.writes)
	}
	if result.PhotoID == "" {
		t.Fatalf("missing photo id in %+v", result)
	}
}

func TestDeleteUsesIndexedPath(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j-1/photos/p-1.webm", []byte("video"), "video/webm")
	index := &stubPhotoIndex{photo: &journeys.Photo{
		ID:          "p-1",
		JourneyID:   "j-1",
		StoragePath: "journeys/j-1/photos/p-1.webm",
	}}
	svc := newTestService(store, index)

	result, err := svc.Delete(context.Background(), "j-1", "p-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !result.Success || result.Message != "photo deleted" {
		t.Fatalf("unexpected result %+v", result)
	}
	// Exactly one object plus its thumb variant attempted, no sweep.
	if len(store.deleted) != 2 {
		t.Fatalf("delete attempts %v", store.deleted)
	}
	if store.deleted[1] != "journeys/j-1/photos/thumbs/p-1.webm" {
		t.Fatalf("thumb variant %q", store.deleted[1])
	}
	if len(index.rowDels) != 1 {
		t.Fatalf("photo row not cleared: %v", index.rowDels)
	}
}

func TestDeleteSweepsExtensionsWithoutIndexRow(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j-1/photos/p-1.png", []byte("png"), "image/png")
	svc := newTestService(store, &stubPhotoIndex{})

	result, err := svc.Delete(context.Background(), "j-1", "p-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !result.Success || result.Message != "photo deleted" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := store.objects["journeys/j-1/photos/p-1.png"]; ok {
		t.Fatal("object survived the sweep")
	}

	var sawExtensionless bool
	for _, key := range store.deleted {
		if key == "journeys/j-1/photos/p-1" {
			sawExtensionless = true
		}
	}
	if !sawExtensionless {
		t.Fatalf("sweep skipped the extensionless candidate: %v", store.deleted)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStubObjectStore()
	store.put("journeys/j-1/photos/p-1.jpg", []byte("jpg"), "image/jpeg")
	svc := newTestService(store, &stubPhotoIndex{})

	first, err := svc.Delete(context.Background(), "j-1", "p-1")
	if err != nil {
		t.Fatalf("first delete: %v", err)
	}
	second, err := svc.Delete(context.Background(), "j-1", "p-1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if !first.Success || !second.Success {
		t.Fatalf("both deletes must succeed: %+v %+v", first, second)
	}
	if second.Message != "no matching objects found" {
		t.Fatalf("second delete message %q", second.Message)
	}
}
