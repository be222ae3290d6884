package objects

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trekjournal/media-proxy/internal/journeys"
	"github.com/trekjournal/media-proxy/pkg/config"
	"github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
	"github.com/trekjournal/media-proxy/pkg/storage/bucket"
)

const (
	publicCacheControl  = "public, max-age=31536000"
	privateCacheControl = "private, max-age=3600"
)

// ObjectStore is the bucket surface the gateway drives.
type ObjectStore interface {
	Stat(ctx context.Context, key string) (*bucket.ObjectInfo, error)
	Read(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	Write(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error
	Delete(ctx context.Context, key string) error
}

// photoIndex is the slice of the journeys repository that records which
// bucket path a logical photo ID resolved to.
type photoIndex interface {
	GetPhoto(ctx context.Context, journeyID, photoID string) (*journeys.Photo, error)
	InsertPhoto(ctx context.Context, photo journeys.Photo) (*journeys.Photo, error)
	DeletePhotoRow(ctx context.Context, journeyID, photoID string) error
}

// Service reads, writes, and deletes bucket objects on behalf of the HTTP
// layer. Authorization happens before any of these methods run.
type Service struct {
	store ObjectStore
	index photoIndex
	media config.MediaConfig
	logg  *logger.Logger
	now   func() time.Time
	newID func() string
}

// NewService wires the gateway over a bucket client and the photo index.
func NewService(store ObjectStore, index photoIndex, media config.MediaConfig, logg *logger.Logger) *Service {
	return &Service{
		store: store,
		index: index,
		media: media,
		logg:  logg,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// ServeResult carries everything the handler needs to stream an object.
// Body is nil only for a 416 outcome, which is reported as an error instead.
type ServeResult struct {
	Body          io.ReadCloser
	Status        int
	ContentType   string
	ContentLength int64
	ContentRange  string
	AcceptRanges  bool
	ETag          string
	CacheControl  string
}

// Serve fetches an object, honoring Range headers on video content types.
// public selects the long-lived Cache-Control policy used for public assets.
func (s *Service) Serve(ctx context.Context, key, rangeHeader string, public bool) (*ServeResult, error) {
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		if stderrors.Is(err, bucket.ErrObjectNotFound) {
			return nil, errors.New(errors.CodeNotFound, "object not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "stat object")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = ContentTypeForPath(key)
	}

	result := &ServeResult{
		Status:        200,
		ContentType:   contentType,
		ContentLength: info.Size,
		ETag:          info.ETag,
		CacheControl:  privateCacheControl,
	}
	if public {
		result.CacheControl = publicCacheControl
	}

	video := IsVideoContentType(contentType)
	if video {
		result.AcceptRanges = true
	}

	if video && rangeHeader != "" {
		span, err := parseRange(rangeHeader, info.Size)
		if err != nil {
			return nil, err
		}
		body, err := s.store.Read(ctx, key, span.start, span.length())
		if err != nil {
			return nil, errors.Wrap(errors.CodeDependency, err, "read object range")
		}
		result.Body = body
		result.Status = 206
		result.ContentLength = span.length()
		result.ContentRange = span.contentRange(info.Size)
		return result, nil
	}

	body, err := s.store.Read(ctx, key, 0, -1)
	if err != nil {
		if stderrors.Is(err, bucket.ErrObjectNotFound) {
			return nil, errors.New(errors.CodeNotFound, "object not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "read object")
	}
	result.Body = body
	return result, nil
}

// UploadInput describes one incoming media upload.
type UploadInput struct {
	JourneyID    string
	CallerID     string
	ContentType  string
	OriginalName string
	Body         io.Reader
	// DeclaredSize is the Content-Length when known, -1 otherwise. It only
	// short-circuits obviously oversized requests; the read is bounded
	// regardless.
	DeclaredSize int64
}

// UploadResult is the 201 payload for a stored object.
type UploadResult struct {
	PhotoID     string     `json:"photoId"`
	Path        string     `json:"path"`
	Size        int64      `json:"size"`
	ContentType string     `json:"contentType"`
	MediaType   MediaClass `json:"mediaType"`
}

// Upload validates, stores, and indexes one photo or video.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	class, ok := ClassifyContentType(in.ContentType)
	if !ok {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf(
			"content type %q is not allowed; accepted types: %s",
			in.ContentType, strings.Join(AllowedUploadTypes(), ", ")))
	}

	ceiling := s.media.MaxImageBytes
	label := "images"
	if class == MediaClassVideo {
		ceiling = s.media.MaxVideoBytes
		label = "videos"
	}
	if in.DeclaredSize > ceiling {
		return nil, oversizeError(label, ceiling)
	}

	payload, err := io.ReadAll(io.LimitReader(in.Body, ceiling+1))
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "read upload body")
	}
	size := int64(len(payload))
	if size > ceiling {
		return nil, oversizeError(label, ceiling)
	}

	ext, _ := ExtensionForContentType(in.ContentType)
	photoID := s.newID()
	key := fmt.Sprintf("journeys/%s/photos/%s.%s", in.JourneyID, photoID, ext)
	uploadedAt := s.now().UTC()

	metadata := map[string]string{
		"uploadedBy": in.CallerID,
		"uploadedAt": uploadedAt.Format(time.RFC3339),
	}
	if in.OriginalName != "" {
		metadata["originalName"] = in.OriginalName
	}

	if err := s.store.Write(ctx, key, bytes.NewReader(payload), in.ContentType, metadata); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "store object")
	}

	// The index row lets delete resolve the exact stored path later. Losing
	// it degrades delete to the extension sweep, so a failed insert is
	// logged but does not fail the upload.
	_, err = s.index.InsertPhoto(ctx, journeys.Photo{
		ID:           photoID,
		JourneyID:    in.JourneyID,
		StoragePath:  key,
		ContentType:  in.ContentType,
		OriginalName: in.OriginalName,
		UploadedBy:   in.CallerID,
		CreatedAt:    uploadedAt,
	})
	if err != nil {
		s.logg.Error(s.logg.WithJourneyID(ctx, in.JourneyID), "record photo row", err)
	}

	return &UploadResult{
		PhotoID:     photoID,
		Path:        key,
		Size:        size,
		ContentType: in.ContentType,
		MediaType:   class,
	}, nil
}

func oversizeError(label string, ceiling int64) error {
	return errors.New(errors.CodeValidation, fmt.Sprintf(
		"file exceeds the %d byte limit for %s", ceiling, label))
}

// DeleteResult reports an idempotent delete outcome.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Delete removes a photo's object, its thumbnail variant, and its index row.
// When the index row is present the exact stored path is deleted; otherwise
// the gateway sweeps every candidate extension. Deleting a photo that no
// longer exists still succeeds.
func (s *Service) Delete(ctx context.Context, journeyID, photoID string) (*DeleteResult, error) {
	photo, err := s.index.GetPhoto(ctx, journeyID, photoID)
	if err != nil {
		s.logg.Warn(s.logg.WithJourneyID(ctx, journeyID), "photo row lookup failed, falling back to extension sweep")
		photo = nil
	}

	var removed bool
	if photo != nil && photo.StoragePath != "" {
		removed = s.deleteVariants(ctx, photo.StoragePath)
	} else {
		for _, ext := range candidateExtensions {
			key := fmt.Sprintf("journeys/%s/photos/%s", journeyID, photoID)
			if ext != "" {
				key += "." + ext
			}
			if s.deleteVariants(ctx, key) {
				removed = true
			}
		}
	}

	if err := s.index.DeletePhotoRow(ctx, journeyID, photoID); err != nil {
		s.logg.Warn(s.logg.WithJourneyID(ctx, journeyID), "photo row delete failed")
	}

	message := "photo deleted"
	if !removed {
		message = "no matching objects found"
	}
	return &DeleteResult{Success: true, Message: message}, nil
}

// deleteVariants removes the object and its thumbs/ sibling, reporting
// whether anything was actually deleted. Not-found responses are swallowed.
func (s *Service) deleteVariants(ctx context.Context, key string) bool {
	var removed bool
	for _, candidate := range []string{key, thumbKey(key)} {
		err := s.store.Delete(ctx, candidate)
		switch {
		case err == nil:
			removed = true
		case stderrors.Is(err, bucket.ErrObjectNotFound):
			// Nothing stored under this variant.
		default:
			s.logg.Error(ctx, "delete object "+candidate, err)
		}
	}
	return removed
}

// thumbKey maps journeys/{id}/photos/{file} to its thumbnail sibling.
func thumbKey(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "thumbs/" + key
	}
	return key[:idx] + "/thumbs/" + key[idx+1:]
}
