package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trekjournal/media-proxy/api/middleware"
	"github.com/trekjournal/media-proxy/api/responses"
	"github.com/trekjournal/media-proxy/api/validators"
	"github.com/trekjournal/media-proxy/internal/accesscontrol"
	"github.com/trekjournal/media-proxy/internal/objects"
	"github.com/trekjournal/media-proxy/pkg/enums"
	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

// multipartMemoryLimit bounds how much of a multipart form is held in
// memory before spilling to disk.
const multipartMemoryLimit = 32 << 20

// ServePublic streams objects under public/ without authentication.
func ServePublic(svc *objects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := chi.URLParam(r, "*")
		if rest == "" || containsDotDot(rest) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid object path"))
			return
		}
		streamObject(w, r, svc, logg, "public/"+rest, true)
	}
}

// ServeJourneyPhoto streams journey media (photos and their thumbs/
// variants) after a viewer-level access check. Anonymous callers pass only
// when the journey is public.
func ServeJourneyPhoto(svc *objects.Service, checker *accesscontrol.Checker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journeyID := chi.URLParam(r, "journeyID")
		object := chi.URLParam(r, "*")
		if err := validators.JourneyID(journeyID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ObjectPath(object); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		callerID := middleware.UserIDFromContext(r.Context())
		if !checker.HasAccess(r.Context(), journeyID, callerID, enums.MemberRoleViewer) {
			responses.WriteError(r.Context(), logg, w, accessDenied(callerID))
			return
		}

		key := fmt.Sprintf("journeys/%s/%s", journeyID, object)
		streamObject(w, r, svc, logg, key, false)
	}
}

// ServeProtected streams any other bucket path for verified callers. The
// auth middleware has already established identity. Journey-scoped keys
// never reach this handler through the router; they are rejected here too so
// the journey access check cannot be sidestepped by a future route change.
func ServeProtected(svc *objects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		if key == "" || containsDotDot(key) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid object path"))
			return
		}
		if strings.HasPrefix(key, "journeys/") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "journey media requires a journey-scoped request"))
			return
		}
		streamObject(w, r, svc, logg, key, false)
	}
}

func streamObject(w http.ResponseWriter, r *http.Request, svc *objects.Service, logg *logger.Logger, key string, public bool) {
	result, err := svc.Serve(r.Context(), key, r.Header.Get("Range"), public)
	if err != nil {
		var unsat *objects.UnsatisfiableRangeError
		if errors.As(err, &unsat) {
			w.Header().Set("Content-Range", unsat.ContentRange())
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	w.Header().Set("Cache-Control", result.CacheControl)
	if result.ETag != "" {
		w.Header().Set("ETag", result.ETag)
	}
	if result.AcceptRanges {
		w.Header().Set("Accept-Ranges", "bytes")
	}
	if result.ContentRange != "" {
		w.Header().Set("Content-Range", result.ContentRange)
	}
	w.WriteHeader(result.Status)

	if _, err := io.Copy(w, result.Body); err != nil {
		logg.Warn(logg.WithField(r.Context(), "object", key), "stream interrupted")
	}
}

// UploadPhoto accepts a multipart form with a file field or a raw body and
// stores it under the journey. Requires editor access.
func UploadPhoto(svc *objects.Service, checker *accesscontrol.Checker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journeyID := chi.URLParam(r, "journeyID")
		if err := validators.JourneyID(journeyID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		callerID := middleware.UserIDFromContext(r.Context())
		if !checker.HasAccess(r.Context(), journeyID, callerID, enums.MemberRoleEditor) {
			responses.WriteError(r.Context(), logg, w, accessDenied(callerID))
			return
		}

		input, cleanup, err := uploadInput(r, journeyID, callerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cleanup()

		result, err := svc.Upload(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusCreated, result)
	}
}

// uploadInput extracts the media payload from either the multipart file
// field or the raw request body.
func uploadInput(r *http.Request, journeyID, callerID string) (*objects.UploadInput, func(), error) {
	contentType := r.Header.Get("Content-Type")
	noop := func() {}

	if strings.HasPrefix(strings.ToLower(contentType), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
			return nil, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed multipart form")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, noop, pkgerrors.New(pkgerrors.CodeValidation, "multipart form is missing the file field")
		}
		cleanup := func() { _ = file.Close() }
		return &objects.UploadInput{
			JourneyID:    journeyID,
			CallerID:     callerID,
			ContentType:  partContentType(header),
			OriginalName: header.Filename,
			Body:         file,
			DeclaredSize: header.Size,
		}, cleanup, nil
	}

	if contentType == "" {
		return nil, noop, pkgerrors.New(pkgerrors.CodeValidation, "missing content type")
	}
	return &objects.UploadInput{
		JourneyID:    journeyID,
		CallerID:     callerID,
		ContentType:  contentType,
		Body:         r.Body,
		DeclaredSize: r.ContentLength,
	}, noop, nil
}

func partContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return objects.ContentTypeForPath(header.Filename)
}

// DeletePhoto removes a photo and its variants. Requires editor access and
// is idempotent.
func DeletePhoto(svc *objects.Service, checker *accesscontrol.Checker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journeyID := chi.URLParam(r, "journeyID")
		photoID := chi.URLParam(r, "photoID")
		if err := validators.JourneyID(journeyID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.PhotoID(photoID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		callerID := middleware.UserIDFromContext(r.Context())
		if !checker.HasAccess(r.Context(), journeyID, callerID, enums.MemberRoleEditor) {
			responses.WriteError(r.Context(), logg, w, accessDenied(callerID))
			return
		}

		result, err := svc.Delete(r.Context(), journeyID, photoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// accessDenied distinguishes missing identity from insufficient role.
func accessDenied(callerID string) error {
	if callerID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions for this journey")
}

func containsDotDot(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
