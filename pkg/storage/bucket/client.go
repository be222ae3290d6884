package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trekjournal/media-proxy/pkg/config"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

const (
	defaultEndpoint = "https://storage.googleapis.com"
	tokenEndpoint   = "https://oauth2.googleapis.com/token"
	scope           = "https://www.googleapis.com/auth/devstorage.read_write"
	pingTimeout     = 5 * time.Second
	metadataToken   = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
)

// ErrObjectNotFound marks a missing bucket object.
var ErrObjectNotFound = errors.New("bucket: object not found")

// ObjectInfo is the metadata the proxy needs before serving an object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	Metadata    map[string]string
}

// Client performs key-addressed object operations against the storage JSON API.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	name        string
	tokenSource *tokenSource
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewClient(ctx context.Context, cfg config.BucketConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Name == "" {
		return nil, errors.New("bucket name is required")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	var ts *tokenSource
	var err error
	switch {
	case cfg.CredentialsJSON != "":
		ts, err = newServiceAccountTokenSource(httpClient, cfg.CredentialsJSON)
	case cfg.ApplicationCredentials != "":
		raw, readErr := os.ReadFile(cfg.ApplicationCredentials)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file: %w", readErr)
		}
		ts, err = newServiceAccountTokenSource(httpClient, string(raw))
	default:
		ts = newMetadataTokenSource(httpClient)
	}
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient:  httpClient,
		endpoint:    defaultEndpoint,
		name:        cfg.Name,
		tokenSource: ts,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("bucket health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "bucket client initialized")
	}

	return client, nil
}

// Name returns the configured bucket name.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Ping lists at most one object to verify credentials and reachability.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("bucket client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", c.endpoint, url.PathEscape(c.name))
	resp, err := c.authorizedRequest(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bucket list check failed: %s", resp.Status)
	}
	return nil
}

// Stat fetches object metadata without the body.
func (c *Client) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	u := c.objectURL(key, nil)
	resp, err := c.authorizedRequest(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrObjectNotFound
	default:
		return nil, fmt.Errorf("stat %s: %s", key, resp.Status)
	}

	var raw struct {
		Size        string            `json:"size"`
		ContentType string            `json:"contentType"`
		ETag        string            `json:"etag"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode object metadata: %w", err)
	}
	size, err := strconv.ParseInt(raw.Size, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse object size %q: %w", raw.Size, err)
	}
	return &ObjectInfo{
		Key:         key,
		Size:        size,
		ContentType: raw.ContentType,
		ETag:        raw.ETag,
		Metadata:    raw.Metadata,
	}, nil
}

// Read streams the object body. A non-negative length fetches only the byte
// span [offset, offset+length); length < 0 reads from offset to the end.
func (c *Client) Read(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	query := url.Values{}
	query.Set("alt", "media")
	u := c.objectURL(key, query)

	var headers http.Header
	if offset > 0 || length >= 0 {
		headers = http.Header{}
		if length >= 0 {
			headers.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			headers.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}
	}

	resp, err := c.authorizedRequest(ctx, http.MethodGet, u, nil, headers)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrObjectNotFound
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("read %s: %s", key, resp.Status)
	}
}

// Write uploads the object with its content type and custom metadata in a
// single multipart request.
func (c *Client) Write(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error {
	meta := map[string]any{
		"name":        key,
		"contentType": contentType,
	}
	if len(metadata) > 0 {
		meta["metadata"] = metadata
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode object metadata: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return fmt.Errorf("write metadata part: %w", err)
	}

	mediaPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, body); err != nil {
		return fmt.Errorf("write media part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=multipart", c.endpoint, url.PathEscape(c.name))
	headers := http.Header{}
	headers.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.authorizedRequest(ctx, http.MethodPost, u, &buf, headers)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("write %s: %s: %s", key, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Delete removes the object; a missing object reports ErrObjectNotFound.
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.authorizedRequest(ctx, http.MethodDelete, c.objectURL(key, nil), nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrObjectNotFound
	default:
		return fmt.Errorf("delete %s: %s", key, resp.Status)
	}
}

func (c *Client) objectURL(key string, query url.Values) string {
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.endpoint, url.PathEscape(c.name), url.PathEscape(key))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authorizedRequest(ctx context.Context, method, endpoint string, body io.Reader, headers http.Header) (*http.Response, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp, nil
}
