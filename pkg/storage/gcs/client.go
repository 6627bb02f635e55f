package gcs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

const (
	defaultAPIBase    = "https://storage.googleapis.com"
	defaultPublicHost = "https://storage.googleapis.com"
	pingTimeout       = 5 * time.Second
	uploadTimeout     = 30 * time.Second
)

// Client uploads public objects through the GCS JSON API.
type Client struct {
	httpClient    *http.Client
	bucket        string
	publicBaseURL string
	apiBase       string
	tokenSource   oauth2.TokenSource
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient := &http.Client{Timeout: uploadTimeout}

	var creds []byte
	switch {
	case gcp.CredentialsJSON != "":
		creds = []byte(gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		creds = raw
	}
	ts, err := newTokenSource(httpClient, creds)
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient:    httpClient,
		bucket:        cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		apiBase:       defaultAPIBase,
		tokenSource:   ts,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Upload stores body under {prefix}/{random}{ext} and returns its public URL.
func (c *Client) Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (string, error) {
	if c == nil || c.tokenSource == nil {
		return "", errors.New("gcs client not initialized")
	}
	if body == nil {
		return "", errors.New("upload body is required")
	}

	key := ObjectKey(prefix, filename)
	if contentType == "" {
		contentType = ContentTypeFor(filename)
	}

	token, err := accessToken(c.tokenSource)
	if err != nil {
		return "", fmt.Errorf("gcs token: %w", err)
	}

	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		c.apiBase, url.PathEscape(c.bucket), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gcs upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("gcs upload failed", resp)
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err == nil && obj.Name != "" {
		key = obj.Name
	}
	return c.PublicURL(key), nil
}

// PublicURL maps an object key to the URL devices download it from.
func (c *Client) PublicURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if c != nil && c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", defaultPublicHost, c.Bucket(), key)
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if c.bucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	token, err := accessToken(c.tokenSource)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", c.apiBase, url.PathEscape(c.bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs object check failed", resp)
	}
	return nil
}

// ObjectKey builds {prefix}/{32 hex chars}{lowercased ext}.
func ObjectKey(prefix, filename string) string {
	id := uuid.New()
	name := hex.EncodeToString(id[:]) + strings.ToLower(filepath.Ext(filename))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// ContentTypeFor guesses a MIME type from the file extension.
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func statusError(msg string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if detail := strings.TrimSpace(string(b)); detail != "" {
		return fmt.Errorf("%s: %s: %s", msg, resp.Status, detail)
	}
	return fmt.Errorf("%s: %s", msg, resp.Status)
}
