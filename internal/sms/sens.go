package sms

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultSENSBaseURL = "https://sens.apigw.ntruss.com"
	defaultSENSTimeout = 5 * time.Second
	sendRetries        = 2
	retryBase          = 200 * time.Millisecond
)

type SENSOptions struct {
	BaseURL    string
	ServiceID  string
	AccessKey  string
	SecretKey  string
	From       string
	Timeout    time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// SENSClient sends SMS through the NCP Simple & Easy Notification Service.
type SENSClient struct {
	httpClient *http.Client
	baseURL    string
	serviceID  string
	accessKey  string
	secretKey  string
	from       string
	now        func() time.Time
	backoff    func() retry.Backoff
}

func NewSENSClient(opts SENSOptions) (*SENSClient, error) {
	switch {
	case opts.ServiceID == "":
		return nil, errors.New("sens service id is required")
	case opts.AccessKey == "" || opts.SecretKey == "":
		return nil, errors.New("sens access and secret keys are required")
	case opts.From == "":
		return nil, errors.New("sens sender number is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultSENSBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSENSTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SENSClient{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		serviceID:  opts.ServiceID,
		accessKey:  opts.AccessKey,
		secretKey:  opts.SecretKey,
		from:       opts.From,
		now:        opts.Now,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(sendRetries, retry.NewExponential(retryBase))
		},
	}, nil
}

type sensMessage struct {
	To string `json:"to"`
}

type sensRequest struct {
	Type        string        `json:"type"`
	ContentType string        `json:"contentType"`
	CountryCode string        `json:"countryCode"`
	From        string        `json:"from"`
	Content     string        `json:"content"`
	Messages    []sensMessage `json:"messages"`
}

// Send posts one message. 5xx responses and transport errors are retried.
func (c *SENSClient) Send(ctx context.Context, to, message string) error {
	body, err := json.Marshal(sensRequest{
		Type:        "SMS",
		ContentType: "COMM",
		CountryCode: "82",
		From:        c.from,
		Content:     message,
		Messages:    []sensMessage{{To: to}},
	})
	if err != nil {
		return fmt.Errorf("encode sens request: %w", err)
	}

	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		return c.post(ctx, body)
	})
}

func (c *SENSClient) messagesURI() string {
	return "/sms/v2/services/" + c.serviceID + "/messages"
}

func (c *SENSClient) post(ctx context.Context, body []byte) error {
	uri := c.messagesURI()
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("x-ncp-apigw-timestamp", timestamp)
	req.Header.Set("x-ncp-iam-access-key", c.accessKey)
	req.Header.Set("x-ncp-apigw-signature-v2", Signature(c.secretKey, http.MethodPost, uri, timestamp, c.accessKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("sens request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	statusErr := fmt.Errorf("sens send failed: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	if resp.StatusCode >= 500 {
		return retry.RetryableError(statusErr)
	}
	return statusErr
}

// Signature is base64(HMAC-SHA256(secret, "METHOD URI\nTIMESTAMP\nACCESSKEY")).
func Signature(secretKey, method, uri, timestamp, accessKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(method + " " + uri + "\n" + timestamp + "\n" + accessKey))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
