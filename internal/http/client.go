// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"time"

	"github.com/wneessen/ufobeep/internal/logger"
)

const (
	// DefaultTimeout is the default timeout value for the HTTPClient
	DefaultTimeout = time.Second * 10

	// UploadTimeout is the timeout used for multipart uploads
	UploadTimeout = time.Minute * 2
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent is the User-Agent that the HTTP client sends with API requests
	UserAgent = fmt.Sprintf("Mozilla/5.0 (%s; %s) ufobeep/%s (+https://github.com/wneessen/ufobeep/)",
		runtime.GOOS,
		runtime.GOARCH,
		version,
	)

	ErrNonPointerTarget = errors.New("target must be a non-nil pointer")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
)

// Client is a type wrapper for the Go stdlib http.Client and the Config
type Client struct {
	*http.Client
	logger *logger.Logger
}

// FormFile describes a file that is attached to a multipart request.
type FormFile struct {
	Field string
	Path  string
	Name  string
}

// New returns a new HTTP client
func New(logger *logger.Logger) *Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	httpTransport := &http.Transport{TLSClientConfig: tlsConfig}
	httpClient := &http.Client{
		Timeout:   DefaultTimeout,
		Transport: httpTransport,
	}
	return &Client{httpClient, logger}
}

// Get performs a HTTP GET request for the given URL and json-unmarshals the response
// into target
func (h *Client) Get(ctx context.Context, endpoint string, target any, query url.Values, headers map[string]string) (int, error) {
	return h.GetWithTimeout(ctx, endpoint, target, query, headers, DefaultTimeout)
}

// GetWithTimeout performs a HTTP GET request for the given URL and timeout and JSON-unmarshals
// the response into target
func (h *Client) GetWithTimeout(ctx context.Context, endpoint string, target any, query url.Values, headers map[string]string, timeout time.Duration) (int, error) {
	if err := checkTarget(target); err != nil {
		return 0, err
	}

	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	return h.do(request, target, headers)
}

// Post performs a HTTP POST request for the given URL and json-unmarshals the response
// into target
func (h *Client) Post(ctx context.Context, url string, target any, body io.Reader, headers map[string]string) (int, error) {
	return h.PostWithTimeout(ctx, url, target, body, headers, DefaultTimeout)
}

// PostWithTimeout performs a HTTP POST request for the given URL and timeout and JSON-unmarshals
// the response into target
func (h *Client) PostWithTimeout(ctx context.Context, url string, target any, body io.Reader, headers map[string]string, timeout time.Duration) (int, error) {
	if err := checkTarget(target); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	return h.do(request, target, headers)
}

// PostMultipart uploads the given form fields and file as multipart/form-data and JSON-unmarshals
// the response into target.
func (h *Client) PostMultipart(ctx context.Context, url string, target any, fields map[string]string, file FormFile) (int, error) {
	if err := checkTarget(target); err != nil {
		return 0, err
	}

	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)
	if err := writeFormFile(writer, file); err != nil {
		return 0, err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return 0, fmt.Errorf("failed to write form field %q: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	return h.PostWithTimeout(ctx, url, target, body, headers, UploadTimeout)
}

// do executes the request and decodes the JSON response body into target. Responses with a
// status code of 400 or higher are reported as ErrUnexpectedStatus.
func (h *Client) do(request *http.Request, target any, headers map[string]string) (int, error) {
	request.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	response, err := h.Do(request)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	if response == nil {
		return 0, errors.New("nil response received")
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			h.logger.Error("failed to close HTTP request body", logger.Err(err))
		}
	}(response.Body)

	if response.StatusCode >= http.StatusBadRequest {
		return response.StatusCode, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, response.StatusCode,
			http.StatusText(response.StatusCode))
	}
	if err = json.NewDecoder(response.Body).Decode(target); err != nil {
		return response.StatusCode, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return response.StatusCode, nil
}

func writeFormFile(writer *multipart.Writer, file FormFile) error {
	handle, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}
	defer func() {
		_ = handle.Close()
	}()

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	part, err := writer.CreateFormFile(file.Field, name)
	if err != nil {
		return fmt.Errorf("failed to create multipart file part: %w", err)
	}
	if _, err = io.Copy(part, handle); err != nil {
		return fmt.Errorf("failed to copy upload file: %w", err)
	}
	return nil
}

func checkTarget(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrNonPointerTarget
	}
	return nil
}
