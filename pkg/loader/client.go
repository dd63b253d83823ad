package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treescope/pkg/debug"
)

// DefaultTimeout bounds a single backend call. Analysis runs on the backend
// can take minutes.
const DefaultTimeout = 5 * time.Minute

// ErrMissingTree is returned when a backend response carries no tree.
var ErrMissingTree = errors.New("backend response has no tree")

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Response is what /example and /upload return. Tree is kept raw: the
// backend sends either a nested object or a JSON string holding one, and
// hierarchy.Build accepts both.
type Response struct {
	Analysis  string          `json:"analysis"`
	Tree      json.RawMessage `json:"tree"`
	Objective string          `json:"objective,omitempty"`
}

// Client talks to the analysis backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the backend at baseURL. A zero timeout
// means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Example fetches the canned example analysis.
func (c *Client) Example(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/example", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build example request: %w", err)
	}
	var resp Response
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("example: %w", err)
	}
	return checkTree(&resp)
}

// Upload sends an archive and an objective for analysis. The archive is
// posted as the multipart field "file" under filename.
func (c *Client) Upload(ctx context.Context, filename string, archive io.Reader, objective string) (*Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(fw, archive); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	if err := mw.WriteField("objective", objective); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp Response
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return checkTree(&resp)
}

// Ask forwards a follow-up question and returns the markdown answer.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/ask", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp struct {
		Response string `json:"response"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	return resp.Response, nil
}

// Images lists the chart files produced by the last analysis.
func (c *Client) Images(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/images", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build images request: %w", err)
	}
	var names []string
	if err := c.do(req, &names); err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	return names, nil
}

func (c *Client) do(req *http.Request, into any) error {
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	debug.Log("loader: %s %s -> %d in %v", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	body, err := ReadPayload(resp.Body, ReadOptions{})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

func checkTree(resp *Response) (*Response, error) {
	t := bytes.TrimSpace(resp.Tree)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return nil, ErrMissingTree
	}
	return resp, nil
}
