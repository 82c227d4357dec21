// Package langflow executes prepared flows on a Langflow server over its REST API.
package langflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/google/uuid"
)

// DefaultBaseURL is the address of a Langflow server started with its defaults.
const DefaultBaseURL = "http://127.0.0.1:7860"

// APIKeyHeader carries the Langflow API key.
const APIKeyHeader = "x-api-key"

// maxErrorBody caps how much of a failed response is kept in an APIError.
const maxErrorBody = 4 << 10

// cleanupTimeout bounds the removal of a run's uploaded copy once the run is over.
const cleanupTimeout = 30 * time.Second

// APIError is returned for non-2xx responses. It matches domain.ErrExecution.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("langflow %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return domain.ErrExecution
}

// Client implements ports.Executor against a Langflow server.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	skipUpsert bool
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the key sent in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithoutUpsert runs flows by id only, assuming they already exist on the server.
// The prepared document is not uploaded, so the tweaks are sent with the run
// and load_from_db fields are resolved by the server.
func WithoutUpsert() Option {
	return func(c *Client) {
		c.skipUpsert = true
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid langflow url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid langflow url %q: scheme and host required", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromEnv reads LANGFLOW_BASE_URL and LANGFLOW_API_KEY.
func NewFromEnv(opts ...Option) (*Client, error) {
	base := os.Getenv("LANGFLOW_BASE_URL")
	if key := os.Getenv("LANGFLOW_API_KEY"); key != "" {
		opts = append([]Option{WithAPIKey(key)}, opts...)
	}
	return New(base, opts...)
}

// FlowID returns the id used on the server: the flow's own id, or a stable
// UUID derived from its name.
func FlowID(f *domain.Flow) string {
	if f.ID != "" {
		return f.ID
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("langrun:flow:"+f.Name)).String()
}

type flowBody struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

type runBody struct {
	InputValue      string        `json:"input_value"`
	InputType       string        `json:"input_type,omitempty"`
	OutputType      string        `json:"output_type,omitempty"`
	OutputComponent string        `json:"output_component,omitempty"`
	SessionID       string        `json:"session_id,omitempty"`
	Tweaks          domain.Tweaks `json:"tweaks,omitempty"`
}

// Upsert creates or replaces the flow on the server under FlowID(f).
func (c *Client) Upsert(ctx context.Context, f *domain.Flow) error {
	return c.upsert(ctx, FlowID(f), f.Name, f)
}

// ResolvesVariables reports true: Langflow resolves load_from_db fields from
// its own variable store.
func (c *Client) ResolvesVariables() bool {
	return true
}

// Delete removes a flow from the server.
func (c *Client) Delete(ctx context.Context, flowID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/flows/"+url.PathEscape(flowID), nil, nil, nil)
}

func (c *Client) upsert(ctx context.Context, id, name string, f *domain.Flow) error {
	if name == "" {
		name = id
	}
	body := flowBody{
		ID:          id,
		Name:        name,
		Description: f.Description,
		Data:        f.Graph(),
	}
	return c.do(ctx, http.MethodPut, "/api/v1/flows/"+url.PathEscape(id), nil, body, nil)
}

// Run executes a flow already present on the server. in.Tweaks, when set, is
// sent with the run and applied by the server to this run only.
func (c *Client) Run(ctx context.Context, flowID string, in domain.RunInput) (*domain.RunResponse, error) {
	body := runBody{
		InputValue:      in.InputValue,
		InputType:       in.InputType,
		OutputType:      in.OutputType,
		OutputComponent: in.OutputComponent,
		SessionID:       in.SessionID,
		Tweaks:          in.Tweaks,
	}
	query := url.Values{"stream": []string{"false"}}

	var resp domain.RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/run/"+url.PathEscape(flowID), query, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Execute runs the prepared flow.
//
// The prepared document is uploaded under an id of its own, run, and deleted
// afterwards, so concurrent runs of one flow with different tweaks never see
// each other's document. Its tweaks are already applied and are not sent again.
// With WithoutUpsert the stored flow FlowID(f) is run and in.Tweaks travels
// with the request.
func (c *Client) Execute(ctx context.Context, f *domain.Flow, in domain.RunInput) (*domain.RunResponse, error) {
	if c.skipUpsert {
		id := FlowID(f)
		c.logger.Debug("Running stored flow on langflow", "flow_id", id, "session_id", in.SessionID)
		return c.Run(ctx, id, in)
	}

	id := uuid.NewString()
	name := f.Name
	if name == "" {
		name = FlowID(f)
	}
	if err := c.upsert(ctx, id, fmt.Sprintf("%s (run %s)", name, id[:8]), f); err != nil {
		return nil, err
	}
	defer c.cleanup(ctx, id)

	in.Tweaks = nil
	c.logger.Debug("Running prepared flow on langflow", "flow_id", id, "source_flow_id", FlowID(f), "session_id", in.SessionID)
	return c.Run(ctx, id, in)
}

func (c *Client) cleanup(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := c.Delete(ctx, id); err != nil {
		c.logger.Warn("Failed to delete prepared flow", "flow_id", id, "err", err)
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrExecution, method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response from %s: %v", domain.ErrExecution, path, err)
	}
	return nil
}
