package mamori

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Mamori server (e.g. "http://localhost:8080").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Mamori crisis detection and intervention
// API. All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mamori: BaseURL is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: baseURL,
		client:  httpClient,
	}, nil
}

// Analyze runs crisis detection over the given text and returns the
// assessment. UserID enables historical risk analysis; anonymous analysis
// carries no history.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Assessment, error) {
	var resp Assessment
	if err := c.post(ctx, "/v1/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Initiate opens a new crisis intervention case.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*Intervention, error) {
	var resp Intervention
	if err := c.post(ctx, "/v1/interventions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetIntervention retrieves one case by ID.
func (c *Client) GetIntervention(ctx context.Context, id uuid.UUID) (*Intervention, error) {
	var resp Intervention
	if err := c.get(ctx, "/v1/interventions/"+id.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ActiveCrisesOptions are optional filters for ActiveCrises.
type ActiveCrisesOptions struct {
	Severity   string
	CrisisType string
	AssignedTo string
}

// ActiveCrises returns all unresolved cases, most severe first, ties broken
// oldest first.
func (c *Client) ActiveCrises(ctx context.Context, opts *ActiveCrisesOptions) ([]Intervention, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Severity != "" {
			params.Set("severity", opts.Severity)
		}
		if opts.CrisisType != "" {
			params.Set("type", opts.CrisisType)
		}
		if opts.AssignedTo != "" {
			params.Set("assigned_to", opts.AssignedTo)
		}
	}

	path := "/v1/interventions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp []Intervention
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateAssessment merges a new risk assessment into an active case. The
// case severity follows the new risk level; a qualifying increase escalates
// the case.
func (c *Client) UpdateAssessment(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Intervention, error) {
	var resp Intervention
	if err := c.post(ctx, "/v1/interventions/"+id.String()+"/assessment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSafetyPlan attaches a safety plan to an active case. The request
// UserID must match the case owner.
func (c *Client) CreateSafetyPlan(ctx context.Context, id uuid.UUID, req SafetyPlanRequest) (*SafetyPlan, error) {
	var resp SafetyPlan
	if err := c.post(ctx, "/v1/interventions/"+id.String()+"/safety-plan", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve closes a case with a disposition and an effectiveness rating.
// Resolution is terminal; resolving twice returns a conflict error.
func (c *Client) Resolve(ctx context.Context, id uuid.UUID, req ResolveRequest) (*Intervention, error) {
	var resp Intervention
	if err := c.post(ctx, "/v1/interventions/"+id.String()+"/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuditTrail retrieves the append-only audit records for one case, oldest
// first. limit <= 0 uses the server default.
func (c *Client) AuditTrail(ctx context.Context, id uuid.UUID, limit int) ([]AuditRecord, error) {
	path := "/v1/interventions/" + id.String() + "/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp []AuditRecord
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Health checks the server's health status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mamori: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("mamori: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mamori: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mamori: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mamori: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("mamori: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
