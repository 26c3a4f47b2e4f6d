package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadboard/models"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
)

const apiPrefix = "/api/v1"

// ErrBulkRejected wraps the reason the server refused or aborted a bulk run.
var ErrBulkRejected = errors.New("bulk generation rejected")

// APIError is returned when the server answers with success=false.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the leadboard REST API and its bulk generation socket.
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	HTTP    *fasthttp.Client
	Dialer  *websocket.Dialer
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Timeout: 30 * time.Second,
		HTTP: &fasthttp.Client{
			Name:                "leadctl",
			MaxIdleConnDuration: time.Minute,
		},
		Dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type LeadQuery struct {
	Page     int
	PageSize int
	Search   string
}

func (q LeadQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "page_size", q.PageSize)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

type MessageQuery struct {
	LeadID   string
	Status   string
	Search   string
	Page     int
	PageSize int
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "page_size", q.PageSize)
	if q.LeadID != "" {
		v.Set("lead_id", q.LeadID)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

func setInt(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

func (c *Client) ListLeads(ctx context.Context, q LeadQuery) ([]models.Lead, *models.Pagination, error) {
	var leads []models.Lead
	page, err := c.do(ctx, fasthttp.MethodGet, "/leads", q.values(), nil, &leads)
	return leads, page, err
}

func (c *Client) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if _, err := c.do(ctx, fasthttp.MethodGet, "/leads/"+url.PathEscape(id), nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (c *Client) CreateLead(ctx context.Context, input models.CreateLeadInput) (*models.Lead, error) {
	var lead models.Lead
	if _, err := c.do(ctx, fasthttp.MethodPost, "/leads", nil, input, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (c *Client) UpdateLead(ctx context.Context, id string, input models.UpdateLeadInput) (*models.Lead, error) {
	var lead models.Lead
	if _, err := c.do(ctx, fasthttp.MethodPatch, "/leads/"+url.PathEscape(id), nil, input, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (c *Client) DeleteLead(ctx context.Context, id string) error {
	_, err := c.do(ctx, fasthttp.MethodDelete, "/leads/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// ExportLeads returns the CSV document for the given leads.
func (c *Client) ExportLeads(ctx context.Context, leadIDs []string) ([]byte, error) {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.send(ctx, fasthttp.MethodPost, "/leads/export", nil, models.ExportLeadsInput{LeadIDs: leadIDs}, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, decodeError(resp)
	}
	return append([]byte(nil), resp.Body()...), nil
}

func (c *Client) ListMessages(ctx context.Context, q MessageQuery) ([]models.Message, *models.Pagination, error) {
	var messages []models.Message
	page, err := c.do(ctx, fasthttp.MethodGet, "/messages", q.values(), nil, &messages)
	return messages, page, err
}

func (c *Client) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if _, err := c.do(ctx, fasthttp.MethodGet, "/messages/"+url.PathEscape(id), nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) CreateMessage(ctx context.Context, input models.CreateMessageInput) (*models.Message, error) {
	var msg models.Message
	if _, err := c.do(ctx, fasthttp.MethodPost, "/messages", nil, input, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) UpdateMessage(ctx context.Context, id string, input models.UpdateMessageInput) (*models.Message, error) {
	var msg models.Message
	if _, err := c.do(ctx, fasthttp.MethodPatch, "/messages/"+url.PathEscape(id), nil, input, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	_, err := c.do(ctx, fasthttp.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil, nil)
	return err
}

func (c *Client) MessageStats(ctx context.Context) (*models.MessageStats, error) {
	var stats models.MessageStats
	if _, err := c.do(ctx, fasthttp.MethodGet, "/messages/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) GenerateMessage(ctx context.Context, input models.GenerateMessageInput) (*models.GenerateMessageResult, error) {
	var result models.GenerateMessageResult
	if _, err := c.do(ctx, fasthttp.MethodPost, "/generate-message", nil, input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BulkGenerate starts a server-side bulk run and relays every progress frame
// to onProgress. It returns the final snapshot once the run is done.
func (c *Client) BulkGenerate(ctx context.Context, leadIDs []string, onProgress func(models.BulkProgress)) (*models.BulkProgress, error) {
	wsURL, err := c.socketURL("/ws/bulk-generate")
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, resp, err := c.Dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("bulk generate handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("bulk generate dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(models.BulkRequest{LeadIDs: leadIDs}); err != nil {
		return nil, fmt.Errorf("bulk generate request: %w", err)
	}

	for {
		var frame models.BulkFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("bulk generate stream: %w", err)
		}

		switch frame.Type {
		case models.BulkFrameError:
			return nil, fmt.Errorf("%w: %s", ErrBulkRejected, frame.Error)
		case models.BulkFrameProgress:
			if frame.Progress == nil {
				continue
			}
			if onProgress != nil {
				onProgress(*frame.Progress)
			}
			if frame.Progress.Done {
				return frame.Progress, nil
			}
		}
	}
}

func (c *Client) socketURL(path string) (string, error) {
	u, err := url.Parse(c.BaseURL + apiPrefix + path)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// do sends a JSON request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*models.Pagination, error) {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.send(ctx, method, path, query, body, resp); err != nil {
		return nil, err
	}

	var env models.Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("decode %s %s response (status %d): %w", method, path, resp.StatusCode(), err)
	}
	if !env.Success || resp.StatusCode() >= http.StatusBadRequest {
		return nil, &APIError{Status: resp.StatusCode(), Message: env.Error, Details: env.Details}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return env.Pagination, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	uri := c.BaseURL + apiPrefix + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	if c.Token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.Token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	deadline := time.Now().Add(c.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.HTTP.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *fasthttp.Response) error {
	var env models.Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil || env.Error == "" {
		return &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	}
	return &APIError{Status: resp.StatusCode(), Message: env.Error, Details: env.Details}
}
