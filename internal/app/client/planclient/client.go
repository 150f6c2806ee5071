// internal/app/client/planclient/client.go
//
// Package planclient talks to the PlanHub JSON API on behalf of one
// signed-in user. The session cookie lives in the client's jar, so SignIn
// must come first.
//
// Client satisfies wizard.Committer and wizard.Uploader, which lets the
// terminal wizard finish a plan against a remote server.
package planclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/opstate"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Client is safe for concurrent use. Per-plan operation state is kept in
// Ops so a failed join on one plan does not mark another plan failed.
type Client struct {
	base *url.URL
	http *http.Client
	Ops  *opstate.Tracker
	Log  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its Jar is replaced by a
// fresh cookie jar when nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.Log = logger }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("planclient: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("planclient: base url %q must be http or https", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		Ops:  opstate.New(),
		Log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("planclient: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string { return c.base.String() }

// ResolveURL turns a server-relative path such as an image URL into an
// absolute one.
func (c *Client) ResolveURL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return c.base.ResolveReference(ref).String()
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends a request and decodes a JSON response into out (when non-nil).
// Non-2xx responses become *apperr.Error using the server's code.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return apperr.Wrap(op, apperr.KindUnknown, "could not build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.Log.Debug("request failed", zap.String("op", op), zap.Error(err))
		return apperr.Wrap(op, apperr.KindStoreUnavailable, "server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return responseError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(op, apperr.KindUnknown, "unreadable response", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(op, apperr.KindUnknown, "could not encode request", err)
		}
		body = bytes.NewReader(b)
		ct = "application/json"
	}
	return c.do(ctx, op, method, path, body, ct, out)
}

func responseError(op string, resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Error.Code == "" {
		return apperr.E(op, kindForStatus(resp.StatusCode), http.StatusText(resp.StatusCode))
	}
	kind := apperr.Kind(eb.Error.Code)
	switch kind {
	case apperr.KindNotFound, apperr.KindUnauthorized, apperr.KindValidationFailed,
		apperr.KindStoreUnavailable, apperr.KindAlreadyExists, apperr.KindNotAMember:
	default:
		kind = kindForStatus(resp.StatusCode)
	}
	return apperr.E(op, kind, eb.Error.Message)
}

func kindForStatus(status int) apperr.Kind {
	switch status {
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return apperr.KindValidationFailed
	case http.StatusConflict:
		return apperr.KindAlreadyExists
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return apperr.KindStoreUnavailable
	default:
		return apperr.KindUnknown
	}
}

// ErrBusy is returned when the same operation on the same plan is already
// in flight.
var ErrBusy = apperr.E("planclient", apperr.KindValidationFailed, "already in progress")

// track runs fn under the (planID, op, target) key of the tracker. Target
// is empty for operations that act on the whole plan.
func (c *Client) track(planID string, op opstate.Op, target string, fn func() error) error {
	ran, err := c.Ops.Do(opstate.Key{PlanID: planID, Op: op, Target: target}, fn)
	if !ran {
		return ErrBusy
	}
	return err
}

// SignIn presents u to the server and keeps the session cookie.
func (c *Client) SignIn(ctx context.Context, u models.UserSnapshot) (models.UserSnapshot, error) {
	var out models.UserSnapshot
	body := map[string]any{
		"id":        u.ID,
		"name":      u.Name,
		"photo_url": u.PhotoURL,
		"age":       u.Age,
		"gender":    u.Gender,
	}
	err := c.doJSON(ctx, "planclient.SignIn", http.MethodPost, "/session", body, &out)
	return out, err
}

// SignOut drops the server session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.doJSON(ctx, "planclient.SignOut", http.MethodDelete, "/session", nil, nil)
}

// CreatePlan creates draft as the signed-in user.
func (c *Client) CreatePlan(ctx context.Context, draft models.Plan) (models.Plan, error) {
	var out PlanView
	err := c.track("", opstate.OpSave, draft.Title, func() error {
		return c.doJSON(ctx, "planclient.CreatePlan", http.MethodPost, "/plans", createBody(draft), &out)
	})
	return out.Plan, err
}

// UpdatePlanFields sends only the fields named by patch.
func (c *Client) UpdatePlanFields(ctx context.Context, planID primitive.ObjectID, patch models.PlanPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	id := planID.Hex()
	return c.track(id, opstate.OpSave, "", func() error {
		return c.doJSON(ctx, "planclient.UpdatePlanFields", http.MethodPatch, "/plans/"+id, patchBody(patch), nil)
	})
}

// GetPlan reads one plan as the signed-in user sees it.
func (c *Client) GetPlan(ctx context.Context, planID string) (PlanView, error) {
	var out PlanView
	err := c.track(planID, opstate.OpLoad, "", func() error {
		return c.doJSON(ctx, "planclient.GetPlan", http.MethodGet, "/plans/"+url.PathEscape(planID), nil, &out)
	})
	return out, err
}

// ListPlans lists plans created by (filter "creator") or joined by
// (filter "joined") the signed-in user, newest first, following the
// server's page cursors. An empty filter lists both.
func (c *Client) ListPlans(ctx context.Context, filter string) ([]PlanView, error) {
	q := url.Values{}
	switch filter {
	case "":
	case "creator", "joined":
		q.Set(filter, "me")
	default:
		return nil, apperr.E("planclient.ListPlans", apperr.KindValidationFailed, "unknown filter "+filter)
	}

	var all []PlanView
	for {
		var page struct {
			Plans []PlanView `json:"plans"`
			Next  string     `json:"next"`
		}
		path := "/plans"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		if err := c.doJSON(ctx, "planclient.ListPlans", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Plans...)
		if page.Next == "" {
			return all, nil
		}
		q.Set("after", page.Next)
	}
}

// DeletePlan deletes a plan the signed-in user created.
func (c *Client) DeletePlan(ctx context.Context, planID string) error {
	return c.track(planID, opstate.OpDelete, "", func() error {
		return c.doJSON(ctx, "planclient.DeletePlan", http.MethodDelete, "/plans/"+url.PathEscape(planID), nil, nil)
	})
}

// Join adds the signed-in user to the plan's participants.
func (c *Client) Join(ctx context.Context, planID string) error {
	return c.track(planID, opstate.OpJoin, "", func() error {
		return c.doJSON(ctx, "planclient.Join", http.MethodPost, "/plans/"+url.PathEscape(planID)+"/join", nil, nil)
	})
}

// Leave removes the signed-in user from the plan's participants.
func (c *Client) Leave(ctx context.Context, planID string) error {
	return c.track(planID, opstate.OpLeave, "", func() error {
		return c.doJSON(ctx, "planclient.Leave", http.MethodPost, "/plans/"+url.PathEscape(planID)+"/leave", nil, nil)
	})
}

// Messages returns the plan transcript in order.
func (c *Client) Messages(ctx context.Context, planID string) ([]models.GroupMessage, error) {
	var out struct {
		Messages []models.GroupMessage `json:"messages"`
	}
	err := c.doJSON(ctx, "planclient.Messages", http.MethodGet, messagesPath(planID), nil, &out)
	return out.Messages, err
}

// Send posts a message to the plan chat.
func (c *Client) Send(ctx context.Context, planID, body string) (models.GroupMessage, error) {
	var out models.GroupMessage
	err := c.track(planID, opstate.OpSend, body, func() error {
		return c.doJSON(ctx, "planclient.Send", http.MethodPost, messagesPath(planID), map[string]string{"body": body}, &out)
	})
	return out, err
}

// DeleteMessage removes one message by id.
func (c *Client) DeleteMessage(ctx context.Context, planID, messageID string) error {
	return c.track(planID, opstate.OpDeleteMessage, messageID, func() error {
		return c.doJSON(ctx, "planclient.DeleteMessage", http.MethodDelete, messagesPath(planID)+"/"+url.PathEscape(messageID), nil, nil)
	})
}

// ClearMessages empties the transcript.
func (c *Client) ClearMessages(ctx context.Context, planID string) error {
	return c.track(planID, opstate.OpClear, "", func() error {
		return c.doJSON(ctx, "planclient.ClearMessages", http.MethodDelete, messagesPath(planID), nil, nil)
	})
}

// Upload sends image bytes as a multipart form and returns the image URL
// as the server reports it (server-relative).
func (c *Client) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+quoteEscaper.Replace(filename)+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", apperr.Wrap("planclient.Upload", apperr.KindUnknown, "could not build upload", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", apperr.Wrap("planclient.Upload", apperr.KindUnknown, "could not build upload", err)
	}
	if err := mw.Close(); err != nil {
		return "", apperr.Wrap("planclient.Upload", apperr.KindUnknown, "could not build upload", err)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, "planclient.Upload", http.MethodPost, "/images", &buf, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func messagesPath(planID string) string {
	return "/plans/" + url.PathEscape(planID) + "/messages"
}
