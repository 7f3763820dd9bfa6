package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Session listing defaults, matching the API's own.
const (
	defaultPage     = 1
	defaultPageSize = 50
)

// sessionResponse mirrors the API session JSON exactly. Unexported so
// callers only ever see Session via toSession() normalization.
type sessionResponse struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	Restricted  bool   `json:"Restricted"`
	Created     string `json:"Created"`
	EndDate     string `json:"SessionEndDate"`
	InviteURL   string `json:"InviteUrl"`
	Version     int    `json:"Version"`
}

type listSessionsResponse struct {
	Sessions   []sessionResponse `json:"Sessions"`
	TotalCount int               `json:"TotalCount"`
}

type createSessionRequest struct {
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
	Restricted  *bool  `json:"Restricted,omitempty"`
}

func (s *sessionResponse) toSession() Session {
	return Session{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Status:      s.Status,
		Restricted:  s.Restricted,
		Created:     parseAPITime(s.Created),
		EndDate:     parseAPITime(s.EndDate),
		InviteURL:   s.InviteURL,
		Version:     s.Version,
	}
}

// CreateSessionOptions are the optional fields for CreateSession. A nil
// Restricted leaves the server default in place.
type CreateSessionOptions struct {
	Description string
	Restricted  *bool
}

// CreateSession creates a new Session and returns its normalized form.
func (c *Client) CreateSession(ctx context.Context, name string, opts CreateSessionOptions) (*Session, error) {
	body := createSessionRequest{
		Name:        name,
		Description: opts.Description,
		Restricted:  opts.Restricted,
	}

	resp, err := c.Do(ctx, http.MethodPost, "/sessions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding session response: %w", err)
	}

	session := out.toSession()

	return &session, nil
}

// ListSessions fetches one page of the caller's sessions. page and pageSize
// of 0 use the API defaults (page 1, 50 per page).
func (c *Client) ListSessions(ctx context.Context, page, pageSize int) (*SessionPage, error) {
	if page <= 0 {
		page = defaultPage
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := url.Values{}
	query.Set("page", fmt.Sprint(page))
	query.Set("pageSize", fmt.Sprint(pageSize))

	resp, err := c.Do(ctx, http.MethodGet, "/sessions?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out listSessionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding session list: %w", err)
	}

	result := &SessionPage{
		Sessions:   make([]Session, 0, len(out.Sessions)),
		TotalCount: out.TotalCount,
		Page:       page,
		PageSize:   pageSize,
	}

	for i := range out.Sessions {
		result.Sessions = append(result.Sessions, out.Sessions[i].toSession())
	}

	return result, nil
}

// GetSession fetches a single Session by ID.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding session response: %w", err)
	}

	session := out.toSession()

	return &session, nil
}

// DeleteSession deletes a Session and everything in it.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}

	drainClose(resp)

	return nil
}
