// Package client is the Go client for the courtyard messaging API. It is
// built for polling consoles: no push channel exists, so callers refresh
// their room list on an interval and derive unread flags locally from the
// rooms' last-activity timestamps.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"courtyard/internal/models"
	"courtyard/internal/unread"
)

// Identity is the trusted actor identity forwarded on every request.
type Identity struct {
	ID   uint
	Name string
	Role models.Role
}

// Room is the wire shape of a room listing entry.
type Room struct {
	ID            uint            `json:"id"`
	Kind          models.RoomKind `json:"kind"`
	Name          string          `json:"name,omitempty"`
	DisplayName   string          `json:"display_name"`
	LastMessageAt *time.Time      `json:"last_message_at,omitempty"`
	Members       []models.User   `json:"members,omitempty"`
}

// MessagesPage is one ascending page of room history.
type MessagesPage struct {
	Messages     []*models.Message `json:"messages"`
	NextBefore   *string           `json:"next_before,omitempty"`
	NextBeforeID *uint             `json:"next_before_id,omitempty"`
}

// PageCursor identifies the next older page of room history. BeforeID breaks
// ties between messages sharing the cursor timestamp.
type PageCursor struct {
	Before   time.Time
	BeforeID uint
}

// NextCursor returns the cursor for the page of history older than this one,
// or nil when the history is exhausted.
func (p *MessagesPage) NextCursor() *PageCursor {
	if p.NextBefore == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *p.NextBefore)
	if err != nil {
		return nil
	}
	cur := &PageCursor{Before: t}
	if p.NextBeforeID != nil {
		cur.BeforeID = *p.NextBeforeID
	}
	return cur
}

// RoomsUpdate is delivered on every poll tick: the current room list plus
// the 0/1 unread flag per room.
type RoomsUpdate struct {
	Rooms  []Room
	Unread map[uint]int
}

// Client talks to the messaging API on behalf of one actor.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	identity      Identity
	communityName string
	ledger        *unread.Ledger
}

// New returns a client for the API at baseURL. communityName identifies the
// all-members room the client self-heals when it goes missing.
func New(baseURL, communityName string, identity Identity) *Client {
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		identity:      identity,
		communityName: communityName,
		ledger:        unread.NewLedger(),
	}
}

// Ledger exposes the local last-seen ledger, e.g. for persistence across
// restarts.
func (c *Client) Ledger() *unread.Ledger { return c.ledger }

// ListRooms returns the actor's rooms, most recently active first. When the
// community room is absent from the listing it triggers a reconcile and
// lists again, so membership drift heals on the next refresh.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	rooms, err := c.listRooms(ctx)
	if err != nil {
		return nil, err
	}
	if c.communityName != "" && !containsCommunity(rooms, c.communityName) {
		if _, err := c.ReconcileCommunity(ctx); err != nil {
			return nil, err
		}
		return c.listRooms(ctx)
	}
	return rooms, nil
}

func (c *Client) listRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func containsCommunity(rooms []Room, name string) bool {
	for _, r := range rooms {
		if r.Kind == models.RoomGroup && r.Name == name {
			return true
		}
	}
	return false
}

// ResolveDirect opens (or returns) the DM with the other user.
func (c *Client) ResolveDirect(ctx context.Context, otherUserID uint) (*Room, error) {
	var room Room
	err := c.do(ctx, http.MethodPost, "/api/rooms/direct",
		map[string]interface{}{"other_user_id": otherUserID}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ReconcileCommunity asks the server to realign the community room with the
// current roster.
func (c *Client) ReconcileCommunity(ctx context.Context) (*Room, error) {
	var room Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms/community", nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Messages fetches one page of room history. A nil cursor yields the newest
// page. Fetching the newest page marks the room seen at its newest message.
func (c *Client) Messages(ctx context.Context, roomID uint, cursor *PageCursor, limit int) (*MessagesPage, error) {
	q := url.Values{}
	if cursor != nil {
		q.Set("before", cursor.Before.Format(time.RFC3339Nano))
		if cursor.BeforeID > 0 {
			q.Set("before_id", strconv.FormatUint(uint64(cursor.BeforeID), 10))
		}
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	target := fmt.Sprintf("/api/rooms/%d/messages", roomID)
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var page MessagesPage
	if err := c.do(ctx, http.MethodGet, target, nil, &page); err != nil {
		return nil, err
	}
	if cursor == nil && len(page.Messages) > 0 {
		newest := page.Messages[len(page.Messages)-1]
		c.ledger.MarkSeenAt(roomID, newest.CreatedAt)
	}
	return &page, nil
}

// Send appends a message to the room.
func (c *Client) Send(ctx context.Context, roomID uint, text string, attachmentID *uint) (*models.Message, error) {
	body := map[string]interface{}{"text": text}
	if attachmentID != nil {
		body["attachment_id"] = *attachmentID
	}
	var msg models.Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/rooms/%d/messages", roomID), body, &msg)
	if err != nil {
		return nil, err
	}
	c.ledger.MarkSeenAt(roomID, msg.CreatedAt)
	return &msg, nil
}

// Edit replaces the text of the actor's own message.
func (c *Client) Edit(ctx context.Context, messageID uint, text string) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/messages/%d", messageID),
		map[string]interface{}{"text": text}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete tombstones a message.
func (c *Client) Delete(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", messageID), nil, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Upload stores an attachment and returns its descriptor for use in Send.
func (c *Client) Upload(ctx context.Context, fileName, mimeType string, data []byte) (*models.Attachment, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/attachments/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setIdentity(req)

	var att models.Attachment
	if err := c.send(req, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// MarkSeen records that the actor viewed the room just now.
func (c *Client) MarkSeen(roomID uint) {
	c.ledger.MarkSeen(roomID)
}

// Poll refreshes the room list every interval and invokes fn with the rooms
// and their unread flags until ctx is cancelled. Transient errors are
// swallowed so a flaky network does not kill the loop.
func (c *Client) Poll(ctx context.Context, interval time.Duration, fn func(RoomsUpdate)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rooms, err := c.ListRooms(ctx)
		if err == nil {
			modelRooms := make([]*models.Room, 0, len(rooms))
			for _, r := range rooms {
				modelRooms = append(modelRooms, &models.Room{ID: r.ID, LastMessageAt: r.LastMessageAt})
			}
			fn(RoomsUpdate{Rooms: rooms, Unread: c.ledger.Compute(modelRooms)})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setIdentity(req)

	return c.send(req, out)
}

func (c *Client) setIdentity(req *http.Request) {
	req.Header.Set("X-Actor-ID", strconv.FormatUint(uint64(c.identity.ID), 10))
	req.Header.Set("X-Actor-Name", c.identity.Name)
	req.Header.Set("X-Actor-Role", string(c.identity.Role))
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewTransientError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeAPIError rebuilds the server's error taxonomy from the response so
// callers can branch on AppError codes locally.
func decodeAPIError(resp *http.Response) error {
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return &models.AppError{
			Code:    models.CodeInternal,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	code := body.Code
	if code == "" {
		code = models.CodeInternal
	}
	return &models.AppError{Code: code, Message: body.Error}
}
