package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	"courtyard/internal/config"
	"courtyard/internal/directory"
	"courtyard/internal/models"
	"courtyard/internal/repository"
	"courtyard/internal/service"
	"courtyard/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.Attachment{},
		&models.Message{},
	))

	roomRepo := repository.NewRoomRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	attRepo := repository.NewAttachmentRepository(db)

	local := storage.NewLocalStore(t.TempDir(), "/media")
	store := storage.NewTieredStore(nil, local)
	dir := directory.NewCachedDirectory(directory.NewGormDirectory(db), nil, 0)

	cfg := &config.Config{
		Env:             "test",
		CommunityName:   "Willow Court",
		MaxUploadSizeMB: 1,
	}

	s := &Server{
		config:     cfg,
		db:         db,
		roomRepo:   roomRepo,
		msgRepo:    msgRepo,
		attRepo:    attRepo,
		localStore: local,
		directory:  dir,
	}
	s.roomSvc = service.NewRoomService(roomRepo, dir, cfg.CommunityName)
	s.messageSvc = service.NewMessageService(msgRepo, roomRepo, attRepo)
	s.attachmentSvc = service.NewAttachmentService(attRepo, store, cfg.MaxUploadSizeBytes())

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app, db
}

func createUser(t *testing.T, db *gorm.DB, name string, role models.Role) models.User {
	t.Helper()
	u := models.User{DisplayName: name, Role: role, Active: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func asUser(req *http.Request, u models.User) *http.Request {
	req.Header.Set("X-Actor-ID", strconv.FormatUint(uint64(u.ID), 10))
	req.Header.Set("X-Actor-Name", u.DisplayName)
	req.Header.Set("X-Actor-Role", string(u.Role))
	return req
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestActorRequired(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/rooms/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/", nil)
	req.Header.Set("X-Actor-ID", "not-a-number")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDirectRoomResolution(t *testing.T) {
	_, app, db := newTestServer(t)
	ana := createUser(t, db, "Ana", models.RoleResident)
	bo := createUser(t, db, "Bo", models.RoleResident)

	resolve := func(as models.User, other uint) RoomResponse {
		req := asUser(jsonRequest(http.MethodPost, "/api/rooms/direct",
			fiber.Map{"other_user_id": other}), as)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var room RoomResponse
		decodeJSON(t, resp, &room)
		return room
	}

	first := resolve(ana, bo.ID)
	assert.Equal(t, "Bo", first.DisplayName)

	// The same pair from the other side lands in the same room.
	second := resolve(bo, ana.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana", second.DisplayName)

	t.Run("Self DM rejected", func(t *testing.T) {
		req := asUser(jsonRequest(http.MethodPost, "/api/rooms/direct",
			fiber.Map{"other_user_id": ana.ID}), ana)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Listing shows the room once", func(t *testing.T) {
		resp, err := app.Test(asUser(httptest.NewRequest(http.MethodGet, "/api/rooms/", nil), ana))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var rooms []RoomResponse
		decodeJSON(t, resp, &rooms)
		require.Len(t, rooms, 1)
		assert.Equal(t, first.ID, rooms[0].ID)
	})
}

func TestGroupRoomIsStaffOnly(t *testing.T) {
	_, app, db := newTestServer(t)
	resident := createUser(t, db, "Ana", models.RoleResident)
	admin := createUser(t, db, "Cleo", models.RoleAdmin)

	body := fiber.Map{"name": "Garden Committee", "member_ids": []uint{resident.ID, admin.ID}}

	resp, err := app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/group", body), resident))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/group", body), admin))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var room RoomResponse
	decodeJSON(t, resp, &room)
	assert.Equal(t, "Garden Committee", room.DisplayName)
	assert.Len(t, room.Members, 2)
}

func TestCommunityRoomSelfHealing(t *testing.T) {
	_, app, db := newTestServer(t)
	ana := createUser(t, db, "Ana", models.RoleResident)
	bo := createUser(t, db, "Bo", models.RoleResident)
	gone := createUser(t, db, "Dan", models.RoleResident)
	require.NoError(t, db.Model(&gone).Update("active", false).Error)

	// No rooms yet; the client notices and triggers a reconcile.
	resp, err := app.Test(asUser(httptest.NewRequest(http.MethodGet, "/api/rooms/", nil), ana))
	require.NoError(t, err)
	var rooms []RoomResponse
	decodeJSON(t, resp, &rooms)
	assert.Empty(t, rooms)

	resp, err = app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/community", nil), ana))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var community RoomResponse
	decodeJSON(t, resp, &community)
	assert.Equal(t, "Willow Court", community.DisplayName)
	assert.ElementsMatch(t, []uint{ana.ID, bo.ID}, community.Room.MemberIDs())

	// Repeating converges to the same room.
	resp, err = app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/community", nil), bo))
	require.NoError(t, err)
	var again RoomResponse
	decodeJSON(t, resp, &again)
	assert.Equal(t, community.ID, again.ID)
}

func TestMessageLifecycle(t *testing.T) {
	_, app, db := newTestServer(t)
	ana := createUser(t, db, "Ana", models.RoleResident)
	bo := createUser(t, db, "Bo", models.RoleResident)
	admin := createUser(t, db, "Cleo", models.RoleAdmin)

	req := asUser(jsonRequest(http.MethodPost, "/api/rooms/direct",
		fiber.Map{"other_user_id": bo.ID}), ana)
	resp, err := app.Test(req)
	require.NoError(t, err)
	var room RoomResponse
	decodeJSON(t, resp, &room)

	roomPath := fmt.Sprintf("/api/rooms/%d/messages", room.ID)

	var msg models.Message
	t.Run("Append", func(t *testing.T) {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPost, roomPath,
			fiber.Map{"text": "Package at the gate"}), ana))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		decodeJSON(t, resp, &msg)
		assert.Equal(t, "Package at the gate", msg.Body)
		assert.Equal(t, "Ana", msg.SenderDisplayName)
	})

	t.Run("Empty message rejected", func(t *testing.T) {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPost, roomPath, fiber.Map{}), ana))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Missing room yields 404", func(t *testing.T) {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/9999/messages",
			fiber.Map{"text": "hello?"}), ana))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Non-member cannot read", func(t *testing.T) {
		resident := createUser(t, db, "Eve", models.RoleResident)
		resp, err := app.Test(asUser(httptest.NewRequest(http.MethodGet, roomPath, nil), resident))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("List", func(t *testing.T) {
		resp, err := app.Test(asUser(httptest.NewRequest(http.MethodGet, roomPath, nil), bo))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page MessagesPage
		decodeJSON(t, resp, &page)
		require.Len(t, page.Messages, 1)
		assert.Equal(t, msg.ID, page.Messages[0].ID)
		require.NotNil(t, page.NextBefore)
	})

	t.Run("Invalid cursor", func(t *testing.T) {
		resp, err := app.Test(asUser(httptest.NewRequest(http.MethodGet, roomPath+"?before=yesterday", nil), bo))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Edit by non-sender forbidden", func(t *testing.T) {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPut, fmt.Sprintf("/api/messages/%d", msg.ID),
			fiber.Map{"text": "hijacked"}), bo))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Edit by sender", func(t *testing.T) {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPut, fmt.Sprintf("/api/messages/%d", msg.ID),
			fiber.Map{"text": "Package at the front gate"}), ana))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var edited models.Message
		decodeJSON(t, resp, &edited)
		assert.Equal(t, "Package at the front gate", edited.Body)
		assert.NotNil(t, edited.EditedAt)
	})

	t.Run("Admin delete leaves a tombstone", func(t *testing.T) {
		resp, err := app.Test(asUser(httptest.NewRequest(http.MethodDelete,
			fmt.Sprintf("/api/messages/%d", msg.ID), nil), admin))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = app.Test(asUser(httptest.NewRequest(http.MethodGet, roomPath, nil), ana))
		require.NoError(t, err)
		var page MessagesPage
		decodeJSON(t, resp, &page)
		require.Len(t, page.Messages, 1)
		assert.NotNil(t, page.Messages[0].DeletedAt)
		assert.Empty(t, page.Messages[0].Body)
	})
}

func TestMessagePaginationWalk(t *testing.T) {
	_, app, db := newTestServer(t)
	ana := createUser(t, db, "Ana", models.RoleResident)
	bo := createUser(t, db, "Bo", models.RoleResident)

	resp, err := app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/direct",
		fiber.Map{"other_user_id": bo.ID}), ana))
	require.NoError(t, err)
	var room RoomResponse
	decodeJSON(t, resp, &room)

	roomPath := fmt.Sprintf("/api/rooms/%d/messages", room.ID)
	for i := 0; i < 12; i++ {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPost, roomPath,
			fiber.Map{"text": fmt.Sprintf("note %d", i)}), ana))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	seen := map[uint]bool{}
	cursor := ""
	cursorID := uint(0)
	for {
		target := roomPath + "?limit=5"
		if cursor != "" {
			target += "&before=" + cursor
			target += fmt.Sprintf("&before_id=%d", cursorID)
		}
		resp, err := app.Test(asUser(httptest.NewRequest(http.MethodGet, target, nil), bo))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page MessagesPage
		decodeJSON(t, resp, &page)

		for _, m := range page.Messages {
			assert.False(t, seen[m.ID], "message repeated across pages")
			seen[m.ID] = true
		}
		if len(page.Messages) < 5 || page.NextBefore == nil {
			break
		}
		cursor = *page.NextBefore
		require.NotNil(t, page.NextBeforeID)
		cursorID = *page.NextBeforeID
	}
	assert.Len(t, seen, 12)
}

func multipartUpload(t *testing.T, fieldName, fileName, mimeType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, fileName))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/attachments/", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestAttachmentUpload(t *testing.T) {
	_, app, db := newTestServer(t)
	ana := createUser(t, db, "Ana", models.RoleResident)
	bo := createUser(t, db, "Bo", models.RoleResident)

	t.Run("Unsupported type", func(t *testing.T) {
		req := multipartUpload(t, "file", "setup.exe", "application/x-msdownload", []byte("MZ"))
		resp, err := app.Test(asUser(req, ana))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("Too large", func(t *testing.T) {
		req := multipartUpload(t, "file", "big.jpg", "image/jpeg",
			bytes.Repeat([]byte("x"), 1<<20+1))
		resp, err := app.Test(asUser(req, ana))
		require.NoError(t, err)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("Missing file field", func(t *testing.T) {
		req := asUser(jsonRequest(http.MethodPost, "/api/attachments/", fiber.Map{}), ana)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	var att models.Attachment
	t.Run("Upload and serve", func(t *testing.T) {
		req := multipartUpload(t, "file", "gate.png", "image/png", []byte("\x89PNG fake"))
		resp, err := app.Test(asUser(req, ana))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		decodeJSON(t, resp, &att)
		assert.Equal(t, models.CategoryImage, att.Category)
		require.NotEmpty(t, att.PublicURL)

		blobResp, err := app.Test(httptest.NewRequest(http.MethodGet, att.PublicURL, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, blobResp.StatusCode)
		body, err := io.ReadAll(blobResp.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG fake"), body)
	})

	t.Run("Attach to a message", func(t *testing.T) {
		resp, err := app.Test(asUser(jsonRequest(http.MethodPost, "/api/rooms/direct",
			fiber.Map{"other_user_id": bo.ID}), ana))
		require.NoError(t, err)
		var room RoomResponse
		decodeJSON(t, resp, &room)

		resp, err = app.Test(asUser(jsonRequest(http.MethodPost,
			fmt.Sprintf("/api/rooms/%d/messages", room.ID),
			fiber.Map{"attachment_id": att.ID}), ana))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var msg models.Message
		decodeJSON(t, resp, &msg)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, att.ID, msg.Attachment.ID)
	})
}

func TestHealthEndpoints(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
