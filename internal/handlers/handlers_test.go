package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/handlers"
	"github.com/mirrorstack/mirror_server/internal/hash"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/mirrorcfg"
	"github.com/mirrorstack/mirror_server/internal/models"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/revocation"
	"github.com/mirrorstack/mirror_server/internal/session"
	"github.com/mirrorstack/mirror_server/internal/token"
	httpserver "github.com/mirrorstack/mirror_server/internal/transport/http"
)

const testAppSentinel = "mirror-app@internal"

type recordedEvent struct {
	Topic string
	Key   string
	Event map[string]interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{Topic: topic, Key: key, Event: event.(map[string]interface{})})
	return nil
}

func (f *fakePublisher) byType(eventType string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.Event["type"] == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	Repo   *repo.Repo
	Issuer *session.Issuer
	Codec  *token.Codec
	Events *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Mirror{}, &models.UserMirror{}, &models.RevokedToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	r := repo.New(db)
	codec := &token.Codec{Secret: []byte("test-secret")}
	revoked := revocation.NewMemoryStore()
	validator := &token.Validator{Codec: codec, Revoked: revoked}
	guard := &access.Guard{Store: r}
	issuer := &session.Issuer{Repo: r, Codec: codec, Revoked: revoked, TTL: 15 * time.Minute}
	events := &fakePublisher{}
	auth := &middleware.Auth{Validator: validator, AppSentinel: testAppSentinel}

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		Auth:              auth,
		UserHandler:       &handlers.UserHandler{Repo: r, Issuer: issuer, Producer: events},
		MirrorHandler:     &handlers.MirrorHandler{Repo: r, Guard: guard, Producer: events},
		PermissionHandler: &handlers.PermissionHandler{Repo: r, Guard: guard},
		WidgetHandler:     &handlers.WidgetHandler{Repo: r, Guard: guard, Producer: events},
		SystemHandler:     &handlers.SystemHandler{Repo: r, Guard: guard, Codec: codec, AppSentinel: testAppSentinel},
		SearchHandler:     &handlers.SearchHandler{Repo: r},
	})

	return &testEnv{T: t, E: e, Repo: r, Issuer: issuer, Codec: codec, Events: events}
}

func (env *testEnv) request(method, path, bearer string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(env.T, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) seedUser(email string, admin bool) *models.User {
	pwHash, err := hash.HashPassword("password")
	require.NoError(env.T, err)
	u := &models.User{Email: email, PasswordHash: pwHash, IsAdmin: admin}
	require.NoError(env.T, env.Repo.CreateUser(context.Background(), u))
	return u
}

func (env *testEnv) tokenFor(u *models.User) string {
	raw, err := env.Codec.Encode(token.Identity{ID: u.ID, Email: u.Email, Role: u.Role()}, 15*time.Minute)
	require.NoError(env.T, err)
	return raw
}

func (env *testEnv) seedMirror(owner *models.User, name string) *models.Mirror {
	m := &models.Mirror{Name: name}
	require.NoError(env.T, env.Repo.CreateMirror(context.Background(), m, owner.ID))
	return m
}

// legacyToken forges a token in the claim shape older clients still carry,
// where the identity lives under an "email" object.
func legacyToken(t *testing.T, secret []byte, id uint, email, role string) string {
	claims := jwt.MapClaims{
		"email": map[string]interface{}{"id": id, "email": email, "type": role},
		"exp":   time.Now().Add(15 * time.Minute).Unix(),
		"iat":   time.Now().Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodPost, "/api/users/register", "", map[string]string{
		"email": "Alice@Example.com", "password": "password", "first_name": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	user := body["user"].(map[string]interface{})
	require.Equal(t, "alice@example.com", user["email"])
	require.Equal(t, false, user["is_admin"])

	require.Len(t, env.Events.byType("user_registered"), 1)

	// duplicate email
	rec = env.request(http.MethodPost, "/api/users/register", "", map[string]string{
		"email": "alice@example.com", "password": "password",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// missing fields
	rec = env.request(http.MethodPost, "/api/users/register", "", map[string]string{
		"email": "bob@example.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// special characters rejected
	rec = env.request(http.MethodPost, "/api/users/register", "", map[string]string{
		"email": "bob@example.com", "password": "pass", "first_name": "<script>",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("alice@example.com", false)

	rec := env.request(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ALICE@example.com", "password": "password",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.NotEmpty(t, body["token"])
	require.Len(t, env.Events.byType("user_logged_in"), 1)

	// wrong password and unknown user return the same status
	rec = env.request(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "nobody@example.com", "password": "password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)

	rec := env.request(http.MethodGet, "/api/users/me", env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "alice@example.com", body["user"].(map[string]interface{})["email"])

	// no token at all
	rec = env.request(http.MethodGet, "/api/users/me", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// garbage token
	rec = env.request(http.MethodGet, "/api/users/me", "not.a.token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesImmediately(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bearer := env.tokenFor(alice)

	rec := env.request(http.MethodGet, "/api/users/me", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(http.MethodPost, "/api/users/logout", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// the very next request with the same token is rejected
	rec = env.request(http.MethodGet, "/api/users/me", bearer, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLegacyTokenShapeAccepted(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)

	legacy := legacyToken(t, env.Codec.Secret, alice.ID, alice.Email, "user")
	rec := env.request(http.MethodGet, "/api/users/me", legacy, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMirrorCreate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bearer := env.tokenFor(alice)

	rec := env.request(http.MethodPost, "/api/mirrors", bearer, map[string]string{
		"name": "Living Room", "ip_address": "192.168.1.20",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	mirror := body["mirror"].(map[string]interface{})
	mirrorID := uint(mirror["id"].(float64))

	member, err := env.Repo.HasMembership(context.Background(), alice.ID, mirrorID)
	require.NoError(t, err)
	require.True(t, member)
	require.Len(t, env.Events.byType("mirror_created"), 1)

	// name is required
	rec = env.request(http.MethodPost, "/api/mirrors", bearer, map[string]string{
		"ip_address": "192.168.1.21",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// corrupt config degrades to an empty document instead of failing
	rec = env.request(http.MethodPost, "/api/mirrors", bearer, map[string]string{
		"name": "Hall", "config": "{broken",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestMirrorList(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bob := env.seedUser("bob@example.com", false)
	root := env.seedUser("root@example.com", true)

	env.seedMirror(alice, "Alice One")
	env.seedMirror(alice, "Alice Two")
	env.seedMirror(bob, "Bob One")

	rec := env.request(http.MethodGet, "/api/mirrors", env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["mirrors"], 2)

	// admin sees everything
	rec = env.request(http.MethodGet, "/api/mirrors", env.tokenFor(root), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["mirrors"], 3)
}

func TestMirrorGetAuthorization(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	carol := env.seedUser("carol@example.com", false)
	root := env.seedUser("root@example.com", true)
	m := env.seedMirror(alice, "Living Room")

	path := fmt.Sprintf("/api/mirrors/%d", m.ID)

	rec := env.request(http.MethodGet, path, env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// non-member: 403, and the same 403 for a mirror that does not exist
	rec = env.request(http.MethodGet, path, env.tokenFor(carol), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.request(http.MethodGet, "/api/mirrors/9999", env.tokenFor(carol), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// admin reads anything, and gets 404 for a missing mirror
	rec = env.request(http.MethodGet, path, env.tokenFor(root), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodGet, "/api/mirrors/9999", env.tokenFor(root), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMirrorUpdate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	carol := env.seedUser("carol@example.com", false)
	m := env.seedMirror(alice, "Old Name")
	path := fmt.Sprintf("/api/mirrors/%d", m.ID)

	rec := env.request(http.MethodPut, path, env.tokenFor(alice), map[string]string{
		"name": "New Name",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := env.Repo.FindMirror(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.Name)

	rec = env.request(http.MethodPut, path, env.tokenFor(carol), map[string]string{
		"name": "Hijack",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMirrorStatusUpdate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	m := env.seedMirror(alice, "Hall")
	bearer := env.tokenFor(alice)

	rec := env.request(http.MethodPatch, fmt.Sprintf("/api/mirrors/%d/status", m.ID), bearer, map[string]string{
		"status": "online",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "online", decodeBody(t, rec)["status"])

	rec = env.request(http.MethodGet, fmt.Sprintf("/api/mirrors/%d/system/status", m.ID), bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "online", decodeBody(t, rec)["status"])
}

func TestMirrorDeleteCascade(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bob := env.seedUser("bob@example.com", false)
	m := env.seedMirror(alice, "Shared")
	require.NoError(t, env.Repo.AddMembership(context.Background(), bob.ID, m.ID))
	path := fmt.Sprintf("/api/mirrors/%d", m.ID)

	// two members: only the membership goes
	rec := env.request(http.MethodDelete, path, env.tokenFor(bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exists, err := env.Repo.MirrorExists(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, exists)

	// last member: mirror goes too
	rec = env.request(http.MethodDelete, path, env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "mirror deleted", decodeBody(t, rec)["message"])
	exists, err = env.Repo.MirrorExists(context.Background(), m.ID)
	require.NoError(t, err)
	require.False(t, exists)
	require.Len(t, env.Events.byType("mirror_deleted"), 1)
}

func TestMirrorDeleteOrphanIsRetrySafe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	m := env.seedMirror(alice, "Orphan")

	// simulate a crash that removed the membership but not the mirror
	_, err := env.Repo.RemoveMembership(context.Background(), alice.ID, m.ID)
	require.NoError(t, err)

	rec := env.request(http.MethodDelete, fmt.Sprintf("/api/mirrors/%d", m.ID), env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	exists, err := env.Repo.MirrorExists(context.Background(), m.ID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSharingScenario(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bob := env.seedUser("bob@example.com", false)
	env.seedUser("carol@example.com", false)
	carol, err := env.Repo.FindUserByEmail(context.Background(), "carol@example.com")
	require.NoError(t, err)

	// A creates "Living Room" and is auto-membered
	rec := env.request(http.MethodPost, "/api/mirrors", env.tokenFor(alice), map[string]string{
		"name": "Living Room",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	mirrorID := uint(decodeBody(t, rec)["mirror"].(map[string]interface{})["id"].(float64))
	path := fmt.Sprintf("/api/mirrors/%d", mirrorID)

	// A adds B by email
	rec = env.request(http.MethodPost, path+"/users", env.tokenFor(alice), map[string]string{
		"email": "bob@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// B can read it, C cannot
	rec = env.request(http.MethodGet, path, env.tokenFor(bob), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodGet, path, env.tokenFor(carol), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// A removes B; B loses access
	rec = env.request(http.MethodDelete, fmt.Sprintf("%s/users/%d", path, bob.ID), env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodGet, path, env.tokenFor(bob), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPermissionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bob := env.seedUser("bob@example.com", false)
	m := env.seedMirror(alice, "Hall")
	base := fmt.Sprintf("/api/mirrors/%d/users", m.ID)
	bearer := env.tokenFor(alice)

	// member listing
	rec := env.request(http.MethodGet, base, bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["users"], 1)

	// unknown email
	rec = env.request(http.MethodPost, base, bearer, map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// add bob, then adding again conflicts
	rec = env.request(http.MethodPost, base, bearer, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.request(http.MethodPost, base, bearer, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusConflict, rec.Code)

	// removing a non-member
	rec = env.request(http.MethodDelete, fmt.Sprintf("%s/%d", base, 9999), bearer, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// self-removal through the remove-other-user endpoint is a 400
	rec = env.request(http.MethodDelete, fmt.Sprintf("%s/%d", base, alice.ID), bearer, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// removing bob works
	rec = env.request(http.MethodDelete, fmt.Sprintf("%s/%d", base, bob.ID), bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleChange(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	bob := env.seedUser("bob@example.com", false)
	root := env.seedUser("root@example.com", true)
	m := env.seedMirror(alice, "Hall")
	path := fmt.Sprintf("/api/mirrors/%d/users/%d/role", m.ID, bob.ID)

	// mirror membership is not enough
	rec := env.request(http.MethodPatch, path, env.tokenFor(alice), map[string]string{"role": "admin"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	// invalid role value
	rec = env.request(http.MethodPatch, path, env.tokenFor(root), map[string]string{"role": "owner"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// global admin may promote
	rec = env.request(http.MethodPatch, path, env.tokenFor(root), map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)

	promoted, err := env.Repo.FindUserByID(context.Background(), bob.ID)
	require.NoError(t, err)
	require.True(t, promoted.IsAdmin)

	// unknown target user
	rec = env.request(http.MethodPatch, fmt.Sprintf("/api/mirrors/%d/users/9999/role", m.ID), env.tokenFor(root), map[string]string{"role": "user"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWidgets(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	cfg, err := mirrorcfg.Serialize(mirrorcfg.Document{
		Widgets: []mirrorcfg.Widget{
			{Name: "clock", Enabled: true},
			{Name: "weather", Enabled: false},
		},
	})
	require.NoError(t, err)
	m := &models.Mirror{Name: "Hall", Config: cfg}
	require.NoError(t, env.Repo.CreateMirror(context.Background(), m, alice.ID))
	bearer := env.tokenFor(alice)
	base := fmt.Sprintf("/api/mirrors/%d/widgets", m.ID)

	rec := env.request(http.MethodGet, base, bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["widgets"], 2)

	before, err := env.Repo.FindMirror(context.Background(), m.ID)
	require.NoError(t, err)

	// toggle flips exactly one widget
	rec = env.request(http.MethodPatch, base+"/weather/toggle", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	after, err := env.Repo.FindMirror(context.Background(), m.ID)
	require.NoError(t, err)
	doc, fellBack := mirrorcfg.Parse(after.Config)
	require.False(t, fellBack)
	weather, ok := doc.FindWidget("weather")
	require.True(t, ok)
	require.True(t, weather.Enabled)
	clock, ok := doc.FindWidget("clock")
	require.True(t, ok)
	require.True(t, clock.Enabled)
	require.False(t, after.LastUpdate.Before(before.LastUpdate))
	require.Len(t, env.Events.byType("widget_toggled"), 1)

	// unknown widget: 404 and config untouched
	rec = env.request(http.MethodPatch, base+"/missing/toggle", bearer, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	unchanged, err := env.Repo.FindMirror(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, after.Config, unchanged.Config)
}

func TestWidgetsCorruptConfig(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	m := &models.Mirror{Name: "Hall", Config: `{broken`}
	require.NoError(t, env.Repo.CreateMirror(context.Background(), m, alice.ID))

	// corrupt config degrades to an empty list instead of a 500
	rec := env.request(http.MethodGet, fmt.Sprintf("/api/mirrors/%d/widgets", m.ID), env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeBody(t, rec)["widgets"])
}

func TestSystemInfo(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser("alice@example.com", false)
	cfg, err := mirrorcfg.Serialize(mirrorcfg.Document{
		Status:  "online",
		Widgets: []mirrorcfg.Widget{{Name: "clock", Enabled: true}},
	})
	require.NoError(t, err)
	m := &models.Mirror{Name: "Hall", IPAddress: "10.0.0.5", Config: cfg}
	require.NoError(t, env.Repo.CreateMirror(context.Background(), m, alice.ID))

	rec := env.request(http.MethodGet, fmt.Sprintf("/api/mirrors/%d/system/info", m.ID), env.tokenFor(alice), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "Hall", body["name"])
	require.Equal(t, "online", body["status"])
	require.EqualValues(t, 1, body["widget_count"])
}

func TestAppTokenFlow(t *testing.T) {
	env := newTestEnv(t)
	root := env.seedUser("root@example.com", true)
	alice := env.seedUser("alice@example.com", false)

	// only admins mint app tokens
	rec := env.request(http.MethodPost, "/api/admin/apptoken", env.tokenFor(alice), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(http.MethodPost, "/api/admin/apptoken", env.tokenFor(root), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	appToken := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, appToken)

	// the device ping accepts app tokens only
	rec = env.request(http.MethodGet, "/api/system/ping", appToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodGet, "/api/system/ping", env.tokenFor(alice), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.request(http.MethodGet, "/api/system/ping", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
