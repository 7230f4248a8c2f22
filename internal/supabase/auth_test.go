package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"animeverse/internal/model"
)

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{data: make(map[string][]byte)} }

func (m *memStorage) GetValue(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStorage) PutValue(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStorage) DeleteValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStorage) has(key string) bool {
	_, ok, _ := m.GetValue(context.Background(), key)
	return ok
}

type recordedEvent struct {
	Event Event
	User  string
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *eventLog) listener(event Event, sess *model.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	user := ""
	if sess != nil {
		user = sess.User.ID
	}
	l.events = append(l.events, recordedEvent{Event: event, User: user})
}

func (l *eventLog) snapshot() []recordedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedEvent(nil), l.events...)
}

func accessToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// gotrue is a minimal GoTrue stand-in.
type gotrue struct {
	t      *testing.T
	access string

	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
	logout   int
	// hold keeps refresh_token grants open.
	hold time.Duration
}

func (g *gotrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &body)

	g.mu.Lock()
	g.requests = append(g.requests, r.URL.Path+"?"+r.URL.RawQuery)
	g.bodies = append(g.bodies, body)
	logout, hold := g.logout, g.hold
	g.mu.Unlock()

	token := func(refresh string) {
		_, _ = fmt.Fprintf(w, `{"access_token":%q,"refresh_token":%q,"token_type":"bearer","expires_in":3600,"expires_at":%d,
			"user":{"id":"u1","email":"spike@example.com","user_metadata":{"username":"spike"}}}`,
			g.access, refresh, time.Now().Add(time.Hour).Unix())
	}

	switch r.URL.Path {
	case "/auth/v1/token":
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "correct" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
				return
			}
			token("refresh-1")
		case "refresh_token":
			time.Sleep(hold)
			token("refresh-2")
		}
	case "/auth/v1/verify":
		token("refresh-otp")
	case "/auth/v1/signup":
		_, _ = io.WriteString(w, `{"id":"u1","email":"spike@example.com","confirmation_sent_at":"2025-01-01T00:00:00Z"}`)
	case "/auth/v1/otp", "/auth/v1/resend":
		_, _ = io.WriteString(w, `{}`)
	case "/auth/v1/logout":
		if logout != 0 {
			w.WriteHeader(logout)
			_, _ = io.WriteString(w, `{"code":500,"error_code":"unexpected_failure","msg":"logout failed"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		g.t.Errorf("unexpected path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *gotrue) requested() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requests...)
}

func (g *gotrue) body(i int) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bodies[i]
}

func (g *gotrue) allBodies() []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]any(nil), g.bodies...)
}

func (g *gotrue) failLogout(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logout = status
}

func (g *gotrue) holdRefresh(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hold = d
}

func newTestAuth(t *testing.T, access string) (*Auth, *gotrue, *memStorage) {
	t.Helper()
	g := &gotrue{t: t, access: access}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	store := newMemStorage()
	a := New(srv.Client(), srv.URL, testKey).Auth(store, "session:1", "https://t.me/animeverse_bot")
	return a, g, store
}

func TestSignInWithPassword(t *testing.T) {
	ctx := context.Background()
	a, g, store := newTestAuth(t, accessToken(t, time.Now().Add(time.Hour)))
	events := &eventLog{}
	a.listeners[99] = events.listener

	sess, err := a.SignInWithPassword(ctx, "spike@example.com", "correct")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	wantUser := model.User{ID: "u1", Email: "spike@example.com", Username: "spike"}
	if diff := cmp.Diff(wantUser, sess.User); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
	if !store.has("session:1") {
		t.Error("session not persisted")
	}
	if diff := cmp.Diff([]recordedEvent{{Event: EventSignedIn, User: "u1"}}, events.snapshot()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/auth/v1/token?grant_type=password"}, g.requested()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}

	got, err := a.GetSession(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if diff := cmp.Diff(sess, got); diff != "" {
		t.Errorf("GetSession() mismatch (-want +got):\n%s", diff)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	a, _, store := newTestAuth(t, "x")

	_, err := a.SignInWithPassword(context.Background(), "spike@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if diff := cmp.Diff("Invalid login credentials", apiErr.Message); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
	if store.has("session:1") {
		t.Error("failed sign in stored a session")
	}
}

func TestGetSessionRefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	fresh := accessToken(t, time.Now().Add(time.Hour))
	a, g, store := newTestAuth(t, fresh)

	stale, _ := json.Marshal(storedSession{
		AccessToken:  accessToken(t, time.Now().Add(-time.Minute)),
		RefreshToken: "refresh-0",
		// The stored expiry still looks valid; the token claim wins.
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		User:      userPayload{ID: "u1"},
	})
	_ = store.PutValue(ctx, "session:1", stale)

	events := &eventLog{}
	a.listeners[1] = events.listener

	sess, err := a.GetSession(ctx)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if diff := cmp.Diff(fresh, sess.AccessToken); diff != "" {
		t.Errorf("access token mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/auth/v1/token?grant_type=refresh_token"}, g.requested()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"refresh_token": "refresh-0"}, g.body(0)); diff != "" {
		t.Errorf("refresh body mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]recordedEvent{{Event: EventTokenRefreshed, User: "u1"}}, events.snapshot()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentGetSessionRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	fresh := accessToken(t, time.Now().Add(time.Hour))
	a, g, store := newTestAuth(t, fresh)
	g.holdRefresh(20 * time.Millisecond)

	stale, _ := json.Marshal(storedSession{
		AccessToken:  accessToken(t, time.Now().Add(-time.Minute)),
		RefreshToken: "refresh-0",
		User:         userPayload{ID: "u1"},
	})
	_ = store.PutValue(ctx, "session:1", stale)

	var wg sync.WaitGroup
	tokens := make([]string, 4)
	for i := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := a.GetSession(ctx)
			if err != nil {
				t.Errorf("get session: %v", err)
				return
			}
			tokens[i] = sess.AccessToken
		}()
	}
	wg.Wait()

	if diff := cmp.Diff([]string{"/auth/v1/token?grant_type=refresh_token"}, g.requested()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{fresh, fresh, fresh, fresh}, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestSignOutDuringRefreshStaysSignedOut(t *testing.T) {
	ctx := context.Background()
	a, g, store := newTestAuth(t, accessToken(t, time.Now().Add(time.Hour)))
	if _, err := a.SignInWithPassword(ctx, "spike@example.com", "correct"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	g.holdRefresh(50 * time.Millisecond)
	events := &eventLog{}
	a.listeners[1] = events.listener

	refreshed := make(chan error, 1)
	go func() {
		_, err := a.RefreshSession(ctx)
		refreshed <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := a.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if err := <-refreshed; err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if store.has("session:1") {
		t.Error("a refresh finishing around sign out restored the session")
	}
	want := []recordedEvent{{Event: EventTokenRefreshed, User: "u1"}, {Event: EventSignedOut}}
	if diff := cmp.Diff(want, events.snapshot()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if sess, err := a.GetSession(ctx); err != nil || sess != nil {
		t.Errorf("GetSession() = %v, %v; want nil, nil", sess, err)
	}
}

func TestGetSessionWithoutSession(t *testing.T) {
	a, g, _ := newTestAuth(t, "x")
	sess, err := a.GetSession(context.Background())
	if err != nil || sess != nil {
		t.Fatalf("GetSession() = %v, %v; want nil, nil", sess, err)
	}
	if len(g.requested()) != 0 {
		t.Error("expected no network traffic")
	}
}

func TestRefreshSessionWithoutSession(t *testing.T) {
	a, _, _ := newTestAuth(t, "x")
	if _, err := a.RefreshSession(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantErr     bool
		wantStored  bool
		wantSignOut bool
	}{
		{name: "success", wantSignOut: true},
		{name: "session already gone", status: http.StatusUnauthorized, wantSignOut: true},
		{name: "provider failure keeps session", status: http.StatusInternalServerError, wantErr: true, wantStored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a, g, store := newTestAuth(t, accessToken(t, time.Now().Add(time.Hour)))
			if _, err := a.SignInWithPassword(ctx, "spike@example.com", "correct"); err != nil {
				t.Fatalf("sign in: %v", err)
			}
			g.failLogout(tt.status)
			events := &eventLog{}
			a.listeners[7] = events.listener

			err := a.SignOut(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SignOut() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.wantStored, store.has("session:1")); diff != "" {
				t.Errorf("stored mismatch (-want +got):\n%s", diff)
			}
			var want []recordedEvent
			if tt.wantSignOut {
				want = []recordedEvent{{Event: EventSignedOut}}
			}
			if diff := cmp.Diff(want, events.snapshot()); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSignUpAwaitingConfirmation(t *testing.T) {
	a, g, store := newTestAuth(t, "x")

	sess, err := a.SignUp(context.Background(), "spike@example.com", "secret", "spike")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if sess != nil {
		t.Errorf("expected no session before confirmation, got %+v", sess)
	}
	if store.has("session:1") {
		t.Error("unconfirmed sign up stored a session")
	}
	wantBody := map[string]any{
		"email":    "spike@example.com",
		"password": "secret",
		"data":     map[string]any{"username": "spike"},
	}
	if diff := cmp.Diff(wantBody, g.body(0)); diff != "" {
		t.Errorf("signup body mismatch (-want +got):\n%s", diff)
	}
	want := "/auth/v1/signup?redirect_to=" + url.QueryEscape("https://t.me/animeverse_bot")
	if diff := cmp.Diff([]string{want}, g.requested()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestOTPFlow(t *testing.T) {
	ctx := context.Background()
	a, g, store := newTestAuth(t, accessToken(t, time.Now().Add(time.Hour)))

	if err := a.SignInWithOTP(ctx, "spike@example.com"); err != nil {
		t.Fatalf("otp: %v", err)
	}
	if err := a.Resend(ctx, "spike@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	sess, err := a.VerifyOTP(ctx, "spike@example.com", "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if diff := cmp.Diff("refresh-otp", sess.RefreshToken); diff != "" {
		t.Errorf("refresh token mismatch (-want +got):\n%s", diff)
	}
	if !store.has("session:1") {
		t.Error("verified session not persisted")
	}

	wantBodies := []map[string]any{
		{"email": "spike@example.com", "create_user": true},
		{"type": "signup", "email": "spike@example.com"},
		{"type": "email", "email": "spike@example.com", "token": "123456"},
	}
	if diff := cmp.Diff(wantBodies, g.allBodies()); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestOAuthURL(t *testing.T) {
	a, g, _ := newTestAuth(t, "x")

	got, err := a.OAuthURL("github")
	if err != nil {
		t.Fatalf("oauth url: %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if diff := cmp.Diff("/auth/v1/authorize", u.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	wantQuery := url.Values{"provider": {"github"}, "redirect_to": {"https://t.me/animeverse_bot"}}
	if diff := cmp.Diff(wantQuery, u.Query()); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	if len(g.requested()) != 0 {
		t.Error("building the URL must not call the provider")
	}

	if _, err := a.OAuthURL("myspace"); err == nil {
		t.Error("expected error for an unknown provider")
	}
}

func TestOnAuthStateChangeDeliversInitialSession(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAuth(t, accessToken(t, time.Now().Add(time.Hour)))
	if _, err := a.SignInWithPassword(ctx, "spike@example.com", "correct"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	got := make(chan recordedEvent, 1)
	unsubscribe := a.OnAuthStateChange(ctx, func(event Event, sess *model.Session) {
		user := ""
		if sess != nil {
			user = sess.User.ID
		}
		got <- recordedEvent{Event: event, User: user}
	})
	defer unsubscribe()

	select {
	case ev := <-got:
		if diff := cmp.Diff(recordedEvent{Event: EventInitialSession, User: "u1"}, ev); diff != "" {
			t.Errorf("event mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no INITIAL_SESSION event")
	}
}
