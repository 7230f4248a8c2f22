package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"animeverse/internal/model"
)

// Event is an auth state change notification.
type Event string

// Auth events, named as GoTrue clients name them.
const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// OAuth providers offered to users.
var OAuthProviders = []string{"google", "github", "discord"}

// expiryMargin refreshes tokens slightly before they lapse.
const expiryMargin = 10 * time.Second

// SessionStorage persists the serialized session between restarts.
type SessionStorage interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	PutValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
}

// Listener receives auth events. sess is nil after sign out.
type Listener func(event Event, sess *model.Session)

// Auth is a GoTrue client bound to one persisted session.
type Auth struct {
	c           *Client
	store       SessionStorage
	key         string
	redirectURL string
	now         func() time.Time

	// op serializes every operation that reads or writes the stored session.
	op sync.Mutex

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// Auth returns a GoTrue client whose session lives in store under key.
// redirectURL, when set, is passed to confirmation and OAuth flows.
func (c *Client) Auth(store SessionStorage, key, redirectURL string) *Auth {
	return &Auth{
		c:           c,
		store:       store,
		key:         key,
		redirectURL: redirectURL,
		now:         time.Now,
		listeners:   make(map[int]Listener),
	}
}

// OnAuthStateChange registers fn and returns a function removing it.
// fn receives INITIAL_SESSION asynchronously right after registration.
func (a *Auth) OnAuthStateChange(ctx context.Context, fn Listener) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	go func() {
		sess, _ := a.GetSession(ctx)
		a.mu.Lock()
		_, ok := a.listeners[id]
		a.mu.Unlock()
		if ok {
			fn(EventInitialSession, sess)
		}
	}()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Auth) emit(event Event, sess *model.Session) {
	a.mu.Lock()
	fns := make([]Listener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(event, sess)
	}
}

// GetSession returns the persisted session, refreshing it when the access
// token has expired. It returns nil when nobody is signed in.
func (a *Auth) GetSession(ctx context.Context) (*model.Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	sess, err := a.loadSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !a.expired(sess) {
		return sess, nil
	}
	return a.refresh(ctx, sess.RefreshToken)
}

// SignUp registers a new account. The returned session is nil when the
// project requires email confirmation first.
func (a *Auth) SignUp(ctx context.Context, email, password, username string) (*model.Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	body := map[string]any{"email": email, "password": password}
	if username != "" {
		body["data"] = map[string]string{"username": username}
	}
	resp, err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		query:  a.redirectQuery(),
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, nil
	}
	return a.establish(ctx, &tr, EventSignedIn)
}

// SignInWithPassword exchanges credentials for a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	a.op.Lock()
	defer a.op.Unlock()
	return a.token(ctx, "password", map[string]string{"email": email, "password": password}, EventSignedIn)
}

// SignInWithOTP mails a one-time code or magic link to email.
func (a *Auth) SignInWithOTP(ctx context.Context, email string) error {
	_, err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/otp",
		query:  a.redirectQuery(),
		body:   map[string]any{"email": email, "create_user": true},
	})
	return err
}

// VerifyOTP exchanges an emailed code for a session.
func (a *Auth) VerifyOTP(ctx context.Context, email, code string) (*model.Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	resp, err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body:   map[string]string{"type": "email", "email": email, "token": code},
	})
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return a.establish(ctx, &tr, EventSignedIn)
}

// Resend sends the signup confirmation to email again.
func (a *Auth) Resend(ctx context.Context, email string) error {
	_, err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/resend",
		body:   map[string]string{"type": "signup", "email": email},
	})
	return err
}

// OAuthURL returns the authorize URL the user must open to sign in with provider.
func (a *Auth) OAuthURL(provider string) (string, error) {
	known := false
	for _, p := range OAuthProviders {
		known = known || p == provider
	}
	if !known {
		return "", fmt.Errorf("unsupported oauth provider %q", provider)
	}
	q := a.redirectQuery()
	if q == nil {
		q = url.Values{}
	}
	q.Set("provider", provider)
	return a.c.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// SignOut revokes the session. Local state is removed only once the
// provider accepted the request or already forgot the session.
func (a *Auth) SignOut(ctx context.Context) error {
	a.op.Lock()
	defer a.op.Unlock()

	sess, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess != nil {
		_, err := a.c.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			token:  sess.AccessToken,
		})
		var apiErr *APIError
		if err != nil && !(errors.As(err, &apiErr) && sessionGone(apiErr.Status)) {
			return err
		}
	}
	if err := a.store.DeleteValue(ctx, a.key); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	a.emit(EventSignedOut, nil)
	return nil
}

// RefreshSession trades the stored refresh token for a new session.
func (a *Auth) RefreshSession(ctx context.Context) (*model.Session, error) {
	a.op.Lock()
	defer a.op.Unlock()

	sess, err := a.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	return a.refresh(ctx, sess.RefreshToken)
}

func (a *Auth) refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	return a.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken}, EventTokenRefreshed)
}

func (a *Auth) token(ctx context.Context, grant string, body map[string]string, event Event) (*model.Session, error) {
	resp, err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	})
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return a.establish(ctx, &tr, event)
}

// establish persists the session carried by tr and announces it.
func (a *Auth) establish(ctx context.Context, tr *tokenResponse, event Event) (*model.Session, error) {
	if tr.AccessToken == "" {
		return nil, errors.New("response carries no session")
	}
	sess := tr.session(a.now())
	stored, err := json.Marshal(storedSession{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    sess.TokenType,
		ExpiresAt:    unixOrZero(sess.ExpiresAt),
		User:         tr.User,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := a.store.PutValue(ctx, a.key, stored); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	a.emit(event, sess)
	return sess, nil
}

func (a *Auth) loadSession(ctx context.Context) (*model.Session, error) {
	raw, ok, err := a.store.GetValue(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var s storedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode stored session: %w", err)
	}
	sess := &model.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		User:         s.User.model(),
	}
	if s.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return sess, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// expired reads exp from the unverified access token, falling back to the
// stored expiry.
func (a *Auth) expired(sess *model.Session) bool {
	exp := sess.ExpiresAt
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if exp.IsZero() {
		return false
	}
	return !a.now().Add(expiryMargin).Before(exp)
}

func (a *Auth) redirectQuery() url.Values {
	if a.redirectURL == "" {
		return nil
	}
	return url.Values{"redirect_to": {a.redirectURL}}
}

func sessionGone(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound
}

type userPayload struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

func (u userPayload) model() model.User {
	name, _ := u.UserMetadata["username"].(string)
	return model.User{ID: u.ID, Email: u.Email, Username: name}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         userPayload `json:"user"`
}

func (tr *tokenResponse) session(now time.Time) *model.Session {
	var exp time.Time
	switch {
	case tr.ExpiresAt > 0:
		exp = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		exp = now.Add(time.Duration(tr.ExpiresIn) * time.Second).UTC().Truncate(time.Second)
	}
	return &model.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    exp,
		User:         tr.User.model(),
	}
}

type storedSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresAt    int64       `json:"expires_at"`
	User         userPayload `json:"user"`
}
