// Package session tracks who is signed in for each chat.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"animeverse/internal/model"
	"animeverse/internal/supabase"
)

// ErrNotSignedIn is returned by operations that need a signed-in user.
var ErrNotSignedIn = errors.New("no user logged in")

// State is the lifecycle of a Context.
type State int

// Context states.
const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// Provider is the identity backend.
type Provider interface {
	OnAuthStateChange(ctx context.Context, fn supabase.Listener) (unsubscribe func())
	GetSession(ctx context.Context) (*model.Session, error)
	SignUp(ctx context.Context, email, password, username string) (*model.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignInWithOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*model.Session, error)
	Resend(ctx context.Context, email string) error
	OAuthURL(provider string) (string, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*model.Session, error)
}

// ProfileUpdater writes profile rows.
type ProfileUpdater interface {
	UpsertProfile(ctx context.Context, profile model.Profile) error
}

// ProfilesFunc returns a ProfileUpdater authorized with an access token.
type ProfilesFunc func(accessToken string) ProfileUpdater

// AuthError carries the provider's message for a failed operation.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authError(op string, err error) error {
	msg := err.Error()
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	return &AuthError{Op: op, Message: msg, Err: err}
}

// Context holds the identity state of one chat.
type Context struct {
	provider Provider
	profiles ProfilesFunc
	log      *slog.Logger

	mu      sync.RWMutex
	state   State
	session *model.Session
	// gen counts state changes; results started at an older gen are dropped.
	gen         uint64
	unsubscribe func()
	ready       chan struct{}
	readyOnce   sync.Once
}

// New creates a Context in the Uninitialized state.
func New(provider Provider, profiles ProfilesFunc, log *slog.Logger) *Context {
	return &Context{
		provider: provider,
		profiles: profiles,
		log:      log,
		ready:    make(chan struct{}),
	}
}

// Start subscribes to auth events and looks up the existing session.
// The initial lookup and INITIAL_SESSION only apply while nothing newer
// has set the state. Calling Start again has no effect.
func (c *Context) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != Uninitialized {
		c.mu.Unlock()
		return
	}
	c.state = Loading
	startGen := c.gen
	c.mu.Unlock()

	unsubscribe := c.provider.OnAuthStateChange(ctx, func(event supabase.Event, sess *model.Session) {
		c.log.Debug("auth state change", "event", event, "signed_in", sess != nil)
		if event == supabase.EventInitialSession {
			c.apply(startGen, sess)
			return
		}
		c.set(sess)
	})

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	go func() {
		sess, err := c.provider.GetSession(ctx)
		if err != nil {
			c.log.Warn("get session", "error", err)
		}
		c.apply(startGen, sess)
	}()
}

// Stop removes the auth event subscription.
func (c *Context) Stop() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Wait blocks until the first session lookup resolved or ctx is done.
func (c *Context) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// set records sess unconditionally.
func (c *Context) set(sess *model.Session) {
	c.mu.Lock()
	c.store(sess)
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
}

// apply records sess only if the state has not changed since gen.
func (c *Context) apply(gen uint64, sess *model.Session) bool {
	c.mu.Lock()
	ok := c.gen == gen
	if ok {
		c.store(sess)
	}
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
	return ok
}

func (c *Context) store(sess *model.Session) {
	c.gen++
	c.session = sess
	if sess != nil {
		c.state = Authenticated
	} else {
		c.state = Anonymous
	}
}

func (c *Context) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// State returns the current state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Session returns the current session, or nil.
func (c *Context) Session() *model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// User returns the signed-in user, or nil.
func (c *Context) User() *model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	u := c.session.User
	return &u
}

// SignUp registers an account. It returns true when a session was issued
// right away and false when the user must confirm the email first.
func (c *Context) SignUp(ctx context.Context, email, password, username string) (bool, error) {
	sess, err := c.provider.SignUp(ctx, email, password, username)
	if err != nil {
		return false, authError("sign up", err)
	}
	if sess != nil {
		c.set(sess)
	}
	return sess != nil, nil
}

// SignIn signs in with email and password.
func (c *Context) SignIn(ctx context.Context, email, password string) error {
	sess, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return authError("sign in", err)
	}
	c.set(sess)
	return nil
}

// SignInWithOTP mails a one-time code to email.
func (c *Context) SignInWithOTP(ctx context.Context, email string) error {
	if err := c.provider.SignInWithOTP(ctx, email); err != nil {
		return authError("send code", err)
	}
	return nil
}

// VerifyOTP completes a one-time code sign in.
func (c *Context) VerifyOTP(ctx context.Context, email, code string) error {
	sess, err := c.provider.VerifyOTP(ctx, email, code)
	if err != nil {
		return authError("verify code", err)
	}
	c.set(sess)
	return nil
}

// ResendOTP sends the signup confirmation again.
func (c *Context) ResendOTP(ctx context.Context, email string) error {
	if err := c.provider.Resend(ctx, email); err != nil {
		return authError("resend code", err)
	}
	return nil
}

// SignInWithOAuth returns the URL the user opens to finish signing in.
func (c *Context) SignInWithOAuth(provider string) (string, error) {
	u, err := c.provider.OAuthURL(provider)
	if err != nil {
		return "", authError("oauth", err)
	}
	return u, nil
}

// SignOut ends the session. Local state is cleared only on success.
func (c *Context) SignOut(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		return authError("sign out", err)
	}
	c.set(nil)
	return nil
}

// RefreshSession renews the access token. A sign out or sign in that lands
// while the refresh is in flight wins over the refreshed session.
func (c *Context) RefreshSession(ctx context.Context) error {
	gen := c.generation()
	sess, err := c.provider.RefreshSession(ctx)
	if err != nil {
		return authError("refresh session", err)
	}
	c.apply(gen, sess)
	return nil
}

// UpdateProfile writes the set fields of updates to the signed-in user's profile.
func (c *Context) UpdateProfile(ctx context.Context, updates model.Profile) error {
	sess := c.Session()
	if sess == nil {
		return ErrNotSignedIn
	}
	updates.ID = sess.User.ID
	if err := c.profiles(sess.AccessToken).UpsertProfile(ctx, updates); err != nil {
		return authError("update profile", err)
	}
	return nil
}
