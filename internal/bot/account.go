package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"animeverse/internal/model"
	"animeverse/internal/session"
	"animeverse/internal/supabase"
)

// sessionWait bounds how long a command waits for the first session lookup.
const sessionWait = 5 * time.Second

// identity returns the chat's identity context once its initial state is known.
func (b *Bot) identity(ctx context.Context, chatID int64) *session.Context {
	sc := b.deps.Sessions.Get(ctx, chatID)
	waitCtx, cancel := context.WithTimeout(ctx, sessionWait)
	defer cancel()
	if err := sc.Wait(waitCtx); err != nil {
		b.log.Warn("session not ready", "chat_id", chatID, "error", err)
	}
	return sc
}

// signedIn returns the chat's session, or replies with a hint and returns nil.
func (b *Bot) signedIn(ctx context.Context, chatID int64) *model.Session {
	sess := b.identity(ctx, chatID).Session()
	if sess == nil {
		b.reply(ctx, chatID, notSignedInText)
	}
	return sess
}

func (b *Bot) handleSignUp(ctx context.Context, chatID int64, args string) {
	creds, err := ParseCredentials(args, true)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /signup <email> <password> [username]")
		return
	}
	in, err := b.identity(ctx, chatID).SignUp(ctx, creds.Email, creds.Password, creds.Username)
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	if !in {
		b.reply(ctx, chatID, "Check your email to confirm your account!\nThen /signin, or /verify <email> <code> if you received a code.")
		return
	}
	b.record(ctx, chatID, "Signed up", model.ActivityGeneral)
	b.reply(ctx, chatID, "Welcome to AnimeVerse! You are signed in.")
}

func (b *Bot) handleSignIn(ctx context.Context, chatID int64, args string) {
	creds, err := ParseCredentials(args, false)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /signin <email> <password>")
		return
	}
	if err := b.identity(ctx, chatID).SignIn(ctx, creds.Email, creds.Password); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.record(ctx, chatID, "Signed in", model.ActivityGeneral)
	b.reply(ctx, chatID, "Welcome back! Successfully signed in.")
}

func (b *Bot) handleOTP(ctx context.Context, chatID int64, args string) {
	email, err := ParseEmail(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /otp <email>")
		return
	}
	if err := b.identity(ctx, chatID).SignInWithOTP(ctx, email); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Check your email. We've sent a sign-in code to %s.\nSend it with /verify %s <code>", email, email))
}

func (b *Bot) handleVerify(ctx context.Context, chatID int64, args string) {
	email, code, err := ParseVerifyArgs(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /verify <email> <code>")
		return
	}
	if err := b.identity(ctx, chatID).VerifyOTP(ctx, email, code); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.record(ctx, chatID, "Signed in with a code", model.ActivityGeneral)
	b.reply(ctx, chatID, "Welcome! Your email has been verified successfully.")
}

func (b *Bot) handleResend(ctx context.Context, chatID int64, args string) {
	email, err := ParseEmail(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /resend <email>")
		return
	}
	if err := b.identity(ctx, chatID).ResendOTP(ctx, email); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.reply(ctx, chatID, "Code resent. Check your email for the new verification code.")
}

func (b *Bot) handleOAuth(ctx context.Context, chatID int64, args string) {
	provider := strings.ToLower(strings.TrimSpace(args))
	if provider == "" {
		b.reply(ctx, chatID, fmt.Sprintf("Usage: /oauth <%s>", strings.Join(supabase.OAuthProviders, "|")))
		return
	}
	u, err := b.identity(ctx, chatID).SignInWithOAuth(provider)
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Open this link to sign in with %s:\n%s", provider, u))
}

func (b *Bot) handleSignOut(ctx context.Context, chatID int64) {
	sc := b.identity(ctx, chatID)
	if sc.Session() == nil {
		b.reply(ctx, chatID, "You are not signed in.")
		return
	}
	if err := sc.SignOut(ctx); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	if err := b.deps.Drafts.Discard(ctx, chatID); err != nil {
		b.log.Warn("discard draft", "chat_id", chatID, "error", err)
	}
	b.record(ctx, chatID, "Logged out", model.ActivityGeneral)
	b.reply(ctx, chatID, "Signed out. See you next time!")
}

func (b *Bot) handleWhoAmI(ctx context.Context, chatID int64) {
	sc := b.identity(ctx, chatID)
	b.reply(ctx, chatID, FormatIdentity(sc.State(), sc.User()))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64) {
	if err := b.identity(ctx, chatID).RefreshSession(ctx); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.reply(ctx, chatID, "Session refreshed.")
}

func (b *Bot) handleUsername(ctx context.Context, chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.reply(ctx, chatID, "Usage: /username <name>")
		return
	}
	if err := b.identity(ctx, chatID).UpdateProfile(ctx, model.Profile{Username: &name}); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Profile updated. Your username is now %q.", name))
}
