package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Credentials holds the parsed arguments of /signup and /signin.
type Credentials struct {
	Email    string
	Password string
	Username string
}

// ParsePage parses an optional page number. An empty argument means page 1.
func ParsePage(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q", s)
	}
	return page, nil
}

// ParseID extracts a positive catalog id from a command argument string.
func ParseID(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("anime ID is required")
	}
	id, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid anime ID %q", s)
	}
	return id, nil
}

// ParseSeasonArgs parses "<year> <season>".
func ParseSeasonArgs(args string) (int, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("usage: /season <year> <winter|spring|summer|fall>")
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1917 || year > 2100 {
		return 0, "", fmt.Errorf("invalid year %q", parts[0])
	}
	season := strings.ToLower(parts[1])
	switch season {
	case "winter", "spring", "summer", "fall":
	default:
		return 0, "", fmt.Errorf("invalid season %q, use: winter, spring, summer, fall", parts[1])
	}
	return year, season, nil
}

// ParseEmail parses a single email address argument.
func ParseEmail(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) != 1 || !looksLikeEmail(parts[0]) {
		return "", fmt.Errorf("an email address is required")
	}
	return parts[0], nil
}

// ParseCredentials parses "<email> <password>", followed by an optional
// username when withUsername is set.
func ParseCredentials(args string, withUsername bool) (Credentials, error) {
	parts := strings.Fields(args)
	maxParts := 2
	if withUsername {
		maxParts = 3
	}
	if len(parts) < 2 || len(parts) > maxParts {
		return Credentials{}, fmt.Errorf("usage: <email> <password>")
	}
	if !looksLikeEmail(parts[0]) {
		return Credentials{}, fmt.Errorf("invalid email %q", parts[0])
	}
	c := Credentials{Email: parts[0], Password: parts[1]}
	if len(parts) == 3 {
		c.Username = parts[2]
	}
	return c, nil
}

// ParseVerifyArgs parses "<email> <code>".
func ParseVerifyArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("usage: /verify <email> <code>")
	}
	if !looksLikeEmail(parts[0]) {
		return "", "", fmt.Errorf("invalid email %q", parts[0])
	}
	return parts[0], parts[1], nil
}

func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.Contains(s[at+1:], "@")
}
