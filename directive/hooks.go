package directive

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	// Hook is a built-in function reachable from a {% name(args) %} marker
	Hook func(args []string) (string, error)

	// Hooks maps hook names to their implementation
	Hooks map[string]Hook

	unknownHook string
)

// Error implements the error interface
func (u unknownHook) Error() string {
	return fmt.Sprintf("unknown hook %s", string(u))
}

var relativeTimePattern = regexp.MustCompile(`^(\d+)\s+(second|minute|hour|day|week|month|year)s?\s+(ago|from now)$`)

// DefaultHooks returns the built-in hooks using now as their clock
func DefaultHooks(now func() time.Time) Hooks {
	if now == nil {
		now = time.Now
	}

	return Hooks{
		"now": func(args []string) (string, error) {
			return now().UTC().Format(time.RFC3339), nil
		},
		"timestamp": func(args []string) (string, error) {
			return strconv.FormatInt(now().Unix(), 10), nil
		},
		"uuid": func(args []string) (string, error) {
			return uuid.New().String(), nil
		},
		"randomInt": func(args []string) (string, error) {
			if len(args) != 2 {
				return "", errors.New("randomInt takes a min and a max")
			}
			min, err := strconv.Atoi(args[0])
			if err != nil {
				return "", fmt.Errorf("randomInt min: %w", err)
			}
			max, err := strconv.Atoi(args[1])
			if err != nil {
				return "", fmt.Errorf("randomInt max: %w", err)
			}
			if max < min {
				return "", fmt.Errorf("randomInt max %d is below min %d", max, min)
			}
			return strconv.Itoa(min + rand.Intn(max-min+1)), nil
		},
		"relativeTime": func(args []string) (string, error) {
			if len(args) != 1 {
				return "", errors.New("relativeTime takes a single description")
			}
			t, err := RelativeTime(now(), args[0])
			if err != nil {
				return "", err
			}
			return t.UTC().Format(time.RFC3339), nil
		},
	}
}

// Call runs the hook name with args
func (h Hooks) Call(name string, args []string) (string, error) {
	hook, ok := h[name]
	if !ok {
		return "", unknownHook(name)
	}

	return hook(args)
}

// RelativeTime resolves descriptions such as "10 days ago" or "3 hours from now" against from
func RelativeTime(from time.Time, description string) (time.Time, error) {
	description = strings.ToLower(strings.Join(strings.Fields(description), " "))
	if description == "now" {
		return from, nil
	}

	m := relativeTimePattern.FindStringSubmatch(description)
	if m == nil {
		return time.Time{}, fmt.Errorf("cannot understand relative time %q", description)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, err
	}
	if m[3] == "ago" {
		n = -n
	}

	switch m[2] {
	case "second":
		return from.Add(time.Duration(n) * time.Second), nil
	case "minute":
		return from.Add(time.Duration(n) * time.Minute), nil
	case "hour":
		return from.Add(time.Duration(n) * time.Hour), nil
	case "day":
		return from.AddDate(0, 0, n), nil
	case "week":
		return from.AddDate(0, 0, 7*n), nil
	case "month":
		return from.AddDate(0, n, 0), nil
	default:
		return from.AddDate(n, 0, 0), nil
	}
}

// splitArgs turns `"10 days ago", 3` into its unquoted arguments
func splitArgs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		args = append(args, strings.Trim(strings.TrimSpace(p), `"'`))
	}

	return args
}
