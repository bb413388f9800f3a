// Package session gates trading on named market-hours windows and a static
// news-blackout hour set, both expressed in UTC.
package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Window is a trading session as a half-open integer-hour range [Start, End)
// in UTC. Overlapping windows behave as a union.
type Window struct {
	Name  string
	Start int
	End   int
}

// Contains reports whether the UTC hour falls inside the window.
func (w Window) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// Gate combines session windows with news-blackout hours. The blackout set is
// a static placeholder policy, not a live economic calendar.
type Gate struct {
	windows  []Window
	blackout map[int]struct{}
}

// NewGate builds a gate. With no windows configured every hour counts as in
// session, so the gate only enforces the blackout set.
func NewGate(windows []Window, blackoutHours []int) *Gate {
	blackout := make(map[int]struct{}, len(blackoutHours))
	for _, h := range blackoutHours {
		blackout[h] = struct{}{}
	}
	return &Gate{windows: windows, blackout: blackout}
}

// Tradeable reports whether trading is allowed at t: inside some session
// window and not inside a news blackout hour.
func (g *Gate) Tradeable(t time.Time) bool {
	hour := t.UTC().Hour()
	if _, blocked := g.blackout[hour]; blocked {
		return false
	}
	return g.inAnySession(hour)
}

func (g *Gate) inAnySession(hour int) bool {
	if len(g.windows) == 0 {
		return true
	}
	for _, w := range g.windows {
		if w.Contains(hour) {
			return true
		}
	}
	return false
}

// String describes the gate configuration for status reporting.
func (g *Gate) String() string {
	if len(g.windows) == 0 && len(g.blackout) == 0 {
		return "always open"
	}

	parts := make([]string, 0, len(g.windows))
	for _, w := range g.windows {
		name := w.Name
		if name == "" {
			name = "session"
		}
		parts = append(parts, fmt.Sprintf("%s %02d-%02d UTC", name, w.Start, w.End))
	}

	hours := make([]int, 0, len(g.blackout))
	for h := range g.blackout {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	if len(hours) > 0 {
		strs := make([]string, len(hours))
		for i, h := range hours {
			strs[i] = strconv.Itoa(h)
		}
		parts = append(parts, "blackout "+strings.Join(strs, ","))
	}

	return strings.Join(parts, "; ")
}

// ParseWindows parses a comma-separated list of "name:start-end" (or plain
// "start-end") hour ranges, e.g. "london:7-16,newyork:12-21".
func ParseWindows(spec string) ([]Window, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var windows []Window
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		name := ""
		if idx := strings.Index(part, ":"); idx >= 0 {
			name = part[:idx]
			part = part[idx+1:]
		}

		bounds := strings.Split(part, "-")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid session range %q", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid session start %q", bounds[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid session end %q", bounds[1])
		}
		if start < 0 || start > 23 || end < 1 || end > 24 || start >= end {
			return nil, fmt.Errorf("session range %d-%d out of bounds", start, end)
		}

		windows = append(windows, Window{Name: name, Start: start, End: end})
	}

	return windows, nil
}

// ParseBlackoutHours parses a comma-separated list of UTC hours, e.g. "12,13".
func ParseBlackoutHours(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var hours []int
	for _, part := range strings.Split(spec, ",") {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("invalid blackout hour %q", part)
		}
		hours = append(hours, h)
	}

	return hours, nil
}
