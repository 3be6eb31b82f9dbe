package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatChangeID returns a change ID like "2025-01-001" for the seq-th change
// effective in the month of date.
func FormatChangeID(date time.Time, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", date.Year(), int(date.Month()), seq)
}

// FormatLegID returns a delta ID like "2025-01-001a" (delta 0='a', 1='b', etc.).
// Changes with more than 26 deltas continue with "aa", "ab", ...
func FormatLegID(changeID string, leg int) string {
	suffix := ""
	for n := leg; ; n = n/26 - 1 {
		suffix = string(rune('a'+n%26)) + suffix
		if n < 26 {
			break
		}
	}
	return changeID + suffix
}

// ParseChangeID parses "2025-01-001" into year, month, seq.
func ParseChangeID(id string) (year, month, seq int, err error) {
	base := ChangeGroup(id)

	parts := strings.SplitN(base, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid change ID format: %q", id)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in change ID %q: %w", id, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in change ID %q: %w", id, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("month %d out of range in change ID %q", month, id)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in change ID %q: %w", id, err)
	}

	return year, month, seq, nil
}

// ChangeGroup strips the delta suffix from a leg ID.
// "2025-01-001a" -> "2025-01-001"
func ChangeGroup(legID string) string {
	i := len(legID)
	for i > 0 && legID[i-1] >= 'a' && legID[i-1] <= 'z' {
		i--
	}
	return legID[:i]
}

// Sequencer hands out per-month sequence numbers in call order.
type Sequencer struct {
	next map[string]int
}

// NewSequencer returns a Sequencer starting every month at 1.
func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[string]int)}
}

// Next returns the next change ID for date's month.
func (s *Sequencer) Next(date time.Time) string {
	key := date.Format("2006-01")
	s.next[key]++
	return FormatChangeID(date, s.next[key])
}

// Reserve marks an externally supplied ID as taken so generated IDs skip it.
func (s *Sequencer) Reserve(changeID string) {
	year, month, seq, err := ParseChangeID(changeID)
	if err != nil {
		return
	}
	key := fmt.Sprintf("%04d-%02d", year, month)
	if seq > s.next[key] {
		s.next[key] = seq
	}
}
