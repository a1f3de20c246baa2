package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RetentionPolicy decides which entries to keep.
type RetentionPolicy interface {
	Apply(entries []Entry) (keep []Entry)
}

// CountPolicy keeps the N most recent entries.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount entries (sorted newest-first).
func (p *CountPolicy) Apply(entries []Entry) []Entry {
	if len(entries) <= p.MaxCount {
		return entries
	}
	return entries[:p.MaxCount]
}

// AgePolicy keeps entries newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	now    func() time.Time
}

// Apply keeps entries whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(entries []Entry) []Entry {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Entry
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			keep = append(keep, e)
		}
	}
	return keep
}

// SizePolicy keeps entries until their total size exceeds MaxTotalBytes.
// The newest entry is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

// Apply keeps entries (newest-first) until adding the next would exceed the limit.
func (p *SizePolicy) Apply(entries []Entry) []Entry {
	var keep []Entry
	var total int64
	for _, e := range entries {
		if total+e.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, e)
		total += e.Size
	}
	return keep
}

// CompositePolicy keeps an entry if any sub-policy wants it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the union of entries kept by any sub-policy.
func (p *CompositePolicy) Apply(entries []Entry) []Entry {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, e := range policy.Apply(entries) {
			kept[e.Key] = true
		}
	}

	var result []Entry
	for _, e := range entries {
		if kept[e.Key] {
			result = append(result, e)
		}
	}
	return result
}

// PolicyFor builds the policy for the cache prune flags. Zero values are
// ignored; with nothing set every entry is kept.
func PolicyFor(keep int, maxAge time.Duration, maxSize int64) RetentionPolicy {
	var policies []RetentionPolicy
	if keep > 0 {
		policies = append(policies, &CountPolicy{MaxCount: keep})
	}
	if maxAge > 0 {
		policies = append(policies, &AgePolicy{MaxAge: maxAge})
	}
	if maxSize > 0 {
		policies = append(policies, &SizePolicy{MaxTotalBytes: maxSize})
	}
	switch len(policies) {
	case 0:
		return keepAll{}
	case 1:
		return policies[0]
	}
	return &CompositePolicy{Policies: policies}
}

type keepAll struct{}

func (keepAll) Apply(entries []Entry) []Entry { return entries }

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

// ParseSize parses size strings like "100MB", "1GB", "500KB" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// longer suffixes first so "MB" is not read as "B"
	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, ss := range suffixes {
		if numStr, ok := strings.CutSuffix(s, ss.suffix); ok {
			num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
			if err != nil || num < 0 {
				return 0, fmt.Errorf("invalid size: %q", s)
			}
			return num * ss.multiplier, nil
		}
	}
	return 0, fmt.Errorf("invalid size: %q (expected suffix: B, KB, MB, GB)", s)
}
