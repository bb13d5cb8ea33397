// Package report aggregates a feature-engineered table into the buckets the
// terminal summary prints.
package report

import (
	"sort"

	"plumage/internal/table"
)

// HourlyEngagement sums total engagement per hour of day.
func HourlyEngagement(t *table.Table) map[int]int {
	buckets := make(map[int]int)
	for _, r := range t.Rows {
		tm, ok := r.Time("post_datetime")
		if !ok {
			continue
		}
		buckets[tm.Hour()] += r.Int("total_engagement")
	}
	return buckets
}

// WeekdayEngagement sums total engagement per weekday name.
func WeekdayEngagement(t *table.Table) map[string]int {
	buckets := make(map[string]int)
	for _, r := range t.Rows {
		day, ok := r.String("weekday")
		if !ok || day == "" {
			continue
		}
		buckets[day] += r.Int("total_engagement")
	}
	return buckets
}

// TierCounts counts rows per account tier.
func TierCounts(t *table.Table) map[string]int {
	buckets := make(map[string]int)
	for _, r := range t.Rows {
		tier, ok := r.String("account_tier")
		if !ok || tier == "" {
			continue
		}
		buckets[tier]++
	}
	return buckets
}

// ThreadCount returns how many distinct threads the table spans.
func ThreadCount(t *table.Table) int {
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		if id, ok := r.String("thread_id"); ok {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// SortedHours returns the hour keys in ascending order.
func SortedHours(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SortedKeys returns string bucket keys in ascending order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
