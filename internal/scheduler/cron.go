// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler provides the cron-driven entrypoint (C12) that spawns
// the daily recap job and an optional hourly credential probe.
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Expression is a parsed standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
type Expression struct {
	Minutes     []int
	Hours       []int
	DaysOfMonth []int
	Months      []int
	DaysOfWeek  []int
}

// ParseCron parses a standard 5-field cron expression, supporting `*`,
// single values, ranges (`n-m`), lists (`n,m,o`), and steps (`*/n`,
// `n-m/s`).
func ParseCron(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("scheduler: cron expression must have 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid minute field: %w", err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid hour field: %w", err)
	}
	daysOfMonth, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid month field: %w", err)
	}
	daysOfWeek, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid day-of-week field: %w", err)
	}

	normalized := make([]int, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d == 7 {
			d = 0
		}
		normalized = append(normalized, d)
	}
	daysOfWeek = uniqueSortedInts(normalized)

	return &Expression{
		Minutes:     minutes,
		Hours:       hours,
		DaysOfMonth: daysOfMonth,
		Months:      months,
		DaysOfWeek:  daysOfWeek,
	}, nil
}

// NextRun returns the next time strictly after `after` (in loc, UTC if nil)
// that matches the expression.
func (e *Expression) NextRun(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)

	const maxIterations = 365 * 24 * 60 * 4
	for i := 0; i < maxIterations; i++ {
		if e.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (e *Expression) matches(t time.Time) bool {
	if !containsInt(e.Minutes, t.Minute()) {
		return false
	}
	if !containsInt(e.Hours, t.Hour()) {
		return false
	}
	if !containsInt(e.Months, int(t.Month())) {
		return false
	}

	domMatch := containsInt(e.DaysOfMonth, t.Day())
	dowMatch := containsInt(e.DaysOfWeek, int(t.Weekday()))
	domWildcard := len(e.DaysOfMonth) == 31
	dowWildcard := len(e.DaysOfWeek) == 7

	switch {
	case domWildcard && dowWildcard:
		return true
	case domWildcard:
		return dowMatch
	case dowWildcard:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}
	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseFieldPart(part, minVal, maxVal)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		return uniqueSortedInts(result), nil
	}
	return parseFieldPart(field, minVal, maxVal)
}

func parseFieldPart(part string, minVal, maxVal int) ([]int, error) {
	if strings.Contains(part, "/") {
		parts := strings.SplitN(part, "/", 2)
		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", parts[1])
		}

		var rangeStart, rangeEnd int
		switch {
		case parts[0] == "*":
			rangeStart, rangeEnd = minVal, maxVal
		case strings.Contains(parts[0], "-"):
			rangeParts := strings.SplitN(parts[0], "-", 2)
			rangeStart, err = strconv.Atoi(rangeParts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range start: %s", rangeParts[0])
			}
			rangeEnd, err = strconv.Atoi(rangeParts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range end: %s", rangeParts[1])
			}
		default:
			rangeStart, err = strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid value: %s", parts[0])
			}
			rangeEnd = maxVal
		}

		var result []int
		for i := rangeStart; i <= rangeEnd; i += step {
			if i >= minVal && i <= maxVal {
				result = append(result, i)
			}
		}
		return result, nil
	}

	if strings.Contains(part, "-") {
		rangeParts := strings.SplitN(part, "-", 2)
		start, err := strconv.Atoi(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(rangeParts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", rangeParts[1])
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("invalid range: %d-%d (min=%d, max=%d)", start, end, minVal, maxVal)
		}
		return rangeInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d (min=%d, max=%d)", val, minVal, maxVal)
	}
	return []int{val}, nil
}

func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func containsInt(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

func uniqueSortedInts(slice []int) []int {
	seen := make(map[int]bool, len(slice))
	result := make([]int, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	sort.Ints(result)
	return result
}
