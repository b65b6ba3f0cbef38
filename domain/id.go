package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// IDStrategy selects how the id of a newly created task is derived.
type IDStrategy int

const (
	// IDFromLast uses the id of the last stored task plus one. Ids may repeat
	// after the last task is deleted.
	IDFromLast IDStrategy = iota
	// IDFromMax uses the largest stored id plus one.
	IDFromMax
)

func (s IDStrategy) String() string {
	switch s {
	case IDFromMax:
		return "max"
	default:
		return "last"
	}
}

// ParseIDStrategy maps a configuration value to a strategy.
func ParseIDStrategy(v string) (IDStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "last":
		return IDFromLast, nil
	case "max":
		return IDFromMax, nil
	default:
		return IDFromLast, fmt.Errorf("unknown id strategy %q", v)
	}
}

// NextID returns the id to assign to a task appended to tasks.
func NextID(tasks []Task, strategy IDStrategy) int64 {
	if len(tasks) == 0 {
		return 1
	}
	if strategy == IDFromMax {
		highest := tasks[0].ID
		for _, t := range tasks[1:] {
			if t.ID > highest {
				highest = t.ID
			}
		}
		return highest + 1
	}
	return tasks[len(tasks)-1].ID + 1
}

// ParseID reads the leading integer of a path segment. Leading whitespace and
// a sign are accepted, a 0x prefix switches to hexadecimal, and anything after
// the digits is ignored. ok is false when no digits are present or the value
// does not fit in an int64; such ids match no task.
func ParseID(raw string) (id int64, ok bool) {
	s := strings.TrimLeft(raw, " \t\n\v\f\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	end := 0
	for end < len(s) && isDigit(s[end], base) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	digits := s[:end]
	if neg {
		digits = "-" + digits
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16 && c >= 'a' && c <= 'f', base == 16 && c >= 'A' && c <= 'F':
		return true
	}
	return false
}
