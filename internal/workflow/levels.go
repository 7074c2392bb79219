package workflow

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResolveLevels selects the ordered approval ladder for an amount and
// optional department out of candidate levels (normally the catalog rows
// whose thresholds bracket the amount).
//
// Department-scoped levels win when any match; otherwise the unscoped
// levels apply. The result is sorted ascending by level number. An empty
// result is a valid outcome meaning no workflow is defined for the amount,
// not an error.
func ResolveLevels(candidates []*ApprovalLevel, amount decimal.Decimal, departmentID *uuid.UUID) []*ApprovalLevel {
	if departmentID != nil {
		departmental := filterLevels(candidates, amount, func(l *ApprovalLevel) bool {
			return l.DepartmentID != nil && *l.DepartmentID == *departmentID
		})
		if len(departmental) > 0 {
			return departmental
		}
	}

	return filterLevels(candidates, amount, func(l *ApprovalLevel) bool {
		return l.DepartmentID == nil
	})
}

func filterLevels(candidates []*ApprovalLevel, amount decimal.Decimal, scope func(*ApprovalLevel) bool) []*ApprovalLevel {
	matched := make([]*ApprovalLevel, 0, len(candidates))
	for _, level := range candidates {
		if !level.Active || !level.Brackets(amount) || !scope(level) {
			continue
		}
		matched = append(matched, level)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Level < matched[j].Level
	})
	return matched
}

// highestLevel returns the last rung of a resolved ladder, nil when empty.
func highestLevel(levels []*ApprovalLevel) *ApprovalLevel {
	if len(levels) == 0 {
		return nil
	}
	return levels[len(levels)-1]
}

// levelIndex locates a level number in a resolved ladder, -1 when the
// number no longer appears (thresholds edited mid-flight).
func levelIndex(levels []*ApprovalLevel, number int) int {
	for i, l := range levels {
		if l.Level == number {
			return i
		}
	}
	return -1
}
