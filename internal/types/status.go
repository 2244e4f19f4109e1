package types

import "strings"

type SprintStatus string

const (
	SprintPlanned   SprintStatus = "PLANNED"
	SprintActive    SprintStatus = "ACTIVE"
	SprintCompleted SprintStatus = "COMPLETED"
	SprintCancelled SprintStatus = "CANCELLED"
)

// ParseSprintStatus accepts any casing and the legacy "planning" spelling.
func ParseSprintStatus(s string) (SprintStatus, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "PLANNING" {
		v = string(SprintPlanned)
	}

	switch st := SprintStatus(v); st {
	case SprintPlanned, SprintActive, SprintCompleted, SprintCancelled:
		return st, true
	}
	return "", false
}

// WorkStatus is shared by user stories and tasks.
type WorkStatus string

const (
	StatusPending    WorkStatus = "pending"
	StatusInProgress WorkStatus = "in_progress"
	StatusReview     WorkStatus = "review"
	StatusDone       WorkStatus = "done"
)

func ParseWorkStatus(s string) (WorkStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")

	switch st := WorkStatus(v); st {
	case StatusPending, StatusInProgress, StatusReview, StatusDone:
		return st, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, true
	}
	return "", false
}
