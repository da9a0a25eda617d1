// Package lifecycle defines the status state machines for claims,
// claim funding, and payment intents. Each transition table is total:
// every defined status has an entry, so lookups never fail.
package lifecycle

import (
	"fmt"
	"strings"
)

// InvalidTransitionError is returned when a requested status transition
// is not permitted by a state machine.
type InvalidTransitionError struct {
	Entity  string
	Current string
	Target  string
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	return e.Reason
}

type status interface {
	~string
}

func validate[S status](entity string, current, target S, table map[S][]S, terminal map[S]bool) error {
	if current == target {
		return &InvalidTransitionError{
			Entity:  entity,
			Current: string(current),
			Target:  string(target),
			Reason:  fmt.Sprintf("%s is already in '%s' status", entity, string(current)),
		}
	}

	if terminal[current] {
		return &InvalidTransitionError{
			Entity:  entity,
			Current: string(current),
			Target:  string(target),
			Reason:  fmt.Sprintf("cannot transition from '%s': %s lifecycle is complete", string(current), entity),
		}
	}

	for _, s := range table[current] {
		if s == target {
			return nil
		}
	}

	valid := table[current]
	names := make([]string, 0, len(valid))
	for _, s := range valid {
		names = append(names, "'"+string(s)+"'")
	}
	validList := "none"
	if len(names) > 0 {
		validList = strings.Join(names, ", ")
	}

	return &InvalidTransitionError{
		Entity:  entity,
		Current: string(current),
		Target:  string(target),
		Reason: fmt.Sprintf("cannot transition from '%s' to '%s'; valid transitions from '%s': %s",
			string(current), string(target), string(current), validList),
	}
}

func successors[S status](current S, table map[S][]S) []S {
	out := make([]S, 0, len(table[current]))
	out = append(out, table[current]...)
	return out
}
