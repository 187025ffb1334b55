package models

import (
	"context"
	"fmt"
	"time"
)

// Result is what a work unit hands back when it completes. IsOk is forwarded
// untouched; the harness never interprets it.
type Result struct {
	Msg  string
	IsOk bool
}

// Func is the body of a work unit. ctx carries the cancellation request and
// units are expected to observe it at their own suspension points.
type Func func(ctx context.Context, payload string) (Result, error)

type WorkUnit struct {
	Name    string
	Payload string
	Run     Func
}

type Kind int

const (
	KindSuccess Kind = iota
	KindTimeout
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindTimeout:
		return "Timeout"
	case KindFailure:
		return "Exception"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the tagged result of running one work unit.
type Outcome struct {
	Name   string
	Kind   Kind
	Result Result // only meaningful for KindSuccess
	Err    string // failure message, or "Timeout"
	// Orphaned marks a unit whose governing race resolved while the unit
	// itself may still be running in the background.
	Orphaned bool
	Elapsed  time.Duration
}

func (o Outcome) Incomplete() bool {
	return o.Kind != KindSuccess
}

// BatchReport is created once a batch settles and is not mutated afterwards.
type BatchReport struct {
	BatchID    string
	Successes  []Outcome
	Incomplete []Outcome // in resolution order
	Started    time.Time
	Finished   time.Time
}

func (r BatchReport) Total() int {
	return len(r.Successes) + len(r.Incomplete)
}

// Counts returns the number of outcomes per kind.
func (r BatchReport) Counts() map[Kind]int {
	counts := map[Kind]int{
		KindSuccess: len(r.Successes),
		KindTimeout: 0,
		KindFailure: 0,
	}
	for _, o := range r.Incomplete {
		counts[o.Kind]++
	}
	return counts
}

// Lines renders one line per incomplete unit, e.g. "  * [Timeout: task1 (Timeout)]".
func (r BatchReport) Lines() []string {
	lines := make([]string, 0, len(r.Incomplete))
	for _, o := range r.Incomplete {
		line := fmt.Sprintf("  * [%s: %s (%s)]", o.Kind, o.Name, o.Err)
		if o.Orphaned {
			line += " possibly still running"
		}
		lines = append(lines, line)
	}
	return lines
}
