// Package control models per-control compliance evaluations and their
// aggregation into category- and framework-level statistics.
package control

import (
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of evaluating one control.
type Status string

const (
	Passed         Status = "passed"
	Failed         Status = "failed"
	PartiallyMet   Status = "partially_met"
	RequiresReview Status = "requires_manual_review"
	NotApplicable  Status = "not_applicable"
)

var ErrInvalidStatus = errors.New("control: invalid status")

// ParseStatus validates a status string. An unrecognized value is fatal: an
// attestation must never silently misclassify a control.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case Passed, Failed, PartiallyMet, RequiresReview, NotApplicable:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Evaluation is one control's result, produced by the evaluation collaborator
// and consumed read-only here.
type Evaluation struct {
	ControlID          string    `json:"controlId"`
	Framework          Framework `json:"framework"`
	Name               string    `json:"name"`
	Category           string    `json:"category"`
	Status             Status    `json:"status"`
	EvidenceReferences []string  `json:"evidenceReferences"`
	Findings           string    `json:"findings"`
	Recommendations    string    `json:"recommendations"`
	EvaluatedAt        time.Time `json:"evaluatedAt"`
}

// Counts tallies evaluations per status.
type Counts struct {
	Total          int `json:"totalControls"`
	Passed         int `json:"passedControls"`
	Failed         int `json:"failedControls"`
	PartiallyMet   int `json:"partialControls"`
	NotApplicable  int `json:"notApplicable"`
	RequiresReview int `json:"requiresReview"`
}

// CategoryGroup holds one category's evaluations in their input order.
type CategoryGroup struct {
	Category string       `json:"category"`
	Controls []Evaluation `json:"controls"`
}

// Aggregation is the grouped, counted view of an evaluation sequence.
type Aggregation struct {
	ByCategory []CategoryGroup
	Counts     Counts
}

// Aggregate groups evaluations by category in first-seen order and tallies
// per-status counts. Categories are not sorted: reports are read in the order
// the evaluation process emitted them, and identical input order must yield
// identical output.
func Aggregate(evals []Evaluation) (Aggregation, error) {
	var agg Aggregation
	index := make(map[string]int)

	for _, e := range evals {
		if _, err := ParseStatus(string(e.Status)); err != nil {
			return Aggregation{}, err
		}

		i, ok := index[e.Category]
		if !ok {
			i = len(agg.ByCategory)
			index[e.Category] = i
			agg.ByCategory = append(agg.ByCategory, CategoryGroup{Category: e.Category})
		}
		agg.ByCategory[i].Controls = append(agg.ByCategory[i].Controls, e)

		agg.Counts.Total++
		switch e.Status {
		case Passed:
			agg.Counts.Passed++
		case Failed:
			agg.Counts.Failed++
		case PartiallyMet:
			agg.Counts.PartiallyMet++
		case NotApplicable:
			agg.Counts.NotApplicable++
		case RequiresReview:
			agg.Counts.RequiresReview++
		}
	}
	return agg, nil
}

// Recount re-tallies counts from already-grouped evaluations. The verifier
// uses this to detect a tampered summary.
func Recount(groups []CategoryGroup) (Counts, error) {
	var flat []Evaluation
	for _, g := range groups {
		flat = append(flat, g.Controls...)
	}
	agg, err := Aggregate(flat)
	if err != nil {
		return Counts{}, err
	}
	return agg.Counts, nil
}
