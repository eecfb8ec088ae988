package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/recordtree/internal/errs"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.Type)
		if event.ID != "" {
			fmt.Fprintf(&buf, "/%s", event.ID)
		}
		fmt.Fprintf(&buf, " -> %s\n", event.Outcome)
	}
	return buf.String()
}

// evaluateAssertions runs every assertion and returns the failure messages.
func (h *Harness) evaluateAssertions(ctx context.Context, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRecordCount:
			err = h.assertRecordCount(ctx, result.Trace, a)
		case AssertRecord:
			err = h.assertRecord(ctx, result.Trace, a)
		case AssertCommitCount:
			err = h.assertCommitCount(ctx, result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return failures
}

func (h *Harness) assertRecordCount(ctx context.Context, trace []TraceEvent, a Assertion) error {
	typ, err := h.recordType(a.RecordType)
	if err != nil {
		return err
	}
	recs, err := h.repo.FindAll(ctx, typ)
	if err != nil {
		return err
	}
	if len(recs) != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s records", a.Count, a.RecordType),
			Actual:   fmt.Sprintf("%d records", len(recs)),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertRecord(ctx context.Context, trace []TraceEvent, a Assertion) error {
	typ, err := h.recordType(a.RecordType)
	if err != nil {
		return err
	}
	rec, err := h.repo.Find(ctx, typ, a.ID)
	switch {
	case a.Absent && errs.Is(err, errs.CodeNotFound):
		return nil
	case a.Absent && err == nil:
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s/%s absent", a.RecordType, a.ID),
			Actual:   "record exists",
			Trace:    trace,
		}
	case errs.Is(err, errs.CodeNotFound):
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s/%s present", a.RecordType, a.ID),
			Actual:   "record not found",
			Trace:    trace,
		}
	case err != nil:
		return err
	}

	if problems := matchRecord(rec, a.Attributes, nil); len(problems) > 0 {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s/%s with attributes %v", a.RecordType, a.ID, a.Attributes),
			Actual:   strings.Join(problems, "; "),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertCommitCount(ctx context.Context, trace []TraceEvent, a Assertion) error {
	log, err := h.repo.Log(ctx, 0)
	if err != nil {
		return err
	}
	if len(log) != a.Count {
		return &AssertionError{
			Type:     AssertCommitCount,
			Expected: fmt.Sprintf("%d commits", a.Count),
			Actual:   fmt.Sprintf("%d commits", len(log)),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount counts events with the op and, if set, the outcome.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op && (a.Outcome == "" || event.Outcome == a.Outcome) {
			count++
		}
	}
	if count != a.Count {
		what := a.Op
		if a.Outcome != "" {
			what += " -> " + a.Outcome
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}
