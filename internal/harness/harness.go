package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/repo"
	"github.com/roach88/recordtree/internal/schema"
	"github.com/roach88/recordtree/internal/testutil"
)

// Harness executes one scenario against its own repository.
type Harness struct {
	repo   *repo.Repository
	logger *slog.Logger
	types  map[string]*record.Type
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory repository. Expectation
// mismatches and failed assertions are reported on the result; the error
// return is reserved for scenarios that cannot run at all.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	clock := testutil.NewDeterministicClock()
	reg := schema.NewRegistry(schema.WithClock(clock.Now))
	if scenario.Schema != "" {
		if err := reg.LoadCUE(scenario.Schema); err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := repo.Open("",
		repo.WithBackend(repo.BackendMemory),
		repo.WithClock(clock.Now),
		repo.WithLogger(logger),
		repo.WithSchema(reg),
		repo.WithPlaceholderRecords(scenario.Placeholders),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	defer r.Close()

	h := &Harness{
		repo:   r,
		logger: logger,
		types:  make(map[string]*record.Type),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) recordType(name string) (*record.Type, error) {
	if t, ok := h.types[name]; ok {
		return t, nil
	}
	t, err := h.repo.Type(name)
	if err != nil {
		return nil, err
	}
	h.types[name] = t
	return t, nil
}

// executeStep runs one step, traces it, and checks its expectation.
// Repository errors become outcomes; only setup failures are returned.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	typ, err := h.recordType(step.Type)
	if err != nil {
		return err
	}

	event := TraceEvent{Op: step.Op, Type: step.Type, ID: step.ID}
	var found *record.Record
	var rejected record.Errors

	switch step.Op {
	case OpSave:
		rec := record.New(typ, step.ID)
		if err := rec.Merge(step.Attributes); err != nil {
			return fmt.Errorf("attributes: %w", err)
		}
		for name, data := range step.Blobs {
			if err := rec.SetBlob(name, []byte(data)); err != nil {
				return fmt.Errorf("blob %q: %w", name, err)
			}
		}
		res, err := h.repo.Save(ctx, rec)
		switch {
		case err != nil:
			event.Outcome = outcomeOf(err)
		case !res.OK:
			event.Outcome = OutcomeRejected
			rejected = rec.Errors()
		default:
			event.Outcome = committedOutcome(res.Committed)
		}

	case OpFind:
		rec, err := h.repo.Find(ctx, typ, step.ID)
		if err != nil {
			event.Outcome = outcomeOf(err)
		} else {
			event.Outcome = OutcomeOK
			found = rec
		}

	case OpFindAll:
		recs, err := h.repo.FindAll(ctx, typ)
		if err != nil {
			event.Outcome = outcomeOf(err)
		} else {
			event.Outcome = OutcomeOK
			event.IDs = make([]string, 0, len(recs))
			for _, rec := range recs {
				event.IDs = append(event.IDs, rec.ID)
			}
		}

	case OpExists:
		ok, err := h.repo.Exists(ctx, typ, step.ID)
		switch {
		case err != nil:
			event.Outcome = outcomeOf(err)
		case ok:
			event.Outcome = OutcomePresent
		default:
			event.Outcome = OutcomeAbsent
		}

	case OpDelete:
		res, err := h.repo.Delete(ctx, typ, step.ID)
		if err != nil {
			event.Outcome = outcomeOf(err)
		} else {
			event.Outcome = committedOutcome(res.Committed)
		}

	case OpDeleteAll:
		res, err := h.repo.DeleteAll(ctx, typ)
		if err != nil {
			event.Outcome = outcomeOf(err)
		} else {
			event.Outcome = committedOutcome(res.Committed)
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	result.AddTrace(event)
	h.logger.Info("step completed", "step", i, "op", step.Op, "type", step.Type, "id", step.ID, "outcome", event.Outcome)

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, event, found, rejected) {
			result.AddError(fmt.Sprintf("steps[%d] %s %s/%s: %s", i, step.Op, step.Type, step.ID, msg))
		}
	}
	return nil
}

func committedOutcome(committed bool) string {
	if committed {
		return OutcomeOK
	}
	return OutcomeNoop
}

func outcomeOf(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func checkExpect(exp *Expect, event TraceEvent, found *record.Record, rejected record.Errors) []string {
	var problems []string
	if exp.Outcome != "" && exp.Outcome != event.Outcome {
		problems = append(problems, fmt.Sprintf("expected outcome %s, got %s", exp.Outcome, event.Outcome))
	}
	if exp.IDs != nil && !slices.Equal(exp.IDs, event.IDs) {
		problems = append(problems, fmt.Sprintf("expected ids %v, got %v", exp.IDs, event.IDs))
	}
	if exp.Attributes != nil || exp.Blobs != nil {
		if found == nil {
			problems = append(problems, "expected a record, found none")
		} else {
			problems = append(problems, matchRecord(found, exp.Attributes, exp.Blobs)...)
		}
	}
	for field, want := range exp.Errors {
		got := rejected[field]
		for _, msg := range want {
			if !slices.Contains(got, msg) {
				problems = append(problems, fmt.Sprintf("expected validation message %q on %s, got %v", msg, field, got))
			}
		}
	}
	return problems
}

// matchRecord compares attributes as a subset and blobs exactly.
func matchRecord(rec *record.Record, attrs map[string]any, blobs map[string]string) []string {
	var problems []string
	if attrs != nil {
		want, err := codec.Normalize(attrs)
		if err != nil {
			return []string{fmt.Sprintf("expected attributes: %v", err)}
		}
		for _, key := range want.SortedKeys() {
			got, ok := rec.Attributes[key]
			if !ok {
				problems = append(problems, fmt.Sprintf("attribute %q missing", key))
				continue
			}
			if !codec.Equal(want[key], got) {
				problems = append(problems, fmt.Sprintf("attribute %q: expected %v, got %v", key, codec.ToAny(want[key]), codec.ToAny(got)))
			}
		}
	}
	if blobs != nil {
		got := make(map[string]string, len(rec.Blobs))
		for name, data := range rec.Blobs {
			got[name] = string(data)
		}
		wantNames, gotNames := slices.Sorted(maps.Keys(blobs)), slices.Sorted(maps.Keys(got))
		if !slices.Equal(wantNames, gotNames) {
			problems = append(problems, fmt.Sprintf("blobs: expected %v, got %v", wantNames, gotNames))
		}
		for _, name := range wantNames {
			if g, ok := got[name]; ok && g != blobs[name] {
				problems = append(problems, fmt.Sprintf("blob %q: expected %q, got %q", name, blobs[name], g))
			}
		}
	}
	return problems
}
