// Package harness runs YAML conformance scenarios against a repository.
//
// A scenario is a list of steps (save, find, find_all, exists, delete,
// delete_all), each with an optional expectation, followed by assertions
// on the final repository state. Every scenario runs against a fresh
// in-memory repository with a deterministic clock, so the trace of step
// outcomes is reproducible and can be compared against golden files.
//
//	name: create_and_find
//	description: A saved record reads back unchanged
//	steps:
//	  - op: save
//	    type: TestEntity
//	    id: foo
//	    attributes: {one: 1, two: 2}
//	    blobs: {blob1.txt: "This is blob 1"}
//	    expect: {outcome: ok}
//	  - op: find
//	    type: TestEntity
//	    id: foo
//	    expect:
//	      attributes: {one: 1, two: 2}
//	assertions:
//	  - type: record_count
//	    record_type: TestEntity
//	    count: 1
//
// Outcomes are "ok", "noop" (nothing changed), "rejected" (validation
// failed), "present" and "absent" for exists, or an error code such as
// NOT_FOUND or EMPTY_RECORD.
package harness
