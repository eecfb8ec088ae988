// Package schema holds per-type field declarations and fills declared but
// absent fields with their defaults.
//
// A schema is additive: fields present on a record but not declared are
// left alone, and declaring a field never removes anything. Defaults are
// either a fixed value, copied fresh for every record, or a generator
// called once per missing field.
//
// Schemas can be declared in Go with Registry.Declare or loaded from CUE:
//
//	type: TestEntity: {
//		dir: "test_entities"
//		attributes: {
//			status: default: "draft"
//			token:  generate: "uuid"
//			name:   rule: "required,min=2"
//		}
//		blobs: "notes.txt": default: ""
//	}
package schema
