package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesSchema(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/schema_validation.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "schema.cue"), s.Schema)
	assert.Len(t, s.Steps, 8)
	assert.Equal(t, map[string][]string{"name": {"must be at least 2"}}, s.Steps[0].Expect.Errors)
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")

	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: s\ndescription: d\nschema: missing.cue\nsteps:\n  - {op: exists, type: T, id: x}\n"), 0o644))
	_, err = LoadScenario(path)
	assert.ErrorContains(t, err, "schema file not found")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "name: s\ndescription: d\nstep: []\n", "failed to parse YAML"},
		{"missing name", "description: d\nsteps:\n  - {op: exists, type: T, id: x}\n", "name is required"},
		{"missing description", "name: s\nsteps:\n  - {op: exists, type: T, id: x}\n", "description is required"},
		{"no steps", "name: s\ndescription: d\n", "steps list is required"},
		{"unknown op", "name: s\ndescription: d\nsteps:\n  - {op: upsert, type: T, id: x}\n", `unknown op "upsert"`},
		{"missing type", "name: s\ndescription: d\nsteps:\n  - {op: find, id: x}\n", "type is required"},
		{"missing id", "name: s\ndescription: d\nsteps:\n  - {op: delete, type: T}\n", "id is required for delete"},
		{"attributes on find", "name: s\ndescription: d\nsteps:\n  - {op: find, type: T, id: x, attributes: {a: 1}}\n", "only allowed for save"},
		{"unknown assertion", "name: s\ndescription: d\nsteps:\n  - {op: find_all, type: T}\nassertions:\n  - {type: final_state}\n", `unknown assertion type "final_state"`},
		{"record without id", "name: s\ndescription: d\nsteps:\n  - {op: find_all, type: T}\nassertions:\n  - {type: record, record_type: T}\n", "record_type and id are required"},
		{"absent with attributes", "name: s\ndescription: d\nsteps:\n  - {op: find_all, type: T}\nassertions:\n  - {type: record, record_type: T, id: x, absent: true, attributes: {a: 1}}\n", "mutually exclusive"},
		{"negative count", "name: s\ndescription: d\nsteps:\n  - {op: find_all, type: T}\nassertions:\n  - {type: commit_count, count: -1}\n", "count must be non-negative"},
		{"trace count without op", "name: s\ndescription: d\nsteps:\n  - {op: find_all, type: T}\nassertions:\n  - {type: trace_count, count: 1}\n", "op is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_FindAllNeedsNoID(t *testing.T) {
	s, err := ParseScenario([]byte("name: s\ndescription: d\nsteps:\n  - {op: find_all, type: T}\n  - {op: delete_all, type: T}\n"))
	require.NoError(t, err)
	assert.Len(t, s.Steps, 2)
}
