package posture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phoneDocument = `[
  {"id": "p1", "name": "Left in bed", "avgNx": 0.98, "avgNy": 0.05, "avgNz": 0.2,
   "rawAx": 9.6, "rawAy": 0.4, "rawAz": 1.9},
  {"id": "p2", "name": "Right in bed", "avgNx": -0.97, "avgNy": 0.1, "avgNz": 0.22,
   "rawAx": -9.5, "rawAy": 1.0, "rawAz": 2.1}
]`

func TestParseReferencePostures(t *testing.T) {
	refs, err := ParseReferencePostures([]byte(phoneDocument))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "p1", refs[0].ID)
	assert.Equal(t, "Left in bed", refs[0].Name)
	assert.Equal(t, Vec3{X: 0.98, Y: 0.05, Z: 0.2}, refs[0].Normal)
	assert.Equal(t, Vec3{X: -9.5, Y: 1.0, Z: 2.1}, refs[1].Raw)
}

func TestParseReferencePostures_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":   `{{`,
		"not array":  `{"id": "x"}`,
		"missing id": `[{"name": "n", "avgNz": 1}]`,
	} {
		_, err := ParseReferencePostures([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidReference, name)
	}
}

func TestReferencePosture_JSONKeys(t *testing.T) {
	p := ReferencePosture{ID: "a", Name: "b", Normal: Vec3{X: 1}, Raw: Vec3{Z: 9.8}}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, 1.0, m["avgNx"])
	assert.Equal(t, 9.8, m["rawAz"])
}

func TestReferencePosture_Distance(t *testing.T) {
	p := ReferencePosture{Normal: Vec3{X: 1}, Raw: Vec3{X: 10}}
	d := p.Distance(Vec3{X: 0, Z: 1}, Vec3{X: 8}, 0.9, 0.1)
	assert.InDelta(t, 2*0.9+4*0.1, d, 1e-12)
}

func TestLoadAndSaveReferencePostures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "postures.json")

	refs, err := LoadReferencePostures(path)
	require.NoError(t, err)
	assert.Empty(t, refs)

	want := []ReferencePosture{{ID: "a", Name: "side", Normal: Vec3{X: 1}, Raw: Vec3{X: 9.8}}}
	require.NoError(t, SaveReferencePostures(path, want))

	got, err := LoadReferencePostures(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = LoadReferencePostures(path)
	assert.Error(t, err)
}
