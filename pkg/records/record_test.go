package records

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alice() *Record {
	return FromPairs(
		Field{"_id", "5f43a1a8a1a1a1a1a1a1a1a1"},
		Field{"name", "Alice"},
		Field{"G1", 14},
		Field{"G2", 15},
		Field{"G3", 16},
		Field{"studytime", 3},
	)
}

func TestRecord_PreservesInsertionOrder(t *testing.T) {
	r := alice()
	want := []string{"_id", "name", "G1", "G2", "G3", "studytime"}
	if diff := cmp.Diff(want, r.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	r.Set("G1", 10)
	assert.Equal(t, want, r.Keys(), "overwriting keeps position")
}

func TestRecord_JSONRoundTripKeepsOrder(t *testing.T) {
	data, err := json.Marshal(alice())
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"5f43a1a8a1a1a1a1a1a1a1a1","name":"Alice","G1":14,"G2":15,"G3":16,"studytime":3}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, alice().Keys(), back.Keys())

	g3, ok := back.Number("G3")
	require.True(t, ok)
	assert.Equal(t, 16.0, g3)
}

func TestRecord_NilIsEmpty(t *testing.T) {
	var r *Record
	assert.True(t, r.Empty())
	assert.Equal(t, "", r.ID())
	assert.Empty(t, r.Keys())
	assert.Nil(t, r.Clone())
	_, ok := r.Number("G3")
	assert.False(t, ok)

	data, err := json.Marshal(struct {
		Result *Record `json:"result"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":null}`, string(data))
}

func TestRecord_Project(t *testing.T) {
	p := alice().Project([]string{"G3", "missing", "name"})
	assert.Equal(t, []string{"G3", "name"}, p.Keys())
}

func TestRecord_Grades(t *testing.T) {
	r := FromPairs(Field{"G1", 6}, Field{"G3", 10.0}, Field{"G2", "n/a"})
	assert.Equal(t, []float64{6, 10}, r.Grades())
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	orig := alice()
	c := orig.Clone()
	c.Set("G3", 1)
	c.Delete("name")

	g3, _ := orig.Number("G3")
	assert.Equal(t, 16.0, g3)
	assert.Equal(t, "Alice", orig.Text("name"))
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{int32(7), 7, true},
		{int64(-2), -2, true},
		{float32(1.5), 1.5, true},
		{json.Number("12"), 12, true},
		{"3.25", 3.25, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "10", FormatValue(10.0))
	assert.Equal(t, "8.5", FormatValue(8.5))
	assert.Equal(t, "Alice", FormatValue("Alice"))
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, "3", FormatValue(3))
}
