package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStudentID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"lowercase hex", "689cef602490264c7f2dd235", false},
		{"uppercase hex", "5F43A1A8A1A1A1A1A1A1A1A1", false},
		{"mixed case", "5f43A1a8b2B2b2b2b2b2b2b2", false},

		{"empty", "", true},
		{"too short", "689cef602490264c7f2dd23", true},
		{"too long", "689cef602490264c7f2dd2350", true},
		{"non hex", "689cef602490264c7f2dd23z", true},
		{"embedded space", "689cef602490 64c7f2dd235", true},
		{"injection attempt", `{"$ne": null}`, true},
		{"trailing newline", "689cef602490264c7f2dd235\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStudentID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsStudentID(tt.id))
			} else {
				assert.NoError(t, err)
				assert.True(t, IsStudentID(tt.id))
			}
		})
	}
}

func TestIsStudentID_AllHexAlphabet(t *testing.T) {
	const alphabet = "0123456789abcdefABCDEF"
	for _, r := range alphabet {
		id := strings.Repeat(string(r), 24)
		assert.True(t, IsStudentID(id), id)
	}
}

func TestInvalidQueryFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   []string
	}{
		{"all allowed", []string{"name", "G3", "age", "sex"}, nil},
		{"none requested", nil, nil},
		{"projection-only field rejected", []string{"name", "absences"}, []string{"absences"}},
		{"case sensitive", []string{"g3", "Name"}, []string{"g3", "Name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InvalidQueryFields(tt.fields))
		})
	}
}

func TestIsProjectionField(t *testing.T) {
	assert.True(t, IsProjectionField("Walc"))
	assert.True(t, IsProjectionField("paid"))
	assert.False(t, IsProjectionField("_id"))
	assert.False(t, IsProjectionField("password"))
	assert.Len(t, ProjectionFields, 31)
}

func TestDedupeFields(t *testing.T) {
	in := []string{"G3", "name", "G3", "sex", "name"}
	got := DedupeFields(in)

	assert.Equal(t, []string{"G3", "name", "sex"}, got)
	assert.Equal(t, []string{"G3", "name", "G3", "sex", "name"}, in, "input must not be modified")
	assert.Empty(t, DedupeFields(nil))
}
