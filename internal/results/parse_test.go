package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "loading fixture %s", name)
	return data
}

func TestParse_CommonActors(t *testing.T) {
	rs, err := Parse(loadFixture(t, "common_actors.json"))
	require.NoError(t, err)

	assert.Equal(t, []string{"actorName", "freebaseURI"}, rs.Vars)
	require.Equal(t, 3, rs.Len())
	assert.False(t, rs.Empty())

	first := rs.Rows[0]
	assert.Equal(t, Value{Type: TypeLiteral, Value: "Tom Hanks"}, first["actorName"])
	assert.True(t, first["freebaseURI"].IsURI())
	assert.False(t, first["actorName"].IsURI())

	assert.Equal(t, "en", rs.Rows[1]["actorName"].Lang)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#string", rs.Rows[2]["actorName"].Datatype)

	// OPTIONAL-style unbound variable.
	_, bound := rs.Rows[2].Get("freebaseURI")
	assert.False(t, bound)

	assert.Equal(t, []string{"Tom Hanks", "Scatman Crothers", "Philip Stone"}, rs.Column("actorName"))
	assert.True(t, rs.HasVar("freebaseURI"))
	assert.False(t, rs.HasVar("director"))
}

func TestParse_Idempotent(t *testing.T) {
	raw := loadFixture(t, "common_actors.json")
	a, err := Parse(raw)
	require.NoError(t, err)
	b, err := Parse(raw)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("second parse differs (-first +second):\n%s", diff)
	}
}

func TestParse_EmptyBindings(t *testing.T) {
	rs, err := Parse(loadFixture(t, "empty.json"))
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.True(t, rs.Empty())
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, []string{"actorName"}, rs.Vars)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"html error page", "<html><body>Virtuoso 37000 Error</body></html>", "invalid JSON"},
		{"empty body", "  \n", "empty body"},
		{"json null", "null", "missing head"},
		{"array", "[1,2,3]", "unexpected JSON shape"},
		{"no head", `{"results":{"bindings":[]}}`, "missing head"},
		{"no vars", `{"head":{},"results":{"bindings":[]}}`, "missing head.vars"},
		{"no results", `{"head":{"vars":["x"]}}`, "missing results"},
		{"ask payload", `{"head":{"vars":[]},"boolean":true}`, "boolean result"},
		{"ask payload without vars", `{"head":{},"boolean":false}`, "boolean result"},
		{"no bindings", `{"head":{"vars":["x"]},"results":{}}`, "missing results.bindings"},
		{"null bindings", `{"head":{"vars":["x"]},"results":{"bindings":null}}`, "missing results.bindings"},
		{"undeclared var", `{"head":{"vars":["x"]},"results":{"bindings":[{"y":{"type":"literal","value":"1"}}]}}`, `variable "y" not in head.vars`},
		{"missing type", `{"head":{"vars":["x"]},"results":{"bindings":[{"x":{"value":"1"}}]}}`, `variable "x" has no type`},
		{"null value", `{"head":{"vars":["x"]},"results":{"bindings":[{"x":null}]}}`, `variable "x" has no type`},
		{"null row", `{"head":{"vars":["x"]},"results":{"bindings":[null]}}`, "binding 0 is null"},
		{"duplicate var", `{"head":{"vars":["x","x"]},"results":{"bindings":[]}}`, `duplicate variable "x"`},
		{"wrong type", `{"head":{"vars":"x"},"results":{"bindings":[]}}`, "unexpected JSON shape"},
		{"bad utf8", "{\"head\":{\"vars\":[\"\xff\"]}}", "not valid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, rs)

			var mErr *MalformedResultError
			require.True(t, errors.As(err, &mErr), "want *MalformedResultError, got %T", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_EmptyLiteralIsLegal(t *testing.T) {
	rs, err := Parse([]byte(`{"head":{"vars":["x"]},"results":{"bindings":[{"x":{"type":"literal","value":""}}]}}`))
	require.NoError(t, err)
	v, ok := rs.Rows[0].Get("x")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestParseBoolean(t *testing.T) {
	got, err := ParseBoolean(loadFixture(t, "ask.json"))
	require.NoError(t, err)
	assert.True(t, got)

	_, err = ParseBoolean(loadFixture(t, "empty.json"))
	var mErr *MalformedResultError
	require.True(t, errors.As(err, &mErr))
}

func TestIsBoolean(t *testing.T) {
	assert.True(t, IsBoolean(loadFixture(t, "ask.json")))
	assert.True(t, IsBoolean([]byte(`{"head":{},"boolean":false}`)))
	assert.False(t, IsBoolean(loadFixture(t, "common_actors.json")))
	assert.False(t, IsBoolean(loadFixture(t, "empty.json")))
	assert.False(t, IsBoolean([]byte("<html>boolean</html>")))
}
