package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Render(t *testing.T) {
	ctx := map[string]string{
		"firstname":  "Jane",
		"lastname":   "Smith",
		"counter":    "01",
		"first-name": "J",
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain variables", "$firstname$counter", "Jane01"},
		{"braced", "${firstname}.${lastname}$counter", "Jane.Smith01"},
		{"quiet reference", "$!firstname$!{lastname}", "JaneSmith01"},
		{"implicit counter appended", "$firstname", "Jane01"},
		{"missing variable renders empty", "$middlename$lastname", "Smith01"},
		{"literal dollar", `\$$firstname`, "$Jane01"},
		{"dollar not followed by a name", "$ 5$", "$ 5$01"},
		{"unbraced stops at dash", "$firstname-$lastname", "Jane-Smith01"},
		{"braced accepts dash", "${first-name}$lastname", "JSmith01"},
		{"counter in the middle", "$firstname$counter.$lastname", "Jane01.Smith"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Render(ctx))
		})
	}
}

func TestCompile_ImplicitCounter(t *testing.T) {
	p := MustCompile("$firstname")
	assert.True(t, p.References(CounterVar))
	assert.Equal(t, []string{"firstname", "counter"}, p.Variables())
	assert.Equal(t, "$firstname", p.Source())

	q := MustCompile("${counter}x$firstname")
	assert.Equal(t, []string{"counter", "firstname"}, q.Variables())
	assert.Equal(t, "7xJane", q.Render(map[string]string{"counter": "7", "firstname": "Jane"}))
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("${firstname")
	assert.Error(t, err)

	_, err = Compile("${1abc}")
	assert.Error(t, err)

	_, err = Compile("${}")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("${") })
}

func TestRender_EmptyContext(t *testing.T) {
	p := MustCompile("$firstname$lastname")
	assert.Equal(t, "", p.Render(nil))
}

func TestProgram_Trailing(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"$firstname$counter", true},
		{"$firstname", true},
		{"${counter}$firstname", false},
		{"$firstname${counter}.", false},
		{"$counter$firstname$counter", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, MustCompile(tt.src).Trailing(CounterVar))
		})
	}
}
