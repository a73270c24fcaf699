package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/cmdpool/internal/command"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		raw     string
		expSpec command.Spec
	}{
		"A program without arguments should have no args.": {
			raw:     "ls",
			expSpec: command.Spec{Program: "ls", Args: []string{}},
		},

		"A program with arguments should split them on spaces.": {
			raw:     "echo hello world",
			expSpec: command.Spec{Program: "echo", Args: []string{"hello", "world"}},
		},

		"An empty command should have an empty program.": {
			raw:     "",
			expSpec: command.Spec{Program: "", Args: []string{}},
		},

		"Extra spaces should produce empty tokens.": {
			raw:     "echo  a ",
			expSpec: command.Spec{Program: "echo", Args: []string{"", "a", ""}},
		},

		"Leading spaces should produce an empty program.": {
			raw:     " ls",
			expSpec: command.Spec{Program: "", Args: []string{"ls"}},
		},

		"Quotes should not be interpreted.": {
			raw:     `sh -c "echo hi"`,
			expSpec: command.Spec{Program: "sh", Args: []string{"-c", `"echo`, `hi"`}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			gotSpec := command.Parse(test.raw)
			assert.Equal(t, test.expSpec, gotSpec)
		})
	}
}

func TestSpecString(t *testing.T) {
	spec := command.Parse("echo  hello")
	assert.Equal(t, []string{"echo", "", "hello"}, spec.Argv())
	assert.Equal(t, "echo  hello", spec.String())
}
