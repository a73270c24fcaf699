// Package command knows how to turn raw command lines into executable specs.
//
// Parsing is naive on purpose: the line is split on every single space, there
// is no quoting, escaping or shell expansion. A token containing spaces can't be
// expressed and consecutive spaces produce empty argument tokens.
package command

import "strings"

// Spec is an executable command: a program and its positional arguments.
type Spec struct {
	Program string
	Args    []string
}

// Parse splits a raw command line into a Spec. The first token is the program,
// the rest are passed verbatim as arguments. An empty line yields an empty program.
func Parse(raw string) Spec {
	tokens := strings.Split(raw, " ")
	return Spec{
		Program: tokens[0],
		Args:    tokens[1:],
	}
}

// Argv returns the program followed by its arguments.
func (s Spec) Argv() []string {
	return append([]string{s.Program}, s.Args...)
}

func (s Spec) String() string { return strings.Join(s.Argv(), " ") }
