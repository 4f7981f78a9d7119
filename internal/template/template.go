// Package template compiles identifier templates such as
// "$firstname.${lastname}$counter" into reusable programs.
//
// Grammar:
//
//	$name  ${name}  $!name  $!{name}   variable reference
//	\$                                 literal dollar sign
//
// Names match [A-Za-z_][A-Za-z0-9_]*; the braced form also accepts "-". A "$"
// that does not start a reference is kept literally. Missing variables render
// as the empty string.
package template

import (
	"fmt"
	"strings"
)

// CounterVar is the reserved variable used for collision resolution.
const CounterVar = "counter"

type segment struct {
	literal string
	name    string
}

// Program is a compiled template. It is immutable and safe for concurrent use.
type Program struct {
	source   string
	segments []segment
}

// Compile parses src. When src never references counter, a trailing $counter
// reference is appended so every identifier family has a collision slot.
func Compile(src string) (*Program, error) {
	segs, err := parse(src)
	if err != nil {
		return nil, err
	}
	p := &Program{source: src, segments: segs}
	if !p.References(CounterVar) {
		p.segments = append(p.segments, segment{name: CounterVar})
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the template text the program was compiled from.
func (p *Program) Source() string { return p.source }

// References reports whether the program renders the named variable.
func (p *Program) References(name string) bool {
	for _, s := range p.segments {
		if s.name == name {
			return true
		}
	}
	return false
}

// Trailing reports whether name is referenced exactly once, as the last
// segment of the program.
func (p *Program) Trailing(name string) bool {
	n := len(p.segments)
	if n == 0 || p.segments[n-1].name != name {
		return false
	}
	for _, s := range p.segments[:n-1] {
		if s.name == name {
			return false
		}
	}
	return true
}

// Variables lists the referenced variable names in first-use order.
func (p *Program) Variables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range p.segments {
		if s.name == "" {
			continue
		}
		if _, ok := seen[s.name]; ok {
			continue
		}
		seen[s.name] = struct{}{}
		out = append(out, s.name)
	}
	return out
}

// Render substitutes ctx into the program.
func (p *Program) Render(ctx map[string]string) string {
	var b strings.Builder
	for _, s := range p.segments {
		if s.name == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(ctx[s.name])
	}
	return b.String()
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func parse(src string) ([]segment, error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); {
		c := src[i]

		if c == '\\' && i+1 < len(src) && src[i+1] == '$' {
			lit.WriteByte('$')
			i += 2
			continue
		}
		if c != '$' {
			lit.WriteByte(c)
			i++
			continue
		}

		j := i + 1
		if j < len(src) && src[j] == '!' {
			j++
		}

		if j < len(src) && src[j] == '{' {
			end := strings.IndexByte(src[j+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated reference at offset %d in %q", i, src)
			}
			name := strings.TrimSpace(src[j+1 : j+1+end])
			if !validName(name) {
				return nil, fmt.Errorf("invalid variable name %q at offset %d", name, i)
			}
			flush()
			segs = append(segs, segment{name: name})
			i = j + 1 + end + 1
			continue
		}

		if j < len(src) && isNameStart(src[j]) {
			k := j + 1
			for k < len(src) && isNameChar(src[k]) {
				k++
			}
			flush()
			segs = append(segs, segment{name: src[j:k]})
			i = k
			continue
		}

		// not a reference
		lit.WriteString(src[i:j])
		i = j
	}
	flush()

	return segs, nil
}

func validName(name string) bool {
	if name == "" || !isNameStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isNameChar(name[i]) && name[i] != '-' {
			return false
		}
	}
	return true
}
