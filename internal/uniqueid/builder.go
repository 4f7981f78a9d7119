// Package uniqueid builds identifiers from a template, resolving collisions
// against a caller-supplied set with a zero-padded counter and truncating to
// a maximum length without touching the counter suffix.
package uniqueid

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/logging"
	"github.com/dmitrijs2005/gophid/internal/matchkey"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/template"
)

// Config is the immutable build configuration of one identifier kind.
type Config struct {
	Template            string   `json:"template" yaml:"template"`
	CounterMinDigits    int      `json:"counter_min_digits" yaml:"counter_min_digits"`
	MaxLength           int      `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	NormalizeDiacritics bool     `json:"normalize" yaml:"normalize"`
	StripSpaces         bool     `json:"strip_spaces" yaml:"strip_spaces"`
	Case                CaseMode `json:"case" yaml:"case"`
}

func (c Config) Validate() error {
	if c.CounterMinDigits < 0 {
		return fmt.Errorf("counter digits must not be negative, got %d", c.CounterMinDigits)
	}
	if c.MaxLength < 0 {
		return fmt.Errorf("max length must be positive when set, got %d", c.MaxLength)
	}
	if !c.Case.Valid() {
		return fmt.Errorf("unknown case mode %q", c.Case)
	}
	return nil
}

// Used is the "already taken" set consulted on every attempt.
type Used interface {
	Has(id string) bool
}

// Set is a plain Used implementation.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) { s[id] = struct{}{} }

// Params describes one build.
type Params struct {
	Account *models.Account
	// Mappings feed the context when IncludeMapped is set.
	Mappings      matchkey.Table
	IncludeMapped bool
	AlreadyUsed   Used
	// Extra holds reserved variables such as the primary sequence.
	Extra map[string]string
}

type Builder struct {
	cfg     Config
	program *template.Program
	log     logging.Logger
}

type Option func(*Builder)

func WithLogger(l logging.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// New validates cfg and compiles its template once.
func New(cfg Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	p, err := template.Compile(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	// truncation cuts in front of the counter, so it has to be the tail
	if cfg.MaxLength > 0 && !p.Trailing(template.CounterVar) {
		return nil, fmt.Errorf("%w: template %q must end with its only $%s when max length is set",
			common.ErrInvalidConfig, cfg.Template, template.CounterVar)
	}
	b := &Builder{cfg: cfg, program: p, log: logging.Discard()}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *Builder) Config() Config { return b.cfg }

// Uses reports whether the template references the named variable.
func (b *Builder) Uses(name string) bool { return b.program.References(name) }

// Build renders an identifier that is not in p.AlreadyUsed. It fails with
// common.ErrEmptyRender when the template renders nothing.
func (b *Builder) Build(ctx context.Context, p Params) (string, error) {
	vars := b.context(p)

	var (
		id      string
		counter int
	)
	for {
		c := ""
		if counter > 0 {
			c = b.formatCounter(counter)
		}
		vars[template.CounterVar] = c
		counterLen := len([]rune(c))

		raw := b.program.Render(vars)
		b.log.Debug(ctx, "template rendered", "result", raw, "counter", c)
		if raw == "" {
			return "", fmt.Errorf("account %s: %w", p.Account.ID, common.ErrEmptyRender)
		}

		id = b.cfg.normalize(raw)
		if id == "" {
			return "", fmt.Errorf("account %s: %w", p.Account.ID, common.ErrEmptyRender)
		}
		// truncated before the membership test so the returned id is the
		// one checked against AlreadyUsed
		id = b.truncate(id, counterLen)

		if p.AlreadyUsed == nil || !p.AlreadyUsed.Has(id) {
			break
		}
		b.log.Debug(ctx, "duplicate identifier", "id", id)
		counter++
	}

	b.log.Debug(ctx, "identifier built", "id", id)
	return id, nil
}

// Base renders the identifier with an empty counter and no collision check.
func (b *Builder) Base(ctx context.Context, p Params) (string, error) {
	p.AlreadyUsed = nil
	return b.Build(ctx, p)
}

func (b *Builder) context(p Params) map[string]string {
	vars := make(map[string]string, len(p.Account.Attributes)+len(p.Extra)+1)
	for k, v := range p.Account.Attributes {
		vars[k] = v
	}
	if p.IncludeMapped {
		for k, v := range matchkey.Build(p.Account, p.Mappings).Map() {
			vars[k] = v
		}
	}
	for k, v := range p.Extra {
		vars[k] = v
	}
	return vars
}

// formatCounter pads to CounterMinDigits; wider counters are never cut.
func (b *Builder) formatCounter(n int) string {
	s := strconv.Itoa(n)
	if pad := b.cfg.CounterMinDigits - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

// truncate removes the excess characters immediately before the trailing
// counter suffix of length counterLen. A counter longer than MaxLength is
// kept whole, so the result may then exceed MaxLength.
func (b *Builder) truncate(id string, counterLen int) string {
	if b.cfg.MaxLength <= 0 {
		return id
	}
	r := []rune(id)
	excess := len(r) - b.cfg.MaxLength
	if excess <= 0 {
		return id
	}
	counterStart := len(r) - counterLen
	keep := counterStart - excess
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + string(r[counterStart:])
}
