package uniqueid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/matchkey"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jane() *models.Account {
	return models.NewAccount("acc-1", map[string]string{"firstname": "Jane", "lastname": "Smith"})
}

func newBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

func TestBuild_Examples(t *testing.T) {
	ctx := context.Background()

	t.Run("A: no collision renders without counter", func(t *testing.T) {
		b := newBuilder(t, Config{Template: "$firstname$counter"})
		id, err := b.Build(ctx, Params{Account: jane(), AlreadyUsed: NewSet()})
		require.NoError(t, err)
		assert.Equal(t, "Jane", id)
	})

	t.Run("B: collision appends padded counter", func(t *testing.T) {
		b := newBuilder(t, Config{Template: "$firstname$counter", CounterMinDigits: 2})
		id, err := b.Build(ctx, Params{Account: jane(), AlreadyUsed: NewSet("Jane")})
		require.NoError(t, err)
		assert.Equal(t, "Jane01", id)
	})

	t.Run("C: truncation keeps the counter", func(t *testing.T) {
		b := newBuilder(t, Config{Template: "$firstname$counter", CounterMinDigits: 2, MaxLength: 5})
		id, err := b.Build(ctx, Params{Account: jane(), AlreadyUsed: NewSet("Jane")})
		require.NoError(t, err)
		assert.Equal(t, "Jan01", id)
	})

	t.Run("C: length equal to max is untouched", func(t *testing.T) {
		b := newBuilder(t, Config{Template: "$firstname$counter", CounterMinDigits: 2, MaxLength: 6})
		id, err := b.Build(ctx, Params{Account: jane(), AlreadyUsed: NewSet("Jane")})
		require.NoError(t, err)
		assert.Equal(t, "Jane01", id)
	})
}

func TestBuild_Deterministic(t *testing.T) {
	b := newBuilder(t, Config{Template: "$firstname.$lastname", CounterMinDigits: 3, Case: CaseLower})
	used := NewSet("jane.smith", "jane.smith001")

	first, err := b.Build(context.Background(), Params{Account: jane(), AlreadyUsed: used})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := b.Build(context.Background(), Params{Account: jane(), AlreadyUsed: used})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "jane.smith002", first)
}

func TestBuild_CounterMonotonicAndGrowsPastMinDigits(t *testing.T) {
	b := newBuilder(t, Config{Template: "$firstname", CounterMinDigits: 1})
	used := NewSet()

	var got []string
	for i := 0; i < 12; i++ {
		id, err := b.Build(context.Background(), Params{Account: jane(), AlreadyUsed: used})
		require.NoError(t, err)
		assert.False(t, used.Has(id), "returned id must not be in the used set")
		used.Add(id)
		got = append(got, id)
	}

	want := []string{"Jane"}
	for i := 1; i <= 11; i++ {
		want = append(want, fmt.Sprintf("Jane%d", i))
	}
	assert.Equal(t, want, got)
}

func TestBuild_TruncationPreservesCounter(t *testing.T) {
	b := newBuilder(t, Config{Template: "$firstname$lastname$counter", CounterMinDigits: 3, MaxLength: 8})
	used := NewSet()
	for i := 0; i < 5; i++ {
		id, err := b.Build(context.Background(), Params{Account: jane(), AlreadyUsed: used})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(id), 8)
		if i > 0 {
			suffix := fmt.Sprintf("%03d", i)
			assert.True(t, strings.HasSuffix(id, suffix), "id %q must end with %q", id, suffix)
			assert.Len(t, id, 8)
		}
		used.Add(id)
	}
}

func TestBuild_TruncatedCollisionIsAvoided(t *testing.T) {
	b := newBuilder(t, Config{Template: "$firstname$lastname", CounterMinDigits: 1, MaxLength: 4})
	id, err := b.Build(context.Background(), Params{Account: jane(), AlreadyUsed: NewSet("Jane", "Jan1")})
	require.NoError(t, err)
	assert.Equal(t, "Jan2", id)
}

func TestBuild_Normalization(t *testing.T) {
	acc := models.NewAccount("acc-2", map[string]string{"firstname": "Zoë Ann", "lastname": "O'Brien-Straße"})

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"none", Config{Template: "$firstname $lastname"}, "Zoë Ann O'Brien-Straße"},
		{"diacritics and quotes", Config{Template: "$firstname $lastname", NormalizeDiacritics: true}, "Zoe Ann OBrien-Strasse"},
		{"spaces", Config{Template: "$firstname $lastname", StripSpaces: true}, "ZoëAnnO'Brien-Straße"},
		{"all lower", Config{Template: "$firstname $lastname", NormalizeDiacritics: true, StripSpaces: true, Case: CaseLower}, "zoeannobrien-strasse"},
		{"upper", Config{Template: "$lastname", NormalizeDiacritics: true, Case: CaseUpper}, "OBRIEN-STRASSE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, tt.cfg)
			id, err := b.Build(context.Background(), Params{Account: acc})
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestTransliterate(t *testing.T) {
	assert.Equal(t, "Ake Hakansson", Transliterate("Åke Håkansson"))
	assert.Equal(t, "Lukasz Wojcik", Transliterate("Łukasz Wójcik"))
	assert.Equal(t, "Soren AEro", Transliterate("Søren Ærø"))
	assert.Equal(t, "O'Neil", Transliterate("O’Neil"))
}

func TestBuild_EmptyRender(t *testing.T) {
	b := newBuilder(t, Config{Template: "$middlename"})
	_, err := b.Build(context.Background(), Params{Account: jane()})
	require.True(t, errors.Is(err, common.ErrEmptyRender), "got %v", err)

	blank := models.NewAccount("acc-3", map[string]string{"firstname": "   "})
	b = newBuilder(t, Config{Template: "$firstname", StripSpaces: true})
	_, err = b.Build(context.Background(), Params{Account: blank})
	assert.ErrorIs(t, err, common.ErrEmptyRender)
}

func TestBuild_ContextSources(t *testing.T) {
	acc := models.NewAccount("acc-4", map[string]string{"LastName": "Smith", "first": "Jane"})
	table := matchkey.Table{
		{SourceAttributePaths: []string{"first"}, IdentityAttributeName: "firstname"},
		{SourceAttributePaths: []string{"LastName"}, IdentityAttributeName: "lastname"},
	}
	b := newBuilder(t, Config{Template: "${firstname}.${lastname}$sequence", Case: CaseLower})

	id, err := b.Build(context.Background(), Params{Account: acc, Mappings: table})
	require.NoError(t, err)
	assert.Equal(t, ".", id, "mapped attributes are absent unless requested")

	id, err = b.Build(context.Background(), Params{Account: acc, Mappings: table, IncludeMapped: true, Extra: map[string]string{"sequence": "007"}})
	require.NoError(t, err)
	assert.Equal(t, "jane.smith007", id)
}

func TestBase_IgnoresUsedSet(t *testing.T) {
	b := newBuilder(t, Config{Template: "$firstname", CounterMinDigits: 2})
	base, err := b.Base(context.Background(), Params{Account: jane(), AlreadyUsed: NewSet("Jane")})
	require.NoError(t, err)
	assert.Equal(t, "Jane", base)
}

func TestNew_InvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Template: "$a", CounterMinDigits: -1},
		{Template: "$a", MaxLength: -2},
		{Template: "$a", Case: "title"},
		{Template: "${a"},
		{Template: "${counter}$firstname", MaxLength: 1},
		{Template: "$a$counter.x", MaxLength: 4},
		{Template: "$counter$a$counter", MaxLength: 4},
	} {
		_, err := New(cfg)
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	}
}

func TestNew_CounterPositionWithoutMaxLength(t *testing.T) {
	b := newBuilder(t, Config{Template: "${counter}$firstname"})
	id, err := b.Build(context.Background(), Params{Account: jane(), AlreadyUsed: NewSet("Jane")})
	require.NoError(t, err)
	assert.Equal(t, "1Jane", id)

	// the implicit counter is trailing
	newBuilder(t, Config{Template: "$firstname", MaxLength: 3})
}
