package uniqueid

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CaseMode selects the case folding applied to built identifiers.
type CaseMode string

const (
	CaseSame  CaseMode = "same"
	CaseNone  CaseMode = "none"
	CaseLower CaseMode = "lower"
	CaseUpper CaseMode = "upper"
)

func (c CaseMode) Valid() bool {
	switch c {
	case "", CaseSame, CaseNone, CaseLower, CaseUpper:
		return true
	}
	return false
}

func (c CaseMode) apply(s string) string {
	switch c {
	case CaseLower:
		return strings.ToLower(s)
	case CaseUpper:
		return strings.ToUpper(s)
	default:
		return s
	}
}

// letters that survive NFKD decomposition unchanged
var transliterations = strings.NewReplacer(
	"ß", "ss", "ẞ", "SS",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
	"ı", "i",
	"’", "'", "‘", "'", "ʼ", "'",
)

// Transliterate decomposes s (NFKD), drops combining marks and maps the
// remaining non-decomposable Latin letters to ASCII.
func Transliterate(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return transliterations.Replace(out)
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// normalize applies the configured normalization steps in order:
// transliteration and quote removal, whitespace stripping, case folding.
func (c Config) normalize(id string) string {
	if c.NormalizeDiacritics {
		id = Transliterate(id)
		id = strings.ReplaceAll(id, "'", "")
	}
	if c.StripSpaces {
		id = stripSpaces(id)
	}
	return c.Case.apply(id)
}
