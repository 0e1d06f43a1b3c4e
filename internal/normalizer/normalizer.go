// Package normalizer turns a scraped product name and its loose specification
// fields into a structured attribute record and a deterministic catalog key.
package normalizer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const DefaultCategory = "pellets"

type RawProduct struct {
	Name     string
	Brand    string
	Category string
	Specs    map[string]string
}

type Result struct {
	Key        string
	Category   string
	Attributes model.Attributes
}

type quantityPattern struct {
	re   *regexp.Regexp
	unit string
}

// Order matters: the first pattern that matches anywhere in the text wins.
var quantityPatterns = []quantityPattern{
	{regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:kg|kgs|kilo|kilos|kilogramm|kilogram|kilograms)\b`), "kg"},
	{regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:t|to|tonne|tonnes|tonnen|ton|tons)\b`), "t"},
	{regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:lb|lbs|pound|pounds)\b`), "lb"},
	{regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:g|gr|gramm|gram|grams)\b`), "g"},
}

var diameterPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*mm\b`)

var bulkWords = map[string]struct{}{
	"bulk":      {},
	"loose":     {},
	"lose":      {},
	"loseware":  {},
	"silo":      {},
	"silowagen": {},
	"tanker":    {},
	"blown":     {},
	"einblasen": {},
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Spec keys (after folding) that feed typed attribute fields.
var (
	weightKeys    = []string{"weight", "gewicht", "net weight", "quantity", "menge"}
	packagingKeys = []string{"packaging", "verpackung", "package"}
	diameterKeys  = []string{"diameter", "durchmesser"}
)

type Normalizer struct {
	defaultCategory string
}

func New(defaultCategory string) *Normalizer {
	if strings.TrimSpace(defaultCategory) == "" {
		defaultCategory = DefaultCategory
	}
	return &Normalizer{defaultCategory: slug(fold(defaultCategory))}
}

// Normalize is pure: identical input always yields the identical Result.
func (n *Normalizer) Normalize(raw RawProduct) Result {
	specs := foldSpecs(raw.Specs)
	text := fold(raw.Name)

	attrs := model.Attributes{}

	// Explicit weight field first, then free text.
	if qty, unit, ok := extractQuantity(lookup(specs, weightKeys)); ok {
		attrs.Quantity, attrs.Unit = &qty, unit
	} else if qty, unit, ok := extractQuantity(text + " " + joinValues(specs)); ok {
		attrs.Quantity, attrs.Unit = &qty, unit
	}

	if d, ok := extractDiameter(lookup(specs, diameterKeys) + " " + text); ok {
		attrs.DiameterMM = &d
	}

	attrs.Packaging = classifyPackaging(lookup(specs, packagingKeys) + " " + text)

	for k, v := range specs {
		if contains(weightKeys, k) || contains(packagingKeys, k) || contains(diameterKeys, k) {
			continue
		}
		if attrs.Extra == nil {
			attrs.Extra = make(map[string]string)
		}
		attrs.Extra[k] = v
	}

	category := n.defaultCategory
	if c := slug(fold(raw.Category)); c != "" {
		category = c
	}

	return Result{
		Key:        attrs.Key(category),
		Category:   category,
		Attributes: attrs,
	}
}

func extractQuantity(text string) (float64, string, bool) {
	for _, p := range quantityPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := parseNumber(m[1]); ok && v > 0 {
			return v, p.unit, true
		}
	}
	return 0, "", false
}

func extractDiameter(text string) (float64, bool) {
	m := diameterPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return parseNumber(m[1])
}

// classifyPackaging returns bulk when a bulk keyword is present, bagged otherwise.
func classifyPackaging(text string) string {
	for _, tok := range tokenize(text) {
		if _, ok := bulkWords[tok]; ok {
			return model.PackagingBulk
		}
	}
	return model.PackagingBagged
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// fold lower-cases s and strips diacritics ("Holzpellets Größe" -> "holzpellets große").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// Casers are stateful, so one per call.
	return strings.TrimSpace(cases.Lower(language.Und).String(out))
}

func slug(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(s, "-"), "-")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func foldSpecs(specs map[string]string) map[string]string {
	out := make(map[string]string, len(specs))
	for k, v := range specs {
		k = fold(k)
		if k == "" {
			continue
		}
		out[k] = fold(v)
	}
	return out
}

func lookup(specs map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := specs[k]; ok {
			return v
		}
	}
	return ""
}

// joinValues concatenates spec values in key order so the result never
// depends on map iteration order.
func joinValues(specs map[string]string) string {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, specs[k])
	}
	return strings.Join(vals, " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
