// ABOUTME: Tests for TOML serialization of schema structs
// ABOUTME: Checks table layout, comment placement, secrets and round-trips

package configfile

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Pomelo32141/MaiBot/internal/schema"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type detailSection struct {
	Detail string `toml:"detail,required" comment:"Detail field for testing"`
}

type valueSection struct {
	Value                  int    `toml:"value,required" comment:"Value field for testing"`
	ListField              []int  `toml:"list_field,required" comment:"List field for testing"`
	MultiCommentField      string `toml:"multi_comment_field" default:"example"`
	FieldAfterMultiComment string `toml:"field_after_multi_comment" default:"after" comment:"Field after multi-comment to test ordering, should have a whitespace above."`
}

var _ = schema.Describe[valueSection](map[string]string{
	"multi_comment_field": `
        This is a multi-comment field for testing
        The comment spans multiple lines, which should appear as multi-line comments.
    `,
})

type simpleConfig struct {
	SubConfig  detailSection `toml:"sub_config,required" comment:"Sub configuration for testing"`
	SubConfig2 valueSection  `toml:"sub_config2,required" comment:"Second sub configuration for testing"`
}

// normalizeQuotes lets layout assertions ignore the encoder's choice between
// literal and basic strings.
func normalizeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", `"`)
}

func TestEncode_Layout(t *testing.T) {
	cfg := simpleConfig{
		SubConfig: detailSection{Detail: "This is a detail field"},
		SubConfig2: valueSection{
			Value:                  10,
			ListField:              []int{1, 2, 3},
			MultiCommentField:      "example",
			FieldAfterMultiComment: "after",
		},
	}

	out, err := Encode(&cfg, "1.0.0")
	require.NoError(t, err)

	want := `[inner]
version = "1.0.0"

# Sub configuration for testing
[sub_config]
# Detail field for testing
detail = "This is a detail field"

# Second sub configuration for testing
[sub_config2]
# Value field for testing
value = 10
# List field for testing
list_field = [1, 2, 3]
# This is a multi-comment field for testing
# The comment spans multiple lines, which should appear as multi-line comments.
multi_comment_field = "example"

# Field after multi-comment to test ordering, should have a whitespace above.
field_after_multi_comment = "after"
`
	assert.Equal(t, want, normalizeQuotes(string(out)))
}

type providerEntry struct {
	Name   string `toml:"name"`
	APIKey string `toml:"api_key,secret"`
}

type limits struct {
	Max int `toml:"max" default:"3"`
}

type channelSection struct {
	Name     string             `toml:"name" default:"main"`
	Tags     schema.Set[string] `toml:"tags"`
	Limits   limits             `toml:"limits"`
	Rules    []providerEntry    `toml:"rules"`
	Aliases  map[string]string  `toml:"aliases"`
	Optional *int               `toml:"optional"`
}

type nestedConfig struct {
	Channel   channelSection  `toml:"channel"`
	Providers []providerEntry `toml:"providers"`
}

func TestEncode_NestedTablesAndSecrets(t *testing.T) {
	cfg := nestedConfig{
		Channel: channelSection{
			Name:    "main",
			Tags:    schema.NewSet("b", "a"),
			Limits:  limits{Max: 5},
			Rules:   []providerEntry{{Name: "r1", APIKey: "k"}},
			Aliases: map[string]string{"x": "y"},
		},
		Providers: []providerEntry{{Name: "p1", APIKey: "secret-1"}, {Name: "p2", APIKey: "secret-2"}},
	}

	out, err := Encode(cfg, "2.0.0", WithRedaction())
	require.NoError(t, err)
	text := normalizeQuotes(string(out))

	assert.NotContains(t, text, "secret-1")
	assert.NotContains(t, text, "optional")
	assert.Contains(t, text, `tags = ["a", "b"]`)
	assert.Contains(t, text, `aliases = {x = "y"}`)

	// Scalars, then sub-tables, then arrays of tables.
	order := []string{"[channel]", `name = "main"`, "[channel.limits]", "max = 5", "[[channel.rules]]", "[[providers]]", `name = "p2"`}
	last := -1
	for _, marker := range order {
		idx := strings.Index(text[last+1:], marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q after offset %d in:\n%s", marker, last, text)
		last += idx + 1
	}

	full, err := Encode(cfg, "2.0.0")
	require.NoError(t, err)
	assert.Contains(t, string(full), "secret-1")
	assert.Contains(t, string(full), "secret-2")
}

func TestPlain(t *testing.T) {
	cfg := nestedConfig{
		Channel: channelSection{
			Name:   "main",
			Tags:   schema.NewSet("b", "a"),
			Limits: limits{Max: 5},
		},
		Providers: []providerEntry{{Name: "p1", APIKey: "secret-1"}},
	}

	plain, err := Plain(&cfg, WithRedaction())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"channel": map[string]any{
			"name":    "main",
			"tags":    []any{"a", "b"},
			"limits":  map[string]any{"max": int64(5)},
			"rules":   []any{},
			"aliases": map[string]any{},
		},
		"providers": []any{map[string]any{"name": "p1"}},
	}, plain)

	full, err := Plain(cfg)
	require.NoError(t, err)
	providers := full["providers"].([]any)
	assert.Equal(t, "secret-1", providers[0].(map[string]any)["api_key"])

	_, err = Plain(42)
	assert.ErrorIs(t, err, ErrNotWritable)
}

type nilItems struct {
	Values []*int          `toml:"values"`
	Lookup map[string]*int `toml:"lookup"`
}

type nilItemsConfig struct {
	Section nilItems `toml:"section"`
}

func TestEncode_RejectsNilElements(t *testing.T) {
	one := 1

	_, err := Encode(nilItemsConfig{Section: nilItems{Values: []*int{nil, &one}}}, "1.0.0")
	assert.ErrorIs(t, err, ErrNotWritable)

	_, err = Encode(nilItemsConfig{Section: nilItems{Lookup: map[string]*int{"a": nil}}}, "1.0.0")
	assert.ErrorIs(t, err, ErrNotWritable)

	out, err := Encode(nilItemsConfig{Section: nilItems{Values: []*int{&one, &one}}}, "1.0.0")
	require.NoError(t, err)
	assert.Contains(t, string(out), "values = [1, 1]")
}

type scalarTop struct {
	Name string `toml:"name"`
}

func TestEncode_RejectsScalarTopLevel(t *testing.T) {
	_, err := Encode(scalarTop{Name: "x"}, "1.0.0")
	assert.True(t, errors.Is(err, ErrNotWritable))

	_, err = Encode(42, "1.0.0")
	assert.True(t, errors.Is(err, ErrNotWritable))
}

func TestEncode_QuotesNonBareHeaders(t *testing.T) {
	assert.Equal(t, "bot", quoteKey("bot"))
	assert.Equal(t, `"a b"`, quoteKey("a b"))
	assert.Equal(t, `a."b.c"`, headerKey([]string{"a", "b.c"}))
}

type rtItem struct {
	Name  string  `toml:"name"`
	Score float64 `toml:"score"`
}

type rtSection struct {
	Count   int64              `toml:"count"`
	Label   string             `toml:"label"`
	Flag    bool               `toml:"flag"`
	Tags    []string           `toml:"tags"`
	Unique  schema.Set[int]    `toml:"unique"`
	Pair    [2]int             `toml:"pair"`
	Weights map[string]float64 `toml:"weights"`
	Timeout time.Duration      `toml:"timeout"`
	Note    *string            `toml:"note"`
	Items   []rtItem           `toml:"items"`
}

type rtConfig struct {
	Section rtSection `toml:"section"`
	Entries []rtItem  `toml:"entries"`
}

func roundTrip(t *testing.T, cfg *rtConfig) *rtConfig {
	t.Helper()
	out, err := Encode(cfg, "1.0.0")
	require.NoError(t, err)
	raw, err := Parse(out)
	require.NoError(t, err, string(out))
	ver, err := StoredVersion(raw)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", ver)
	var d schema.Discrepancies
	got, err := schema.Load[rtConfig](raw, &d)
	require.NoError(t, err, string(out))
	return got
}

func TestEncode_RoundTrip(t *testing.T) {
	note := "multi\nline \"quoted\""
	cfg := &rtConfig{
		Section: rtSection{
			Count:   -7,
			Label:   "it's here",
			Flag:    true,
			Tags:    []string{"x", "y"},
			Unique:  schema.NewSet(10, 9),
			Pair:    [2]int{1, 2},
			Weights: map[string]float64{"a": 0.5, "b c": 2},
			Timeout: 90 * time.Second,
			Note:    &note,
			Items:   []rtItem{{Name: "one", Score: 1}, {Name: "two", Score: 2.25}},
		},
		Entries: []rtItem{},
	}
	assert.Equal(t, cfg, roundTrip(t, cfg))
}

func TestEncode_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("load(encode(x)) == x", prop.ForAll(
		func(count int64, label string, flag bool, tags []string, score float64) bool {
			cfg := &rtConfig{
				Section: rtSection{
					Count:   count,
					Label:   label,
					Flag:    flag,
					Tags:    append([]string{}, tags...),
					Unique:  schema.NewSet[int](),
					Weights: map[string]float64{},
					Items:   []rtItem{{Name: label, Score: score}},
				},
				Entries: []rtItem{{Name: "e", Score: score}},
			}
			out, err := Encode(cfg, "1.0.0")
			if err != nil {
				return false
			}
			raw, err := Parse(out)
			if err != nil {
				return false
			}
			if _, err := StoredVersion(raw); err != nil {
				return false
			}
			got, err := schema.Load[rtConfig](raw, nil)
			return err == nil && reflect.DeepEqual(cfg, got)
		},
		gen.Int64(),
		gen.AlphaString(),
		gen.Bool(),
		gen.SliceOf(gen.AlphaString()),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
