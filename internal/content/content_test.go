package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnquote(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "v=spf1 -all", want: "v=spf1 -all"},
		{name: "quoted", in: `"v=spf1 -all"`, want: "v=spf1 -all"},
		{name: "surrounding whitespace", in: `  "hello"  `, want: "hello"},
		{name: "multi string", in: `"v=spf1 include:a" " -all"`, want: "v=spf1 include:a -all"},
		{name: "escaped quote", in: `"say \"hi\""`, want: `say "hi"`},
		{name: "unbalanced", in: `"open`, want: `"open`},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unquote(tt.in))
		})
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	assert.Equal(t, `"v=DMARC1; p=none"`, Quote("v=DMARC1; p=none"))
	assert.Equal(t, `"already"`, Quote(`"already"`))
	assert.Equal(t, "v=DMARC1; p=none", Canonical(Quote("v=DMARC1;   p=none")))
}

func TestEqualHost(t *testing.T) {
	assert.True(t, EqualHost("Example.COM.", "example.com"))
	assert.False(t, EqualHost("a.example.com", "b.example.com"))
	assert.False(t, Equal("MS=abc", "ms=abc"))
}

func TestMergePreservesForeignTags(t *testing.T) {
	got := MergeTag("a=1; foreign=xyz", TagRequirement{Tag: "a", Value: "2"})
	assert.Equal(t, "a=2; foreign=xyz", got)
}

func TestMergeAppendsMissingTag(t *testing.T) {
	got := MergeTag(`"v=DMARC1; p=none"`, TagRequirement{Tag: "rua", Value: "mailto:dmarc@example.org"})
	assert.Equal(t, "v=DMARC1; p=none; rua=mailto:dmarc@example.org", got)
}

func TestMergeDropsDuplicateTag(t *testing.T) {
	got := MergeTag("v=DMARC1; p=reject; sp=none; p=quarantine", TagRequirement{Tag: "p", Value: "none"})
	assert.Equal(t, "v=DMARC1; p=none; sp=none", got)
}

func TestMergeIncludeMember(t *testing.T) {
	req := TagRequirement{Tag: "rua", Value: "mailto:internal@org", Mode: MergeInclude}

	got := MergeTag("v=X1; rua=mailto:a@ext", req)
	assert.Equal(t, "v=X1; rua=mailto:a@ext,mailto:internal@org", got)
	assert.True(t, HasTag(got, req))

	assert.Equal(t, "v=X1; rua=mailto:internal@org", MergeTag("v=X1", req))
	assert.False(t, HasTag("v=X1; rua=mailto:a@ext", req))
}

func TestParseTagsTolerance(t *testing.T) {
	assert.Empty(t, ParseTags(""))
	assert.Empty(t, ParseTags(" ; ;"))

	list := ParseTags("v=DMARC1;; garbage ; p = none")
	require.Len(t, list, 3)
	assert.True(t, list[1].Bare)
	value, ok := list.Get("P")
	require.True(t, ok)
	assert.Equal(t, "none", value)
	assert.Equal(t, "v=DMARC1; garbage; p=none", list.String())
}

func TestSatisfiesSetMode(t *testing.T) {
	assert.True(t, HasTag("v=DMARC1; p=none", TagRequirement{Tag: "p", Value: "none"}))
	assert.False(t, HasTag("v=DMARC1; p=reject", TagRequirement{Tag: "p", Value: "none"}))
	assert.False(t, HasTag("", TagRequirement{Tag: "p", Value: "none"}))
}
