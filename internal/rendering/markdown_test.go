package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty document",
			raw:  `[]`,
			want: "",
		},
		{
			name: "heading and paragraph",
			raw: `[
				{"_type":"block","style":"h2","children":[{"_type":"span","text":"Our Services"}]},
				{"_type":"block","children":[{"_type":"span","text":"We build homes"}]}
			]`,
			want: "## Our Services\n\nWe build homes\n",
		},
		{
			name: "marks in canonical order",
			raw: `[{"_type":"block","children":[{"_type":"span","text":"go","marks":["em","k","strong"]}],
				"markDefs":[{"_key":"k","_type":"link","href":"https://example.com"}]}]`,
			want: "[**_go_**](https://example.com)\n",
		},
		{
			name: "code is not escaped",
			raw:  `[{"_type":"block","children":[{"_type":"span","text":"a_b","marks":["code"]}]}]`,
			want: "`a_b`\n",
		},
		{
			name: "blockquote",
			raw:  `[{"_type":"block","style":"blockquote","children":[{"_type":"span","text":"line one\nline two"}]}]`,
			want: "> line one\n> line two\n",
		},
		{
			name: "nested lists",
			raw: `[
				{"_type":"block","listItem":"number","children":[{"_type":"span","text":"Plan"}]},
				{"_type":"block","listItem":"bullet","level":2,"children":[{"_type":"span","text":"Survey"}]},
				{"_type":"block","listItem":"number","children":[{"_type":"span","text":"Build"}]}
			]`,
			want: "1. Plan\n   - Survey\n2. Build\n",
		},
		{
			name: "image with caption",
			raw:  `[{"_type":"image","asset":{"_ref":"image-abc-20x10-png"},"caption":"Site"}]`,
			want: "![Image](https://cdn.sanity.io/images/z1g1o05i/production/abc-20x10.png?fit=crop&h=800&w=1200)\n\n_Site_\n",
		},
		{
			name: "unknown nodes are dropped",
			raw: `[
				{"_type":"youtube"},
				{"_type":"image","asset":null},
				{"_type":"block","children":[{"_type":"span","text":"kept"}]}
			]`,
			want: "kept\n",
		},
	}

	r := newTestRenderer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.RenderMarkdown(decode(t, tt.raw)))
		})
	}
}

func TestRenderMarkdown_UnsafeLink(t *testing.T) {
	raw := `[{"_type":"block","children":[{"_type":"span","text":"x","marks":["k"]}],
		"markDefs":[{"_key":"k","_type":"link","href":"javascript:void(0)"}]}]`
	assert.Equal(t, "x\n", newTestRenderer().RenderMarkdown(decode(t, raw)))
}

func TestRenderMarkdown_LinkDestinationEscaped(t *testing.T) {
	raw := `[{"_type":"block","children":[{"_type":"span","text":"plans","marks":["k"]}],
		"markDefs":[{"_key":"k","_type":"link","href":"https://example.com/a b) [x](javascript:alert(1)"}]}]`
	assert.Equal(t,
		"[plans](https://example.com/a%20b%29%20[x]%28javascript:alert%281%29)\n",
		newTestRenderer().RenderMarkdown(decode(t, raw)))
}
