package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "paragraph",
			raw:  "Hello Ada",
			want: "<p>Hello Ada</p><br />",
		},
		{
			name: "placeholders are rewritten",
			raw:  "Hi {{firstName}}",
			want: "<p>Hi ${firstName}</p><br />",
		},
		{
			name: "emphasis and links",
			raw:  "**bold** and [site](https://example.com)",
			want: `<p><strong>bold</strong> and <a href="https://example.com">site</a></p><br />`,
		},
		{
			name: "soft line break becomes br",
			raw:  "one\ntwo",
			want: "<p>one<br />two</p><br />",
		},
		{
			name: "raw html passes through",
			raw:  `<div class="x">inline</div>`,
			want: `<div class="x">inline</div><br />`,
		},
		{
			name: "br produced by interpolation survives",
			raw:  "Line1<br />Line2",
			want: "<p>Line1<br />Line2</p><br />",
		},
		{
			name: "list",
			raw:  "- a\n- b",
			want: "<ul><br /><li>a</li><br /><li>b</li><br /></ul><br />",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarkdownToHTML(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarkdownThenEngine(t *testing.T) {
	html, err := MarkdownToHTML("Hello {{firstName}}, your code is **{{code}}**")
	require.NoError(t, err)

	got, err := NewEngine().Render(map[string]interface{}{"firstName": "Bo", "code": "X1"}, html)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello Bo, your code is <strong>X1</strong></p><br />", got)
}
