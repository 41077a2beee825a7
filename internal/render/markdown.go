package render

import (
	"bytes"
	"strings"

	"notification-workers/internal/common/errors"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

var placeholderRewriter = strings.NewReplacer("{{", "${", "}}", "}")

var newlineRewriter = strings.NewReplacer("\r\n", lineBreak, "\n", lineBreak)

// MarkdownToHTML converts an inline message to HTML. {{name}} placeholders
// become ${name} before parsing so the engine can resolve them afterwards.
func MarkdownToHTML(raw string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(placeholderRewriter.Replace(raw)), &buf); err != nil {
		return "", errors.NewMarkdownConversionFailedError(err)
	}
	return newlineRewriter.Replace(buf.String()), nil
}
