package metrics

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the report as a Markdown document with a per-class table
func (r Report) Markdown(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Samples: %d\n", r.Samples)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "- Skipped (label unknown to the model): %d\n", r.Skipped)
	}
	fmt.Fprintf(&b, "- Accuracy: %.4f\n", r.Accuracy)
	fmt.Fprintf(&b, "- Weighted F1: %.4f\n", r.WeightedF1)
	fmt.Fprintf(&b, "- Macro F1: %.4f\n\n", r.MacroF1)

	b.WriteString("| Label | Precision | Recall | F1 | Support |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, c := range r.Classes {
		label := c.Label
		if label == "" {
			label = fmt.Sprint(c.ID)
		}
		label = strings.ReplaceAll(label, "|", "\\|")
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f | %d |\n", label, c.Precision, c.Recall, c.F1, c.Support)
	}
	return b.String()
}

// HTML renders the Markdown report as a standalone HTML page
func (r Report) HTML(title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(r.Markdown(title)), p, renderer)
}
