// Package extract pulls JSON records out of LLM responses stored in a
// spreadsheet column and flattens them into rows.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"intenttune/internal"
	"intenttune/internal/errors"

	"github.com/tidwall/gjson"
)

// ResponseColumn holds the raw model answer in the input sheet
const ResponseColumn = "assistant_response"

var fencedJSON = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// Item is one JSON object with its keys in document order
type Item struct {
	Keys   []string
	Values map[string]string
}

// CleanJSONString returns the body of the first ```json fenced block, or the
// text unchanged when there is none
func CleanJSONString(text string) string {
	if !strings.Contains(text, "```json") {
		return text
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// ProcessResponse parses one response. A single object yields one item; an
// array yields its object elements and skips anything else.
func ProcessResponse(text string, logger *internal.Logger) ([]Item, error) {
	cleaned := CleanJSONString(text)
	if !gjson.Valid(cleaned) {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid JSON: %s", truncate(text, 200)))
	}

	parsed := gjson.Parse(cleaned)
	elements := []gjson.Result{parsed}
	if parsed.IsArray() {
		elements = parsed.Array()
	}

	var items []Item
	for _, el := range elements {
		if !el.IsObject() {
			logger.Warn("Skipping non-dictionary item: %s", truncate(el.Raw, 100))
			continue
		}
		items = append(items, toItem(el))
	}
	return items, nil
}

func toItem(obj gjson.Result) Item {
	item := Item{Values: make(map[string]string)}
	obj.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if _, seen := item.Values[k]; !seen {
			item.Keys = append(item.Keys, k)
		}
		item.Values[k] = cell(value)
		return true
	})
	return item
}

// cell renders strings unquoted, null as empty and everything else as raw JSON
func cell(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}

// Flatten merges items into one header list (first-seen order) and rows
func Flatten(items []Item) (headers []string, rows []map[string]string) {
	seen := make(map[string]struct{})
	for _, it := range items {
		for _, k := range it.Keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				headers = append(headers, k)
			}
		}
		rows = append(rows, it.Values)
	}
	return headers, rows
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
