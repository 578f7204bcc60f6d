package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"intenttune/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = internal.NewLogger(internal.LogLevelError)

func TestCleanJSONString(t *testing.T) {
	fenced := "Here you go:\n```json\n{\"a\": 1}\n```\nand\n```json\n{\"b\": 2}\n```"
	assert.Equal(t, `{"a": 1}`, CleanJSONString(fenced))
	assert.Equal(t, `{"a": 1}`, CleanJSONString(`{"a": 1}`))
	// a fence without the expected newlines is left alone
	assert.Equal(t, "```json{\"a\":1}```", CleanJSONString("```json{\"a\":1}```"))
}

func TestProcessResponseSingleObject(t *testing.T) {
	items, err := ProcessResponse("```json\n{\"robot\": \"Bạn có đồng ý?\", \"user_intent\": \"agree\", \"score\": 0.5}\n```", quiet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"robot", "user_intent", "score"}, items[0].Keys)
	assert.Equal(t, "Bạn có đồng ý?", items[0].Values["robot"])
	assert.Equal(t, "0.5", items[0].Values["score"])
}

func TestProcessResponseArraySkipsScalars(t *testing.T) {
	items, err := ProcessResponse(`[{"a": "x"}, 3, "text", {"b": null, "c": {"d": [1,2]}}]`, quiet)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "", items[1].Values["b"])
	assert.Equal(t, `{"d": [1,2]}`, items[1].Values["c"])
}

func TestProcessResponseInvalid(t *testing.T) {
	items, err := ProcessResponse("not json at all", quiet)
	assert.Error(t, err)
	assert.Empty(t, items)

	items, err = ProcessResponse("42", quiet)
	assert.NoError(t, err)
	assert.Empty(t, items, "a lone scalar holds no records")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "r", truncate("ràng buộc", 2))
	assert.Equal(t, "rà", truncate("ràng buộc", 3))
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("chào ", 50)
	got := truncate(long, 200)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 200)
}

func TestFlatten(t *testing.T) {
	items, err := ProcessResponse(`[{"b": "1", "a": "2"}, {"a": "3", "c": "4"}]`, quiet)
	require.NoError(t, err)
	headers, rows := Flatten(items)
	assert.Equal(t, []string{"b", "a", "c"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, "4", rows[1]["c"])
	_, ok := rows[0]["c"]
	assert.False(t, ok)
}
