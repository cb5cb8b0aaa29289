package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSearcher 固定返回的 Searcher 替身
type stubSearcher struct {
	passages []Passage
	err      error
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]Passage, error) {
	return s.passages, s.err
}

func TestTool_NameAndSchema(t *testing.T) {
	tl := NewTool(&stubSearcher{}, "clothing-site (EU region)")
	assert.Equal(t, ToolName, tl.Name())
	assert.Contains(t, tl.Description(), "clothing-site")
	schema := tl.Schema()
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "query")
	assert.Contains(t, schema.Required, "query")
}

func TestTool_Execute_Success(t *testing.T) {
	tl := NewTool(&stubSearcher{passages: []Passage{
		{Text: "wide-leg denim", Score: 0.8},
		{Text: "quiet luxury", Score: 0.6},
	}}, "")
	res, err := tl.Execute(context.Background(), map[string]any{"query": "trends"})
	require.NoError(t, err)
	assert.Empty(t, res.Err)

	var got []Passage
	require.NoError(t, json.Unmarshal([]byte(res.Content), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "wide-leg denim", got[0].Text)
}

func TestTool_Execute_MissingQuery(t *testing.T) {
	tl := NewTool(&stubSearcher{}, "")
	_, err := tl.Execute(context.Background(), map[string]any{})
	require.Error(t, err)
	re, ok := AsRetrievalError(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidQuery, re.Kind)
}

func TestTool_Execute_PropagatesTypedError(t *testing.T) {
	tl := NewTool(&stubSearcher{err: NewRetrievalError(KindDataStoreNotFound, "missing", nil)}, "")
	_, err := tl.Execute(context.Background(), map[string]any{"query": "q"})
	require.Error(t, err)
	re, ok := AsRetrievalError(err)
	require.True(t, ok)
	assert.Equal(t, KindDataStoreNotFound, re.Kind)
}
