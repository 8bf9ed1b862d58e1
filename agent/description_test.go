package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkryhx/patent-agents-sub002/testutil/mocks"
	"github.com/valkryhx/patent-agents-sub002/types"
)

func TestPlaceholderDescription_Deterministic(t *testing.T) {
	a := PlaceholderDescription("Smart lock")
	assert.Equal(t, a, PlaceholderDescription("Smart lock"))
	assert.True(t, strings.HasPrefix(a, "Smart lock:"))
}

func TestGenerateDescription(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`"` + strings.Repeat("描", 400) + `"`)

	desc, err := GenerateDescription(context.Background(), clientWith(p), "Smart lock")
	require.NoError(t, err)
	assert.Equal(t, maxDescriptionRunes, utf8.RuneCountInString(desc))
	assert.Contains(t, p.LastCall().Messages[1].Content, "200-300 character")
}

func TestGenerateDescription_NoClient(t *testing.T) {
	_, err := GenerateDescription(context.Background(), nil, "x")
	assert.True(t, types.IsErrorCode(err, types.ErrUnavailable))
}
