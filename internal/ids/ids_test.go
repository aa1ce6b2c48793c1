package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortableAndParsable(t *testing.T) {
	first := New()
	second := New()

	_, err := ulid.ParseStrict(first)
	require.NoError(t, err)
	assert.Len(t, first, ulid.EncodedSize)
	assert.Less(t, first, second)
}
