package limitedbuf_test

import (
	"strings"
	"testing"

	"github.com/marshallku/traffic-switcher/internal/limitedbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFromRetainsDataUnderCap(t *testing.T) {
	b := limitedbuf.New(64)
	n, err := b.ReadFrom(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, "hello", string(b.Bytes()))
	assert.False(t, b.IsOverflow())
	assert.EqualValues(t, 5, b.TotalSize())
}

func TestReadFromTruncatesAndReportsOverflow(t *testing.T) {
	b := limitedbuf.New(4)
	input := strings.Repeat("x", 100)
	_, err := b.ReadFrom(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "xxxx", string(b.Bytes()))
	assert.True(t, b.IsOverflow())
	assert.EqualValues(t, 100, b.TotalSize())
}

func TestReadFromZeroCapDiscardsEverything(t *testing.T) {
	b := limitedbuf.New(0)
	_, err := b.ReadFrom(strings.NewReader("anything"))
	require.NoError(t, err)
	assert.Empty(t, b.Bytes())
	assert.True(t, b.IsOverflow())
}
