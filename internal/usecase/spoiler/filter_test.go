package spoiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelFilter_RejectsIncludeAndExclude(t *testing.T) {
	_, err := NewChannelFilter([]string{}, []string{})
	assert.ErrorIs(t, err, ErrIncludeAndExclude)

	_, err = NewChannelFilter([]string{"a"}, []string{"b"})
	assert.ErrorIs(t, err, ErrIncludeAndExclude)
}

func TestChannelFilter_Allows(t *testing.T) {
	none, err := NewChannelFilter(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, FilterNone, none.Mode())
	assert.True(t, none.Allows("any"))

	include, err := NewChannelFilter([]string{"chan1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, FilterInclude, include.Mode())
	assert.True(t, include.Allows("chan1"))
	assert.False(t, include.Allows("chan2"))

	exclude, err := NewChannelFilter(nil, []string{"chan1"})
	require.NoError(t, err)
	assert.Equal(t, FilterExclude, exclude.Mode())
	assert.False(t, exclude.Allows("chan1"))
	assert.True(t, exclude.Allows("chan2"))

	emptyInclude, err := NewChannelFilter([]string{}, nil)
	require.NoError(t, err)
	assert.False(t, emptyInclude.Allows("chan1"))
}
