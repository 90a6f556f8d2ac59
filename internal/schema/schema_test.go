package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_OrderIsContextStrategyMetric(t *testing.T) {
	s, err := New(
		[]string{"Date and Time", "Run #"},
		[]string{"EMA_1D_1"},
		[]string{"Trades #", "Profit %"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Date and Time", "Run #", "EMA_1D_1", "Trades #", "Profit %"}, s.Fields())
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []string{"EMA_1D_1"}, s.StrategyFields())
}

func TestNew_AllGroupsEmpty(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptySchema)
}

func TestNew_SingleGroupIsEnough(t *testing.T) {
	s, err := New(nil, nil, []string{"Profit %"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Profit %"}, s.Fields())
}

func TestNew_DuplicateAcrossGroups(t *testing.T) {
	_, err := New([]string{"Strategy"}, []string{"Strategy"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestNew_DuplicateWithinGroup(t *testing.T) {
	_, err := New(nil, []string{"EMA_1D_1", "EMA_1D_1"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestNew_BlankFieldName(t *testing.T) {
	_, err := New([]string{"  "}, nil, nil)
	assert.Error(t, err)
}

func TestHas(t *testing.T) {
	s, err := New([]string{"Strategy"}, nil, []string{"Profit %"})
	require.NoError(t, err)

	assert.True(t, s.Has("Profit %"))
	assert.False(t, s.Has("profit %"))
}

func TestFields_CopyIsIndependent(t *testing.T) {
	s, err := New([]string{"Strategy"}, nil, nil)
	require.NoError(t, err)

	fields := s.Fields()
	fields[0] = "mutated"
	assert.Equal(t, []string{"Strategy"}, s.Fields())
}
