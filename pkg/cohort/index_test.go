package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-cohorts/pkg/segtree"
)

func TestIndex_OverlappingCohorts(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add(35410, weekA))
	require.NoError(t, b.Add(35413, weekA))
	require.NoError(t, b.Add(35412, weekC))
	require.NoError(t, b.Add(35411, weekC))
	require.NoError(t, b.Add(35414, weekC))

	idx, err := b.Build()
	require.NoError(t, err)

	a, ok := idx.Cohort(201527)
	require.True(t, ok)
	assert.Equal(t, []segtree.Segment{{Lo: 35410, Hi: 35410}, {Lo: 35413, Hi: 35413}}, a.Segments)

	c, ok := idx.Cohort(201533)
	require.True(t, ok)
	assert.Equal(t, []segtree.Segment{{Lo: 35411, Hi: 35412}, {Lo: 35414, Hi: 35414}}, c.Segments)

	want := map[uint64]int{
		35410: 201527,
		35411: 201533,
		35412: 201533,
		35413: 201527,
		35414: 201533,
	}
	for id, cohortID := range want {
		got, ok := idx.Lookup(id)
		assert.True(t, ok, id)
		assert.Equal(t, cohortID, got, id)
	}

	for _, id := range []uint64{0, 35409, 35415, 99999} {
		_, ok := idx.Lookup(id)
		assert.False(t, ok, id)
	}
}

func TestIndex_ScanPastShortCohort(t *testing.T) {
	// La cohorte 2 commence après la 1 mais se termine bien avant: le parcours
	// arrière ne doit pas s'arrêter sur elle.
	idx := NewIndex([]*Entry{
		{CohortID: 2, Segments: []segtree.Segment{{Lo: 50, Hi: 51}}, Count: 2},
		{CohortID: 1, Segments: []segtree.Segment{{Lo: 1, Hi: 40}, {Lo: 60, Hi: 100}}, Count: 81},
	})

	got, ok := idx.Lookup(80)
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	got, ok = idx.Lookup(51)
	assert.True(t, ok)
	assert.Equal(t, 2, got)

	_, ok = idx.Lookup(55)
	assert.False(t, ok)

	_, ok = idx.Lookup(101)
	assert.False(t, ok)
}

func TestIndex_SameIDInTwoCohorts(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add(100, weekA))
	require.NoError(t, b.Add(101, weekA))
	require.NoError(t, b.Add(101, weekB))

	idx, err := b.Build()
	require.NoError(t, err)

	// la cohorte au minimum le plus grand est examinée en premier
	got, ok := idx.Lookup(101)
	assert.True(t, ok)
	assert.Equal(t, 201532, got)

	got, ok = idx.Lookup(100)
	assert.True(t, ok)
	assert.Equal(t, 201527, got)
}

func TestIndex_SkipsEmptyEntries(t *testing.T) {
	idx := NewIndex([]*Entry{
		{CohortID: 1},
		{CohortID: 2, Segments: []segtree.Segment{{Lo: 5, Hi: 5}}, Count: 1},
	})
	assert.Equal(t, 1, idx.Len())
	_, ok := idx.Cohort(1)
	assert.False(t, ok)

	ws, ok := idx.WeekStart(2)
	assert.True(t, ok)
	assert.True(t, ws.IsZero())

	_, ok = idx.WeekStart(1)
	assert.False(t, ok)
}

func TestEntry_Bounds(t *testing.T) {
	e := &Entry{Segments: []segtree.Segment{{Lo: 3, Hi: 4}, {Lo: 9, Hi: 12}}}
	assert.Equal(t, uint64(3), e.Min())
	assert.Equal(t, uint64(12), e.Max())
	assert.True(t, e.Contains(10))
	assert.False(t, e.Contains(5))
}
