package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarouselStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status CarouselStatus
		want   string
	}{
		{CarouselStatusNew, "new"},
		{CarouselStatusDistributed, "distributed"},
		{CarouselStatusQualified, "qualified"},
		{CarouselStatusUnqualified, "unqualified"},
		{CarouselStatusComplete, "complete"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.Valid())
		})
	}
}

func TestCarouselStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to CarouselStatus
		want     bool
	}{
		{CarouselStatusNew, CarouselStatusDistributed, true},
		{CarouselStatusDistributed, CarouselStatusDistributed, true},
		{CarouselStatusDistributed, CarouselStatusQualified, true},
		{CarouselStatusDistributed, CarouselStatusUnqualified, true},
		{CarouselStatusDistributed, CarouselStatusComplete, true},
		{CarouselStatusNew, CarouselStatusQualified, false},
		{CarouselStatusDistributed, CarouselStatusNew, false},
		{CarouselStatusQualified, CarouselStatusDistributed, false},
		{CarouselStatusComplete, CarouselStatusNew, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCarouselStatus_Terminal(t *testing.T) {
	t.Parallel()
	assert.False(t, CarouselStatusNew.Terminal())
	assert.False(t, CarouselStatusDistributed.Terminal())
	assert.True(t, CarouselStatusQualified.Terminal())
	assert.True(t, CarouselStatusUnqualified.Terminal())
	assert.True(t, CarouselStatusComplete.Terminal())
	assert.False(t, CarouselStatus("bogus").Terminal())
}

func TestCarousel_Transition(t *testing.T) {
	t.Parallel()

	c := &Carousel{ID: 7, Status: CarouselStatusNew}
	require.NoError(t, c.Transition(CarouselStatusDistributed))
	assert.Equal(t, CarouselStatusDistributed, c.Status)

	err := c.Transition(CarouselStatusNew)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot move from distributed to new")
	assert.Equal(t, CarouselStatusDistributed, c.Status)

	err = c.Transition("pending")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown carousel status")
}

func TestScoreInfo_Total(t *testing.T) {
	t.Parallel()

	si := ScoreInfo{
		"qa_1":    {Value: "yes", Score: 10},
		"date":    {Value: "3", Score: 6},
		"channel": {Value: "site/p", Score: -15},
	}
	assert.Equal(t, 1, si.Total())
	assert.Equal(t, 0, ScoreInfo{}.Total())
}
