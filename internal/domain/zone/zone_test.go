package zone

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns a polygon covering [minLng,maxLng] x [minLat,maxLat].
func square(minLng, minLat, maxLng, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLng, minLat},
		{maxLng, minLat},
		{maxLng, maxLat},
		{minLng, maxLat},
		{minLng, minLat},
	}}
}

type mockRepo struct {
	zones []Zone
	err   error
}

func (m *mockRepo) ByIDs(_ context.Context, ids []int64) ([]Zone, error) {
	if m.err != nil {
		return nil, m.err
	}
	// Preserve the admissible ordering the way the storage layer does.
	var out []Zone
	for _, id := range ids {
		for _, z := range m.zones {
			if z.ID == id {
				out = append(out, z)
			}
		}
	}
	return out, nil
}

func (m *mockRepo) ModulePricing(_ context.Context, _, _ int64) (*ModulePricing, error) {
	return nil, ErrNoModulePricing
}

func TestZoneContains(t *testing.T) {
	z := Zone{ID: 1, Polygon: square(90.35, 23.70, 90.45, 23.80)}

	assert.True(t, z.Contains(23.74, 90.39))
	assert.False(t, z.Contains(23.90, 90.39), "latitude outside")
	assert.False(t, z.Contains(23.74, 90.50), "longitude outside")
}

func TestLocate(t *testing.T) {
	repo := &mockRepo{zones: []Zone{
		{ID: 1, Name: "east", Polygon: square(0, 0, 10, 10)},
		{ID: 2, Name: "west", Polygon: square(5, 5, 15, 15)},
	}}
	v := NewValidator(repo)

	t.Run("single containing zone", func(t *testing.T) {
		z, err := v.Locate(context.Background(), 2, 2, []int64{1, 2})
		require.NoError(t, err)
		assert.Equal(t, int64(1), z.ID)
	})

	t.Run("overlap resolves to the first admissible zone", func(t *testing.T) {
		z, err := v.Locate(context.Background(), 7, 7, []int64{2, 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), z.ID)
	})

	t.Run("point outside every zone", func(t *testing.T) {
		_, err := v.Locate(context.Background(), 50, 50, []int64{1, 2})
		require.ErrorIs(t, err, ErrOutOfCoverage)
	})

	t.Run("empty admissible set", func(t *testing.T) {
		_, err := v.Locate(context.Background(), 2, 2, nil)
		require.ErrorIs(t, err, ErrOutOfCoverage)
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		failing := NewValidator(&mockRepo{err: errors.New("boom")})
		_, err := failing.Locate(context.Background(), 2, 2, []int64{1})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrOutOfCoverage)
	})
}
