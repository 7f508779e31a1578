package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectOrigin(t *testing.T) {
	// The projection origin maps exactly onto the false easting/northing.
	xy := Project(originLat, originLng)
	assert.InDelta(t, falseEasting, xy[0], 1e-6)
	assert.InDelta(t, falseNorthing, xy[1], 1e-6)
}

func TestProjectDistances(t *testing.T) {
	// One millidegree of latitude is about 110.6m on the ground.
	a := Project(1.3000, 103.8400)
	b := Project(1.3010, 103.8400)
	assert.InDelta(t, 110.6, PlanarDistance(a, b), 1.0)

	// Near the equator a millidegree of longitude is about 111.3m.
	c := Project(1.3000, 103.8410)
	assert.InDelta(t, 111.3, PlanarDistance(a, c), 1.0)
}

func TestProjectNorthIncreasesNorthing(t *testing.T) {
	south := Project(1.25, 103.84)
	north := Project(1.35, 103.84)
	assert.Greater(t, north[1], south[1])

	west := Project(1.30, 103.70)
	east := Project(1.30, 103.95)
	assert.Greater(t, east[0], west[0])
}

func TestEncodeDecodeLocation(t *testing.T) {
	lat, lng := 1.29027, 103.851959

	h := EncodeLocation(lat, lng)
	assert.Len(t, h, GeohashPrecision)

	gotLat, gotLng := DecodeLocation(h)
	// A 12 character geohash cell is a few centimeters across.
	assert.InDelta(t, lat, gotLat, 1e-6)
	assert.InDelta(t, lng, gotLng, 1e-6)
}

func TestPlanarDistanceMissingCoordinates(t *testing.T) {
	a := Project(1.3, 103.84)
	assert.True(t, math.IsInf(PlanarDistance(a, nil), 1))
	assert.True(t, math.IsInf(PlanarDistance(nil, a), 1))
	assert.Zero(t, PlanarDistance(a, a))
}
