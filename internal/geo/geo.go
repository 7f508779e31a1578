package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// GeohashPrecision is the canonical number of geohash characters used when
// encoding ping locations.
const GeohashPrecision = 12

// EncodeLocation encodes a GPS coordinate into a geohash.
func EncodeLocation(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, GeohashPrecision)
}

// DecodeLocation decodes a geohash to the center of its cell.
func DecodeLocation(h string) (lat, lng float64) {
	return geohash.DecodeCenter(h)
}

// SVY21 (EPSG:3414) transverse-Mercator parameters over the WGS84 ellipsoid.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563

	originLat     = 1.366666666666667
	originLng     = 103.83333333333333
	scaleFactor   = 1.0
	falseEasting  = 28001.642
	falseNorthing = 38744.572
)

var (
	e2 = flattening * (2 - flattening) // first eccentricity squared
	e4 = e2 * e2
	e6 = e4 * e2
	ep2 = e2 / (1 - e2) // second eccentricity squared

	originM = meridianArc(originLat * math.Pi / 180)
)

// meridianArc returns the meridian arc length from the equator to latitude
// phi (radians).
func meridianArc(phi float64) float64 {
	return semiMajorAxis * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// Project converts a GPS coordinate to SVY21 planar coordinates (meters).
func Project(lat, lng float64) geom.Coord {
	phi := lat * math.Pi / 180
	lam := (lng - originLng) * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	nu := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := lam * cosPhi

	m := meridianArc(phi)

	easting := falseEasting + scaleFactor*nu*(a+
		(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120)
	northing := falseNorthing + scaleFactor*(m-originM+
		nu*tanPhi*(a*a/2+
			(5-t+9*c+4*c*c)*a*a*a*a/24+
			(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))

	return geom.Coord{easting, northing}
}

// PlanarDistance is the straight-line distance between two projected points.
// Either coordinate being absent yields +Inf so that geofence comparisons
// fail closed.
func PlanarDistance(a, b geom.Coord) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	return xy.Distance(a, b)
}
