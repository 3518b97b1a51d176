package core

import "math"

// Physical constants used throughout the pipeline (SI units).
const (
	// CLight is the vacuum speed of light in m/s.
	CLight = 299792458.0
	// OmegaEarth is the Earth rotation rate in rad/s (IERS).
	OmegaEarth = 7.2921151467e-5
	// EarthRadius is the mean Earth radius in metres.
	EarthRadius = 6371000.0
)

// Vec3 is an ECEF-style vector in metres.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Unit returns the normalised vector, or the zero vector when v has no length.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// GeometricRange returns the signal path length from transmitter to receiver
// including the Sagnac correction for Earth rotation during signal travel.
// Both positions are ECEF metres at the same epoch; the correction accounts
// for the frame rotating while the signal is in flight.
func GeometricRange(transmitter, receiver Vec3) float64 {
	rho := transmitter.DistanceTo(receiver)
	sagnac := OmegaEarth * (transmitter.X*receiver.Y - transmitter.Y*receiver.X) / CLight
	return rho + sagnac
}

// ElevationAzimuth returns the elevation and azimuth of the target as seen
// from the observer, in radians. Elevation is measured from the local
// geometric horizon; azimuth is clockwise from north.
func ElevationAzimuth(observer, target Vec3) (elevation, azimuth float64) {
	los := target.Sub(observer)
	if los.Norm() == 0 || observer.Norm() == 0 {
		return math.Pi / 2, 0
	}

	// Local north/east/up frame at the observer, derived from its
	// spherical latitude and longitude.
	lat := math.Atan2(observer.Z, math.Hypot(observer.X, observer.Y))
	lon := math.Atan2(observer.Y, observer.X)
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	east := -sinLon*los.X + cosLon*los.Y
	north := -sinLat*cosLon*los.X - sinLat*sinLon*los.Y + cosLat*los.Z
	up := cosLat*cosLon*los.X + cosLat*sinLon*los.Y + sinLat*los.Z

	elevation = math.Atan2(up, math.Hypot(north, east))
	azimuth = math.Atan2(east, north)
	return elevation, azimuth
}

// NEUToECEF rotates a local north/east/up offset at the given ECEF position
// into the ECEF frame. Used to place antenna mount and phase-center offsets.
func NEUToECEF(position Vec3, neu [3]float64) Vec3 {
	if position.Norm() == 0 {
		return Vec3{X: neu[0], Y: neu[1], Z: neu[2]}
	}
	lat := math.Atan2(position.Z, math.Hypot(position.X, position.Y))
	lon := math.Atan2(position.Y, position.X)
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n, e, u := neu[0], neu[1], neu[2]
	return Vec3{
		X: -sinLat*cosLon*n - sinLon*e + cosLat*cosLon*u,
		Y: -sinLat*sinLon*n + cosLon*e + cosLat*sinLon*u,
		Z: cosLat*n + sinLat*u,
	}
}

// Elevation returns only the elevation angle in radians.
func Elevation(observer, target Vec3) float64 {
	el, _ := ElevationAzimuth(observer, target)
	return el
}
