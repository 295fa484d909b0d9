package lidar

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SphericalToCartesian converts distance (meters), azimuth (degrees) and
// elevation (degrees) into Cartesian sensor-frame coordinates.
// Coordinate convention: X=right, Y=forward, Z=up. Azimuth is measured
// clockwise from +Y toward +X when viewed from above.
func SphericalToCartesian(distance, azimuthDeg, elevationDeg float64) (x, y, z float64) {
	azimuthRad := azimuthDeg * math.Pi / 180.0
	elevationRad := elevationDeg * math.Pi / 180.0

	cosElevation := math.Cos(elevationRad)
	sinElevation := math.Sin(elevationRad)
	cosAzimuth := math.Cos(azimuthRad)
	sinAzimuth := math.Sin(azimuthRad)

	x = distance * cosElevation * sinAzimuth
	y = distance * cosElevation * cosAzimuth
	z = distance * sinElevation
	return
}

// AzimuthUnit returns the unit vector in the scanning plane (z=0) for the
// given azimuth in degrees, using the SphericalToCartesian convention.
func AzimuthUnit(azimuthDeg float64) r3.Vec {
	x, y, z := SphericalToCartesian(1, azimuthDeg, 0)
	return r3.Vec{X: x, Y: y, Z: z}
}

// NormalizeAzimuth wraps an angle in degrees into [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
