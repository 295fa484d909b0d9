package lidar

import (
	"math"
	"testing"
)

func TestSphericalToCartesian(t *testing.T) {
	const eps = 1e-12
	tests := []struct {
		name                string
		dist, az, el        float64
		wantX, wantY, wantZ float64
	}{
		{"forward", 2, 0, 0, 0, 2, 0},
		{"right", 3, 90, 0, 3, 0, 0},
		{"behind", 1, 180, 0, 0, -1, 0},
		{"left", 1, 270, 0, -1, 0, 0},
		{"straight up", 4, 0, 90, 0, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, z := SphericalToCartesian(tt.dist, tt.az, tt.el)
			if math.Abs(x-tt.wantX) > eps || math.Abs(y-tt.wantY) > eps || math.Abs(z-tt.wantZ) > eps {
				t.Errorf("SphericalToCartesian(%v, %v, %v) = (%v, %v, %v), want (%v, %v, %v)",
					tt.dist, tt.az, tt.el, x, y, z, tt.wantX, tt.wantY, tt.wantZ)
			}
		})
	}
}

func TestAzimuthUnit_IsUnitInPlane(t *testing.T) {
	for az := -720.0; az <= 720; az += 17.5 {
		v := AzimuthUnit(az)
		n := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
		if math.Abs(n-1) > 1e-12 {
			t.Fatalf("AzimuthUnit(%v) norm = %v, want 1", az, n)
		}
		if v.Z != 0 {
			t.Fatalf("AzimuthUnit(%v).Z = %v, want 0", az, v.Z)
		}
	}
}

func TestNormalizeAzimuth(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{359, 359},
		{360, 0},
		{-90, 270},
		{725, 5},
	}
	for _, tt := range tests {
		if got := NormalizeAzimuth(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAzimuth(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
