package testutils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/floormap/pointcloud"
)

// WritePCDFile writes cloud as a binary pcd named name inside dir and fails the test if it cannot.
func WritePCDFile(t *testing.T, dir, name string, cloud pointcloud.Vectors) string {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, pointcloud.WritePCD(cloud, &buf, pointcloud.PCDBinary), test.ShouldBeNil)
	fn := filepath.Join(dir, name)
	test.That(t, os.WriteFile(fn, buf.Bytes(), 0o600), test.ShouldBeNil)
	return fn
}

// FloorPatch returns n*n points on the horizontal plane z around (x, y), spaced by step.
func FloorPatch(x, y, z, step float64, n int) pointcloud.Vectors {
	cloud := make(pointcloud.Vectors, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cloud = append(cloud, pointcloud.NewVector(x+float64(i)*step, y+float64(j)*step, z))
		}
	}
	return cloud
}

// WallPatch returns n*n points on a vertical plane x = x0, rising from z0 and starting at y.
func WallPatch(x0, y, z0, step float64, n int) pointcloud.Vectors {
	cloud := make(pointcloud.Vectors, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// a slight lean in x keeps the fit well posed
			cloud = append(cloud, pointcloud.NewVector(x0+float64(j)*step*0.2, y+float64(i)*step, z0+float64(j)*step))
		}
	}
	return cloud
}
