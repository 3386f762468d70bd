package pointcloud

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/spatialmath"
)

func TestPCDRoundTrip(t *testing.T) {
	cloud := Vectors{
		NewVector(0.25, -1.5, 0),
		NewVector(3, 2, 0.125),
		NewVector(-0.5, 0.75, 1),
	}
	for _, kind := range []PCDType{PCDAscii, PCDBinary, PCDCompressed} {
		t.Run(kind.String(), func(t *testing.T) {
			var buf bytes.Buffer
			test.That(t, WritePCD(cloud, &buf, kind), test.ShouldBeNil)
			got, err := ReadPCD(&buf)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldResemble, cloud)

			buf.Reset()
			test.That(t, WritePCD(Vectors{}, &buf, kind), test.ShouldBeNil)
			got, err = ReadPCD(&buf)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldHaveLength, 0)
		})
	}

	var buf bytes.Buffer
	err := WritePCD(cloud, &buf, PCDType(7))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadPCDCompressedLarge(t *testing.T) {
	// a repetitive floor patch actually compresses
	cloud := make(Vectors, 0, 400)
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			cloud = append(cloud, NewVector(float64(i)*0.5, float64(j)*0.5, 0))
		}
	}
	var compressed, binaryBuf bytes.Buffer
	test.That(t, WritePCD(cloud, &compressed, PCDCompressed), test.ShouldBeNil)
	test.That(t, WritePCD(cloud, &binaryBuf, PCDBinary), test.ShouldBeNil)
	test.That(t, compressed.Len(), test.ShouldBeLessThan, binaryBuf.Len())

	got, err := ReadPCD(&compressed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, cloud)
}

func TestReadPCDExtraFields(t *testing.T) {
	// intensity before the coordinates and a normal triple after them
	pcd := `# .PCD v0.7 - Point Cloud Data file format
VERSION 0.7
FIELDS intensity x y z normal
SIZE 4 4 4 4 4
TYPE F F F F F
COUNT 1 1 1 1 3
WIDTH 2
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 2
DATA ascii
7 1.5 2.5 -0.5 0 0 1
9 -1 0 0 0 0 1`
	got, err := ReadPCD(strings.NewReader(pcd))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, Vectors{NewVector(1.5, 2.5, -0.5), NewVector(-1, 0, 0)})
}

func TestReadPCDBinaryMixedTypes(t *testing.T) {
	header := "VERSION .7\nFIELDS x y z ring\nSIZE 8 8 4 2\nTYPE F F F U\nCOUNT 1 1 1 1\n" +
		"WIDTH 1\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 1\nDATA binary\n"
	var buf bytes.Buffer
	buf.WriteString(header)
	record := make([]byte, 22)
	binary.LittleEndian.PutUint64(record[0:8], math.Float64bits(0.1))
	binary.LittleEndian.PutUint64(record[8:16], math.Float64bits(-0.2))
	binary.LittleEndian.PutUint32(record[16:20], math.Float32bits(0.5))
	binary.LittleEndian.PutUint16(record[20:22], 12)
	buf.Write(record)

	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, Vectors{NewVector(0.1, -0.2, 0.5)})
}

func TestReadPCDErrors(t *testing.T) {
	for name, pcd := range map[string]string{
		"version": "VERSION .6\n",
		"order":   "VERSION .7\nSIZE 4 4 4\n",
		"no z": "VERSION .7\nFIELDS x y\nSIZE 4 4\nTYPE F F\nCOUNT 1 1\nWIDTH 0\nHEIGHT 1\n" +
			"VIEWPOINT 0 0 0 1 0 0 0\nPOINTS 0\nDATA ascii\n",
		"points": "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH 2\nHEIGHT 1\n" +
			"VIEWPOINT 0 0 0 1 0 0 0\nPOINTS 3\nDATA ascii\n",
		"compressed truncated": "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH 1\nHEIGHT 1\n" +
			"VIEWPOINT 0 0 0 1 0 0 0\nPOINTS 1\nDATA binary_compressed\n",
		"short": "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH 2\nHEIGHT 1\n" +
			"VIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2\nDATA ascii\n1 2 3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPCD(strings.NewReader(pcd))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestReadPCDOversizedHeader(t *testing.T) {
	header := func(fields, size, typ, count, width, height, points, data string) string {
		return "VERSION .7\nFIELDS " + fields + "\nSIZE " + size + "\nTYPE " + typ + "\nCOUNT " + count +
			"\nWIDTH " + width + "\nHEIGHT " + height + "\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS " + points +
			"\nDATA " + data + "\n"
	}
	for name, tc := range map[string]struct {
		pcd string
		msg string
	}{
		"points over limit": {
			header("x y z", "4 4 4", "F F F", "1 1 1", "100000000000", "1", "100000000000", "ascii") + "1 2 3\n",
			"exceeds the limit",
		},
		"width times height overflows": {
			header("x y z", "4 4 4", "F F F", "1 1 1", "4294967296", "4294967296", "0", "ascii"),
			"does not match",
		},
		"ascii declares more than it holds": {
			header("x y z", "4 4 4", "F F F", "1 1 1", "4000000000", "1", "4000000000", "ascii") + "1 2 3\n",
			"reading point 1",
		},
		"binary declares more than it holds": {
			header("x y z", "4 4 4", "F F F", "1 1 1", "4000000000", "1", "4000000000", "binary") + "0123456789ab",
			"reading point 1",
		},
		"compressed declares more than it holds": {
			header("x y z", "4 4 4", "F F F", "1 1 1", "4000000000", "1", "4000000000", "binary_compressed") +
				"\x0c\x00\x00\x00\x0c\x00\x00\x00",
			"header needs",
		},
		"zero count": {
			header("x y z", "4 4 4", "F F F", "1 1 0", "1", "1", "1", "ascii"),
			"COUNT field 0",
		},
		"huge count": {
			header("x y z n", "4 4 4 4", "F F F F", "1 1 1 99999999999", "1", "1", "1", "ascii"),
			"out of range",
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPCD(strings.NewReader(tc.pcd))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestNewFromFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()

	cloud := Vectors{NewVector(1, 2, 3)}
	fn := filepath.Join(dir, "scan.pcd")
	var buf bytes.Buffer
	test.That(t, WritePCD(cloud, &buf, PCDBinary), test.ShouldBeNil)
	test.That(t, os.WriteFile(fn, buf.Bytes(), 0o600), test.ShouldBeNil)

	got, err := NewFromFile(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, cloud)

	_, err = NewFromFile(filepath.Join(dir, "scan.xyz"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "do not know how to read")

	_, err = NewFromFile(filepath.Join(dir, "missing.pcd"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVectors(t *testing.T) {
	cloud := Vectors{NewVector(1, 0, 0), NewVector(0, 2, 0), NewVector(math.NaN(), 0, 0)}
	meta := cloud.MetaData()
	test.That(t, meta.NonFinite, test.ShouldEqual, 1)
	test.That(t, meta.MaxX, test.ShouldEqual, 1.0)
	test.That(t, meta.MaxY, test.ShouldEqual, 2.0)
	test.That(t, meta.MinZ, test.ShouldEqual, 0.0)

	moved := cloud[:2].Transform(spatialmath.NewPlanarPose(1, 1, math.Pi/2))
	test.That(t, moved.Len(), test.ShouldEqual, 2)
	test.That(t, moved[0].X, test.ShouldAlmostEqual, 1.0)
	test.That(t, moved[0].Y, test.ShouldAlmostEqual, 2.0)
	test.That(t, moved[1].X, test.ShouldAlmostEqual, -1.0)
	test.That(t, moved[1].Y, test.ShouldAlmostEqual, 1.0)
	// the input is untouched
	test.That(t, cloud[0], test.ShouldResemble, NewVector(1, 0, 0))
}
