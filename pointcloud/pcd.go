package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	lzf "github.com/zhuyie/golzf"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = iota
	// PCDBinary binary format for pcd.
	PCDBinary
	// PCDCompressed binary format for pcd.
	PCDCompressed
)

func (t PCDType) String() string {
	switch t {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDCompressed:
		return "binary_compressed"
	default:
		return fmt.Sprintf("PCDType(%d)", int(t))
	}
}

// Limits on what a pcd header may declare. Sizes come from the file, so they are checked before
// anything is allocated from them.
const (
	maxPCDFieldCount = 1 << 16
	maxPCDPoints     = 1 << 32
	// pcdPreallocLimit caps the points reserved up front; larger clouds grow as they are read.
	pcdPreallocLimit = 1 << 20
)

type pcdValType string

const (
	pcdValFloat pcdValType = "F"
	pcdValInt   pcdValType = "I"
	pcdValUInt  pcdValType = "U"
)

type pcdHeader struct {
	fields []string
	size   []uint64
	type_  []pcdValType
	count  []uint64
	width  uint64
	height uint64
	points uint64
	data   PCDType

	// column index of x, y and z once COUNT is expanded
	xyz [3]int
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	value = strings.TrimSpace(value)
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		if len(tokens) == 0 {
			return errors.New("FIELDS line names no fields")
		}
		header.fields = tokens
	case "SIZE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in SIZE line")
		}
		header.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid SIZE field %s", token)
			}
			switch header.size[i] {
			case 1, 2, 4, 8:
			default:
				return errors.Errorf("unsupported SIZE %d", header.size[i])
			}
		}
	case "TYPE":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in TYPE line")
		}
		header.type_ = make([]pcdValType, len(tokens))
		for i, token := range tokens {
			switch t := pcdValType(token); t {
			case pcdValFloat, pcdValInt, pcdValUInt:
				header.type_[i] = t
			default:
				return errors.Errorf("invalid TYPE field %s", token)
			}
		}
	case "COUNT":
		if len(tokens) != len(header.fields) {
			return errors.New("unexpected number of fields in COUNT line")
		}
		header.count = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.count[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid COUNT field %s", token)
			}
			if header.count[i] == 0 || header.count[i] > maxPCDFieldCount {
				return errors.Errorf("COUNT field %d out of range [1, %d]", header.count[i], maxPCDFieldCount)
			}
		}
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid WIDTH field %s", value)
		}
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid HEIGHT field %s", value)
		}
	case "VIEWPOINT":
		// the viewpoint is accepted but not applied; the sensor frame comes from the transform tree
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		header.points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid POINTS field %s", value)
		}
		if header.points > maxPCDPoints {
			return errors.Errorf("POINTS field %d exceeds the limit of %d", header.points, uint64(maxPCDPoints))
		}
		if product, ok := mulPCDSize(header.width, header.height); !ok || header.points != product {
			return errors.Errorf("POINTS field %d does not match WIDTH %d * HEIGHT %d", header.points, header.width, header.height)
		}
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// locateXYZ finds the value column of x, y and z, accounting for fields with COUNT > 1.
func (h *pcdHeader) locateXYZ() error {
	found := [3]bool{}
	col := 0
	for i, name := range h.fields {
		axis := -1
		switch name {
		case "x":
			axis = 0
		case "y":
			axis = 1
		case "z":
			axis = 2
		}
		if axis >= 0 {
			if h.count[i] != 1 {
				return errors.Errorf("field %s must have COUNT 1", name)
			}
			h.xyz[axis] = col
			found[axis] = true
		}
		col += int(h.count[i])
	}
	for axis, ok := range found {
		if !ok {
			return errors.Errorf("pcd has no %q field", "xyz"[axis:axis+1])
		}
	}
	return nil
}

// mulPCDSize multiplies two header quantities, reporting false on overflow.
func mulPCDSize(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// columns expands SIZE and TYPE so there is one entry per value in a point record.
func (h *pcdHeader) columns() ([]uint64, []pcdValType) {
	var sizes []uint64
	var types []pcdValType
	for i := range h.fields {
		for c := uint64(0); c < h.count[i]; c++ {
			sizes = append(sizes, h.size[i])
			types = append(types, h.type_[i])
		}
	}
	return sizes, types
}

// ReadPCD reads an ordered batch of points from a pcd stream. Coordinates are taken as meters.
// Any set of fields is accepted as long as x, y and z are present; other fields are skipped.
func ReadPCD(inRaw io.Reader) (Vectors, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	if header.count == nil {
		header.count = make([]uint64, len(header.fields))
		for i := range header.count {
			header.count[i] = 1
		}
	}
	if err := header.locateXYZ(); err != nil {
		return nil, err
	}

	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	case PCDCompressed:
		return readPCDCompressed(in, header)
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (Vectors, error) {
	sizes, _ := header.columns()
	cloud := make(Vectors, 0, min(header.points, pcdPreallocLimit))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != len(sizes) {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		var xyz [3]float64
		for axis, col := range header.xyz {
			xyz[axis], err = strconv.ParseFloat(tokens[col], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d field %s", i, tokens[col])
			}
		}
		cloud = append(cloud, NewVector(xyz[0], xyz[1], xyz[2]))
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (Vectors, error) {
	sizes, types := header.columns()
	var recordSize uint64
	offsets := make([]uint64, len(sizes))
	for i, s := range sizes {
		offsets[i] = recordSize
		recordSize += s
	}
	if _, ok := mulPCDSize(header.points, recordSize); !ok {
		return nil, errors.Errorf("pcd declares %d points of %d bytes, which overflows", header.points, recordSize)
	}

	cloud := make(Vectors, 0, min(header.points, pcdPreallocLimit))
	buf := make([]byte, recordSize)
	for i := 0; i < int(header.points); i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		var xyz [3]float64
		for axis, col := range header.xyz {
			v, err := decodePCDValue(buf[offsets[col]:offsets[col]+sizes[col]], types[col])
			if err != nil {
				return nil, err
			}
			xyz[axis] = v
		}
		cloud = append(cloud, NewVector(xyz[0], xyz[1], xyz[2]))
	}
	return cloud, nil
}

// maxCompressedPCDSize guards the allocation made for a compressed payload.
const maxCompressedPCDSize = 1 << 30

// readPCDCompressed reads an LZF compressed payload. Once inflated the data is laid out field by
// field: every point's value of the first field, then every point's value of the second, and so on.
func readPCDCompressed(in *bufio.Reader, header pcdHeader) (Vectors, error) {
	var sizes [2]uint32
	if err := binary.Read(in, binary.LittleEndian, &sizes); err != nil {
		return nil, errors.Wrap(err, "reading compressed pcd sizes")
	}
	compressedSize, uncompressedSize := sizes[0], sizes[1]
	if compressedSize > maxCompressedPCDSize || uncompressedSize > maxCompressedPCDSize {
		return nil, errors.Errorf("compressed pcd payload too large (%d -> %d bytes)", compressedSize, uncompressedSize)
	}

	fieldStart := make([]uint64, len(header.fields))
	var want uint64
	for i := range header.fields {
		fieldStart[i] = want
		fieldSize, ok := mulPCDSize(header.size[i], header.count[i])
		if ok {
			fieldSize, ok = mulPCDSize(fieldSize, header.points)
		}
		if !ok || want+fieldSize < want {
			return nil, errors.New("compressed pcd header sizes overflow")
		}
		want += fieldSize
	}
	if uint64(uncompressedSize) != want {
		return nil, errors.Errorf("compressed pcd inflates to %d bytes but the header needs %d", uncompressedSize, want)
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(in, compressed); err != nil {
		return nil, errors.Wrap(err, "reading compressed pcd payload")
	}
	data := make([]byte, uncompressedSize)
	if want > 0 {
		n, err := lzf.Decompress(compressed, data)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing pcd payload")
		}
		if uint64(n) != want {
			return nil, errors.Errorf("compressed pcd inflated to %d bytes, expected %d", n, want)
		}
	}

	var xyzField [3]int
	for i, name := range header.fields {
		switch name {
		case "x":
			xyzField[0] = i
		case "y":
			xyzField[1] = i
		case "z":
			xyzField[2] = i
		}
	}

	cloud := make(Vectors, 0, min(header.points, pcdPreallocLimit))
	for i := uint64(0); i < header.points; i++ {
		var xyz [3]float64
		for axis, f := range xyzField {
			start := fieldStart[f] + i*header.size[f]
			v, err := decodePCDValue(data[start:start+header.size[f]], header.type_[f])
			if err != nil {
				return nil, err
			}
			xyz[axis] = v
		}
		cloud = append(cloud, NewVector(xyz[0], xyz[1], xyz[2]))
	}
	return cloud, nil
}

func decodePCDValue(b []byte, t pcdValType) (float64, error) {
	switch t {
	case pcdValFloat:
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
		case 8:
			return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
		}
	case pcdValInt:
		switch len(b) {
		case 1:
			return float64(int8(b[0])), nil
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(b))), nil
		case 4:
			return float64(int32(binary.LittleEndian.Uint32(b))), nil
		case 8:
			return float64(int64(binary.LittleEndian.Uint64(b))), nil
		}
	case pcdValUInt:
		switch len(b) {
		case 1:
			return float64(b[0]), nil
		case 2:
			return float64(binary.LittleEndian.Uint16(b)), nil
		case 4:
			return float64(binary.LittleEndian.Uint32(b)), nil
		case 8:
			return float64(binary.LittleEndian.Uint64(b)), nil
		}
	}
	return 0, errors.Errorf("unsupported pcd value of type %s and size %d", t, len(b))
}

// WritePCD writes the batch as an x y z pcd with 32 bit float fields.
func WritePCD(cloud Vectors, out io.Writer, outputType PCDType) error {
	switch outputType {
	case PCDAscii, PCDBinary, PCDCompressed:
	default:
		return errors.Errorf("cannot write pcd as %s", outputType)
	}
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		len(cloud), len(cloud), outputType)
	if err != nil {
		return err
	}

	if outputType == PCDCompressed {
		return writePCDCompressed(cloud, out)
	}

	buf := make([]byte, 12)
	for _, pt := range cloud {
		if outputType == PCDAscii {
			if _, err := fmt.Fprintf(out, "%f %f %f\n", pt.X, pt.Y, pt.Z); err != nil {
				return err
			}
			continue
		}
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(pt.X)))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(pt.Y)))
		binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(pt.Z)))
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func writePCDCompressed(cloud Vectors, out io.Writer) error {
	n := len(cloud)
	data := make([]byte, 12*n)
	for i, pt := range cloud {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(float32(pt.X)))
		binary.LittleEndian.PutUint32(data[4*(n+i):], math.Float32bits(float32(pt.Y)))
		binary.LittleEndian.PutUint32(data[4*(2*n+i):], math.Float32bits(float32(pt.Z)))
	}
	var compressed []byte
	if n > 0 {
		// lzf can grow incompressible input slightly
		compressed = make([]byte, len(data)+len(data)/16+64)
		size, err := lzf.Compress(data, compressed)
		if err != nil {
			return errors.Wrap(err, "compressing pcd payload")
		}
		compressed = compressed[:size]
	}
	if err := binary.Write(out, binary.LittleEndian, [2]uint32{uint32(len(compressed)), uint32(len(data))}); err != nil {
		return err
	}
	_, err := out.Write(compressed)
	return err
}
