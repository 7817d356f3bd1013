package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	golzf "github.com/zhuyie/golzf"
)

// PCDDataFormat is the on-disk encoding of a PCD file's point data.
type PCDDataFormat int

const (
	// PCDAscii stores one point per line as whitespace-separated decimal text.
	PCDAscii PCDDataFormat = iota
	// PCDBinary stores points as raw little-endian float32s, interleaved per point.
	PCDBinary
	// PCDBinaryCompressed stores points the same as PCDBinary but column-major and
	// LZF-compressed, per the PCD binary_compressed convention.
	PCDBinaryCompressed
)

func (f PCDDataFormat) String() string {
	switch f {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDBinaryCompressed:
		return "binary_compressed"
	default:
		return "unknown"
	}
}

// pcdFields is the fixed field layout this package writes and reads: position, intensity,
// per-point sweep-relative time, and the originating laser.
var pcdFields = []string{"x", "y", "z", "intensity", "time", "laser_id"}

// WritePCD serializes cloud in the given format.
func WritePCD(cloud *Cloud, out io.Writer, format PCDDataFormat) error {
	n := cloud.Size()
	if _, err := fmt.Fprintf(out, "# .PCD v0.7 - LiDAR SLAM keypoint/map export\n"+
		"VERSION 0.7\n"+
		"FIELDS x y z intensity time laser_id\n"+
		"SIZE 4 4 4 4 4 1\n"+
		"TYPE F F F F F U\n"+
		"COUNT 1 1 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		n, n, format); err != nil {
		return err
	}

	switch format {
	case PCDAscii:
		return writePCDAscii(cloud, out)
	case PCDBinary:
		return writePCDBinary(cloud, out)
	case PCDBinaryCompressed:
		return writePCDBinaryCompressed(cloud, out)
	default:
		return errors.Errorf("unsupported pcd data format %v", format)
	}
}

func writePCDAscii(cloud *Cloud, out io.Writer) error {
	for _, p := range cloud.Points {
		if _, err := fmt.Fprintf(out, "%g %g %g %g %g %d\n", p.X, p.Y, p.Z, p.Intensity, p.Time, p.LaserID); err != nil {
			return err
		}
	}
	return nil
}

func writePCDBinary(cloud *Cloud, out io.Writer) error {
	buf := make([]byte, 21)
	for _, p := range cloud.Points {
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(p.Z)))
		binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(p.Intensity))
		binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(float32(p.Time)))
		buf[20] = p.LaserID
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// writePCDBinaryCompressed lays the six fields out column-major (all x, then all y, ...) and
// LZF-compresses the result, matching the binary_compressed convention used by the PCL PCD
// reader: a (compressedSize, uncompressedSize) uint32 pair followed by the compressed payload.
func writePCDBinaryCompressed(cloud *Cloud, out io.Writer) error {
	n := cloud.Size()
	raw := make([]byte, n*21)
	for i, p := range cloud.Points {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(raw[n*4+i*4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(raw[n*8+i*4:], math.Float32bits(float32(p.Z)))
		binary.LittleEndian.PutUint32(raw[n*12+i*4:], math.Float32bits(p.Intensity))
		binary.LittleEndian.PutUint32(raw[n*16+i*4:], math.Float32bits(float32(p.Time)))
		raw[n*20+i] = p.LaserID
	}

	compressed := make([]byte, len(raw)+len(raw)/4+64)
	compressedLen, err := golzf.Compress(raw, compressed)
	if err != nil {
		return errors.Wrap(err, "lzf compression failed")
	}

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:4], uint32(compressedLen))
	binary.LittleEndian.PutUint32(sizes[4:8], uint32(len(raw)))
	if _, err := out.Write(sizes[:]); err != nil {
		return err
	}
	_, err = out.Write(compressed[:compressedLen])
	return err
}

// ReadPCD parses a PCD stream written in this package's fixed field layout.
func ReadPCD(inRaw io.Reader) (*Cloud, error) {
	in := bufio.NewReader(inRaw)
	header, err := parsePCDHeader(in)
	if err != nil {
		return nil, err
	}

	switch header.format {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	case PCDBinaryCompressed:
		return readPCDBinaryCompressed(in, header)
	default:
		return nil, errors.Errorf("unsupported pcd data format %v", header.format)
	}
}

type pcdHeader struct {
	points int
	format PCDDataFormat
}

func parsePCDHeader(in *bufio.Reader) (pcdHeader, error) {
	var header pcdHeader
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return header, errors.Wrap(err, "reading pcd header")
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		field, value, _ := strings.Cut(line, " ")
		switch field {
		case "POINTS":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return header, errors.Wrap(err, "invalid POINTS field")
			}
			header.points = n
		case "DATA":
			switch strings.TrimSpace(value) {
			case "ascii":
				header.format = PCDAscii
			case "binary":
				header.format = PCDBinary
			case "binary_compressed":
				header.format = PCDBinaryCompressed
			default:
				return header, errors.Errorf("unsupported DATA format %q", value)
			}
			return header, nil
		}
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (*Cloud, error) {
	cloud := NewCloudWithCapacity("", header.points)
	for i := 0; i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		fields := strings.Fields(line)
		if len(fields) != len(pcdFields) {
			return nil, errors.Errorf("point %d: expected %d fields, got %d", i, len(pcdFields), len(fields))
		}
		x, _ := strconv.ParseFloat(fields[0], 64)
		y, _ := strconv.ParseFloat(fields[1], 64)
		z, _ := strconv.ParseFloat(fields[2], 64)
		intensity, _ := strconv.ParseFloat(fields[3], 32)
		t, _ := strconv.ParseFloat(fields[4], 64)
		laserID, _ := strconv.ParseUint(fields[5], 10, 8)
		cloud.Append(Point{X: x, Y: y, Z: z, Intensity: float32(intensity), Time: t, LaserID: uint8(laserID)})
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (*Cloud, error) {
	cloud := NewCloudWithCapacity("", header.points)
	buf := make([]byte, 21)
	for i := 0; i < header.points; i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		cloud.Append(decodePCDPoint(buf))
	}
	return cloud, nil
}

func decodePCDPoint(buf []byte) Point {
	return Point{
		X:         float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))),
		Y:         float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))),
		Z:         float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))),
		Intensity: math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
		Time:      float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20]))),
		LaserID:   buf[20],
	}
}

func readPCDBinaryCompressed(in *bufio.Reader, header pcdHeader) (*Cloud, error) {
	var sizes [8]byte
	if _, err := io.ReadFull(in, sizes[:]); err != nil {
		return nil, errors.Wrap(err, "reading compressed pcd size header")
	}
	compressedLen := binary.LittleEndian.Uint32(sizes[0:4])
	uncompressedLen := binary.LittleEndian.Uint32(sizes[4:8])

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(in, compressed); err != nil {
		return nil, errors.Wrap(err, "reading compressed pcd payload")
	}

	raw := make([]byte, uncompressedLen)
	n, err := golzf.Decompress(compressed, raw)
	if err != nil {
		return nil, errors.Wrap(err, "lzf decompression failed")
	}
	raw = raw[:n]

	numPoints := header.points
	cloud := NewCloudWithCapacity("", numPoints)
	for i := 0; i < numPoints; i++ {
		x := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(raw[numPoints*4+i*4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(raw[numPoints*8+i*4:]))
		intensity := math.Float32frombits(binary.LittleEndian.Uint32(raw[numPoints*12+i*4:]))
		t := math.Float32frombits(binary.LittleEndian.Uint32(raw[numPoints*16+i*4:]))
		laserID := raw[numPoints*20+i]
		cloud.Append(Point{X: float64(x), Y: float64(y), Z: float64(z), Intensity: intensity, Time: float64(t), LaserID: laserID})
	}
	return cloud, nil
}
