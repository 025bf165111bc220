package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const npyMagic = "\x93NUMPY"

var (
	reDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Array is a dense C-ordered array read from or written to a .npy file.
type Array struct {
	Shape []int
	Data  []float64
}

// Size returns the number of elements implied by Shape.
func (a Array) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// WriteFloat64s writes data as a little-endian float64 array of the given shape.
// An empty shape means a 1-D array of len(data).
func WriteFloat64s(w io.Writer, data []float64, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, "<f8", shape); err != nil {
		return err
	}
	buf := make([]byte, 8)
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := bw.Write(buf); err != nil {
			return errors.Wrap(err, "failed to write array data")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush array data")
}

// WriteInt64s writes data as a little-endian int64 array of the given shape.
func WriteInt64s(w io.Writer, data []int, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, "<i8", shape); err != nil {
		return err
	}
	buf := make([]byte, 8)
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
		if _, err := bw.Write(buf); err != nil {
			return errors.Wrap(err, "failed to write array data")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush array data")
}

// SaveFloat64s writes a float64 .npy file at path.
func SaveFloat64s(path string, data []float64, shape ...int) error {
	return saveFile(path, func(w io.Writer) error { return WriteFloat64s(w, data, shape...) })
}

// SaveInt64s writes an int64 .npy file at path.
func SaveInt64s(path string, data []int, shape ...int) error {
	return saveFile(path, func(w io.Writer) error { return WriteInt64s(w, data, shape...) })
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write .npy file %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close .npy file %q", path)
}

func checkShape(n int, shape []int) ([]int, error) {
	if len(shape) == 0 {
		return []int{n}, nil
	}
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size != n {
		return nil, errors.Errorf("shape %v holds %d elements, have %d", shape, size, n)
	}
	return shape, nil
}

func writeHeader(w io.Writer, descr string, shape []int) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shapeStr)
	// magic(6) + version(2) + length(2) + header + '\n' must be a multiple of 64.
	total := 10 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	prefix := make([]byte, 10)
	copy(prefix, npyMagic)
	prefix[6], prefix[7] = 1, 0
	binary.LittleEndian.PutUint16(prefix[8:], uint16(len(header)))
	if _, err := w.Write(prefix); err != nil {
		return errors.Wrap(err, "failed to write .npy preamble")
	}
	if _, err := io.WriteString(w, header); err != nil {
		return errors.Wrap(err, "failed to write .npy header")
	}
	return nil
}

// LoadFile reads a .npy file from path.
func LoadFile(path string) (Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Array{}, errors.Wrapf(err, "failed to open .npy file %q", path)
	}
	defer func() { _ = f.Close() }()
	a, err := Read(bufio.NewReader(f))
	return a, errors.Wrapf(err, "failed to read %q", path)
}

// Read decodes a .npy stream. Little-endian float64, float32, int64 and
// int32 arrays in C order are supported; values are widened to float64.
func Read(r io.Reader) (Array, error) {
	prefix := make([]byte, 8)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return Array{}, errors.Wrap(err, "failed to read magic string")
	}
	if string(prefix[:6]) != npyMagic {
		return Array{}, errors.New("invalid .npy file format: magic string mismatch")
	}
	var headerLen int
	switch prefix[6] {
	case 1:
		b := make([]byte, 2)
		if _, err := io.ReadFull(r, b); err != nil {
			return Array{}, errors.Wrap(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(b))
	case 2, 3:
		b := make([]byte, 4)
		if _, err := io.ReadFull(r, b); err != nil {
			return Array{}, errors.Wrap(err, "failed to read header length (v2.0+)")
		}
		headerLen = int(binary.LittleEndian.Uint32(b))
	default:
		return Array{}, errors.Errorf("unsupported .npy version: %d.%d", prefix[6], prefix[7])
	}
	hb := make([]byte, headerLen)
	if _, err := io.ReadFull(r, hb); err != nil {
		return Array{}, errors.Wrap(err, "failed to read header")
	}
	descr, shape, err := parseHeader(string(hb))
	if err != nil {
		return Array{}, err
	}
	a := Array{Shape: shape}
	a.Data = make([]float64, a.Size())

	var width int
	var decode func([]byte) float64
	switch descr {
	case "<f8":
		width, decode = 8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
	case "<f4":
		width, decode = 4, func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	case "<i8":
		width, decode = 8, func(b []byte) float64 { return float64(int64(binary.LittleEndian.Uint64(b))) }
	case "<i4":
		width, decode = 4, func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }
	default:
		return Array{}, errors.Errorf("unsupported .npy dtype %q", descr)
	}
	buf := make([]byte, width)
	for i := range a.Data {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Array{}, errors.Wrapf(err, "failed to read array data (expected %d elements)", len(a.Data))
		}
		a.Data[i] = decode(buf)
	}
	return a, nil
}

func parseHeader(header string) (string, []int, error) {
	m := reDescr.FindStringSubmatch(header)
	if len(m) < 2 {
		return "", nil, errors.Errorf("could not find 'descr' in header: %q", header)
	}
	descr := m[1]
	if m := reFortran.FindStringSubmatch(header); len(m) < 2 {
		return "", nil, errors.Errorf("could not find 'fortran_order' in header: %q", header)
	} else if m[1] == "True" {
		return "", nil, errors.New("fortran-ordered .npy arrays are not supported")
	}
	m = reShape.FindStringSubmatch(header)
	if len(m) < 2 {
		return "", nil, errors.Errorf("could not find 'shape' in header: %q", header)
	}
	var shape []int
	for _, p := range strings.Split(m[1], ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return "", nil, errors.Wrapf(err, "invalid shape value %q in header", p)
		}
		shape = append(shape, v)
	}
	return descr, shape, nil
}
