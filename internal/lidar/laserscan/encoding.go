package laserscan

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NoReturn is the token written for samples without a return.
const NoReturn = "inf"

// EncodeRanges renders ranges as a space-separated line, millimetre
// precision, with NoReturn for +Inf.
func EncodeRanges(ranges []float64) string {
	var sb strings.Builder
	sb.Grow(len(ranges) * 6)
	for i, r := range ranges {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if math.IsInf(r, 0) || math.IsNaN(r) {
			sb.WriteString(NoReturn)
			continue
		}
		sb.WriteString(strconv.FormatFloat(r, 'f', 3, 64))
	}
	return sb.String()
}

// ParseRanges is the inverse of EncodeRanges.
func ParseRanges(line string) ([]float64, error) {
	fields := strings.Fields(line)
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f == NoReturn {
			out[i] = math.Inf(1)
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("range %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Compress joins lines with newlines, gzips them and returns the base64
// encoding. An empty input yields an empty string.
func Compress(lines []string) (string, error) {
	if len(lines) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, strings.Join(lines, "\n")); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses Compress.
func Decompress(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gzip open: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return strings.Split(string(data), "\n"), nil
}
