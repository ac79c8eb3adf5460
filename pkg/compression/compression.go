// Package compression produces precompressed siblings of cache files and
// picks the best one for a request's Accept-Encoding header.
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Algorithm names a content coding
type Algorithm string

const (
	AlgorithmBrotli Algorithm = "br"
	AlgorithmGzip   Algorithm = "gzip"
)

// Algorithms lists the supported codings in preference order
var Algorithms = []Algorithm{AlgorithmBrotli, AlgorithmGzip}

// ErrUnsupportedAlgorithm is returned for unknown codings
var ErrUnsupportedAlgorithm = errors.New("unsupported compression algorithm")

// Extension returns the file suffix of a precompressed sibling
func (a Algorithm) Extension() string {
	switch a {
	case AlgorithmBrotli:
		return ".br"
	case AlgorithmGzip:
		return ".gz"
	default:
		return ""
	}
}

// Compress encodes data with the algorithm at the given level. Level 0
// selects the library default.
func Compress(a Algorithm, data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer

	w, err := newWriter(a, &buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress
func Decompress(a Algorithm, data []byte) ([]byte, error) {
	var r io.Reader
	switch a {
	case AlgorithmGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case AlgorithmBrotli:
		r = brotli.NewReader(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedAlgorithm
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}
	return out, nil
}

func newWriter(a Algorithm, w io.Writer, level int) (io.WriteCloser, error) {
	switch a {
	case AlgorithmGzip:
		if level == 0 {
			level = gzip.BestCompression
		}
		return gzip.NewWriterLevel(w, level)
	case AlgorithmBrotli:
		if level == 0 {
			level = brotli.DefaultCompression
		}
		return brotli.NewWriterLevel(w, level), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// Negotiate returns the supported codings the client accepts, best
// first. Codings with q=0 are refused; "*" accepts every coding.
func Negotiate(acceptEncoding string) []Algorithm {
	accepted := make(map[Algorithm]float64)
	wildcard := -1.0

	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, params, _ := strings.Cut(part, ";")
		q := 1.0
		if p := strings.TrimSpace(params); strings.HasPrefix(p, "q=") {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(p, "q="), 64); err == nil {
				q = v
			}
		}

		name = strings.ToLower(strings.TrimSpace(name))
		if name == "*" {
			wildcard = q
			continue
		}
		accepted[Algorithm(name)] = q
	}

	var out []Algorithm
	for _, a := range Algorithms {
		q, ok := accepted[a]
		if !ok {
			q = wildcard
		}
		if q > 0 {
			out = append(out, a)
		}
	}
	return out
}
