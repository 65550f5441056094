package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// batch is a dense row-major float32 matrix parsed from CSV.
type batch struct {
	data []float32
	rows int64
	cols int64
}

// splitCSV splits a comma-separated list, trimming whitespace and
// dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readBatchFile parses a CSV data file into a dense batch. Unlike
// splitCSV, empty cells are kept: they become NaN, the missing-value
// sentinel.
func readBatchFile(path string) (*batch, error) {
	var r io.Reader
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return readBatch(r)
}

func readBatch(r io.Reader) (*batch, error) {
	b := &batch{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cells := strings.Split(line, ",")
		if b.cols == 0 {
			b.cols = int64(len(cells))
		} else if int64(len(cells)) != b.cols {
			return nil, fmt.Errorf("row %d has %d cells, want %d", b.rows+1, len(cells), b.cols)
		}
		for _, cell := range cells {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				b.data = append(b.data, float32(math.NaN()))
				continue
			}
			v, err := strconv.ParseFloat(cell, 32)
			if err != nil {
				return nil, fmt.Errorf("row %d: parse %q: %w", b.rows+1, cell, err)
			}
			b.data = append(b.data, float32(v))
		}
		b.rows++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if b.rows == 0 {
		return nil, fmt.Errorf("input holds no data rows")
	}
	return b, nil
}
