// Package problems reads problem sets: plain text files with one kinematics
// problem per line.
//
//	# free fall from rest
//	drop: vi=0 a=-9.81 t=3
//	vi=10, vf=30, t=4 precision=2
//
// A line is an optional "label:" prefix followed by name=value pairs separated
// by spaces or commas. Names are the quantity spellings understood by
// kinematics.ParseQuantity, plus "precision". Blank lines and lines starting
// with '#' are ignored.
package problems

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/star/kinematics1d/internal/kinematics"
)

// Problem is one parsed line.
type Problem struct {
	Line      int // 1-based line number in the input
	Label     string
	State     kinematics.MotionState
	Precision *int // nil when the line does not set one
}

// Name returns the label, or "line N" when the line had none.
func (p Problem) Name() string {
	if p.Label != "" {
		return p.Label
	}
	return fmt.Sprintf("line %d", p.Line)
}

// Parse reads a problem set from r. Malformed lines are skipped with a warning
// log; only read errors are returned.
func Parse(r io.Reader, logger *slog.Logger) ([]Problem, error) {
	scanner := bufio.NewScanner(r)
	var (
		out  []Problem
		line int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		p, err := parseLine(text)
		if err != nil {
			logger.Warn("skipping malformed problem", "line", line, "error", err)
			continue
		}
		p.Line = line
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading problem set: %w", err)
	}
	return out, nil
}

func parseLine(text string) (Problem, error) {
	var p Problem

	// A colon before the first '=' ends the label.
	if colon := strings.IndexByte(text, ':'); colon >= 0 {
		eq := strings.IndexByte(text, '=')
		if eq < 0 || colon < eq {
			p.Label = strings.TrimSpace(text[:colon])
			text = text[colon+1:]
		}
	}

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) == 0 {
		return Problem{}, errors.New("no values")
	}

	for _, f := range fields {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" || value == "" {
			return Problem{}, fmt.Errorf("expected name=value, got %q", f)
		}

		if strings.EqualFold(name, "precision") {
			n, err := strconv.Atoi(value)
			if err != nil {
				return Problem{}, fmt.Errorf("invalid precision %q: %w", value, err)
			}
			p.Precision = &n
			continue
		}

		q, err := kinematics.ParseQuantity(name)
		if err != nil {
			return Problem{}, err
		}
		if _, dup := p.State.Get(q); dup {
			return Problem{}, fmt.Errorf("%s given twice", q)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Problem{}, fmt.Errorf("invalid value for %s: %w", q, err)
		}
		p.State = p.State.With(q, v)
	}
	return p, nil
}
