// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/posture_guard/internal/posture"
)

// ErrBadLine is returned for serial lines that are not accelerometer data.
var ErrBadLine = errors.New("malformed accelerometer line")

// LineSource reads one sample per text line: "ax,ay,az" in m/s², optionally
// followed by a millisecond timestamp. Whitespace may replace commas.
type LineSource struct {
	reader *bufio.Reader
	closer io.Closer
	now    func() time.Time
}

// OpenSerialSource opens a serial-attached accelerometer.
func OpenSerialSource(portName string, baudRate int) (*LineSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return NewLineSource(port), nil
}

// NewLineSource wraps any reader. If r is an io.Closer, Close closes it.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{reader: bufio.NewReader(r), now: time.Now}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next well-formed sample. Malformed lines are skipped;
// io.EOF is returned when the stream ends.
func (s *LineSource) Next() (posture.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if sample, perr := ParseLine(line, s.now().UnixMilli()); perr == nil {
				return sample, nil
			}
		}
		if err != nil {
			return posture.Sample{}, err
		}
	}
}

// Close closes the underlying port.
func (s *LineSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ParseLine parses "ax,ay,az[,ts]". Lines starting with # are comments.
// defaultTs is used when the line carries no timestamp.
func ParseLine(line string, defaultTs int64) (posture.Sample, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return posture.Sample{}, ErrBadLine
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) != 3 && len(fields) != 4 {
		return posture.Sample{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}

	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return posture.Sample{}, fmt.Errorf("%w: %q: %v", ErrBadLine, line, err)
		}
		v[i] = f
	}

	ts := defaultTs
	if len(fields) == 4 {
		parsed, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return posture.Sample{}, fmt.Errorf("%w: %q: %v", ErrBadLine, line, err)
		}
		ts = parsed
	}
	return posture.Sample{Ax: v[0], Ay: v[1], Az: v[2], TimestampMs: ts}, nil
}
