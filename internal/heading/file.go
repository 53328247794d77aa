// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package heading

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const fileName = "file"

var ErrNoHeading = errors.New("no valid heading found in heading file")

// FileProvider polls a file that holds a single heading in degrees, as written by sensor daemons
// (e.g. iio-sensor-proxy helpers). Comment lines start with "#".
type FileProvider struct {
	path   string
	period time.Duration
}

// NewFileProvider returns a provider that reads path every period.
func NewFileProvider(path string, period time.Duration) *FileProvider {
	if period <= 0 {
		period = time.Millisecond * 100
	}
	return &FileProvider{path: path, period: period}
}

func (p *FileProvider) Name() string {
	return fileName
}

// Stream emits the heading on every poll, also if the file content did not change. A device held
// still keeps its heading, so unchanged content must keep the sample current. Unreadable or
// invalid content is skipped.
func (p *FileProvider) Stream(ctx context.Context) <-chan float64 {
	out := make(chan float64)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.period)
		defer ticker.Stop()

		for {
			if degrees, err := p.readFile(); err == nil {
				select {
				case out <- degrees:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (p *FileProvider) readFile() (float64, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read heading file %q: %w", p.path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		degrees, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		return degrees, nil
	}
	return 0, ErrNoHeading
}
