// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"sync"

	"github.com/relabs-tech/edl_robot/internal/orientation"
)

// SampleSource adapts a RawSource to orientation.SampleSource. DT is left
// at zero for the polling loop to fill in.
type SampleSource struct {
	Raw  RawSource
	Conv Converter

	mu   sync.Mutex
	last Raw
	have bool
}

func NewSampleSource(raw RawSource, conv Converter) *SampleSource {
	return &SampleSource{Raw: raw, Conv: conv}
}

func (s *SampleSource) ReadSample() (orientation.Sample, error) {
	r, err := s.Raw.ReadRaw()
	if err != nil {
		return orientation.Sample{}, err
	}
	s.mu.Lock()
	s.last, s.have = r, true
	s.mu.Unlock()
	return s.Conv.Sample(r, 0), nil
}

// LastRaw returns the reading behind the most recent sample.
func (s *SampleSource) LastRaw() (Raw, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.have
}
