// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package buffer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewRing_RejectsNonPositiveCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewRing(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("cap=%d: err=%v want ErrInvalidCapacity", c, err)
		}
	}
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	r, err := NewRing(3)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	for i := 1; i <= 5; i++ {
		r.Add(Point{Value: float64(i), Valid: true})
		if r.Len() > r.Cap() {
			t.Fatalf("len=%d exceeds cap=%d", r.Len(), r.Cap())
		}
	}
	got := r.Snapshot()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Value != want[i] {
			t.Fatalf("snapshot[%d]=%v want %v", i, got[i].Value, want[i])
		}
	}
}

func TestRing_SnapshotIsACopy(t *testing.T) {
	r, _ := NewRing(2)
	r.Add(Point{Value: 1})
	snap := r.Snapshot()
	snap[0].Value = 99
	if got := r.Snapshot()[0].Value; got != 1 {
		t.Fatalf("ring mutated through snapshot: got=%v", got)
	}
}

func TestRing_AddDataPointStampsElapsedTime(t *testing.T) {
	r, _ := NewRing(4)
	base := time.Unix(1000, 0)
	r.epoch = base
	now := base.Add(1500 * time.Millisecond)
	r.now = func() time.Time { return now }

	sec := 2.5
	r.AddDataPoint(1, &sec, true)
	r.AddDataPoint(2, nil, false)

	pts := r.Snapshot()
	if pts[0].Time != 1.5 || !pts[0].HasSecondary || pts[0].Secondary != 2.5 || !pts[0].Valid {
		t.Fatalf("first=%+v", pts[0])
	}
	if pts[1].HasSecondary || pts[1].Valid {
		t.Fatalf("second=%+v", pts[1])
	}
}

func TestRing_Reset(t *testing.T) {
	r, _ := NewRing(2)
	r.Add(Point{Value: 1})
	r.Add(Point{Value: 2})
	r.Reset()
	if r.Len() != 0 || len(r.Snapshot()) != 0 {
		t.Fatalf("len=%d after Reset", r.Len())
	}
	r.Add(Point{Value: 3})
	if got := r.Snapshot(); len(got) != 1 || got[0].Value != 3 {
		t.Fatalf("snapshot=%+v", got)
	}
}

func TestRing_ConcurrentWritersNeverExceedCapacity(t *testing.T) {
	r, _ := NewRing(16)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.AddDataPoint(float64(i), nil, true)
				if n := len(r.Snapshot()); n > 16 {
					t.Errorf("snapshot len=%d", n)
					return
				}
			}
		}()
	}
	wg.Wait()
	if r.Len() != 16 {
		t.Fatalf("len=%d want 16", r.Len())
	}
}

func TestRing_ResetConcurrentWithAdd(t *testing.T) {
	r, _ := NewRing(32)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			r.AddDataPoint(float64(i), nil, true)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Reset()
		}
	}()
	wg.Wait()
	for _, p := range r.Snapshot() {
		if p.Time < 0 {
			t.Fatalf("point stamped before epoch: %+v", p)
		}
	}
}
