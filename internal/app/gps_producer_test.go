// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/edl_robot/internal/gps"
)

const nmeaLog = `$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47
noise
$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*00
$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A
`

func TestReadFixes(t *testing.T) {
	var got []gps.Fix
	err := ReadFixes(context.Background(), strings.NewReader(nmeaLog), time.Now, func(f gps.Fix) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadFixes: %v", err)
	}
	if len(got) != 1 || got[0].SpeedKnots != 22.4 || !got[0].Valid() {
		t.Fatalf("fixes=%+v", got)
	}
}

func TestReadFixes_CallbackErrorStops(t *testing.T) {
	boom := errors.New("stop")
	calls := 0
	err := ReadFixes(context.Background(), strings.NewReader(nmeaLog+nmeaLog), time.Now, func(gps.Fix) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestReadFixes_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ReadFixes(ctx, strings.NewReader(nmeaLog), time.Now, func(gps.Fix) error {
		t.Fatalf("callback after cancel")
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}
