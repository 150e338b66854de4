// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package sysinfo

import "math"

// CPUTimes holds the aggregate cpu counters of /proc/stat, in USER_HZ ticks.
type CPUTimes struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	IRQ       uint64
	SoftIRQ   uint64
	Steal     uint64
	Guest     uint64
	GuestNice uint64
}

// Busy is the time counted towards utilization.
func (t CPUTimes) Busy() uint64 {
	return t.User + t.Nice + t.System
}

// Sub returns the per-field delta t - prev. A field that went backwards
// (counter reset) contributes zero and sets resetDetected.
func (t CPUTimes) Sub(prev CPUTimes) (delta CPUTimes, resetDetected bool) {
	fields := []struct {
		out       *uint64
		cur, prev uint64
	}{
		{&delta.User, t.User, prev.User},
		{&delta.Nice, t.Nice, prev.Nice},
		{&delta.System, t.System, prev.System},
		{&delta.Idle, t.Idle, prev.Idle},
		{&delta.IOWait, t.IOWait, prev.IOWait},
		{&delta.IRQ, t.IRQ, prev.IRQ},
		{&delta.SoftIRQ, t.SoftIRQ, prev.SoftIRQ},
		{&delta.Steal, t.Steal, prev.Steal},
		{&delta.Guest, t.Guest, prev.Guest},
		{&delta.GuestNice, t.GuestNice, prev.GuestNice},
	}
	for _, f := range fields {
		d, reset := CalculateUint64Delta(f.cur, f.prev)
		*f.out = d
		resetDetected = resetDetected || reset
	}
	return delta, resetDetected
}

// CalculateUint64Delta calculates delta for uint64 counters with reset detection
func CalculateUint64Delta(current, previous uint64) (delta uint64, resetDetected bool) {
	if current < previous {
		return 0, true
	}
	return current - previous, false
}

// Utilization returns round(100*busy/(busy+idle)) over the interval between
// two samples, clamped to [0,100]. It is 0 when no time elapsed.
func Utilization(t0, t1 CPUTimes) uint8 {
	d, _ := t1.Sub(t0)
	busy := d.Busy()
	total := busy + d.Idle
	if total == 0 {
		return 0
	}
	pct := math.Round(100 * float64(busy) / float64(total))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return uint8(pct)
}
