// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
	"github.com/antimetal/sysinfo/pkg/sysinfo/collectors"
)

func TestLoadCollector(t *testing.T) {
	tests := []struct {
		name    string
		loadavg string
		want    sysinfo.LoadAverage
		wantErr bool
	}{
		{
			name:    "typical values",
			loadavg: "0.50 0.30 0.10 2/345 12345\n",
			want:    sysinfo.LoadAverage{Load1: 0.50, Load5: 0.30, Load15: 0.10},
		},
		{
			name:    "high load",
			loadavg: "16.25 12.50 8.75 32/1024 99999",
			want:    sysinfo.LoadAverage{Load1: 16.25, Load5: 12.50, Load15: 8.75},
		},
		{
			name:    "scheduler fields are optional",
			loadavg: "1.00 2.00 3.00",
			want:    sysinfo.LoadAverage{Load1: 1, Load5: 2, Load15: 3},
		},
		{
			name:    "too few fields",
			loadavg: "0.50 0.30",
			wantErr: true,
		},
		{
			name:    "invalid float",
			loadavg: "abc 0.30 0.10 1/2 3",
			wantErr: true,
		},
		{
			name:    "empty file",
			loadavg: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig(t)
			writeProc(t, config, "loadavg", tt.loadavg)

			collector, err := collectors.NewLoadCollector(logr.Discard(), config)
			require.NoError(t, err)

			snap := &sysinfo.Snapshot{}
			err = collector.Collect(context.Background(), snap)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Load)
		})
	}
}

func TestLoadCollector_MissingFile(t *testing.T) {
	collector, err := collectors.NewLoadCollector(logr.Discard(), testConfig(t))
	require.NoError(t, err)
	assert.Error(t, collector.Collect(context.Background(), &sysinfo.Snapshot{}))
}
