// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors_test

import (
	"testing"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
	"github.com/antimetal/sysinfo/pkg/testutil"
)

// testConfig returns a config rooted in fresh temporary proc and etc trees.
func testConfig(t *testing.T) sysinfo.CollectionConfig {
	t.Helper()
	config := sysinfo.DefaultCollectionConfig()
	config.HostProcPath = t.TempDir()
	config.HostEtcPath = t.TempDir()
	config.HostSysPath = t.TempDir()
	return config
}

func writeProc(t *testing.T, config sysinfo.CollectionConfig, name, content string) string {
	t.Helper()
	return testutil.WriteFile(t, config.HostProcPath, name, content)
}

func writeEtc(t *testing.T, config sysinfo.CollectionConfig, name, content string) string {
	t.Helper()
	return testutil.WriteFile(t, config.HostEtcPath, name, content)
}
