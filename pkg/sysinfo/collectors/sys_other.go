// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package collectors

import "errors"

func statFS(string) (FSStat, error) {
	return FSStat{}, errors.ErrUnsupported
}

func uname() (Utsname, error) {
	return Utsname{}, errors.ErrUnsupported
}
