// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package bench

import "errors"

// PinThread is unsupported on this platform. Runs proceed unpinned.
func PinThread(int) error {
	return errors.ErrUnsupported
}
