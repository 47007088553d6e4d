// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package rwq

// RaceEnabled is true when the race detector is active. This build
// also enables the reentrance guards on queue operations. The package's
// own concurrent tests are excluded from race builds by build tags.
const RaceEnabled = true

// reentrantGuard detects reentrant or concurrent misuse of operations
// that require a single caller. Race-detector builds only; the guard
// compiles to nothing otherwise.
//
// A tripped guard means either two goroutines shared a producer or
// consumer role, or an element callback called back into the queue.
type reentrantGuard struct {
	busy bool
}

func (g *reentrantGuard) enter(op string) {
	if g.busy {
		panic("rwq: reentrant or concurrent " + op + " (operation requires a single caller)")
	}
	g.busy = true
}

func (g *reentrantGuard) exit() {
	g.busy = false
}
