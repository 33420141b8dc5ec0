// Package ktime provides the kernel clock source and the interrupt
// controller. Both are thin: the clock wraps monotonic and realtime
// nanosecond readings, and the controller is a fixed vector table of
// registered handlers.
package ktime

import (
	"time"

	"vkern/pkg/kerr"
)

// Clock is the kernel's time source. Tests inject a manual
// implementation; the kernel uses SystemClock.
type Clock interface {
	// Monotonic returns nanoseconds from an arbitrary fixed origin,
	// never decreasing.
	Monotonic() uint64
	// Realtime returns nanoseconds since the Unix epoch.
	Realtime() uint64
}

// SystemClock reads the host clocks.
type SystemClock struct {
	origin time.Time
}

// NewSystemClock creates a system clock with its monotonic origin now.
func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Monotonic implements Clock.
func (c *SystemClock) Monotonic() uint64 {
	return uint64(time.Since(c.origin))
}

// Realtime implements Clock.
func (c *SystemClock) Realtime() uint64 {
	return uint64(time.Now().UnixNano())
}

// Timer tracks kernel uptime against a Clock.
type Timer struct {
	clock  Clock
	booted uint64
}

// NewTimer creates a timer with its uptime origin at the clock's
// current monotonic reading.
func NewTimer(clock Clock) *Timer {
	return &Timer{clock: clock, booted: clock.Monotonic()}
}

// Now returns the current monotonic reading in nanoseconds.
func (t *Timer) Now() uint64 {
	return t.clock.Monotonic()
}

// Realtime returns the current realtime reading in nanoseconds.
func (t *Timer) Realtime() uint64 {
	return t.clock.Realtime()
}

// Uptime returns nanoseconds since the timer was created.
func (t *Timer) Uptime() uint64 {
	return t.clock.Monotonic() - t.booted
}

// MaxVectors is the number of interrupt vectors.
const MaxVectors = 32

// Handler services one interrupt vector.
type Handler func(vector uint64)

// InterruptController is the fixed vector table of interrupt handlers.
type InterruptController struct {
	handlers [MaxVectors]Handler
}

// NewInterruptController creates an empty controller.
func NewInterruptController() *InterruptController {
	return &InterruptController{}
}

// Register installs a handler for the vector. A vector can only be
// claimed once.
func (ic *InterruptController) Register(vector uint64, h Handler) error {
	if vector >= MaxVectors || h == nil {
		return kerr.InvalidArgument
	}
	if ic.handlers[vector] != nil {
		return kerr.InvalidArgument
	}
	ic.handlers[vector] = h
	return nil
}

// Raise dispatches the vector to its handler. Unclaimed vectors are
// dropped silently.
func (ic *InterruptController) Raise(vector uint64) error {
	if vector >= MaxVectors {
		return kerr.InvalidArgument
	}
	if h := ic.handlers[vector]; h != nil {
		h(vector)
	}
	return nil
}

// Registered reports whether the vector has a handler.
func (ic *InterruptController) Registered(vector uint64) bool {
	return vector < MaxVectors && ic.handlers[vector] != nil
}
