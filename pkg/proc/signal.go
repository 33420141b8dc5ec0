package proc

import "vkern/pkg/kerr"

// Signal numbers and bounds.
const (
	// MaxSignals is the number of signal slots per process.
	MaxSignals = 32
	// SignalKill terminates the target unconditionally.
	SignalKill uint64 = 9
	// KillExitBase plus the signal number is the exit status of a
	// signal-terminated process.
	KillExitBase uint8 = 128
)

// Action is one registered signal disposition.
type Action struct {
	// Handler is the user-space handler address, zero for default.
	Handler uint64
	// Context is an opaque value passed back to the handler.
	Context uint64
	// Mask is the signal mask applied while the handler runs.
	Mask uint32
	// Flags holds the registration flags.
	Flags uint64
	// Registered is true once the slot has been installed.
	Registered bool
}

// SignalTable is the per-process signal state: one action slot per
// signal plus pending and blocked bitmasks. Delivery is explicit; the
// kernel never dispatches a handler behind the process's back.
type SignalTable struct {
	actions [MaxSignals]Action
	// Pending is the bitmask of signals awaiting delivery.
	Pending uint32
	// Blocked is the bitmask of signals the process holds back.
	// SignalKill can never be blocked.
	Blocked uint32
}

func validSignal(sig uint64) bool {
	return sig >= 1 && sig < MaxSignals
}

// Send marks sig pending unless the process blocks it. The kill signal
// ignores the blocked mask entirely: Send reports terminate=true and
// the caller must retire the process with status KillExitBase+sig.
func (t *SignalTable) Send(sig uint64) (terminate bool, err error) {
	if !validSignal(sig) {
		return false, kerr.InvalidArgument
	}
	if sig == SignalKill {
		return true, nil
	}
	if t.Blocked&(1<<sig) != 0 {
		return false, nil
	}
	t.Pending |= 1 << sig
	return false, nil
}

// Register installs a bare handler for sig. The kill slot is immutable.
func (t *SignalTable) Register(sig, handler uint64) error {
	return t.Sigaction(sig, Action{Handler: handler, Registered: true})
}

// Sigaction installs a full action for sig. The kill slot is immutable.
func (t *SignalTable) Sigaction(sig uint64, act Action) error {
	if !validSignal(sig) {
		return kerr.InvalidArgument
	}
	if sig == SignalKill {
		return kerr.PermissionDenied
	}
	act.Registered = true
	t.actions[sig] = act
	return nil
}

// ActionFor returns the installed action for sig.
func (t *SignalTable) ActionFor(sig uint64) (Action, error) {
	if !validSignal(sig) {
		return Action{}, kerr.InvalidArgument
	}
	return t.actions[sig], nil
}

// SetBlocked replaces the blocked mask. The kill bit is stripped; that
// signal cannot be held back.
func (t *SignalTable) SetBlocked(mask uint32) {
	t.Blocked = mask &^ (1 << SignalKill)
}

// ProcessPending dispatches every pending, unblocked signal through
// deliver and clears its pending bit. Signals with no registered
// handler are still delivered with a zero action so the caller can
// apply the default disposition.
func (t *SignalTable) ProcessPending(deliver func(sig uint64, act Action)) int {
	delivered := 0
	for sig := uint64(1); sig < MaxSignals; sig++ {
		bit := uint32(1) << sig
		if t.Pending&bit == 0 || t.Blocked&bit != 0 {
			continue
		}
		t.Pending &^= bit
		deliver(sig, t.actions[sig])
		delivered++
	}
	return delivered
}
