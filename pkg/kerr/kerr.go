// Package kerr defines the closed set of kernel error kinds.
//
// Every syscall handler returns either a success value or exactly one of
// these errors. They cross the syscall ABI boundary as plain numbers, so
// the numeric values are stable. Zero is success and is never a valid
// Errno.
package kerr

import "fmt"

// Errno identifies one kernel error kind.
type Errno uint64

// Kernel error kinds.
const (
	InvalidHandle    Errno = 1
	InvalidArgument  Errno = 2
	PermissionDenied Errno = 3
	NotFound         Errno = 4
	OutOfMemory      Errno = 5
	WouldBlock       Errno = 6
	Interrupted      Errno = 7
	InvalidSyscall   Errno = 8
	InvalidAddress   Errno = 9
	UnalignedAccess  Errno = 10
	OutOfBounds      Errno = 11
	UserNotFound     Errno = 12
	InvalidUser      Errno = 13
)

var errnoNames = map[Errno]string{
	InvalidHandle:    "invalid_handle",
	InvalidArgument:  "invalid_argument",
	PermissionDenied: "permission_denied",
	NotFound:         "not_found",
	OutOfMemory:      "out_of_memory",
	WouldBlock:       "would_block",
	Interrupted:      "interrupted",
	InvalidSyscall:   "invalid_syscall",
	InvalidAddress:   "invalid_address",
	UnalignedAccess:  "unaligned_access",
	OutOfBounds:      "out_of_bounds",
	UserNotFound:     "user_not_found",
	InvalidUser:      "invalid_user",
}

// String returns the stable lowercase name of the error kind.
func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno(%d)", uint64(e))
}

// Error implements the error interface.
func (e Errno) Error() string {
	return e.String()
}

// Code returns the ABI number for the error kind.
func (e Errno) Code() uint64 {
	return uint64(e)
}
