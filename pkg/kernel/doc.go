/*
Package kernel ties the subsystems together behind the syscall surface.

The Kernel struct is the whole machine state: memory tables, storage,
channels, the process table, the scheduler, users, the timer, and the
interrupt controller, threaded explicitly through every call. There is
no ambient global. The VM's flat memory is injected as a Memory
implementation at construction; the kernel never touches guest bytes
any other way.

Boot walks a strict phase sequence and every syscall is a single atomic
state transition: the dispatcher validates the raw number, the handler
re-validates every argument against the address-space bounds, and only
then are tables mutated. Operations that would wait return WouldBlock
instead; nothing in this package ever blocks the caller.
*/
package kernel
