/*
Package proc implements the process subsystem.

It holds the fixed-capacity process table, the executable image parser,
the per-process execution context with its switch-in/save pair, the
cooperative round-robin scheduler, and the per-process signal tables.

Execution itself happens in an external instruction-set VM; the kernel
only records each process's program counter and stack pointer between
time slices. A process is therefore a bookkeeping record: identity,
state, context, and signal masks. Scheduling is cooperative and driven
from outside the package; the scheduler only answers "who runs next".
*/
package proc
