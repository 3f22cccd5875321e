// Package software implements the blit substrate on the CPU.
//
// Every request type, blitter mode, scroll kernel and composite mode runs
// in host memory with the same semantics as the native compute kernels.
// Fences are signalled either on submit or, with WithManualCompletion,
// only when the test calls Queue.Signal. A Trace records submissions,
// signals, executed commands and resource destruction in order.
//
// Importing the package registers it as the "software" backend.
package software
