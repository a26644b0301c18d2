// Package bridge links committed transactions into the running session and
// invokes their code.
//
// The Linker resolves symbols against the artifacts of live transactions,
// most recent first, and then against loaded native libraries, most recently
// loaded first. It implements ir.Env, so linked code reads and writes
// variables, dereferences pointers and calls functions through it.
//
// Every dereference goes through the Guard. A pointer is accepted only if it
// is non-null and either names a live session cell or every byte of the read
// lies on pages the operating system reports as readable; everything else
// yields an
// InvalidDereference error instead of a read.
package bridge
