// Package ir provides the shared types of the session core: symbol entries,
// declarations proposed by the frontend, runtime values, linked-code artifacts
// and their content-addressed identities.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps IR the foundational layer
// with no circular dependencies.
//
// Key design constraints:
//   - Symbol entries never hold owning references to transactions, only ids
//   - Entry identity is content-addressed (SHA-256 over canonical JSON)
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
