// Package harness runs scripted txrepl sessions and checks what they did.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	options:
//	  strict: false
//	  include_paths: [include]      # relative to the scenario file
//	  native_string: narrow
//	  journal: true                 # record into an in-memory journal
//	files:
//	  util.h: |
//	    int triple(int x) { return 3 * x; }
//	steps:
//	  - input: "int a = 4;"
//	  - input: "a * 2"
//	    expect:
//	      output: "(int) 8"
//	  - input: "missing()"
//	    expect:
//	      error: E_COMPILE
//	assertions:
//	  - type: visible_contains
//	    name: a
//	    kind: variable
//	  - type: live_count
//	    count: 1
//
// Files are written to a private directory that is searched first by .L,
// .x and #include.
//
// # Assertion Types
//
//   - visible_contains: a qualified name is visible, optionally of a kind
//   - visible_absent: a qualified name is not visible
//   - live_count: the number of live transactions
//   - snapshot_clean: the directory equals a stored snapshot
//   - output_contains: some step printed the given text
//   - replay_matches: replaying the journal reproduces the directory
//
// # Deterministic Testing
//
// Every scenario runs in a fresh session with a fixed session id and a
// logical clock starting at zero, so transcripts are identical across runs
// and can be compared against golden files.
package harness
