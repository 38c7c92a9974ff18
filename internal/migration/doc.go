// Package migration tracks which migration steps a workspace has applied and
// gives steps a client scoped to the workspace store.
//
// State markers are (plugin, state) pairs stored in the migration domain.
// They are appended once a step succeeds and never rewritten, so a full
// re-run skips every step already recorded.
package migration
