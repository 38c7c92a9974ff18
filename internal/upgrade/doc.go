// Package upgrade drives a workspace from its installed model to a target
// model log.
//
// UpgradeModel runs its phases strictly in order and maps each one onto a
// reserved slice of a single 0-100 progress scale:
//
//	load           0
//	pre-migrate    0-10
//	cutover       10-20
//	force-indexes 20-25
//	migrate       25-40
//	catch-up      40-60
//	upgrade       60-90
//	finalize      90-100
//
// Any failing step aborts the run with a StepError. Nothing is retried
// within a run; a later run skips every step whose marker was recorded.
// The only failure tolerated is the force-close notification sent when no
// upgrade step opened a live connection.
package upgrade
