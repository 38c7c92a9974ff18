// Package progress maps the internal progress of a migration run onto one
// 0-100 scale reported to an external observer.
//
// Each phase owns a fixed slice of the scale:
//
//	load            0
//	pre-migrate     0 - 10
//	cutover        10 - 20
//	force-indexes  20 - 25
//	migrate        25 - 40
//	catch-up       40 - 60
//	upgrade        60 - 90
//	finalize       90 - 100
//
// Global(phase, local) is a pure function; Reporter adds the only stateful
// guarantee: the sink never sees a decreasing value, and Done ends the
// sequence at exactly 100.
package progress
