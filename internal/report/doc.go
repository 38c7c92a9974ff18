// Package report renders the outcome of an upgrade run.
//
// Markdown produces a GitHub-flavoured summary of an upgrade.Result: step
// timings, index work per domain, classification problems and the live
// coordination outcome. HTML converts the same document with goldmark and its
// GFM extension so the tables survive. WriteFile picks the format from the
// file extension.
package report
