// Package preflight provides readiness checks for the directories and
// external binaries retake depends on.
//
// The CLI "retake doctor" command runs RunAll and renders the results; the
// edit command runs the same checks for the configured capture adapter and
// refuses to start when a required one fails.
package preflight
