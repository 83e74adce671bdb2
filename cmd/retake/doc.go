// Package main hosts the retake CLI entrypoint and command graph.
//
// The Cobra command tree opens edit sessions over a recording (interactive or
// scripted), flattens recordings, inspects media, manages stored submissions,
// and scaffolds configuration. Configuration resolution and logging setup
// live in the command context so subcommands only wire their own work.
//
// Keep this package lean: behavior belongs in the internal packages, and
// commands here translate terminal input into calls against them.
package main
