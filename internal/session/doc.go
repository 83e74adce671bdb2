// Package session implements the edit session controller: the state machine
// that turns user operations into timeline mutations, flattens, and captures.
//
// A Controller owns one live timeline. Selecting a range, deleting it, and
// stopping the automatic replacement capture walks Idle -> Selecting ->
// Previewing -> Recording -> Idle; an audio overlay goes straight from
// Selecting to Recording; Finalize flattens the timeline with the export
// budget and hands the artifact plus notes to the persistence collaborator.
// Operations are serialized by a mutex, and long steps run without it held so
// Cancel can interrupt them.
package session
