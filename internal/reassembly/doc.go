// Package reassembly flattens a timeline into one continuous artifact.
//
// The pipeline drives a streaming decode Engine through a fixed phase
// sequence: open a buffer bound to a hidden player, append chunks strictly one
// at a time (chunk i only after chunk i-1 is acknowledged), signal end of
// input, then seek to zero, play, and record the rendered output. The engine
// is allowed to misbehave: appends can fail, end-of-input can go
// unacknowledged, and the recorder can produce nothing. Each case maps to a
// typed error or a non-fatal warning, and every exit path releases the buffer,
// player, and recorder.
//
// A global watchdog bounds the whole flatten (Budget.Overall). Preview budgets
// fail soft at the caller; export budgets also bound the capture step. Flatten
// is single-flight per timeline lineage, within the process and, when a lock
// directory is configured, across processes.
package reassembly
