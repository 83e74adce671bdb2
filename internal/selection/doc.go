// Package selection tracks the single active time-range selection over the
// current timeline duration. It is pure state with no side effects.
package selection
