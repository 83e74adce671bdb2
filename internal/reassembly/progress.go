package reassembly

// Progress reports pipeline advancement. Percent is negative when unknown.
type Progress struct {
	Phase   Phase
	Message string
	Percent float64
}

// ProgressFunc receives progress updates. It is called from the flatten
// goroutine and must not block.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(phase Phase, percent float64, message string) {
	if f == nil {
		return
	}
	f(Progress{Phase: phase, Message: message, Percent: percent})
}
