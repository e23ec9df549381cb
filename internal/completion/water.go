package completion

// WaterState tracks water intake as a simple two-state toggle per date, not
// a running total: toggling on books the full daily target, toggling off
// books zero. Only the current date is ever mutated, historical entries are
// read-only once the day has passed.
type WaterState struct {
	PerDateMl        map[string]int  `json:"perDateMl"`
	PerDateCompleted map[string]bool `json:"perDateCompleted"`
}

func NewWaterState() *WaterState {
	return &WaterState{
		PerDateMl:        make(map[string]int),
		PerDateCompleted: make(map[string]bool),
	}
}

// Toggle flips the completion state for the date and returns the new state.
func (w *WaterState) Toggle(date string, targetMl int) bool {
	if w.PerDateCompleted[date] {
		w.PerDateCompleted[date] = false
		w.PerDateMl[date] = 0
		return false
	}
	w.PerDateCompleted[date] = true
	w.PerDateMl[date] = targetMl
	return true
}

func (w *WaterState) IntakeFor(date string) int {
	return w.PerDateMl[date]
}

func (w *WaterState) CompletedFor(date string) bool {
	return w.PerDateCompleted[date]
}
