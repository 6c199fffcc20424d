package pipeline

import "math"

// progressCap is the highest percentage reported while work is outstanding.
const progressCap = 95.0

type Progress struct {
	Percentage            float64  `json:"percentage"`
	ElapsedSeconds        float64  `json:"elapsedSeconds"`
	EstimatedTotalSeconds float64  `json:"estimatedTotalSeconds"`
	RemainingSeconds      float64  `json:"remainingSeconds"`
	ActivePhaseNames      []string `json:"activePhaseNames"`
}

// Progress weights each phase by its estimated duration. Active phases
// contribute their elapsed fraction, capped at one.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var total, done float64
	out := Progress{ActivePhaseNames: []string{}}
	for _, spec := range s.specs {
		ph := s.phases[spec.Key]
		weight := spec.Estimated.Seconds()
		total += weight
		switch ph.status {
		case StatusCompleted:
			done += weight
		case StatusActive:
			if weight > 0 {
				done += math.Min(now.Sub(ph.startedAt).Seconds()/weight, 1) * weight
			}
			out.ActivePhaseNames = append(out.ActivePhaseNames, spec.Name)
		}
	}
	if total == 0 {
		total = 1
	}

	if s.allCompletedLocked() {
		out.Percentage = 100
	} else {
		out.Percentage = math.Min(progressCap, 100*done/total)
	}
	if !s.startedAt.IsZero() {
		end := now
		if !s.endedAt.IsZero() {
			end = s.endedAt
		}
		out.ElapsedSeconds = end.Sub(s.startedAt).Seconds()
	}
	out.EstimatedTotalSeconds = total
	out.RemainingSeconds = math.Max(0, total-out.ElapsedSeconds)
	return out
}
