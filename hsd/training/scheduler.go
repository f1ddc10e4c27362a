package training

// WarmupLinearSchedule ramps the learning-rate multiplier linearly from 0
// to 1 over the warmup steps, then decays it linearly to 0 at the final
// step. Multiplier never goes negative even past totalSteps.
type WarmupLinearSchedule struct {
	WarmupSteps int
	TotalSteps  int
}

// Multiplier returns the factor for the given zero-based step.
func (s *WarmupLinearSchedule) Multiplier(step int) float64 {
	if s.TotalSteps <= 0 {
		return 1.0
	}
	if s.WarmupSteps > 0 && step < s.WarmupSteps {
		return float64(step) / float64(s.WarmupSteps)
	}
	denom := s.TotalSteps - s.WarmupSteps
	if denom <= 0 {
		return 1.0
	}
	m := float64(s.TotalSteps-step) / float64(denom)
	if m < 0 {
		return 0
	}
	return m
}
