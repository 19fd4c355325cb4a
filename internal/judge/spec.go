package judge

import "fmt"

// CheckSpec validates a Spec's resource limits and input source against
// the judge-mode ceilings, mirroring FastIOJudgeSpec::check_spec.
func CheckSpec(s Spec, maxCost uint64, maxMemoryMB uint32) error {
	if s.Cost > maxCost {
		return fmt.Errorf("invalid cost limit, got %d, max is %d", s.Cost, maxCost)
	}
	if s.Memory > maxMemoryMB {
		return fmt.Errorf("invalid memory limit, got %d, max is %d", s.Memory, maxMemoryMB)
	}
	if s.Input == "" && s.InputURL == "" {
		return fmt.Errorf("must provide either input or input_url")
	}
	return nil
}
