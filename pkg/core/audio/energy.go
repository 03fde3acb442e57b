package audio

import "math"

// RMSEnergy computes the root-mean-square energy of a sample buffer.
// The orchestrator uses it to discard near-silent utterances before
// spending a transcription call.
func RMSEnergy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
