package ingestion

import (
	"strings"
)

// DefaultSampleLines is how many non-empty lines the detector inspects.
const DefaultSampleLines = 5

// DefaultMinConfidence is the threshold below which callers should
// fall back to their configured default separator.
const DefaultMinConfidence = 0.7

var separatorCandidates = []rune{',', ';', '\t', '|'}

// SeparatorScore is the per-candidate breakdown of a detection run.
type SeparatorScore struct {
	Separator  rune    `json:"separator"`
	Confidence float64 `json:"confidence"`
	// Consistent is true when the candidate appears the same number
	// of times on every sampled line.
	Consistent bool `json:"consistent"`
	// MeanCount is the average occurrences per sampled line.
	MeanCount float64 `json:"mean_count"`
}

// SeparatorResult is the outcome of statistical separator detection.
type SeparatorResult struct {
	Separator  rune             `json:"separator"`
	Confidence float64          `json:"confidence"`
	Scores     []SeparatorScore `json:"scores"`
}

// DetectSeparator guesses the field delimiter of tabular text.
// For each candidate it counts occurrences on up to sampleLines
// non-empty lines; a candidate is consistent when that count never
// varies. Confidence is the consistency score weighted by how often
// the candidate occurs, normalized against the busiest candidate.
// The caller owns the policy when confidence comes back below its
// threshold: fail fast or fall back to a configured default.
func DetectSeparator(content string, sampleLines int) SeparatorResult {
	if sampleLines <= 0 {
		sampleLines = DefaultSampleLines
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= sampleLines {
			break
		}
	}

	result := SeparatorResult{Separator: ','}
	if len(lines) == 0 {
		return result
	}

	var maxMean float64
	scores := make([]SeparatorScore, 0, len(separatorCandidates))
	for _, candidate := range separatorCandidates {
		counts := make([]int, len(lines))
		total := 0
		for i, line := range lines {
			counts[i] = strings.Count(line, string(candidate))
			total += counts[i]
		}

		consistent := total > 0
		for _, c := range counts {
			if c != counts[0] {
				consistent = false
				break
			}
		}

		mean := float64(total) / float64(len(lines))
		if mean > maxMean {
			maxMean = mean
		}
		scores = append(scores, SeparatorScore{
			Separator:  candidate,
			Consistent: consistent,
			MeanCount:  mean,
		})
	}

	for i := range scores {
		if maxMean == 0 || scores[i].MeanCount == 0 {
			continue
		}
		// Base confidence comes from per-line consistency; the
		// occurrence weight breaks ties between consistent candidates.
		base := 0.5
		if scores[i].Consistent {
			base = 1.0
		}
		weight := scores[i].MeanCount / maxMean
		scores[i].Confidence = base * (0.5 + 0.5*weight)
	}

	best := scores[0]
	for _, score := range scores[1:] {
		if score.Confidence > best.Confidence {
			best = score
		}
	}

	result.Separator = best.Separator
	result.Confidence = best.Confidence
	result.Scores = scores
	return result
}
