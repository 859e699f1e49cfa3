package extract

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
)

// TypingConfig holds the thresholds for the typing telemetry heuristics.
type TypingConfig struct {
	// SpeedDeviation is the fractional deviation from the user's baseline
	// typing speed above which a slowdown or speedup is flagged.
	SpeedDeviation float64
	// HesitationThreshold flags high hesitation scores.
	HesitationThreshold float64
	// DeletionThreshold flags high deletion rates.
	DeletionThreshold float64
	// HistorySize bounds the per-user baseline sample window.
	HistorySize int
}

// DefaultTypingConfig returns the tuned production thresholds.
func DefaultTypingConfig() TypingConfig {
	return TypingConfig{
		SpeedDeviation:      0.5,
		HesitationThreshold: 0.7,
		DeletionThreshold:   0.3,
		HistorySize:         10,
	}
}

func (c TypingConfig) withDefaults() TypingConfig {
	d := DefaultTypingConfig()
	if c.SpeedDeviation <= 0 {
		c.SpeedDeviation = d.SpeedDeviation
	}
	if c.HesitationThreshold <= 0 {
		c.HesitationThreshold = d.HesitationThreshold
	}
	if c.DeletionThreshold <= 0 {
		c.DeletionThreshold = d.DeletionThreshold
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// BehaviorHistory keeps a bounded window of typing samples per user so the
// speed heuristic can compare against a personal baseline instead of a
// population constant.
type BehaviorHistory struct {
	mu      sync.Mutex
	size    int
	samples map[string][]float64
}

// NewBehaviorHistory returns a history keeping at most size samples per user.
func NewBehaviorHistory(size int) *BehaviorHistory {
	if size <= 0 {
		size = DefaultTypingConfig().HistorySize
	}
	return &BehaviorHistory{
		size:    size,
		samples: make(map[string][]float64),
	}
}

// Baseline returns the mean typing speed recorded for userID and whether any
// samples exist yet.
func (h *BehaviorHistory) Baseline(userID string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	samples := h.samples[userID]
	if len(samples) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples)), true
}

// Record appends a typing speed sample for userID, evicting the oldest once
// the window is full.
func (h *BehaviorHistory) Record(userID string, speed float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	samples := append(h.samples[userID], speed)
	if len(samples) > h.size {
		samples = samples[len(samples)-h.size:]
	}
	h.samples[userID] = samples
}

// TypingExtractor scores typing telemetry: deviation from the user's own
// baseline speed, hesitation, and deletion rate. The current sample joins
// the baseline window only after scoring, so a sample never dampens its own
// deviation.
type TypingExtractor struct {
	History *BehaviorHistory
	Config  TypingConfig
}

// Name implements Extractor.
func (e *TypingExtractor) Name() string { return "typing" }

// Extract implements Extractor.
func (e *TypingExtractor) Extract(_ context.Context, in Input) ([]model.Indicator, error) {
	if in.Behavior == nil {
		return nil, nil
	}
	cfg := e.Config.withDefaults()
	now := time.Now().UTC()
	b := in.Behavior

	var out []model.Indicator

	if e.History != nil {
		if b.AvgTypingSpeed > 0 {
			if baseline, ok := e.History.Baseline(in.UserID); ok && baseline > 0 {
				deviation := math.Abs(b.AvgTypingSpeed-baseline) / baseline
				if deviation > cfg.SpeedDeviation {
					out = append(out, model.Indicator{
						Kind:       model.IndicatorBehavioral,
						Severity:   model.SeverityModerate,
						Confidence: 0.5,
						Language:   in.Language.Tag,
						Detail:     "typing_speed_deviation",
						Timestamp:  now,
					})
				}
			}
			// The sample joins the window after scoring, never before.
			// Zero speed means the client sent no speed telemetry; recording
			// it would drag the baseline mean toward zero, so only real
			// samples join the window.
			e.History.Record(in.UserID, b.AvgTypingSpeed)
		}
	}

	if b.HesitationScore > cfg.HesitationThreshold {
		out = append(out, model.Indicator{
			Kind:       model.IndicatorBehavioral,
			Severity:   model.SeverityModerate,
			Confidence: 0.6,
			Language:   in.Language.Tag,
			Detail:     "high_hesitation",
			Timestamp:  now,
		})
	}

	if b.DeletionRate > cfg.DeletionThreshold {
		out = append(out, model.Indicator{
			Kind:       model.IndicatorBehavioral,
			Severity:   model.SeverityLow,
			Confidence: 0.6,
			Language:   in.Language.Tag,
			Detail:     "high_deletion_rate",
			Timestamp:  now,
		})
	}

	return out, nil
}
