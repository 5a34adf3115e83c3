package vad

import "time"

const (
	// MinLevel and MaxLevel bound the user-facing sensitivity setting.
	MinLevel = 1
	MaxLevel = 10

	// DefaultLevel is used when no sensitivity is configured.
	DefaultLevel = 7
)

// Sensitivity is one row of the sensitivity table. Threshold and MinSilence
// configure the acoustic classifier; Hangover and InitialDebounce configure
// the [Detector] on top of it.
type Sensitivity struct {
	Level           int
	Threshold       float64
	MinSilence      time.Duration
	Hangover        time.Duration
	InitialDebounce time.Duration
}

// sensitivityTable holds empirically tuned product constants. Higher levels
// stop sooner: MinSilence, Hangover and InitialDebounce never increase with
// the level. Recalibrate if the underlying classifier changes.
var sensitivityTable = [MaxLevel]Sensitivity{
	{Level: 1, Threshold: 0.40, MinSilence: 550 * time.Millisecond, Hangover: 400 * time.Millisecond, InitialDebounce: 1500 * time.Millisecond},
	{Level: 2, Threshold: 0.40, MinSilence: 450 * time.Millisecond, Hangover: 380 * time.Millisecond, InitialDebounce: 1400 * time.Millisecond},
	{Level: 3, Threshold: 0.40, MinSilence: 380 * time.Millisecond, Hangover: 350 * time.Millisecond, InitialDebounce: 1300 * time.Millisecond},
	{Level: 4, Threshold: 0.50, MinSilence: 320 * time.Millisecond, Hangover: 320 * time.Millisecond, InitialDebounce: 1200 * time.Millisecond},
	{Level: 5, Threshold: 0.50, MinSilence: 270 * time.Millisecond, Hangover: 300 * time.Millisecond, InitialDebounce: 1100 * time.Millisecond},
	{Level: 6, Threshold: 0.50, MinSilence: 230 * time.Millisecond, Hangover: 270 * time.Millisecond, InitialDebounce: 1000 * time.Millisecond},
	{Level: 7, Threshold: 0.50, MinSilence: 200 * time.Millisecond, Hangover: 250 * time.Millisecond, InitialDebounce: 900 * time.Millisecond},
	{Level: 8, Threshold: 0.60, MinSilence: 150 * time.Millisecond, Hangover: 200 * time.Millisecond, InitialDebounce: 800 * time.Millisecond},
	{Level: 9, Threshold: 0.60, MinSilence: 110 * time.Millisecond, Hangover: 180 * time.Millisecond, InitialDebounce: 700 * time.Millisecond},
	{Level: 10, Threshold: 0.60, MinSilence: 80 * time.Millisecond, Hangover: 150 * time.Millisecond, InitialDebounce: 600 * time.Millisecond},
}

// SensitivityFor returns the table row for level. Out-of-range levels are
// clamped to [MinLevel, MaxLevel].
func SensitivityFor(level int) Sensitivity {
	level = min(max(level, MinLevel), MaxLevel)
	return sensitivityTable[level-1]
}
