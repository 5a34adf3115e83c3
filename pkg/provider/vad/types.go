package vad

// VADEvent is the classification of one frame.
type VADEvent struct {
	Type VADEventType
	// Probability of speech in [0, 1]. Binary engines report 0 or 1.
	Probability float64
}

// IsSpeech reports whether the frame was classified as speech.
func (e VADEvent) IsSpeech() bool {
	return e.Type == VADSpeechStart || e.Type == VADSpeechContinue
}

// VADEventType is the edge-aware state of a classification.
type VADEventType int

const (
	VADSpeechStart VADEventType = iota
	VADSpeechContinue
	VADSpeechEnd
	VADSilence
)

var eventNames = [...]string{"speech_start", "speech_continue", "speech_end", "silence"}

func (t VADEventType) String() string {
	if t < 0 || int(t) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[t]
}

// Transition turns two consecutive binary decisions into an event type.
func Transition(wasSpeech, isSpeech bool) VADEventType {
	switch {
	case isSpeech && !wasSpeech:
		return VADSpeechStart
	case isSpeech:
		return VADSpeechContinue
	case wasSpeech:
		return VADSpeechEnd
	}
	return VADSilence
}
