package entities

// CaptureState represents whether microphone capture is running
type CaptureState string

const (
	CaptureStateIdle      CaptureState = "idle"
	CaptureStateListening CaptureState = "listening"
)
