package models

// RecorderStatus represents the state of a recording run.
type RecorderStatus string

const (
	RecorderStatusWaiting   RecorderStatus = "waiting" // no valid fix yet
	RecorderStatusRecording RecorderStatus = "recording"
	RecorderStatusStopped   RecorderStatus = "stopped"
)

// RecordingSession describes one run of the recorder.
type RecordingSession struct {
	ID          string         `json:"id"`
	Device      string         `json:"device"`
	Status      RecorderStatus `json:"status"`
	FixesStored int            `json:"fixesStored"`
	Sentences   int            `json:"sentences"`
	BadLines    int            `json:"badLines"`
}
