package dto

// CaptureFrame is an inbound websocket message on the capture socket.
// Type selects the payload: "utterance_final" and "utterance_interim" carry
// the speech fields, "recording_stopped" carries none.
type CaptureFrame struct {
	Type        string  `json:"type"`
	Channel     string  `json:"channel"`
	Text        string  `json:"text"`
	StartOffset float64 `json:"start_offset"`
	EndOffset   float64 `json:"end_offset"`
	Confidence  float64 `json:"confidence"`
}

const (
	FrameUtteranceFinal   = "utterance_final"
	FrameUtteranceInterim = "utterance_interim"
	FrameRecordingStopped = "recording_stopped"
)

// ArtifactPush is the outbound websocket message for a completed artifact.
type ArtifactPush struct {
	Type string      `json:"type"` // always "artifact"
	Kind string      `json:"kind"` // insights | differential | record | handout
	Data interface{} `json:"data"`
}
