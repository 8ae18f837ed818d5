package speechbus

// Frame types sent to the speech service.
const (
	TypeCaptureStart = "capture.start"
	TypeCaptureStop  = "capture.stop"
	TypeRender       = "render"
	TypeRenderCancel = "render.cancel"
)

// Frame types received from the speech service.
const (
	TypeTranscript   = "transcript"
	TypeCaptureEnd   = "capture.end"
	TypeCaptureError = "capture.error"
	TypeRenderStart  = "render.start"
	TypeRenderEnd    = "render.end"
	TypeRenderError  = "render.error"
)

// Frame is one JSON text message on the bus.
type Frame struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Voice string `json:"voice,omitempty"`
	Final bool   `json:"final,omitempty"`
	Error string `json:"error,omitempty"`
}
