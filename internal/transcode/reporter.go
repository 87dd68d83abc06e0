package transcode

import (
	draptolib "github.com/five82/drapto"
)

// reporter forwards the Drapto events archive logging cares about and
// ignores the rest.
type reporter struct {
	callback func(Progress)
}

func (r *reporter) Hardware(draptolib.HardwareSummary) {}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.callback(Progress{Stage: "initialization", Message: s.Resolution})
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	r.callback(Progress{Stage: s.Stage, Percent: float64(s.Percent), Message: s.Message})
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	r.callback(Progress{Stage: "crop", Message: s.Message})
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.callback(Progress{Stage: "config", Message: s.Encoder + " " + s.Preset})
}

func (r *reporter) EncodingStarted(uint64) {
	r.callback(Progress{Stage: "encoding"})
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.callback(Progress{Stage: "encoding", Percent: float64(s.Percent)})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	msg := "passed"
	if !s.Passed {
		msg = "failed"
	}
	r.callback(Progress{Stage: "validation", Percent: 100, Message: msg})
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.callback(Progress{Stage: "complete", Percent: 100, Message: s.OutputPath})
}

func (r *reporter) Warning(message string) {
	r.callback(Progress{Stage: "warning", Message: message})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.callback(Progress{Stage: "error", Message: e.Title + ": " + e.Message})
}

func (r *reporter) OperationComplete(message string) {
	r.callback(Progress{Stage: "complete", Percent: 100, Message: message})
}

func (r *reporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *reporter) FileProgress(draptolib.FileProgressContext) {}

func (r *reporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*reporter)(nil)
