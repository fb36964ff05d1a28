package crosscat

import (
	"encoding/json"
	"fmt"

	"gendb/internal/model"
)

// modelState is the persisted per-model record: the latent state plus the
// cumulative iteration count, the per-checkpoint diagnostic series, and the
// configuration the model was initialized with.
type modelState struct {
	State      *LatentState `json:"state"`
	Iterations int          `json:"iterations"`
	LogScore   []float64    `json:"logscore"`
	NumBlocks  []int        `json:"num_blocks"`
	Alpha      []float64    `json:"alpha"`
	Config     model.Config `json:"config"`
}

func (ms *modelState) clone() *modelState {
	out := &modelState{
		State:      ms.State.clone(),
		Iterations: ms.Iterations,
		LogScore:   append([]float64(nil), ms.LogScore...),
		NumBlocks:  append([]int(nil), ms.NumBlocks...),
		Alpha:      append([]float64(nil), ms.Alpha...),
		Config:     ms.Config,
	}
	out.Config.Kernels = append([]string(nil), ms.Config.Kernels...)
	return out
}

// record appends one checkpoint's diagnostics.
func (ms *modelState) record(d StepDiagnostics) {
	ms.LogScore = append(ms.LogScore, d.LogScore)
	ms.NumBlocks = append(ms.NumBlocks, d.NumBlocks)
	ms.Alpha = append(ms.Alpha, d.Alpha)
}

func (ms *modelState) encode() ([]byte, error) {
	return json.Marshal(ms)
}

func parseModelState(blob []byte) (*modelState, error) {
	var ms modelState
	if err := json.Unmarshal(blob, &ms); err != nil {
		return nil, fmt.Errorf("parse model state: %w", err)
	}
	if ms.State == nil {
		return nil, fmt.Errorf("parse model state: missing latent state")
	}
	return &ms, nil
}
