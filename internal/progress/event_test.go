package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	tests := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{"run start", Event{RunID: "r", TS: now, Stage: StageRunStart}, false},
		{"request done", Event{RunID: "r", TS: now, Stage: StageRequestDone, SubTag: "霊夢"}, false},
		{"skip with reason", Event{RunID: "r", TS: now, Stage: StageCandidateSkip, Reason: "seen"}, false},
		{"missing run id", Event{TS: now, Stage: StageRunStart}, true},
		{"missing timestamp", Event{RunID: "r", Stage: StageRunStart}, true},
		{"request without sub tag", Event{RunID: "r", TS: now, Stage: StageRequestDone}, true},
		{"skip without reason", Event{RunID: "r", TS: now, Stage: StageCandidateSkip}, true},
		{"unknown stage", Event{RunID: "r", TS: now, Stage: "NOPE"}, true},
		{"negative duration", Event{RunID: "r", TS: now, Stage: StageRunStart, Dur: -time.Second}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
