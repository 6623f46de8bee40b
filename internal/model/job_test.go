package model

import "testing"

func TestParseFileType(t *testing.T) {
	cases := map[string]FileType{
		"video":    FileTypeVideo,
		"audio":    FileTypeAudio,
		"document": FileTypeDocument,
		"image":    FileTypeImage,
		"pdf":      FileTypeUnknown,
		"VIDEO":    FileTypeUnknown,
		"":         FileTypeUnknown,
	}
	for input, want := range cases {
		if got := ParseFileType(input); got != want {
			t.Errorf("ParseFileType(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobStatusQueued.Terminal() || JobStatusProcessing.Terminal() {
		t.Error("queued and processing must not be terminal")
	}
	if !JobStatusCompleted.Terminal() || !JobStatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestApplyProgressMonotonic(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, Progress: 40, CurrentStep: "extract"}

	if !job.ApplyProgress(55, "extract") {
		t.Error("expected forward progress to apply")
	}
	if job.Progress != 55 {
		t.Errorf("progress = %d, want 55", job.Progress)
	}

	// A lower figure never winds progress back.
	if job.ApplyProgress(30, "extract") {
		t.Error("expected regressing update to be ignored")
	}
	if job.Progress != 55 {
		t.Errorf("progress = %d after regress, want 55", job.Progress)
	}

	// Step changes count as a change even without progress movement.
	if !job.ApplyProgress(55, "chunk") {
		t.Error("expected step change to apply")
	}
	if job.CurrentStep != "chunk" {
		t.Errorf("currentStep = %q, want chunk", job.CurrentStep)
	}
}

func TestApplyProgressCapsAt100(t *testing.T) {
	job := &Job{Status: JobStatusProcessing}
	job.ApplyProgress(250, "chunk")
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
}

func TestApplyProgressIgnoresTerminalJobs(t *testing.T) {
	for _, status := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		job := &Job{Status: status, Progress: 100}
		if job.ApplyProgress(50, "extract") {
			t.Errorf("expected update against %s job to be ignored", status)
		}
		if job.Progress != 100 || job.CurrentStep != "" {
			t.Errorf("terminal %s job was mutated", status)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.7, 0.7},
		{1, 1},
		{1.3, 1},
	}
	for _, tc := range cases {
		c := CanonicalChunk{Confidence: tc.in}
		c.ClampConfidence()
		if c.Confidence != tc.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tc.in, c.Confidence, tc.want)
		}
	}
}
