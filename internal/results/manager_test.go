package results

import (
	"testing"
	"time"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(":memory:")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCreateAndGetRun(t *testing.T) {
	m := testManager(t)

	run := &Run{
		ScenarioName:  "checkout-flow",
		Mode:          "full",
		Seed:          42,
		StartedAt:     time.Now(),
		Status:        "running",
		TotalSessions: 100,
	}
	if err := m.CreateRun(run); err != nil {
		t.Fatal(err)
	}
	if run.ID == 0 {
		t.Fatal("CreateRun should assign an ID")
	}

	got, err := m.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ScenarioName != "checkout-flow" || got.Mode != "full" || got.Seed != 42 {
		t.Errorf("got %+v", got)
	}
	if !got.IsRunning() {
		t.Error("fresh run should report running")
	}
}

func TestUpdateRun(t *testing.T) {
	m := testManager(t)

	run := &Run{ScenarioName: "s", Mode: "legacy", StartedAt: time.Now(), Status: "running", TotalSessions: 10}
	if err := m.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	run.CompletedAt = &now
	run.Status = "completed"
	run.CompletedSessions = 10
	run.TotalRequests = 30
	run.TotalErrors = 1
	run.TotalAssertionFailures = 2
	run.AvgDurationMs = 120.5
	run.MinDurationMs = 10
	run.MaxDurationMs = 900
	run.P50DurationMs = 100
	run.P90DurationMs = 300
	run.P95DurationMs = 400
	run.P99DurationMs = 800
	if err := m.UpdateRun(run); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "completed" || got.TotalRequests != 30 || got.P90DurationMs != 300 {
		t.Errorf("got %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestSaveAndGetMetrics(t *testing.T) {
	m := testManager(t)

	run := &Run{ScenarioName: "s", Mode: "full", StartedAt: time.Now(), Status: "running"}
	if err := m.CreateRun(run); err != nil {
		t.Fatal(err)
	}

	metrics := []*Metric{
		{RunID: run.ID, SessionNum: 0, StepID: "login", Timestamp: time.Now(), ElapsedMs: 10, StatusCode: 200, DurationMs: 8},
		{RunID: run.ID, SessionNum: 0, StepID: "browse", Timestamp: time.Now(), ElapsedMs: 30, StatusCode: 200, DurationMs: 15,
			AssertionFailure: "status_code assertion: expected 200, got 500"},
		{RunID: run.ID, SessionNum: 1, StepID: "login", Timestamp: time.Now(), ElapsedMs: 12, StatusCode: 0, DurationMs: 5000,
			ErrorMessage: "connection refused"},
	}
	if err := m.SaveMetricsBatch(metrics); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetMetrics(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d metrics, want 3", len(got))
	}
	if got[0].StepID != "login" || got[1].AssertionFailure == "" || got[2].ErrorMessage == "" {
		t.Errorf("metrics = %+v", got)
	}
}

func TestSaveMetricsBatchEmpty(t *testing.T) {
	m := testManager(t)
	if err := m.SaveMetricsBatch(nil); err != nil {
		t.Errorf("empty batch should be a no-op: %v", err)
	}
}

func TestListRuns(t *testing.T) {
	m := testManager(t)

	for i := 0; i < 3; i++ {
		run := &Run{
			ScenarioName:  "s",
			Mode:          "full",
			StartedAt:     time.Now().Add(time.Duration(i) * time.Minute),
			Status:        "completed",
			TotalSessions: 1,
		}
		if err := m.CreateRun(run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := m.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].StartedAt.Before(runs[1].StartedAt) {
		t.Error("runs should be newest first")
	}
}
