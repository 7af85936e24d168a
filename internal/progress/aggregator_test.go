package progress

import "testing"

func TestRegisterAndUpdate(t *testing.T) {
	a := New()
	a.Register("seg-0", "segment 0", 1000, nil)
	a.Update("seg-0", 0.5, 30, 0)

	snap := a.Snapshot()
	if snap.TotalWorkers != 1 {
		t.Fatalf("expected 1 worker, got %d", snap.TotalWorkers)
	}
	if snap.Records[0].Status != StatusProcessing {
		t.Errorf("expected processing status, got %v", snap.Records[0].Status)
	}
	if snap.Records[0].ProcessedBytes != 500 {
		t.Errorf("expected estimated 500 processed bytes, got %d", snap.Records[0].ProcessedBytes)
	}
}

func TestUpdateClampsFraction(t *testing.T) {
	a := New()
	a.Register("w1", "w1", 100, nil)
	a.Update("w1", 1.5, 0, 0)
	if a.Snapshot().Records[0].Fraction != 1 {
		t.Errorf("expected fraction clamped to 1")
	}

	a.Update("w1", -1, 0, 0)
	if a.Snapshot().Records[0].Fraction != 0 {
		t.Errorf("expected fraction clamped to 0")
	}
}

func TestUpdateUnregisteredIsNoOp(t *testing.T) {
	a := New()
	a.Update("ghost", 0.5, 0, 0)
	if a.Snapshot().TotalWorkers != 0 {
		t.Error("expected update on unregistered id to be a no-op")
	}
}

func TestWeightedOverallFraction(t *testing.T) {
	a := New()
	a.Register("a", "a", 100, nil)
	a.Register("b", "b", 300, nil)
	a.Update("a", 1.0, 0, 0)
	a.Update("b", 0.0, 0, 0)

	snap := a.Snapshot()
	want := (1.0*100 + 0.0*300) / 400
	if snap.OverallFraction != want {
		t.Errorf("expected overall %v, got %v", want, snap.OverallFraction)
	}
}

func TestCompleteAndFail(t *testing.T) {
	a := New()
	a.Register("a", "a", 100, nil)
	a.Register("b", "b", 100, nil)
	a.Complete("a")
	a.Fail("b", "encode error")

	snap := a.Snapshot()
	for _, r := range snap.Records {
		switch r.ID {
		case "a":
			if r.Status != StatusCompleted {
				t.Errorf("expected a completed, got %v", r.Status)
			}
		case "b":
			if r.Status != StatusFailed || r.FailReason != "encode error" {
				t.Errorf("expected b failed with reason, got %v %q", r.Status, r.FailReason)
			}
		}
	}
}

func TestZeroWeightSnapshotIsZero(t *testing.T) {
	a := New()
	snap := a.Snapshot()
	if snap.OverallFraction != 0 {
		t.Errorf("expected 0 overall fraction for empty aggregator, got %v", snap.OverallFraction)
	}
}

func TestCallbackInvokedOnUpdate(t *testing.T) {
	a := New()
	calls := 0
	a.SetCallback(func(Snapshot) { calls++ })
	a.Register("a", "a", 100, nil)
	a.Update("a", 0.5, 0, 0)
	a.Complete("a")

	if calls != 3 {
		t.Errorf("expected 3 callback invocations, got %d", calls)
	}
}
