package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scttfrdmn/productcache/pkg/errors"
)

func TestTracker_RegisterComponent(t *testing.T) {
	tracker := NewTracker(DefaultConfig())

	if state := tracker.GetState(ComponentStore); state != StateUnavailable {
		t.Errorf("Expected unknown component to be unavailable, got %s", state)
	}

	tracker.RegisterComponent(ComponentStore)

	if state := tracker.GetState(ComponentStore); state != StateHealthy {
		t.Errorf("Expected initial state to be StateHealthy, got %s", state)
	}
}

func TestTracker_RecordSuccess(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	tracker.RegisterComponent(ComponentStore)

	tracker.RecordError(ComponentStore, fmt.Errorf("test error"))
	tracker.RecordError(ComponentStore, fmt.Errorf("test error"))

	tracker.RecordSuccess(ComponentStore)
	tracker.RecordSuccess(ComponentStore)

	h := tracker.GetAllComponents()[ComponentStore]
	if h.ConsecutiveErrors != 0 {
		t.Errorf("Expected ConsecutiveErrors=0 after successes, got %d", h.ConsecutiveErrors)
	}
}

func TestTracker_RecordError_Degradation(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 3
	config.UnavailableThreshold = 5
	tracker := NewTracker(config)
	tracker.RegisterComponent(ComponentStore)

	for i := 0; i < 2; i++ {
		tracker.RecordError(ComponentStore, fmt.Errorf("error %d", i))
	}
	if state := tracker.GetState(ComponentStore); state != StateHealthy {
		t.Errorf("Expected StateHealthy before threshold, got %s", state)
	}

	tracker.RecordError(ComponentStore, fmt.Errorf("error 2"))
	if state := tracker.GetState(ComponentStore); state != StateDegraded {
		t.Errorf("Expected StateDegraded at threshold, got %s", state)
	}

	tracker.RecordError(ComponentStore, fmt.Errorf("error 3"))
	tracker.RecordError(ComponentStore, fmt.Errorf("error 4"))
	if state := tracker.GetState(ComponentStore); state != StateUnavailable {
		t.Errorf("Expected StateUnavailable, got %s", state)
	}
	if overall := tracker.GetOverallHealth(); overall != StateUnavailable {
		t.Errorf("Expected overall StateUnavailable, got %s", overall)
	}
}

func TestTracker_WriteErrorsAreReadOnly(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 1
	tracker := NewTracker(config)
	tracker.RegisterComponent(ComponentStore)

	tracker.RecordError(ComponentStore, errors.NewError(errors.ErrCodeStoreWrite, "disk full"))

	if state := tracker.GetState(ComponentStore); state != StateReadOnly {
		t.Errorf("Expected StateReadOnly, got %s", state)
	}
}

func TestTracker_Recovery(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 2
	tracker := NewTracker(config)
	tracker.RegisterComponent(ComponentStore)

	tracker.Record(ComponentStore, fmt.Errorf("a"))
	tracker.Record(ComponentStore, fmt.Errorf("b"))
	if state := tracker.GetState(ComponentStore); state != StateDegraded {
		t.Fatalf("Expected StateDegraded, got %s", state)
	}

	tracker.Record(ComponentStore, nil)
	tracker.Record(ComponentStore, nil)

	h := tracker.GetAllComponents()[ComponentStore]
	if h.State != StateHealthy {
		t.Errorf("Expected recovery to StateHealthy, got %s", h.State)
	}
	if h.LastErrorMessage != "" {
		t.Errorf("Expected error message cleared on recovery, got %q", h.LastErrorMessage)
	}
}

func TestTracker_UnregisteredIgnored(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	tracker.RecordError("nothing", fmt.Errorf("x"))
	tracker.RecordSuccess("nothing")

	if n := len(tracker.GetAllComponents()); n != 0 {
		t.Errorf("Expected no components, got %d", n)
	}
	if overall := tracker.GetOverallHealth(); overall != StateHealthy {
		t.Errorf("Expected empty tracker to be healthy, got %s", overall)
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"store": StateReadOnly})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"store":"read-only"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}

func TestTracker_StartHealthChecks(t *testing.T) {
	config := DefaultConfig()
	config.CheckInterval = 5 * time.Millisecond
	config.ErrorThreshold = 1
	tracker := NewTracker(config)
	tracker.RegisterComponent(ComponentStore)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.StartHealthChecks(ctx, func(ctx context.Context, component string) error {
			calls.Add(1)
			return fmt.Errorf("%s unreachable", component)
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for tracker.GetState(ComponentStore) == StateHealthy && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if calls.Load() == 0 {
		t.Fatal("Expected at least one health check")
	}
	if state := tracker.GetState(ComponentStore); state == StateHealthy {
		t.Errorf("Expected failing checks to degrade the store, got %s", state)
	}
}
