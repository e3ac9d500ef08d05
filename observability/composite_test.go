package observability

import (
	"context"
	"testing"
	"time"
)

type recordingObserver struct {
	executing []string
}

func (r *recordingObserver) PipelineStarting(context.Context, string)            {}
func (r *recordingObserver) PipelineFinished(context.Context, string, time.Duration) {}
func (r *recordingObserver) PipelineFailed(context.Context, string, error)       {}
func (r *recordingObserver) NodeExecuting(_ context.Context, nodeID string) {
	r.executing = append(r.executing, nodeID)
}
func (r *recordingObserver) NodeFinished(context.Context, string, time.Duration) {}
func (r *recordingObserver) NodeFailed(context.Context, string, error)          {}
func (r *recordingObserver) ItemProduced(context.Context, string)                {}
func (r *recordingObserver) ItemDropped(context.Context, string, string)        {}
func (r *recordingObserver) RetryScheduled(context.Context, string, int, time.Duration) {}
func (r *recordingObserver) BreakerStateChanged(context.Context, string, string, string) {}

type panickingObserver struct{}

func (panickingObserver) PipelineStarting(context.Context, string)            {}
func (panickingObserver) PipelineFinished(context.Context, string, time.Duration) {}
func (panickingObserver) PipelineFailed(context.Context, string, error)       {}
func (panickingObserver) NodeExecuting(context.Context, string) { panic("boom") }
func (panickingObserver) NodeFinished(context.Context, string, time.Duration) {}
func (panickingObserver) NodeFailed(context.Context, string, error)          {}
func (panickingObserver) ItemProduced(context.Context, string)                {}
func (panickingObserver) ItemDropped(context.Context, string, string)        {}
func (panickingObserver) RetryScheduled(context.Context, string, int, time.Duration) {}
func (panickingObserver) BreakerStateChanged(context.Context, string, string, string) {}

func TestCompositeIsolatesPanickingObserver(t *testing.T) {
	rec := &recordingObserver{}
	c := NewComposite(nil, panickingObserver{}, rec, nil)

	c.NodeExecuting(context.Background(), "n1")

	if len(rec.executing) != 1 || rec.executing[0] != "n1" {
		t.Fatalf("expected the well-behaved observer to still receive the event, got %+v", rec.executing)
	}
}

func TestNullObserverDiscardsEverything(t *testing.T) {
	var o Observer = NullObserver{}
	o.PipelineStarting(context.Background(), "run-1")
	o.NodeFailed(context.Background(), "n1", nil)
}
