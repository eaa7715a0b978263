package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
)

type recordingOutput struct {
	mu      sync.Mutex
	reports []*models.Report
}

func (o *recordingOutput) Write(r *models.Report) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
	return nil
}

func (o *recordingOutput) Name() string { return "recording" }

func (o *recordingOutput) Reports() []*models.Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*models.Report(nil), o.reports...)
}

type failingOutput struct{}

func (failingOutput) Write(*models.Report) error { return errors.New("index unavailable") }
func (failingOutput) Name() string               { return "failing" }

// blockingOutput holds every write until release is closed
type blockingOutput struct {
	release chan struct{}
}

func (o blockingOutput) Write(*models.Report) error {
	<-o.release
	return nil
}

func (blockingOutput) Name() string { return "blocking" }

func report(id string) *models.Report {
	return &models.Report{
		ReportID: id,
		Site:     models.SiteInfo{Name: "google"},
		Envelope: models.NewEnvelope(models.VisitInfo{Type: models.VisitNormal}),
	}
}

func TestDispatcher_FailingOutputDoesNotAffectOthers(t *testing.T) {
	d := NewDispatcher(nil)
	recording := &recordingOutput{}
	d.RegisterOutput(failingOutput{})
	d.RegisterOutput(recording)

	d.Dispatch(report("r1"))
	d.Dispatch(report("r2"))

	reports := recording.Reports()
	require.Len(t, reports, 2)
	assert.ElementsMatch(t, []string{"r1", "r2"}, []string{reports[0].ReportID, reports[1].ReportID})
	assert.Equal(t, []string{"failing", "recording"}, d.Outputs())
}

func TestDispatcher_WritesInParallel(t *testing.T) {
	d := NewDispatcher(nil)
	blocking := blockingOutput{release: make(chan struct{})}
	recording := &recordingOutput{}
	d.RegisterOutput(blocking)
	d.RegisterOutput(recording)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Dispatch(report("r1"))
	}()

	// The recording output is written while the blocking one is still stuck
	require.Eventually(t, func() bool { return len(recording.Reports()) == 1 }, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("Dispatch returned before every output finished")
	default:
	}

	close(blocking.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not return after outputs finished")
	}
}

func TestDispatcher_NoOutputs(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(report("r1"))
	assert.Empty(t, d.Outputs())
}

func TestReportsCache_EvictsOldest(t *testing.T) {
	c := NewReportsCache(3)
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		c.Add(report(id))
	}

	assert.Equal(t, 3, c.Count())

	ids := func(reports []*models.Report) []string {
		out := make([]string, 0, len(reports))
		for _, r := range reports {
			out = append(out, r.ReportID)
		}
		return out
	}
	assert.Equal(t, []string{"r3", "r4", "r5"}, ids(c.GetLast(10)))
	assert.Equal(t, []string{"r4", "r5"}, ids(c.GetLast(2)))
	assert.Empty(t, c.GetLast(0))
	assert.Empty(t, c.GetLast(-1))
}

func TestReportsCache_DefaultSize(t *testing.T) {
	for _, size := range []int{0, -5} {
		c := NewReportsCache(size)
		assert.Equal(t, 100, c.MaxSize())
	}
}

func TestReportsCache_GetLastReturnsCopy(t *testing.T) {
	c := NewReportsCache(5)
	c.Add(report("r1"))
	c.Add(report("r2"))

	last := c.GetLast(2)
	last[0] = report("mutated")

	assert.Equal(t, "r1", c.GetLast(2)[0].ReportID)
}

func TestReportsCache_AsOutput(t *testing.T) {
	c := NewReportsCache(5)
	d := NewDispatcher(nil)
	d.RegisterOutput(c)

	d.Dispatch(report("r1"))

	assert.Equal(t, "cache", c.Name())
	assert.Equal(t, 1, c.Count())

	c.Clear()
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, 5, c.MaxSize())
}
