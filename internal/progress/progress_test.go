package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_ConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Indexing", 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Tick()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), tr.bar.State().CurrentNum)
	tr.FinishSuccess()
}

func TestTracker_Phase(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Indexing", 2)
	tr.Tick()
	tr.Tick()

	tr.Phase("Detecting", 4)
	assert.Equal(t, int64(4), tr.bar.GetMax64())
	assert.Equal(t, int64(0), tr.bar.State().CurrentNum)
	assert.Equal(t, "Detecting", tr.label)
}

func TestTracker_FinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Indexing", 1)
	tr.FinishError(errors.New("disk gone"))
	assert.Contains(t, buf.String(), "Indexing error: disk gone")
}

func TestTracker_Nil(t *testing.T) {
	var tr *Tracker
	assert.NotPanics(t, func() {
		tr.Phase("x", 1)
		tr.Tick()
		tr.FinishSuccess()
		tr.FinishError(errors.New("x"))
	})
}
