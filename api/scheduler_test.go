package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-allowance/allowance"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	month allowance.Month
	err   error
}

func (f *fakeRefresher) RefreshLatest(context.Context) (allowance.Month, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return allowance.Month{}, false, f.err
	}
	return f.month, !f.month.IsZero(), nil
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRefresher_RunNow(t *testing.T) {
	// GIVEN: A refresher over a store whose latest month is 2024-03
	// WHEN: Refreshing once, then failing once
	// THEN: LastRun reflects each outcome

	fake := &fakeRefresher{month: allowance.MustParseMonth("2024-03")}
	lr := NewLatestMonthRefresher(fake, nil)

	run := lr.RunNow(context.Background())
	require.NoError(t, run.Err)
	assert.True(t, run.Available)
	assert.Equal(t, "2024-03", run.Month.String())

	fake.err = errors.New("redis down")
	lr.RunNow(context.Background())
	last, runs := lr.LastRun()
	assert.Error(t, last.Err)
	assert.False(t, last.Available)
	assert.Equal(t, 2, runs)
}

func TestRefresher_StartStop(t *testing.T) {
	fake := &fakeRefresher{}
	lr := NewLatestMonthRefresher(fake, nil)
	lr.Interval = 5 * time.Millisecond

	lr.Start()
	lr.Start() // no-op
	assert.Eventually(t, func() bool { return fake.count() >= 2 }, time.Second, 5*time.Millisecond)
	lr.Stop()

	stopped := fake.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, fake.count())

	lr.Stop() // idempotent
}

func TestRefresher_Disabled(t *testing.T) {
	fake := &fakeRefresher{}
	lr := NewLatestMonthRefresher(fake, nil)
	lr.Enabled = false

	lr.Start()
	lr.Stop()
	assert.Zero(t, fake.count())
}
