// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnceRunsExactlyOnce(t *testing.T) {
	c := New(5 * time.Millisecond)
	var runs atomic.Int32
	c.Once(func() { runs.Add(1) })

	c.Start()
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	assert.Equal(t, int32(1), runs.Load())
}

func TestEveryRepeats(t *testing.T) {
	c := New(5 * time.Millisecond)
	var runs atomic.Int32
	c.Every(10*time.Millisecond, func() { runs.Add(1) })

	c.Start()
	time.Sleep(100 * time.Millisecond)
	c.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestStopWaitsForTick(t *testing.T) {
	c := New(time.Millisecond)
	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool

	c.Once(func() {
		close(started)
		<-release
		finished.Store(true)
	})

	c.Start()
	<-started
	close(release)
	c.Stop()

	assert.True(t, finished.Load())
}

func TestPanickingJobDoesNotKillScheduler(t *testing.T) {
	c := New(5 * time.Millisecond)
	var runs atomic.Int32
	c.Once(func() { panic("boom") })
	c.Every(10*time.Millisecond, func() { runs.Add(1) })

	c.Start()
	time.Sleep(60 * time.Millisecond)
	c.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}
