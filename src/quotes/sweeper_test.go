package quotes_test

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"quote-proxy/src/logger"
	"quote-proxy/src/metrics"
	"quote-proxy/src/models"
	"quote-proxy/src/quotes"
	"quote-proxy/src/quotes/quotestest"
)

type sweeperSuite struct {
	clock   *testclock.Clock
	store   *quotestest.FakeStore
	sweeper *quotes.Sweeper
}

var _ = gc.Suite(&sweeperSuite{})

func (s *sweeperSuite) SetUpTest(c *gc.C) {
	s.clock = testclock.NewClock(start)
	s.store = quotestest.NewFakeStore()
	cfg := &models.MConfig{Cache: models.MCacheConfig{RetentionHours: 168, SweepIntervalMinutes: 60}}
	s.sweeper = quotes.NewSweeper(cfg, s.store, s.clock, logger.NewLogger("ERROR", "Sweeper"), metrics.NewUnregistered())
}

func (s *sweeperSuite) put(symbol string, age time.Duration) {
	s.store.Put(models.MCachedQuote{Symbol: symbol, Range: "1y", Interval: "1d", Data: []byte(`{}`), UpdatedAt: start.Add(-age)})
}

func (s *sweeperSuite) TestSweepOnceDeletesOnlyOldRows(c *gc.C) {
	s.put("OLD", 200*time.Hour)
	s.put("NEW", time.Hour)

	n, err := s.sweeper.SweepOnce(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(n, gc.Equals, int64(1))
	_, ok := s.store.Row("NEW", "1y", "1d")
	c.Check(ok, jc.IsTrue)
	_, ok = s.store.Row("OLD", "1y", "1d")
	c.Check(ok, jc.IsFalse)
}

func (s *sweeperSuite) TestSweepOnceReportsStoreError(c *gc.C) {
	s.store.SetPurgeError(errors.New("locked"))
	_, err := s.sweeper.SweepOnce(context.Background())
	c.Check(err, gc.ErrorMatches, "locked")
}

func (s *sweeperSuite) TestRunSweepsEveryInterval(c *gc.C) {
	s.put("EDGE", 168*time.Hour-30*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.sweeper.Run(ctx)
	}()

	// The first sweep happens before the loop starts waiting.
	c.Assert(s.clock.WaitAdvance(time.Hour, longWait, 1), jc.ErrorIsNil)
	for deadline := time.Now().Add(longWait); s.store.Len() != 0; {
		if time.Now().After(deadline) {
			c.Fatalf("row not swept after one interval")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(longWait):
		c.Fatalf("sweeper did not stop")
	}
}
