package quotes_test

import (
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"quote-proxy/src/quotes"
)

type freshnessSuite struct{}

var _ = gc.Suite(&freshnessSuite{})

func (s *freshnessSuite) TestIntradayIntervalBoundary(c *gc.C) {
	c.Check(quotes.IsFresh(299999*time.Millisecond, "5d", "1m"), jc.IsTrue)
	c.Check(quotes.IsFresh(300000*time.Millisecond, "5d", "1m"), jc.IsFalse)
}

func (s *freshnessSuite) TestIntradayIntervals(c *gc.C) {
	for _, interval := range []string{"1m", "2m", "5m"} {
		c.Check(quotes.MaxAge("1mo", interval), gc.Equals, quotes.IntradayMaxAge, gc.Commentf("interval %s", interval))
	}
}

func (s *freshnessSuite) TestSingleDayRangeIsIntraday(c *gc.C) {
	c.Check(quotes.MaxAge("1d", "1d"), gc.Equals, 5*time.Minute)
	c.Check(quotes.MaxAge("1d", "15m"), gc.Equals, 5*time.Minute)
	c.Check(quotes.IsFresh(300000*time.Millisecond, "1d", "1d"), jc.IsFalse)
}

func (s *freshnessSuite) TestHistoricalBoundary(c *gc.C) {
	c.Check(quotes.IsFresh(86399999*time.Millisecond, "1y", "1d"), jc.IsTrue)
	c.Check(quotes.IsFresh(86400000*time.Millisecond, "1y", "1d"), jc.IsFalse)
}

func (s *freshnessSuite) TestCoarseIntradayIntervalIsHistorical(c *gc.C) {
	c.Check(quotes.MaxAge("5d", "15m"), gc.Equals, quotes.HistoricalMaxAge)
	c.Check(quotes.MaxAge("1mo", "1d"), gc.Equals, 24*time.Hour)
}

func (s *freshnessSuite) TestNegativeAgeIsFresh(c *gc.C) {
	c.Check(quotes.IsFresh(-time.Hour, "1d", "1m"), jc.IsTrue)
}
