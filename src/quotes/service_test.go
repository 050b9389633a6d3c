package quotes_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"quote-proxy/src/helpers"
	"quote-proxy/src/logger"
	"quote-proxy/src/metrics"
	"quote-proxy/src/models"
	"quote-proxy/src/quotes"
	"quote-proxy/src/quotes/quotestest"
)

type serviceSuite struct {
	clock     *testclock.Clock
	store     *quotestest.FakeStore
	fetcher   *quotestest.FakeFetcher
	publisher *quotestest.FakePublisher
	svc       *quotes.Service
}

var _ = gc.Suite(&serviceSuite{})

var start = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func (s *serviceSuite) SetUpTest(c *gc.C) {
	s.clock = testclock.NewClock(start)
	s.store = quotestest.NewFakeStore()
	s.fetcher = quotestest.NewFakeFetcher(quotestest.ChartBody("TCS.NS", 100, 101, 102))
	s.publisher = &quotestest.FakePublisher{}
	s.svc = quotes.NewService(s.store, s.fetcher, s.clock, logger.NewLogger("ERROR", "QuoteService"), metrics.NewUnregistered())
	s.svc.Publisher = s.publisher
}

func (s *serviceSuite) seed(symbol, rangeStr, interval string, age time.Duration, data string) models.MCachedQuote {
	q := models.MCachedQuote{
		Symbol:    symbol,
		Range:     rangeStr,
		Interval:  interval,
		Data:      []byte(data),
		UpdatedAt: start.Add(-age),
	}
	s.store.Put(q)
	return q
}

func (s *serviceSuite) TestFreshRowShortCircuits(c *gc.C) {
	seeded := s.seed("TCS.NS", "1mo", "1d", time.Hour, `{"chart":{"cached":true}}`)

	res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "TCS.NS", Range: "1mo", Interval: "1d"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceCache)
	c.Check(string(res.Quote.Data), gc.Equals, string(seeded.Data))
	c.Check(s.fetcher.Calls(), gc.Equals, 0)
	c.Check(s.store.UpsertCalls(), gc.Equals, 0)
	c.Check(s.publisher.Events(), gc.HasLen, 0)
}

func (s *serviceSuite) TestMissingRowFetchesAndPersists(c *gc.C) {
	res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "TCS.NS", Range: "1d", Interval: "1m"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceUpstream)
	c.Check(s.fetcher.Requested(), jc.DeepEquals, []string{"TCS.NS|1d|1m"})

	row, ok := s.store.Row("TCS.NS", "1d", "1m")
	c.Assert(ok, jc.IsTrue)
	c.Check(string(row.Data), gc.Equals, string(res.Quote.Data))
	c.Check(row.UpdatedAt.Equal(start), jc.IsTrue)
}

func (s *serviceSuite) TestAmpersandSymbolIsFetched(c *gc.C) {
	s.fetcher.Respond(quotestest.ChartBody("M&M.NS", 2900, 2910), nil)

	res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "M&M.NS", Range: "1d", Interval: "1m"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceUpstream)
	c.Check(s.fetcher.Requested(), jc.DeepEquals, []string{"M&M.NS|1d|1m"})

	_, ok := s.store.Row("M&M.NS", "1d", "1m")
	c.Check(ok, jc.IsTrue)
}

func (s *serviceSuite) TestStaleRowIsRefetchedOnce(c *gc.C) {
	s.seed("INFY.NS", "1d", "1m", 10*time.Minute, `{"old":true}`)
	s.clock.Advance(time.Minute)

	res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "INFY.NS", Range: "1d", Interval: "1m"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceUpstream)
	c.Check(s.fetcher.Calls(), gc.Equals, 1)
	c.Check(s.store.UpsertCalls(), gc.Equals, 1)

	row, _ := s.store.Row("INFY.NS", "1d", "1m")
	c.Check(row.UpdatedAt.Equal(start.Add(time.Minute)), jc.IsTrue)
	c.Check(string(row.Data), gc.Not(gc.Equals), `{"old":true}`)

	// The refreshed row now short-circuits.
	res, err = s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "INFY.NS", Range: "1d", Interval: "1m"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceCache)
	c.Check(s.fetcher.Calls(), gc.Equals, 1)
}

func (s *serviceSuite) TestFreshnessBoundaryOnRequestPath(c *gc.C) {
	s.seed("AAPL", "5d", "1m", 0, `{"seed":1}`)
	req := models.MQuoteRequest{Symbol: "AAPL", Range: "5d", Interval: "1m"}

	s.clock.Advance(299999 * time.Millisecond)
	res, err := s.svc.Get(context.Background(), req)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceCache)

	s.clock.Advance(time.Millisecond)
	res, err = s.svc.Get(context.Background(), req)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceUpstream)
}

func (s *serviceSuite) TestShapeErrorLeavesPriorRowUntouched(c *gc.C) {
	seeded := s.seed("AAPL", "1y", "1d", 48*time.Hour, `{"prior":true}`)
	s.fetcher.Respond(quotestest.ErrorBody(), nil)

	_, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "AAPL", Range: "1y", Interval: "1d"})
	c.Assert(err, gc.NotNil)
	c.Check(helpers.IsUpstreamShape(err), jc.IsTrue)
	c.Check(s.store.UpsertCalls(), gc.Equals, 0)

	row, _ := s.store.Row("AAPL", "1y", "1d")
	c.Check(string(row.Data), gc.Equals, string(seeded.Data))
	c.Check(row.UpdatedAt.Equal(seeded.UpdatedAt), jc.IsTrue)
	c.Check(s.publisher.Events(), gc.HasLen, 0)
}

func (s *serviceSuite) TestNonJSONBodyIsShapeError(c *gc.C) {
	s.fetcher.Respond([]byte("<html>blocked</html>"), nil)

	_, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "AAPL", Range: "1y", Interval: "1d"})
	c.Check(helpers.IsUpstreamShape(err), jc.IsTrue)
	c.Check(s.store.Len(), gc.Equals, 0)
}

func (s *serviceSuite) TestStoreReadErrorFailsOpen(c *gc.C) {
	s.store.SetGetError(helpers.NewStorageError("select failed", errors.New("disk on fire")))

	res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "TCS.NS", Range: "1mo", Interval: "1d"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(res.Source, gc.Equals, quotes.SourceUpstream)
	c.Check(s.fetcher.Calls(), gc.Equals, 1)
	c.Check(s.store.UpsertCalls(), gc.Equals, 1)
}

func (s *serviceSuite) TestStoreWriteErrorStillResponds(c *gc.C) {
	s.store.SetUpsertError(helpers.NewStorageError("insert failed", errors.New("read-only")))

	res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "TCS.NS", Range: "1mo", Interval: "1d"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(res.Quote.Data), gc.Equals, string(quotestest.ChartBody("TCS.NS", 100, 101, 102)))
	c.Check(s.store.Len(), gc.Equals, 0)
}

func (s *serviceSuite) TestRateLimitedPropagates(c *gc.C) {
	s.fetcher.Respond(nil, helpers.NewRateLimitedError("yahoo rate limited the request", nil))

	_, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "TCS.NS", Range: "1mo", Interval: "1d"})
	c.Check(helpers.IsRateLimited(err), jc.IsTrue)
	c.Check(s.store.UpsertCalls(), gc.Equals, 0)
}

func (s *serviceSuite) TestMissingIntervalTouchesNothing(c *gc.C) {
	_, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "AAPL", Range: "1d"})
	c.Check(err, gc.ErrorMatches, "Missing parameters")
	c.Check(helpers.IsValidation(err), jc.IsTrue)
	c.Check(s.store.GetCalls(), gc.Equals, 0)
	c.Check(s.fetcher.Calls(), gc.Equals, 0)
}

func (s *serviceSuite) TestPublishesSummaryOnUpstreamFetch(c *gc.C) {
	_, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "TCS.NS", Range: "1d", Interval: "1m"})
	c.Assert(err, jc.ErrorIsNil)

	events := s.publisher.Events()
	c.Assert(events, gc.HasLen, 1)
	c.Check(events[0].Type, gc.Equals, models.EventTypeQuote)
	c.Check(events[0].Symbol, gc.Equals, "TCS.NS")
	c.Check(events[0].Summary.LastPrice, gc.Equals, 102.0)
	c.Check(events[0].Summary.PreviousClose, gc.Equals, 100.0)
	c.Check(events[0].Timestamp, gc.Equals, start.UnixMilli())
}

func (s *serviceSuite) TestConcurrentMissesShareOneFetch(c *gc.C) {
	const callers = 5
	s.fetcher.Gate = make(chan struct{})
	s.fetcher.Started = make(chan struct{}, callers)

	type outcome struct {
		res *quotes.Result
		err error
	}
	results := make(chan outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.svc.Get(context.Background(), models.MQuoteRequest{Symbol: "AAPL", Range: "1d", Interval: "1m"})
			results <- outcome{res, err}
		}()
	}

	select {
	case <-s.fetcher.Started:
	case <-time.After(longWait):
		c.Fatalf("fetch never started")
	}
	for deadline := time.Now().Add(longWait); s.store.GetCalls() < callers; {
		if time.Now().After(deadline) {
			c.Fatalf("only %d of %d callers reached the store", s.store.GetCalls(), callers)
		}
		time.Sleep(time.Millisecond)
	}
	// Let the last caller get from the store read into the flight group.
	time.Sleep(shortWait)
	close(s.fetcher.Gate)
	wg.Wait()
	close(results)

	for out := range results {
		c.Assert(out.err, jc.ErrorIsNil)
		c.Check(out.res.Source, gc.Equals, quotes.SourceUpstream)
		c.Check(out.res.Shared, jc.IsTrue)
	}
	c.Check(s.fetcher.Calls(), gc.Equals, 1)
	c.Check(s.store.UpsertCalls(), gc.Equals, 1)
	c.Check(s.publisher.Events(), gc.HasLen, 1)
}

func (s *serviceSuite) TestCancelledCallerDoesNotAbortFetch(c *gc.C) {
	s.fetcher.Gate = make(chan struct{})
	s.fetcher.Started = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := s.svc.Get(ctx, models.MQuoteRequest{Symbol: "AAPL", Range: "1d", Interval: "1m"})
		errc <- err
	}()

	<-s.fetcher.Started
	cancel()
	select {
	case err := <-errc:
		c.Check(err, gc.ErrorMatches, "request cancelled: context canceled")
	case <-time.After(longWait):
		c.Fatalf("caller not released on cancel")
	}

	close(s.fetcher.Gate)
	for deadline := time.Now().Add(longWait); s.store.UpsertCalls() == 0; {
		if time.Now().After(deadline) {
			c.Fatalf("detached fetch never persisted")
		}
		time.Sleep(time.Millisecond)
	}
	_, ok := s.store.Row("AAPL", "1d", "1m")
	c.Check(ok, jc.IsTrue)
}
