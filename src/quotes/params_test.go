package quotes_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"quote-proxy/src/helpers"
	"quote-proxy/src/models"
	"quote-proxy/src/quotes"
)

type paramsSuite struct{}

var _ = gc.Suite(&paramsSuite{})

func (s *paramsSuite) TestValidRequests(c *gc.C) {
	for _, req := range []models.MQuoteRequest{
		{Symbol: "TCS.NS", Range: "1mo", Interval: "1d"},
		{Symbol: "^NSEI", Range: "1d", Interval: "1m"},
		{Symbol: "EURUSD=X", Range: "ytd", Interval: "1wk"},
		{Symbol: "BRK-B", Range: "max", Interval: "3mo"},
		{Symbol: "M&M.NS", Range: "1d", Interval: "1m"},
		{Symbol: "M&MFIN.NS", Range: "5d", Interval: "5m"},
		{Symbol: "ES=F", Range: "1mo", Interval: "1h"},
	} {
		c.Check(quotes.ValidateRequest(req), jc.ErrorIsNil, gc.Commentf("%+v", req))
	}
}

func (s *paramsSuite) TestMissingParameters(c *gc.C) {
	for _, req := range []models.MQuoteRequest{
		{Range: "1d", Interval: "1m"},
		{Symbol: "AAPL", Interval: "1m"},
		{Symbol: "AAPL", Range: "1d"},
		{},
	} {
		err := quotes.ValidateRequest(req)
		c.Check(err, gc.ErrorMatches, "Missing parameters")
		c.Check(helpers.IsValidation(err), jc.IsTrue)
	}
}

func (s *paramsSuite) TestInvalidParameters(c *gc.C) {
	for _, req := range []models.MQuoteRequest{
		{Symbol: "AAPL", Range: "2d", Interval: "1m"},
		{Symbol: "AAPL", Range: "1d", Interval: "7m"},
		{Symbol: "AAPL/../x", Range: "1d", Interval: "1m"},
		{Symbol: "AAPL|1d", Range: "1d", Interval: "1m"},
		{Symbol: "TCS NS", Range: "1d", Interval: "1m"},
		{Symbol: "TCS\n", Range: "1d", Interval: "1m"},
		{Symbol: "TCS\x00", Range: "1d", Interval: "1m"},
		{Symbol: "ABCDEFGHIJKLMNOPQRSTU", Range: "1d", Interval: "1m"},
	} {
		err := quotes.ValidateRequest(req)
		c.Check(err, gc.ErrorMatches, "Invalid parameters", gc.Commentf("%+v", req))
		c.Check(helpers.IsValidation(err), jc.IsTrue)
	}
}

func (s *paramsSuite) TestSortedKeys(c *gc.C) {
	c.Check(quotes.SortedKeys(map[string]bool{"5d": true, "1d": true, "1mo": true}), jc.DeepEquals, []string{"1d", "1mo", "5d"})
}
