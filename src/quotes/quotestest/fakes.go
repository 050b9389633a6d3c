// Package quotestest provides in-memory doubles for the quote path.
package quotestest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quote-proxy/src/helpers"
	"quote-proxy/src/models"
)

// -----------------------------------------------------------------------------
// FakeStore
// -----------------------------------------------------------------------------

// FakeStore is a map-backed ICacheStore that counts calls and can be told to fail.
type FakeStore struct {
	mu   sync.Mutex
	rows map[string]models.MCachedQuote

	getErr    error
	upsertErr error
	purgeErr  error
	pingErr   error

	getCalls    int
	upsertCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{rows: make(map[string]models.MCachedQuote)}
}

func rowKey(symbol, rangeStr, interval string) string {
	return symbol + "|" + rangeStr + "|" + interval
}

// Put seeds a row without counting as an Upsert call.
func (f *FakeStore) Put(q models.MCachedQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rowKey(q.Symbol, q.Range, q.Interval)] = q
}

// Row returns the stored row, if any.
func (f *FakeStore) Row(symbol, rangeStr, interval string) (models.MCachedQuote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.rows[rowKey(symbol, rangeStr, interval)]
	return q, ok
}

func (f *FakeStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *FakeStore) SetGetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *FakeStore) SetUpsertError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
}

func (f *FakeStore) SetPurgeError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeErr = err
}

func (f *FakeStore) SetPingError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *FakeStore) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *FakeStore) UpsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

func (f *FakeStore) Initialize(ctx context.Context) error {
	return nil
}

func (f *FakeStore) Get(ctx context.Context, symbol, rangeStr, interval string) (models.MCachedQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return models.MCachedQuote{}, f.getErr
	}
	q, ok := f.rows[rowKey(symbol, rangeStr, interval)]
	if !ok {
		return models.MCachedQuote{}, helpers.ErrQuoteNotFound
	}
	return q, nil
}

func (f *FakeStore) Upsert(ctx context.Context, q models.MCachedQuote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.rows[rowKey(q.Symbol, q.Range, q.Interval)] = q
	return nil
}

func (f *FakeStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	var n int64
	for k, q := range f.rows {
		if q.UpdatedAt.Before(cutoff) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *FakeStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *FakeStore) Close() error {
	return nil
}

// -----------------------------------------------------------------------------
// FakeFetcher
// -----------------------------------------------------------------------------

// FakeFetcher answers every FetchChart with the same body or error.
// When Gate is set each call signals Started and then blocks until Gate is closed.
type FakeFetcher struct {
	mu    sync.Mutex
	body  []byte
	err   error
	calls []string

	Gate    chan struct{}
	Started chan struct{}
}

func NewFakeFetcher(body []byte) *FakeFetcher {
	return &FakeFetcher{body: body}
}

// Respond replaces the canned answer.
func (f *FakeFetcher) Respond(body []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
	f.err = err
}

func (f *FakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Requested lists the fetched keys in call order.
func (f *FakeFetcher) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeFetcher) FetchChart(ctx context.Context, symbol, rangeStr, interval string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rowKey(symbol, rangeStr, interval))
	body, err := f.body, f.err
	f.mu.Unlock()

	if f.Gate != nil {
		if f.Started != nil {
			f.Started <- struct{}{}
		}
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return body, err
}

// -----------------------------------------------------------------------------
// FakePublisher
// -----------------------------------------------------------------------------

type FakePublisher struct {
	mu     sync.Mutex
	events []models.MQuoteEvent
}

func (p *FakePublisher) Publish(event models.MQuoteEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *FakePublisher) Events() []models.MQuoteEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MQuoteEvent(nil), p.events...)
}

// -----------------------------------------------------------------------------
// Payload fixtures
// -----------------------------------------------------------------------------

// ChartBody renders a minimal valid chart response whose closes are given,
// one bar per minute from a fixed start.
func ChartBody(symbol string, closes ...float64) []byte {
	const start = int64(1700000000)
	ts, opens, highs, lows, cls, vols := "", "", "", "", "", ""
	for i, c := range closes {
		sep := ","
		if i == 0 {
			sep = ""
		}
		ts += fmt.Sprintf("%s%d", sep, start+int64(i)*60)
		opens += fmt.Sprintf("%s%g", sep, c)
		highs += fmt.Sprintf("%s%g", sep, c+1)
		lows += fmt.Sprintf("%s%g", sep, c-1)
		cls += fmt.Sprintf("%s%g", sep, c)
		vols += fmt.Sprintf("%s%d", sep, 1000*(i+1))
	}
	prev := 0.0
	if len(closes) > 0 {
		prev = closes[0]
	}
	return []byte(fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":"INR","symbol":%q,"chartPreviousClose":%g},`+
		`"timestamp":[%s],"indicators":{"quote":[{"open":[%s],"high":[%s],"low":[%s],"close":[%s],"volume":[%s]}]}}],"error":null}}`,
		symbol, prev, ts, opens, highs, lows, cls, vols))
}

// ErrorBody is the shape Yahoo returns for an unknown symbol.
func ErrorBody() []byte {
	return []byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
}
