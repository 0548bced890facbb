package eta

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/hktransit/hktransit/pkg/cache"
	"github.com/hktransit/hktransit/pkg/objects"
)

// Dispatcher routes arrival queries to the source registered for the
// operator, coalescing concurrent identical queries into one upstream call
// and bounding total upstream concurrency.
type Dispatcher struct {
	sources map[objects.Operator]Source

	flight    singleflight.Group
	results   *cache.Cache[string, *objects.ETAQueryResult]
	resultTTL time.Duration

	timeout time.Duration
	// slots bounds concurrent upstream calls; its capacity is the worker
	// pool size.
	slots chan struct{}

	clock func() time.Time
}

type DispatcherOptions struct {
	// Timeout bounds each upstream call. Mandatory; there is no unbounded
	// wait path.
	Timeout time.Duration
	// ResultTTL is how long a fetched result keeps answering repeat queries
	// for the same key before a fresh upstream call is made.
	ResultTTL time.Duration
	// MaxConcurrent bounds simultaneous upstream calls across all keys.
	MaxConcurrent int
}

func NewDispatcher(options DispatcherOptions) *Dispatcher {
	if options.Timeout <= 0 {
		options.Timeout = 10 * time.Second
	}
	if options.ResultTTL <= 0 {
		options.ResultTTL = 30 * time.Second
	}
	if options.MaxConcurrent <= 0 {
		options.MaxConcurrent = 32
	}

	return &Dispatcher{
		sources:   map[objects.Operator]Source{},
		results:   cache.New[string, *objects.ETAQueryResult](options.ResultTTL),
		resultTTL: options.ResultTTL,
		timeout:   options.Timeout,
		slots:     make(chan struct{}, options.MaxConcurrent),
		clock:     time.Now,
	}
}

// RegisterSource adds a source for every operator it declares. Adding an
// operator is a registration, not a change to dispatch logic.
func (d *Dispatcher) RegisterSource(source Source) {
	for _, operator := range source.Operators() {
		d.sources[operator] = source
	}

	log.Debug().Str("name", source.GetName()).Msg("Registering new ETA Source")
}

// RegisterDefaultSources wires up the built-in operator adapters.
func (d *Dispatcher) RegisterDefaultSources() {
	d.RegisterSource(NewKMBSource())
	d.RegisterSource(NewCTBSource())
	d.RegisterSource(NewNLBSource())
	d.RegisterSource(NewGMBSource())
	d.RegisterSource(NewMTRBusSource())
	d.RegisterSource(NewLightRailSource())
	d.RegisterSource(NewMTRSource())
}

// Query answers one arrival lookup. Failures and timeouts come back as a
// connection-error result, never as an error; ctx cancellation is the only
// error path, so a torn-down caller receives nothing late.
//
// Concurrent calls for the same key within the result TTL share a single
// upstream call and receive the same result value.
func (d *Dispatcher) Query(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	key := query.Key()

	if cached, _, ok := d.results.Get(key); ok {
		return cached, nil
	}

	type flightResult struct {
		result *objects.ETAQueryResult
	}

	channel := d.flight.DoChan(key, func() (interface{}, error) {
		return &flightResult{result: d.fetch(context.WithoutCancel(ctx), query)}, nil
	})

	select {
	case <-ctx.Done():
		// The in-flight call keeps going for any coalesced callers still
		// waiting; this caller gets nothing.
		return nil, ctx.Err()
	case completed := <-channel:
		return completed.Val.(*flightResult).result, nil
	}
}

func (d *Dispatcher) fetch(ctx context.Context, query Query) *objects.ETAQueryResult {
	source, ok := d.sources[query.Operator]
	if !ok {
		// Unknown operator in a query is a programming error upstream of the
		// dispatcher; answer with a connection error rather than panic.
		log.Error().Str("operator", query.Operator.Name()).Msg("No ETA source registered for operator")
		return d.connectionError(query)
	}

	select {
	case d.slots <- struct{}{}:
		defer func() { <-d.slots }()
	case <-ctx.Done():
		return d.connectionError(query)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := source.Lookup(fetchCtx, query)
	if err != nil {
		log.Error().Err(err).
			Str("operator", query.Operator.Name()).
			Str("stop", query.StopID).
			Str("route", query.Route.RouteNumber).
			Msg("ETA lookup failed")
		return d.connectionError(query)
	}

	d.results.Set(query.Key(), result)
	return result
}

func (d *Dispatcher) connectionError(query Query) *objects.ETAQueryResult {
	return objects.SentinelResult(query.Operator, objects.ETASentinelConnectionError, objects.BilingualText{
		Zh: "未能連接伺服器",
		En: "Unable to connect",
	}, d.clock())
}

// QueryAll runs a batch of lookups concurrently on a bounded pool and
// returns results in input order. Used for favourite slots and visible list
// rows, where dozens of keys can be outstanding at once.
func (d *Dispatcher) QueryAll(ctx context.Context, queries []Query) []*objects.ETAQueryResult {
	results := make([]*objects.ETAQueryResult, len(queries))

	workers := pool.New().WithMaxGoroutines(cap(d.slots)).WithContext(ctx)
	for i, query := range queries {
		workers.Go(func(ctx context.Context) error {
			result, err := d.Query(ctx, query)
			if err != nil {
				result = d.connectionError(query)
			}
			results[i] = result
			return nil
		})
	}
	_ = workers.Wait()

	return results
}

// Invalidate drops any cached result for the key, forcing the next query to
// hit upstream.
func (d *Dispatcher) Invalidate(query Query) {
	d.results.Delete(query.Key())
}
