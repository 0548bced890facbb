package eta

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
)

type fakeSource struct {
	operator objects.Operator
	calls    atomic.Int64

	// release, when set, gates Lookup so tests control when the upstream
	// call completes.
	release chan struct{}
	result  *objects.ETAQueryResult
	err     error
}

func (s *fakeSource) GetName() string {
	return "fake-" + s.operator.Name()
}

func (s *fakeSource) Operators() []objects.Operator {
	return []objects.Operator{s.operator}
}

func (s *fakeSource) Lookup(ctx context.Context, query Query) (*objects.ETAQueryResult, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return buildResult(s.operator, []objects.ETALine{
		objects.TimeLine(3, objects.EmptyBilingualText),
	}, TyphoonInfo{}, time.Now()), nil
}

func testQuery(operator objects.Operator) Query {
	return Query{
		StopID:   "TEST0001",
		Operator: operator,
		Route: &objects.Route{
			RouteNumber: "960",
			Bound:       map[objects.Operator]string{operator: "O"},
			Operators:   []objects.Operator{operator},
			ServiceType: "1",
		},
	}
}

func TestQueryCoalescesConcurrentCallers(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB, release: make(chan struct{})}
	dispatcher := NewDispatcher(DispatcherOptions{})
	dispatcher.RegisterSource(source)

	const callers = 8
	results := make([]*objects.ETAQueryResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB))
			if err != nil {
				t.Errorf("Query returned error: %v", err)
				return
			}
			results[i] = result
		}(i)
	}

	// Give every caller time to join the in-flight call before the
	// upstream responds.
	time.Sleep(100 * time.Millisecond)
	close(source.release)
	wg.Wait()

	if got := source.calls.Load(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
	for i, result := range results {
		if result != results[0] {
			t.Errorf("caller %d received a different result value", i)
		}
	}
}

func TestQueryServesCachedResultWithinTTL(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB}
	dispatcher := NewDispatcher(DispatcherOptions{ResultTTL: time.Minute})
	dispatcher.RegisterSource(source)

	first, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	second, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if source.calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", source.calls.Load())
	}
	if first != second {
		t.Error("expected the cached result value on the second query")
	}
}

func TestQueryRefetchesAfterTTL(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB}
	dispatcher := NewDispatcher(DispatcherOptions{ResultTTL: 20 * time.Millisecond})
	dispatcher.RegisterSource(source)

	if _, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB)); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB)); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if source.calls.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", source.calls.Load())
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB}
	dispatcher := NewDispatcher(DispatcherOptions{ResultTTL: time.Minute})
	dispatcher.RegisterSource(source)

	query := testQuery(objects.OperatorKMB)
	if _, err := dispatcher.Query(context.Background(), query); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	dispatcher.Invalidate(query)
	if _, err := dispatcher.Query(context.Background(), query); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if source.calls.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", source.calls.Load())
	}
}

func TestLookupErrorBecomesConnectionError(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB, err: errors.New("upstream down")}
	dispatcher := NewDispatcher(DispatcherOptions{ResultTTL: time.Minute})
	dispatcher.RegisterSource(source)

	result, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if !result.IsConnectionError() {
		t.Error("expected a connection-error result")
	}

	// Failures must not be cached; the next query retries upstream.
	if _, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB)); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if source.calls.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", source.calls.Load())
	}
}

func TestTimeoutBecomesConnectionError(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB, release: make(chan struct{})}
	dispatcher := NewDispatcher(DispatcherOptions{Timeout: 20 * time.Millisecond})
	dispatcher.RegisterSource(source)
	defer close(source.release)

	result, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorKMB))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if !result.IsConnectionError() {
		t.Error("expected a connection-error result after timeout")
	}
}

func TestUnregisteredOperatorBecomesConnectionError(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherOptions{})

	result, err := dispatcher.Query(context.Background(), testQuery(objects.OperatorCTB))
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if !result.IsConnectionError() {
		t.Error("expected a connection-error result for an unregistered operator")
	}
}

func TestCancelledCallerReceivesNothing(t *testing.T) {
	source := &fakeSource{operator: objects.OperatorKMB, release: make(chan struct{})}
	dispatcher := NewDispatcher(DispatcherOptions{})
	dispatcher.RegisterSource(source)
	defer close(source.release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := dispatcher.Query(ctx, testQuery(objects.OperatorKMB))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQueryAllPreservesOrder(t *testing.T) {
	kmb := &fakeSource{operator: objects.OperatorKMB}
	ctb := &fakeSource{operator: objects.OperatorCTB}
	dispatcher := NewDispatcher(DispatcherOptions{})
	dispatcher.RegisterSource(kmb)
	dispatcher.RegisterSource(ctb)

	queries := []Query{
		testQuery(objects.OperatorKMB),
		testQuery(objects.OperatorCTB),
	}
	results := dispatcher.QueryAll(context.Background(), queries)

	if len(results) != len(queries) {
		t.Fatalf("expected %d results, got %d", len(queries), len(results))
	}
	for i, result := range results {
		if result == nil {
			t.Fatalf("result %d is nil", i)
		}
		if result.Operator != queries[i].Operator {
			t.Errorf("result %d: operator = %s, want %s", i, result.Operator, queries[i].Operator)
		}
	}
}
