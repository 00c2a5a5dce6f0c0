package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/gridfinity-server/internal/domain"
	"github.com/tbourn/gridfinity-server/internal/repo"
)

func stl(s string) Entry { return Entry{Data: []byte(s), ContentType: domain.ContentTypeSTL} }

func TestGetOrCreate_SingleFlight(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (Entry, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return stl("solid x"), nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]Entry, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCreate(context.Background(), "bin-k", fn)
		}(i)
	}
	// Give every goroutine a chance to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("generation ran %d times; want 1", got)
	}
	for i := range results {
		if errs[i] != nil || !bytes.Equal(results[i].Data, []byte("solid x")) {
			t.Fatalf("caller %d got (%q, %v)", i, results[i].Data, errs[i])
		}
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestGetOrCreate_FailureNotStored(t *testing.T) {
	c := New()
	boom := errors.New("cad exploded")
	baseErr := testutil.ToFloat64(cacheGenerations.WithLabelValues("error"))

	_, err := c.GetOrCreate(context.Background(), "bin-k", func(context.Context) (Entry, error) {
		return Entry{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if _, ok := c.Get(context.Background(), "bin-k"); ok {
		t.Fatalf("failed generation must not be cached")
	}
	if got := testutil.ToFloat64(cacheGenerations.WithLabelValues("error")); got != baseErr+1 {
		t.Fatalf("error generations = %v; want %v", got, baseErr+1)
	}

	// The next request retries and succeeds.
	e, err := c.GetOrCreate(context.Background(), "bin-k", func(context.Context) (Entry, error) {
		return stl("ok"), nil
	})
	if err != nil || string(e.Data) != "ok" {
		t.Fatalf("retry got (%q, %v)", e.Data, err)
	}
}

func TestGetOrCreate_HitSkipsGeneration(t *testing.T) {
	c := New()
	if _, err := c.GetOrCreate(context.Background(), "k", func(context.Context) (Entry, error) { return stl("a"), nil }); err != nil {
		t.Fatalf("seed: %v", err)
	}
	baseHits := testutil.ToFloat64(cacheHits)
	e, err := c.GetOrCreate(context.Background(), "k", func(context.Context) (Entry, error) {
		t.Fatalf("generation should not run on a hit")
		return Entry{}, nil
	})
	if err != nil || string(e.Data) != "a" {
		t.Fatalf("hit got (%q, %v)", e.Data, err)
	}
	if got := testutil.ToFloat64(cacheHits); got != baseHits+1 {
		t.Fatalf("hits = %v; want %v", got, baseHits+1)
	}
}

func TestGetOrCreate_WaiterContextCancelled(t *testing.T) {
	c := New()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = c.GetOrCreate(context.Background(), "slow", func(context.Context) (Entry, error) {
			close(started)
			<-release
			return stl("late"), nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetOrCreate(ctx, "slow", func(context.Context) (Entry, error) {
		t.Fatalf("waiter must join the in-flight generation")
		return Entry{}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	// The leader's result still lands in the cache.
	deadline := time.Now().Add(time.Second)
	for {
		if e, ok := c.Get(context.Background(), "slow"); ok {
			if string(e.Data) != "late" {
				t.Fatalf("unexpected entry %q", e.Data)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("leader result never cached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetOrCreate_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	c := New()
	release := make(chan struct{})
	started := make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreate(leaderCtx, "shared", func(ctx context.Context) (Entry, error) {
			close(started)
			select {
			case <-ctx.Done():
				return Entry{}, ctx.Err()
			case <-release:
				return stl("shared"), nil
			}
		})
		leaderErr <- err
	}()
	<-started

	type result struct {
		e   Entry
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		e, err := c.GetOrCreate(context.Background(), "shared", func(context.Context) (Entry, error) {
			return stl("own"), nil
		})
		waiter <- result{e, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader: expected its own cancellation, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case r := <-waiter:
		if r.err != nil {
			t.Fatalf("waiter with live context got err=%v", r.err)
		}
		if string(r.e.Data) != "shared" {
			t.Fatalf("waiter got %q; want the shared entry", r.e.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never returned")
	}
	if _, ok := c.Get(context.Background(), "shared"); !ok {
		t.Fatalf("shared entry not cached")
	}
}

func TestWithGenerateTimeout_FailsFlightAndSkipsCache(t *testing.T) {
	c := New(WithGenerateTimeout(20 * time.Millisecond))
	_, err := c.GetOrCreate(context.Background(), "stuck", func(ctx context.Context) (Entry, error) {
		<-ctx.Done()
		return Entry{}, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if _, ok := c.Get(context.Background(), "stuck"); ok {
		t.Fatalf("timed out generation must not be cached")
	}
}

func TestWithMaxEntries_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(WithMaxEntries(2))
	ctx := context.Background()
	for _, k := range []domain.CacheKey{"a", "b"} {
		k := k
		if _, err := c.GetOrCreate(ctx, k, func(context.Context) (Entry, error) { return stl(string(k)), nil }); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatalf("a missing")
	}
	if _, err := c.GetOrCreate(ctx, "c", func(context.Context) (Entry, error) { return stl("c"), nil }); err != nil {
		t.Fatalf("seed c: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatalf("a should survive")
	}
}

// memStore is an in-memory Store used to exercise the second level.
type memStore struct {
	mu     sync.Mutex
	m      map[domain.CacheKey]Entry
	getErr error
	puts   int
}

func (s *memStore) Get(_ context.Context, k domain.CacheKey) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Entry{}, false, s.getErr
	}
	e, ok := s.m[k]
	return e, ok, nil
}

func (s *memStore) Put(_ context.Context, k domain.CacheKey, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[k] = e
	s.puts++
	return nil
}

func TestStore_PromotesAndWritesThrough(t *testing.T) {
	st := &memStore{m: map[domain.CacheKey]Entry{"warm": stl("from store")}}
	c := New(WithStore(st))
	ctx := context.Background()

	e, err := c.GetOrCreate(ctx, "warm", func(context.Context) (Entry, error) {
		t.Fatalf("store hit must not generate")
		return Entry{}, nil
	})
	if err != nil || string(e.Data) != "from store" {
		t.Fatalf("got (%q, %v)", e.Data, err)
	}
	if c.Len() != 1 {
		t.Fatalf("store hit not promoted")
	}

	if _, err := c.GetOrCreate(ctx, "cold", func(context.Context) (Entry, error) { return stl("new"), nil }); err != nil {
		t.Fatalf("cold: %v", err)
	}
	if st.puts != 1 || string(st.m["cold"].Data) != "new" {
		t.Fatalf("generation not written through: puts=%d", st.puts)
	}
}

func TestStore_ErrorsDegradeToMiss(t *testing.T) {
	st := &memStore{m: map[domain.CacheKey]Entry{}, getErr: errors.New("disk gone")}
	c := New(WithStore(st))
	e, err := c.GetOrCreate(context.Background(), "k", func(context.Context) (Entry, error) { return stl("gen"), nil })
	if err != nil || string(e.Data) != "gen" {
		t.Fatalf("got (%q, %v)", e.Data, err)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	st := NewSQLiteStore(db)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "bin-x"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := st.Put(ctx, "bin-x", stl("solid x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, ok, err := st.Get(ctx, "bin-x")
	if err != nil || !ok || string(e.Data) != "solid x" || e.ContentType != domain.ContentTypeSTL {
		t.Fatalf("Get = (%+v, %v, %v)", e, ok, err)
	}

	// A fresh cache over the same store starts warm.
	c := New(WithStore(st))
	if _, ok := c.Get(ctx, "bin-x"); !ok {
		t.Fatalf("cache over sqlite store should hit")
	}
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "baseplate-y"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	data := []byte{0x00, 0xff, 's', 'o', 'l', 'i', 'd'}
	if err := st.Put(ctx, "baseplate-y", Entry{Data: data, ContentType: domain.ContentTypeSTL}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, ok, err := st.Get(ctx, "baseplate-y")
	if err != nil || !ok || !bytes.Equal(e.Data, data) || e.ContentType != domain.ContentTypeSTL {
		t.Fatalf("Get = (%+v, %v, %v)", e, ok, err)
	}
	if ttl := mr.TTL("gridfinity:artifact:baseplate-y"); ttl != time.Minute {
		t.Fatalf("ttl = %v; want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := st.Get(ctx, "baseplate-y"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestRedisStore_ServerDownIsError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	st := NewRedisStore(client, 0)
	if _, _, err := st.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error with redis down")
	}
}
