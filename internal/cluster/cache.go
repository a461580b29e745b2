package cluster

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"okd-deploy-api-go/internal/api/middleware"
)

// Snapshot is a point-in-time view of cluster reference data. It carries
// last-known-good values plus staleness flags so callers can warn rather
// than silently trust expired data. A snapshot with fetch errors but no
// prior data returns explicit empties, never fabricated entries.
type Snapshot struct {
	Namespaces     []Namespace
	StorageClasses []StorageClass
	FetchedAt      time.Time

	// Stale is set when a value is returned past its TTL because the
	// refresh attempt failed.
	Stale bool

	NamespacesErr     error
	StorageClassesErr error
}

// Partial reports whether exactly one of the two fetches failed.
func (s Snapshot) Partial() bool {
	return (s.NamespacesErr == nil) != (s.StorageClassesErr == nil)
}

// HasNamespace reports whether the snapshot contains the named namespace.
func (s Snapshot) HasNamespace(name string) bool {
	for _, ns := range s.Namespaces {
		if ns.Name == name {
			return true
		}
	}
	return false
}

// HasStorageClass reports whether the snapshot contains the named class.
func (s Snapshot) HasStorageClass(name string) bool {
	for _, sc := range s.StorageClasses {
		if sc.Name == name {
			return true
		}
	}
	return false
}

// Cache holds cluster reference data for the process lifetime, lazily
// populated on first read and expired lazily by TTL check on read. At most
// one fetch is outstanding at a time; readers holding fresh data are never
// blocked by an in-flight refresh.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *zap.Logger

	// now is injectable for tests.
	now func() time.Time

	group singleflight.Group

	mu             sync.RWMutex
	namespaces     []Namespace
	nsFetchedAt    time.Time
	nsEver         bool
	lastNsErr      error
	storageClasses []StorageClass
	scFetchedAt    time.Time
	scEver         bool
	lastScErr      error
}

// NewCache creates a cache over the given fetcher with the given TTL.
func NewCache(fetcher Fetcher, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the current reference data. Within the TTL window it never
// triggers a network call; past it, one coalesced fetch is attempted and
// the previous value is kept on failure.
func (c *Cache) Get(ctx context.Context) Snapshot {
	if snap, fresh := c.freshSnapshot(); fresh {
		return snap
	}
	return c.refresh(ctx)
}

// Refresh forces a synchronous re-fetch, coalescing with any fetch already
// in flight.
func (c *Cache) Refresh(ctx context.Context) Snapshot {
	return c.refresh(ctx)
}

// freshSnapshot returns the cached snapshot when both resources were
// fetched successfully within the TTL.
func (c *Cache) freshSnapshot() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Fetch timestamps only advance on success, so being inside the TTL
	// window means the data is good regardless of later failed refreshes.
	now := c.now()
	fresh := c.nsEver && c.scEver &&
		now.Sub(c.nsFetchedAt) < c.ttl &&
		now.Sub(c.scFetchedAt) < c.ttl
	if !fresh {
		return Snapshot{}, false
	}
	snap := c.buildSnapshotLocked()
	snap.Stale = false
	snap.NamespacesErr = nil
	snap.StorageClassesErr = nil
	return snap, true
}

// refresh performs one coalesced fetch of both resources. Concurrent
// callers arriving mid-fetch share the in-flight result instead of issuing
// duplicate cluster calls.
func (c *Cache) refresh(ctx context.Context) Snapshot {
	v, _, _ := c.group.Do("refresh", func() (any, error) {
		var (
			wg     sync.WaitGroup
			nsList []Namespace
			scList []StorageClass
			nsErr  error
			scErr  error
		)

		// Independent fetches: a failure in one does not block the other.
		wg.Add(2)
		go func() {
			defer wg.Done()
			nsList, nsErr = c.fetcher.Namespaces(ctx)
		}()
		go func() {
			defer wg.Done()
			scList, scErr = c.fetcher.StorageClasses(ctx)
		}()
		wg.Wait()

		now := c.now()
		c.mu.Lock()
		if nsErr == nil {
			c.namespaces = nsList
			c.nsFetchedAt = now
			c.nsEver = true
		}
		if scErr == nil {
			c.storageClasses = scList
			c.scFetchedAt = now
			c.scEver = true
		}
		c.lastNsErr = nsErr
		c.lastScErr = scErr
		snap := c.buildSnapshotLocked()
		c.mu.Unlock()

		c.recordRefresh("namespaces", nsErr)
		c.recordRefresh("storage_classes", scErr)

		return snap, nil
	})
	return v.(Snapshot)
}

// buildSnapshotLocked assembles a snapshot from current state. Callers must
// hold at least a read lock.
func (c *Cache) buildSnapshotLocked() Snapshot {
	now := c.now()
	stale := (c.nsEver && c.lastNsErr != nil && now.Sub(c.nsFetchedAt) >= c.ttl) ||
		(c.scEver && c.lastScErr != nil && now.Sub(c.scFetchedAt) >= c.ttl)

	fetchedAt := c.nsFetchedAt
	if c.scFetchedAt.Before(fetchedAt) {
		fetchedAt = c.scFetchedAt
	}

	return Snapshot{
		Namespaces:        c.namespaces,
		StorageClasses:    c.storageClasses,
		FetchedAt:         fetchedAt,
		Stale:             stale,
		NamespacesErr:     c.lastNsErr,
		StorageClassesErr: c.lastScErr,
	}
}

// recordRefresh logs and counts one resource fetch outcome.
func (c *Cache) recordRefresh(resource string, err error) {
	if err != nil {
		c.logger.Warn("cluster data refresh failed",
			zap.String("resource", resource),
			zap.Error(err),
		)
		middleware.ClusterDataRefreshesTotal.WithLabelValues(resource, "error").Inc()
		return
	}
	middleware.ClusterDataRefreshesTotal.WithLabelValues(resource, "success").Inc()
}
