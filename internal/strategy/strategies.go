package strategy

import (
	"context"
	"net/http"

	"github.com/truckfixgo/offline-agent/internal/storage"
)

// cacheFirst serves static assets: the stored copy wins, the network fills
// the cache on a miss, and a total failure degrades to the synthetic 408.
func (rt *Router) cacheFirst(ctx context.Context, req Request) *storage.StoredResponse {
	cached, err := rt.cache.Get(ctx, rt.cfg.StaticArea, req.Key())
	if err != nil {
		rt.logger.Error("cache lookup failed", "url", req.URL, "error", err)
	}
	if cached != nil {
		return cached
	}

	resp, err := rt.fetch.Do(ctx, req.Method, req.URL, req.Header, req.Body)
	if err != nil {
		rt.logger.Debug("cache-first network fallback failed", "url", req.URL, "error", err)
		return networkErrorResponse()
	}
	if putErr := rt.cache.Put(ctx, rt.cfg.StaticArea, req.Key(), *resp); putErr != nil {
		rt.logger.Error("caching static asset failed", "url", req.URL, "error", putErr)
	}
	return resp
}

// networkFirst serves data requests: freshness is preferred, a stale copy
// beats total failure, and a failed navigation degrades to the offline
// document instead of an error body.
func (rt *Router) networkFirst(ctx context.Context, req Request, navigation bool) *storage.StoredResponse {
	resp, err := rt.fetch.Do(ctx, req.Method, req.URL, req.Header, req.Body)
	if err == nil {
		if !isMutating(req.Method) {
			if putErr := rt.cache.Put(ctx, rt.cfg.DynamicArea, req.Key(), *resp); putErr != nil {
				rt.logger.Error("caching response failed", "url", req.URL, "error", putErr)
			}
		}
		return resp
	}

	// A failed write must not be dropped: capture it for replay once the
	// network returns. The page still sees the 408, never a stale copy
	// pretending the write landed.
	if isMutating(req.Method) {
		if rt.queueFailedWrite(ctx, req) {
			rt.logger.Info("failed write queued for replay", "method", req.Method, "url", req.URL)
		}
		return networkErrorResponse()
	}
	rt.logger.Debug("network-first fetch failed, trying cache", "url", req.URL, "error", err)

	cached, cacheErr := rt.cache.Get(ctx, rt.cfg.DynamicArea, req.Key())
	if cacheErr != nil {
		rt.logger.Error("cache lookup failed", "url", req.URL, "error", cacheErr)
	}
	if cached != nil {
		return cached
	}

	if navigation {
		return rt.offlineDocument(ctx)
	}
	return networkErrorResponse()
}

// staleWhileRevalidate returns the stored copy immediately when present and
// refreshes it in the background for next time. Revalidation failures are
// swallowed: a response has already been served.
func (rt *Router) staleWhileRevalidate(ctx context.Context, req Request) *storage.StoredResponse {
	cached, err := rt.cache.Get(ctx, rt.cfg.DynamicArea, req.Key())
	if err != nil {
		rt.logger.Error("cache lookup failed", "url", req.URL, "error", err)
	}

	if cached != nil {
		rt.revalidations.Add(1)
		go func() {
			defer rt.revalidations.Done()
			// Detached from the handler's context: the response it would
			// cancel with has already been written.
			rctx := context.WithoutCancel(ctx)
			fresh, fetchErr := rt.fetch.Do(rctx, req.Method, req.URL, req.Header, req.Body)
			if fetchErr != nil {
				rt.logger.Debug("revalidation failed", "url", req.URL, "error", fetchErr)
				return
			}
			// The upstream says the resource is gone: evict the stale
			// copy so it is not served forever.
			if fresh.Status == http.StatusNotFound || fresh.Status == http.StatusGone {
				if delErr := rt.cache.Delete(rctx, rt.cfg.DynamicArea, req.Key()); delErr != nil {
					rt.logger.Error("evicting stale entry failed", "url", req.URL, "error", delErr)
				}
				return
			}
			// Error responses do not replace a good snapshot.
			if fresh.Status >= 400 {
				return
			}
			if putErr := rt.cache.Put(rctx, rt.cfg.DynamicArea, req.Key(), *fresh); putErr != nil {
				rt.logger.Error("storing revalidated response failed", "url", req.URL, "error", putErr)
			}
		}()
		return cached
	}

	// Nothing cached yet: the caller has to wait on the network.
	resp, err := rt.fetch.Do(ctx, req.Method, req.URL, req.Header, req.Body)
	if err != nil {
		rt.logger.Debug("stale-while-revalidate initial fetch failed", "url", req.URL, "error", err)
		return networkErrorResponse()
	}
	if putErr := rt.cache.Put(ctx, rt.cfg.DynamicArea, req.Key(), *resp); putErr != nil {
		rt.logger.Error("caching image failed", "url", req.URL, "error", putErr)
	}
	return resp
}

// offlineDocument serves the precached offline page, or the synthetic 408
// when even that is missing (install never completed).
func (rt *Router) offlineDocument(ctx context.Context) *storage.StoredResponse {
	key := storage.RequestKey{Method: http.MethodGet, URL: rt.cfg.OfflineURL}
	cached, err := rt.cache.Get(ctx, rt.cfg.StaticArea, key)
	if err != nil {
		rt.logger.Error("offline document lookup failed", "error", err)
	}
	if cached != nil {
		return cached
	}
	return networkErrorResponse()
}
