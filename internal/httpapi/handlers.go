package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/redisgate/pkg/cache"
	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

const (
	timeKeyPrefix  = "Time:"
	timeValue      = "Hello"
	timeTTLSeconds = 600

	// clearAll and clearAllName in place of a namespace flush database 0.
	clearAll     = "*"
	clearAllName = "all"
)

type handlers struct {
	svc    *kv.Service
	logger *slog.Logger
	now    func() time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

type clearResponse struct {
	Namespace string `json:"namespace"`
	Evicted   int64  `json:"evicted"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// database reads the {database} path parameter, 0 when the route has none.
func (h *handlers) database(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "database")
	if raw == "" {
		return 0, nil
	}
	db, err := strconv.Atoi(raw)
	if err != nil || db < redis.MinDB || db > redis.MaxDB {
		return 0, fmt.Errorf("database must be an integer in [%d, %d]", redis.MinDB, redis.MaxDB)
	}
	if db != 0 && !h.svc.Pool().MultiDB() {
		return 0, errors.New("sharded deployments only serve database 0")
	}
	return db, nil
}

// set writes Time:<unix-millis> = Hello with a 600 second TTL.
func (h *handlers) set(w http.ResponseWriter, r *http.Request) {
	db, err := h.database(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := timeKeyPrefix + strconv.FormatInt(h.now().UnixMilli(), 10)
	if !h.svc.SetEx(r.Context(), db, key, timeValue, timeTTLSeconds) {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// get returns the values of every Time:* key, ordered by key.
func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	db, err := h.database(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	keys := h.svc.Keys(r.Context(), db, timeKeyPrefix+"*")
	if len(keys) == 0 {
		writeJSON(w, http.StatusOK, []*string{})
		return
	}
	slices.Sort(keys)

	vals := h.svc.MGet(r.Context(), db, keys...)
	if vals == nil {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, vals)
}

// clear evicts a cache namespace, or flushes database 0 for "*" and "all".
// A cache namespace literally named "all" therefore cannot be evicted here.
func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "namespace")

	if ns == clearAll || ns == clearAllName {
		if !h.svc.FlushDB(r.Context(), 0) {
			writeError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	n, err := cache.Evict(r.Context(), h.svc, 0, ns)
	switch {
	case errors.Is(err, cache.ErrInvalidNamespace):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "namespace eviction failed",
			slog.String("namespace", ns),
			slog.Any("error", err),
		)
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Namespace: ns, Evicted: n})
}
