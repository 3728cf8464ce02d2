package profiler

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/ecscore/ecs"
)

type Position struct{ X, Y float64 }

type mover struct {
	Bodies ecs.Query[struct{ *Position }]
}

func (m *mover) Execute(frame *ecs.UpdateFrame) {
	for body := range m.Bodies.Values() {
		body.Position.X++
	}
}

func newProfiledScheduler(t *testing.T, opts ...Option) (*Profiler, *prometheus.Registry, *ecs.Scheduler) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	storage := ecs.NewStorage(registry)
	storage.Spawn(Position{})
	storage.Spawn(Position{})

	reg := prometheus.NewRegistry()
	p, err := New(reg, opts...)
	require.NoError(t, err)

	scheduler := ecs.NewScheduler(storage, ecs.WithObserver(p))
	require.NoError(t, scheduler.Add("mover", &mover{}))
	return p, reg, scheduler
}

func TestObserverRecordsFrames(t *testing.T) {
	p, _, scheduler := newProfiledScheduler(t)

	for range 3 {
		scheduler.Once(0.016)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(p.frames))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.entities))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.archetypes))
	assert.Equal(t, 1, testutil.CollectAndCount(p.systemDuration))

	stats, taken := p.StorageSnapshot()
	assert.False(t, taken.IsZero())
	assert.Equal(t, 2, stats.TotalEntityCount)
}

func TestSnapshotInterval(t *testing.T) {
	p, _, scheduler := newProfiledScheduler(t, WithSnapshotInterval(time.Hour))

	scheduler.Once(0)
	_, first := p.StorageSnapshot()
	scheduler.Storage().Spawn(Position{})
	scheduler.Once(0)
	stats, second := p.StorageSnapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, 2, stats.TotalEntityCount, "snapshot is not refreshed within the interval")
	assert.Equal(t, 3.0, testutil.ToFloat64(p.entities), "entity gauge is refreshed every frame")
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)

	_, err = New(reg, WithNamespace("other"))
	assert.NoError(t, err)
}

func TestHandler(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t)
	h := p.NewHandler(reg, scheduler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/storage", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "no snapshot before the first frame")

	scheduler.Once(0.016)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "ecs_scheduler_frames_total 1")
	assert.Contains(t, body, `ecs_scheduler_system_duration_seconds_count{system="mover"} 1`)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/scheduler", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var sched ecs.SchedulerStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sched))
	assert.Equal(t, int64(1), sched.Frames)
	require.Len(t, sched.Systems, 1)
	assert.Equal(t, "mover", sched.Systems[0].Name)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats/storage", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var storage storageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &storage))
	assert.Equal(t, 2, storage.Stats.TotalEntityCount)
}

func TestHandlerCORS(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t)
	h := p.NewHandler(reg, scheduler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.ListenAndServe(ctx, addr, p.NewHandler(reg, scheduler)) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSlowFrameWarning(t *testing.T) {
	var buf strings.Builder
	_, _, scheduler := newProfiledScheduler(t, WithSlowFrame(time.Nanosecond), WithLogger(zerolog.New(&buf)))
	scheduler.Once(0)
	assert.Contains(t, buf.String(), "slow frame")
}

// serveDuringFrames runs frames until the handler answers target.
func serveDuringFrames(h http.Handler, scheduler *ecs.Scheduler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		close(done)
	}()
	for {
		select {
		case <-done:
			return rr
		case <-time.After(time.Millisecond):
			scheduler.Once(0)
		}
	}
}

func TestEntityListing(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t)
	h := p.NewHandler(reg, scheduler)
	scheduler.Storage().Spawn(Position{X: 3, Y: 4})

	rr := serveDuringFrames(h, scheduler, "/entities")
	require.Equal(t, http.StatusOK, rr.Code)
	var page EntityPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entities, 3)
	assert.Equal(t, []string{"profiler.Position"}, page.Entities[0].Components)
	assert.Less(t, page.Entities[0].ID, page.Entities[1].ID)

	rr = serveDuringFrames(h, scheduler, "/entities?filter=position&page=1&limit=2")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Entities, 1)

	rr = serveDuringFrames(h, scheduler, "/entities?filter=position,velocity")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Entities)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entities?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEntityDetail(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t)
	h := p.NewHandler(reg, scheduler)
	id := scheduler.Storage().Spawn(Position{X: 3, Y: 4})

	rr := serveDuringFrames(h, scheduler, "/entities/"+strconv.FormatUint(uint64(id), 10))
	require.Equal(t, http.StatusOK, rr.Code)
	var detail EntityDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, id, detail.ID)
	require.Len(t, detail.Components, 1)
	component := detail.Components[0]
	assert.Equal(t, "profiler.Position", component.Type)
	require.Len(t, component.Fields, 2)
	assert.Equal(t, "Y", component.Fields[1].Name)
	assert.Equal(t, "float64", component.Fields[1].Type)
	assert.JSONEq(t, "4", string(component.Fields[1].Value))

	rr = serveDuringFrames(h, scheduler, "/entities/"+strconv.FormatUint(uint64(ecs.NewEntityId(4242, 0)), 10))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entities/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInspectionTimesOutWithoutFrames(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t, WithInspectTimeout(10*time.Millisecond))
	h := p.NewHandler(reg, scheduler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entities", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
}

func TestEntityListingOutOfRangePages(t *testing.T) {
	p, reg, scheduler := newProfiledScheduler(t)
	h := p.NewHandler(reg, scheduler)

	var page EntityPage
	rr := serveDuringFrames(h, scheduler, "/entities?page=3074457345618258603&limit=3")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)
	assert.Empty(t, page.Entities)

	rr = serveDuringFrames(h, scheduler, "/entities?limit=99999999")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Len(t, page.Entities, 2)

	// the frame loop is still serving
	rr = serveDuringFrames(h, scheduler, "/entities?page=1&limit=1")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Len(t, page.Entities, 1)
}

func TestListEntitiesPageBounds(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	storage := ecs.NewStorage(registry)
	for range 5 {
		storage.Spawn(Position{})
	}

	assert.Len(t, listEntities(storage, nil, 2, 2).Entities, 1)
	assert.Empty(t, listEntities(storage, nil, 3, 2).Entities)
	assert.Empty(t, listEntities(storage, nil, math.MaxInt/2, 3).Entities)
	assert.Empty(t, listEntities(storage, nil, 0, 0).Entities)
}

func TestInspectionPanicBecomesError(t *testing.T) {
	p, _, scheduler := newProfiledScheduler(t)

	done := make(chan error, 1)
	go func() {
		_, err := p.inspect(context.Background(), func(*ecs.Storage) (any, error) {
			panic("broken inspection")
		})
		done <- err
	}()

	for {
		select {
		case err := <-done:
			require.Error(t, err)
			assert.Contains(t, err.Error(), "broken inspection")
			return
		case <-time.After(time.Millisecond):
			scheduler.Once(0)
		}
	}
}
