package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/ecscore/ecs"
)

func writeQuietConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(p, []byte("log:\n  level: off\n"), 0o644))
	return p
}

func TestSpawnRandomEntity(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	RegisterAllGeneratedComponents(registry)
	storage := ecs.NewStorage(registry)
	rng := rand.New(rand.NewPCG(1, 1))

	id := SpawnRandomEntity(storage, rng, 4)
	types, _ := storage.ComponentsOf(id)
	assert.Len(t, types, 4)

	id = SpawnRandomEntity(storage, rng, componentCount+10)
	types, _ = storage.ComponentsOf(id)
	assert.Len(t, types, componentCount)
}

func TestGeneratedSystemsConflict(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	RegisterAllGeneratedComponents(registry)
	scheduler := ecs.NewScheduler(ecs.NewStorage(registry))
	require.NoError(t, scheduler.Add("system_0", &System0{}))
	require.NoError(t, scheduler.Add("system_2", &System2{}))
	require.NoError(t, scheduler.Add("system_1", &System1{}))

	assert.Equal(t, [][]string{{"system_0", "system_2"}, {"system_1"}}, scheduler.Stages())
}

func TestRunAndLoad(t *testing.T) {
	cfgPath := writeQuietConfig(t)
	savePath := filepath.Join(t.TempDir(), "world.json")

	report, err := runStress(context.Background(), runOptions{
		configPath:   cfgPath,
		duration:     50 * time.Millisecond,
		entities:     200,
		seed:         7,
		savePath:     savePath,
		saveEntities: 20,
	})
	require.NoError(t, err)
	assert.Positive(t, report.TotalUpdates)
	assert.Len(t, report.UpdateTime.Samples, int(report.TotalUpdates))
	assert.Equal(t, 200, report.Storage.TotalEntityCount)
	assert.NotEmpty(t, report.SlowestSystems)
	assert.LessOrEqual(t, len(report.SlowestSystems), 5)

	var out bytes.Buffer
	require.NoError(t, report.Generate(&out))
	assert.Contains(t, out.String(), "# ECS Stress Test Report")
	assert.Contains(t, out.String(), "**Initial Entities:** 200")

	stats, err := loadSave(cfgPath, savePath)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalEntityCount)
}

func TestLoadCommand(t *testing.T) {
	cfgPath := writeQuietConfig(t)
	savePath := filepath.Join(t.TempDir(), "world.yaml")
	_, err := runStress(context.Background(), runOptions{
		configPath:   cfgPath,
		duration:     10 * time.Millisecond,
		entities:     10,
		seed:         1,
		savePath:     savePath,
		saveEntities: 10,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "load", savePath})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "**Entities:** 10")
	assert.Contains(t, out.String(), "Marker")
}

func TestStatsFinalize(t *testing.T) {
	s := Stats{Samples: []time.Duration{3, 1, 2, 100}}
	s.Finalize()
	assert.Equal(t, time.Duration(1), s.Min)
	assert.Equal(t, time.Duration(100), s.Max)
	assert.Equal(t, time.Duration(26), s.Avg)
	assert.Equal(t, time.Duration(3), s.P99)

	empty := Stats{}
	empty.Finalize()
	assert.Zero(t, empty.Avg)
}

func TestSetSchedulerStats(t *testing.T) {
	var r Report
	r.SetSchedulerStats(&ecs.SchedulerStats{Systems: []ecs.SystemStats{
		{Name: "a", AvgDuration: 1},
		{Name: "b", AvgDuration: 3},
		{Name: "c", AvgDuration: 2},
	}}, 2)
	require.Len(t, r.SlowestSystems, 2)
	assert.Equal(t, "b", r.SlowestSystems[0].Name)
	assert.Equal(t, "c", r.SlowestSystems[1].Name)
}
