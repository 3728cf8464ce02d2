package main

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/plus3/ecscore/ecs"
)

type Report struct {
	// Configuration
	Duration   time.Duration
	Entities   int
	Components int
	Systems    int
	Parallel   bool
	Stages     [][]string

	// Results
	TotalUpdates   int64
	TotalTime      time.Duration
	UpdateTime     Stats
	SampledFPS     float64
	SlowestSystems []ecs.SystemStats
	Storage        ecs.StorageStats
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P99     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))

	sorted := slices.Clone(s.Samples)
	slices.Sort(sorted)
	s.P99 = sorted[(len(sorted)-1)*99/100]
}

// SetSchedulerStats keeps the n systems with the highest average duration.
func (r *Report) SetSchedulerStats(stats *ecs.SchedulerStats, n int) {
	systems := slices.Clone(stats.Systems)
	slices.SortStableFunc(systems, func(a, b ecs.SystemStats) int {
		switch {
		case a.AvgDuration > b.AvgDuration:
			return -1
		case a.AvgDuration < b.AvgDuration:
			return 1
		}
		return 0
	})
	r.SlowestSystems = systems[:min(n, len(systems))]
}

const reportTemplate = `
# ECS Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Initial Entities:** {{.Entities}}
- **Generated Components:** {{.Components}}
- **Generated Systems:** {{.Systems}}
- **Parallel Stages:** {{.Parallel}}
- **Stages:** {{len .Stages}}
{{- range $i, $stage := .Stages}}
  - {{$i}}: {{join $stage}}
{{- end}}

## Performance Results
- **Total Updates:** {{.TotalUpdates}}
- **Total Test Time:** {{.TotalTime}}
- **Sampled FPS:** {{printf "%.1f" .SampledFPS}}
- **Update Time (Frame):**
  - **Avg:** {{.UpdateTime.Avg}}
  - **Min:** {{.UpdateTime.Min}}
  - **Max:** {{.UpdateTime.Max}}
  - **P99:** {{.UpdateTime.P99}}
{{if .SlowestSystems}}
## Slowest Systems
| System | Stage | Runs | Avg | Max |
|---|---|---|---|---|
{{- range .SlowestSystems}}
| {{.Name}} | {{.Stage}} | {{.ExecutionCount}} | {{.AvgDuration}} | {{.MaxDuration}} |
{{- end}}
{{end}}
## Storage
- **Entities:** {{.Storage.TotalEntityCount}}
- **Archetypes:** {{.Storage.ArchetypeCount}}
- **Singletons:** {{.Storage.SingletonCount}}

## Memory Usage (MiB)
- Heap Alloc:     {{mb .MemStatsStart.HeapAlloc}} (start) -> {{mb .MemStatsEnd.HeapAlloc}} (end) -> delta: {{mb (bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc)}}
- Total Alloc:    {{mb .MemStatsStart.TotalAlloc}} (start) -> {{mb .MemStatsEnd.TotalAlloc}} (end) -> delta: {{mb (bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc)}}
- Sys Memory:     {{mb .MemStatsStart.Sys}} (start) -> {{mb .MemStatsEnd.Sys}} (end) -> delta: {{mb (bsub .MemStatsEnd.Sys .MemStatsStart.Sys)}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}

{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{ usub .MemStatsEnd.NumGC .MemStatsStart.NumGC }}
{{end}}
`

const storageTemplate = `
# Save File

- **Entities:** {{.TotalEntityCount}}
- **Archetypes:** {{.ArchetypeCount}}
{{range .ArchetypeBreakdown}}
- {{.EntityCount}} x [{{join .ComponentTypes}}]
{{- end}}
`

var funcs = template.FuncMap{
	"mb": func(v any) string {
		switch val := v.(type) {
		case uint64:
			return fmt.Sprintf("%.2f", float64(val)/1024/1024)
		case int64:
			return fmt.Sprintf("%.2f", float64(val)/1024/1024)
		default:
			return "N/A"
		}
	},
	"bsub": func(a, b uint64) int64 {
		return int64(a) - int64(b)
	},
	"usub": func(a, b uint32) uint32 {
		return a - b
	},
	"ns": func(ns uint64) string {
		return time.Duration(ns).String()
	},
	"join": func(items []string) string {
		return strings.Join(items, ", ")
	},
}

func (r *Report) Generate(w io.Writer) error {
	tmpl, err := template.New("report").Funcs(funcs).Parse(reportTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, r)
}

// WriteStorageReport prints the archetype breakdown of a loaded save.
func WriteStorageReport(w io.Writer, stats ecs.StorageStats) error {
	tmpl, err := template.New("storage").Funcs(funcs).Parse(storageTemplate)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, stats)
}
