package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/mmo-region/internal/logging"
)

// ProcessSampler периодически снимает CPU и память процесса
type ProcessSampler struct {
	proc       *process.Process
	cpuPercent prometheus.Gauge
	rssBytes   prometheus.Gauge
	goroutines prometheus.Gauge
	startTime  time.Time
}

// NewProcessSampler создаёт семплер текущего процесса
func NewProcessSampler(reg prometheus.Registerer) (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	s := &ProcessSampler{
		proc: proc,
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "Загрузка CPU процессом в процентах.",
		}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Subsystem: "process",
			Name:      "rss_bytes",
			Help:      "Резидентная память процесса.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Subsystem: "process",
			Name:      "goroutines",
			Help:      "Количество горутин.",
		}),
		startTime: time.Now(),
	}

	reg.MustRegister(s.cpuPercent, s.rssBytes, s.goroutines)
	return s, nil
}

// Snapshot текущие значения для /stats
type Snapshot struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Goroutines int     `json:"goroutines"`
	Uptime     string  `json:"uptime"`
}

// Sample снимает значения и обновляет метрики
func (s *ProcessSampler) Sample() (Snapshot, error) {
	snap := Snapshot{
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(s.startTime).Truncate(time.Second).String(),
	}

	cpu, err := s.proc.CPUPercent()
	if err != nil {
		return snap, err
	}
	snap.CPUPercent = cpu

	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return snap, err
	}
	snap.RSSBytes = mem.RSS

	s.cpuPercent.Set(snap.CPUPercent)
	s.rssBytes.Set(float64(snap.RSSBytes))
	s.goroutines.Set(float64(snap.Goroutines))
	return snap, nil
}

// Run обновляет метрики с интервалом до отмены контекста
func (s *ProcessSampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logging.GetComponentLogger("metrics")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sample(); err != nil {
				log.Debug("Не удалось снять метрики процесса: %v", err)
			}
		}
	}
}
