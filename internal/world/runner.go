package world

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/mmo-region/internal/logging"
)

// ErrRunnerBusy очередь команд переполнена
var ErrRunnerBusy = errors.New("world runner command queue is full")

// maxTickDelta верхняя граница шага после долгой паузы
const maxTickDelta = 0.25

// Runner крутит мир в отдельной горутине. Сетевой слой передаёт работу
// в поток тика через Submit, команды выполняются между тиками.
type Runner struct {
	world    *World
	interval time.Duration
	commands chan func(*World)
	log      *logging.Logger
}

// NewRunner создаёт раннер с частотой tickRate тиков в секунду
func NewRunner(w *World, tickRate int) *Runner {
	if tickRate <= 0 {
		tickRate = 20
	}
	return &Runner{
		world:    w,
		interval: time.Second / time.Duration(tickRate),
		commands: make(chan func(*World), 1024),
		log:      logging.GetComponentLogger("runner"),
	}
}

// Submit ставит команду в очередь потока тика, не блокируясь
func (r *Runner) Submit(fn func(*World)) error {
	select {
	case r.commands <- fn:
		return nil
	default:
		return ErrRunnerBusy
	}
}

// Run тикает мир до отмены контекста
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	start := time.Now()
	last := start
	r.world.Initialize(r.interval.Seconds())
	r.log.Info("Мир запущен, шаг %v", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.log.Info("Мир остановлен после %d тиков", r.world.tick)
			return ctx.Err()
		case fn := <-r.commands:
			fn(r.world)
		case now := <-ticker.C:
			r.drain()
			delta := now.Sub(last).Seconds()
			if delta > maxTickDelta {
				r.log.Warn("Тик опоздал на %.3f с", delta)
				delta = maxTickDelta
			}
			last = now
			r.world.Update(delta, now.Sub(start).Seconds())
		}
	}
}

// drain выполняет накопившиеся команды, чтобы они попали в ближайший тик
func (r *Runner) drain() {
	for {
		select {
		case fn := <-r.commands:
			fn(r.world)
		default:
			return
		}
	}
}

// Stats последний снимок статистики мира
func (r *Runner) Stats() Stats {
	return r.world.Stats()
}
