package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

type WorkerFunc = func(t *tomb.Tomb, task any) error

// WorkerPool fans tasks out to a fixed set of goroutines running under a
// tomb. Workers exit when the tomb dies or their work function fails.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		n:     size,
		tasks: make(chan any, taskChanSize),
	}
}

// Start launches the workers on the tomb.
func (pool *WorkerPool) Start(t *tomb.Tomb, work WorkerFunc) {
	for i := 0; i < pool.n; i++ {
		id := i
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// Submit queues a task for the next free worker. Blocks when the queue is
// full.
func (pool *WorkerPool) Submit(task any) {
	pool.tasks <- task
}

func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
