package worker

import "github.com/snagd/snag/pkg/logger"

var workerLogger = logger.Get("Worker")

type WorkerWakeupChan chan int
type WorkerStatus int

const (
	SLEEPING WorkerStatus = iota
	WORKING
	FINISHED
)

// Task is the unit of work executed by a worker. The boolean return
// indicates whether any work was actually performed; a worker will
// keep invoking its task until it reports no work remaining, at
// which point the worker sleeps until woken.
type Task func(Worker) (bool, error)

type Worker interface {
	Start()
	Status() WorkerStatus
	WakeupChan() WorkerWakeupChan
	Label() string
	Sleep() bool
	Close()
}

type taskWorker struct {
	label         string
	task          Task
	wakeupChan    WorkerWakeupChan
	currentStatus WorkerStatus
}

func NewWorker(label string, task Task) *taskWorker {
	// The wakeup channel carries a single buffered token so a wakeup
	// delivered while the worker is mid-task is consumed by the next
	// Sleep rather than lost.
	return &taskWorker{
		label:         label,
		task:          task,
		wakeupChan:    make(WorkerWakeupChan, 1),
		currentStatus: SLEEPING,
	}
}

// Start runs the worker loop; the task is executed repeatedly until it
// reports that no work remains, after which the worker sleeps until
// it is woken up (or closed, which terminates the loop).
func (worker *taskWorker) Start() {
	workerLogger.Emit(logger.NEW, "Starting worker %v\n", worker.label)
	worker.currentStatus = WORKING

	for {
		didWork, err := worker.task(worker)
		if err != nil {
			workerLogger.Emit(logger.ERROR, "Worker %v task reported error(%T): %v\n", worker.label, err, err.Error())
		}

		if didWork {
			continue
		}

		if !worker.Sleep() {
			return
		}
	}
}

// Status returns the current status of this worker
func (worker *taskWorker) Status() WorkerStatus {
	return worker.currentStatus
}

func (worker *taskWorker) WakeupChan() WorkerWakeupChan {
	return worker.wakeupChan
}

// Close closes the Worker by closing the WakeChan.
// Note that this does not interupt a currently running task.
func (worker *taskWorker) Close() {
	close(worker.wakeupChan)
}

// Label returns the label for this worker
func (worker *taskWorker) Label() string {
	return worker.label
}

// Sleep puts a worker to sleep until it's wakeupChan is
// signalled from another goroutine. Returns a boolean that
// is 'false' if the wakeup channel was closed - indicating
// the worker should quit.
func (worker *taskWorker) Sleep() (isAlive bool) {
	worker.currentStatus = SLEEPING

	if _, isAlive = <-worker.wakeupChan; isAlive {
		worker.currentStatus = WORKING
	} else {
		workerLogger.Emit(logger.STOP, "Wakeup channel for worker '%v' has been closed - worker is exiting\n", worker.label)
		worker.currentStatus = FINISHED
	}

	return isAlive
}
