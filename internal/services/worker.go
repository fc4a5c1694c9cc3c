package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"safecheck/field-assessment/internal/repositories"
)

// Worker drains template-structuring jobs: uploads enqueue directly, and a
// poller sweeps templates stuck in processing (missed webhooks, restarts).
type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueTemplate(templateID uuid.UUID)
}

type worker struct {
	templateRepo repositories.TemplateRepository
	structurer   StructurerService
	jobQueue     chan uuid.UUID
	concurrency  int
	wg           sync.WaitGroup
	stopChan     chan struct{}

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

func NewWorker(
	templateRepo repositories.TemplateRepository,
	structurer StructurerService,
	concurrency int,
) Worker {
	return &worker{
		templateRepo: templateRepo,
		structurer:   structurer,
		jobQueue:     make(chan uuid.UUID, 100),
		concurrency:  concurrency,
		stopChan:     make(chan struct{}),
		inFlight:     make(map[uuid.UUID]bool),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting template worker with %d concurrent workers\n", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollProcessingTemplates()
}

// Stop implements Worker.
func (w *worker) Stop() {
	log.Println("🛑 Stopping template worker...")
	close(w.stopChan)
	w.wg.Wait()
	log.Println("✅ Template worker stopped")
}

// EnqueueTemplate implements Worker. Already-queued templates are skipped so
// the poller cannot double-process one the upload path just enqueued.
func (w *worker) EnqueueTemplate(templateID uuid.UUID) {
	w.mu.Lock()
	if w.inFlight[templateID] {
		w.mu.Unlock()
		return
	}
	w.inFlight[templateID] = true
	w.mu.Unlock()

	select {
	case w.jobQueue <- templateID:
		log.Printf("📥 Template %s enqueued for structuring\n", templateID)
	case <-w.stopChan:
		log.Printf("⚠️ Worker stopped, cannot enqueue template %s\n", templateID)
	}
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case templateID := <-w.jobQueue:
			log.Printf("👷 Worker #%d structuring template %s\n", workerID, templateID)
			if err := w.structurer.ProcessTemplate(ctx, templateID); err != nil {
				log.Printf("❌ Worker #%d failed to structure template %s: %v\n", workerID, templateID, err)
			} else {
				log.Printf("✅ Worker #%d structured template %s\n", workerID, templateID)
			}

			w.mu.Lock()
			delete(w.inFlight, templateID)
			w.mu.Unlock()
		}
	}
}

func (w *worker) pollProcessingTemplates() {
	defer w.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			templates, err := w.templateRepo.FindProcessing(10)
			if err != nil {
				log.Printf("⚠️ Failed to fetch processing templates: %v\n", err)
				continue
			}

			for _, template := range templates {
				w.EnqueueTemplate(template.ID)
			}
		}
	}
}
