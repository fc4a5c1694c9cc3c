package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
)

type fakeAssessmentRepo struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]*models.Assessment
	transitions []string
}

func newFakeAssessmentRepo(assessments ...*models.Assessment) *fakeAssessmentRepo {
	repo := &fakeAssessmentRepo{assessments: make(map[uuid.UUID]*models.Assessment)}
	for _, a := range assessments {
		repo.assessments[a.ID] = a
	}
	return repo
}

func (r *fakeAssessmentRepo) Create(a *models.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments[a.ID] = a
	return nil
}

func (r *fakeAssessmentRepo) FindByID(id uuid.UUID) (*models.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return nil, fmt.Errorf("assessment not found")
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAssessmentRepo) TransitionStatus(id uuid.UUID, from, to models.AssessmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return fmt.Errorf("assessment not found")
	}
	if a.Status != from {
		return fmt.Errorf("%w: expected %s", repositories.ErrStatusConflict, from)
	}
	a.Status = to
	r.transitions = append(r.transitions, fmt.Sprintf("%s->%s", from, to))
	return nil
}

func (r *fakeAssessmentRepo) SaveTranscript(id uuid.UUID, transcript string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return fmt.Errorf("assessment not found")
	}
	a.Transcript = &transcript
	return nil
}

func (r *fakeAssessmentRepo) UpdateTitle(id uuid.UUID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return fmt.Errorf("assessment not found")
	}
	a.Title = &title
	return nil
}

func (r *fakeAssessmentRepo) MarkFailed(id uuid.UUID, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return fmt.Errorf("assessment not found")
	}
	a.Status = models.StatusFailed
	a.ErrorMessage = &errorMsg
	return nil
}

func (r *fakeAssessmentRepo) ResetForRetry(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return fmt.Errorf("assessment not found")
	}
	a.Status = models.StatusInProgress
	a.ErrorMessage = nil
	return nil
}

type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*models.Template
	items     []models.TemplateItem
	completed map[uuid.UUID]models.AiType
	failed    map[uuid.UUID]string
}

func newFakeTemplateRepo(templates ...*models.Template) *fakeTemplateRepo {
	repo := &fakeTemplateRepo{
		templates: make(map[uuid.UUID]*models.Template),
		completed: make(map[uuid.UUID]models.AiType),
		failed:    make(map[uuid.UUID]string),
	}
	for _, t := range templates {
		repo.templates[t.ID] = t
	}
	return repo
}

func (r *fakeTemplateRepo) FindByID(id uuid.UUID) (*models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template not found")
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTemplateRepo) FindItems(templateID uuid.UUID) ([]models.TemplateItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []models.TemplateItem
	for _, item := range r.items {
		if item.TemplateID == templateID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r *fakeTemplateRepo) InsertItem(item *models.TemplateItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.items = append(r.items, *item)
	return nil
}

func (r *fakeTemplateRepo) MarkCompleted(id uuid.UUID, aiType models.AiType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return fmt.Errorf("template not found")
	}
	t.Status = models.TemplateCompleted
	t.AiType = aiType
	r.completed[id] = aiType
	return nil
}

func (r *fakeTemplateRepo) MarkFailed(id uuid.UUID, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return fmt.Errorf("template not found")
	}
	t.Status = models.TemplateFailed
	r.failed[id] = errorMsg
	return nil
}

func (r *fakeTemplateRepo) FindProcessing(limit int) ([]models.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Template
	for _, t := range r.templates {
		if t.Status == models.TemplateProcessing && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeResultRepo struct {
	mu       sync.Mutex
	inserted []models.AssessmentResult
}

func (r *fakeResultRepo) BulkInsert(results []models.AssessmentResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, results...)
	return nil
}

func (r *fakeResultRepo) FindRowsByAssessment(assessmentID uuid.UUID) ([]models.ResultRow, error) {
	return nil, nil
}

func (r *fakeResultRepo) DeleteByAssessment(assessmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = nil
	return nil
}

type fakeGemini struct {
	generateText func(prompt string, temperature float32) (string, error)
	fastText     func(prompt string) (string, error)
	embedding    func(text string) ([]float32, error)
	vision       func(image []byte, mimeType, prompt string) (string, error)
	textCalls    int
	visionCalls  int
}

func (g *fakeGemini) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	g.textCalls++
	if g.generateText == nil {
		return "", fmt.Errorf("unexpected GenerateText call")
	}
	return g.generateText(prompt, temperature)
}

func (g *fakeGemini) GenerateFastText(ctx context.Context, prompt string) (string, error) {
	if g.fastText == nil {
		return "", fmt.Errorf("unexpected GenerateFastText call")
	}
	return g.fastText(prompt)
}

func (g *fakeGemini) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if g.embedding == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return g.embedding(text)
}

func (g *fakeGemini) GenerateVision(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	g.visionCalls++
	if g.vision == nil {
		return "", fmt.Errorf("unexpected GenerateVision call")
	}
	return g.vision(image, mimeType, prompt)
}

type fakeSTT struct {
	transcribe func(audio []byte, filename, declaredType string) (string, error)
}

func (s *fakeSTT) Transcribe(ctx context.Context, audio []byte, filename string, declaredType string) (string, error) {
	return s.transcribe(audio, filename, declaredType)
}

type fakeRetrieval struct {
	context string
}

func (r *fakeRetrieval) RetrieveLegalContext(ctx context.Context, transcript string) string {
	if r.context == "" {
		return NoRegulationSentinel
	}
	return r.context
}

type fakeStorage struct {
	data        []byte
	contentType string
	err         error
}

func (s *fakeStorage) Fetch(ctx context.Context, pathOrURL string) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.data, s.contentType, nil
}

func (s *fakeStorage) EnsureBucket(ctx context.Context) error {
	return nil
}

type fakeVectorSearch struct {
	similar     []RegulationDoc
	similarErr  error
	text        map[string][]RegulationDoc
	textErr     error
	textQueries []string
}

func (v *fakeVectorSearch) InitCollection() error {
	return nil
}

func (v *fakeVectorSearch) UpsertRegulation(ctx context.Context, docID string, article string, text string, embedding []float32) error {
	return nil
}

func (v *fakeVectorSearch) SearchSimilar(ctx context.Context, queryEmbedding []float32, minScore float32, limit int) ([]RegulationDoc, error) {
	if v.similarErr != nil {
		return nil, v.similarErr
	}
	return v.similar, nil
}

func (v *fakeVectorSearch) SearchText(ctx context.Context, term string, limit int) ([]RegulationDoc, error) {
	v.textQueries = append(v.textQueries, term)
	if v.textErr != nil {
		return nil, v.textErr
	}
	return v.text[term], nil
}
