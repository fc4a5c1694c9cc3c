package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safecheck/field-assessment/internal/models"
	"safecheck/field-assessment/internal/repositories"
)

type extractorFixture struct {
	assessmentRepo *fakeAssessmentRepo
	templateRepo   *fakeTemplateRepo
	resultRepo     *fakeResultRepo
	gemini         *fakeGemini
	stt            *fakeSTT
	assessmentID   uuid.UUID
	itemIDs        map[string]uuid.UUID
}

// newExtractorFixture builds a pipeline around one in-progress assessment
// whose safety template has the flat leaves 분류 and 원인.
func newExtractorFixture(t *testing.T) *extractorFixture {
	t.Helper()

	templateID := uuid.New()
	template := &models.Template{
		ID:     templateID,
		Name:   "위험성평가표",
		AiType: models.TypeSafety,
		Status: models.TemplateCompleted,
	}

	templateRepo := newFakeTemplateRepo(template)
	itemIDs := make(map[string]uuid.UUID)
	for i, header := range []string{"분류", "원인"} {
		item := &models.TemplateItem{
			TemplateID: templateID,
			HeaderName: header,
			SortOrder:  i,
		}
		require.NoError(t, templateRepo.InsertItem(item))
		itemIDs[header] = item.ID
	}

	assessment := &models.Assessment{
		ID:            uuid.New(),
		CompanyID:     uuid.New(),
		TemplateID:    templateID,
		Status:        models.StatusInProgress,
		ResponseStyle: models.StyleExpert,
	}

	return &extractorFixture{
		assessmentRepo: newFakeAssessmentRepo(assessment),
		templateRepo:   templateRepo,
		resultRepo:     &fakeResultRepo{},
		gemini:         &fakeGemini{},
		stt: &fakeSTT{
			transcribe: func(audio []byte, filename, declaredType string) (string, error) {
				return "현장 점검 내용", nil
			},
		},
		assessmentID: assessment.ID,
		itemIDs:      itemIDs,
	}
}

func (f *extractorFixture) service() ExtractorService {
	return NewExtractorService(
		f.assessmentRepo,
		f.templateRepo,
		f.resultRepo,
		f.stt,
		f.gemini,
		&fakeRetrieval{},
		&fakeStorage{data: []byte("audio-bytes"), contentType: "audio/mpeg"},
		NewOverloadRetryPolicy(3, time.Millisecond),
	)
}

func TestProcessAssessmentNoSpeech(t *testing.T) {
	f := newExtractorFixture(t)
	f.stt.transcribe = func(audio []byte, filename, declaredType string) (string, error) {
		return "", ErrNoSpeech
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.ErrorIs(t, err, ErrNoSpeech)

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusFailed, assessment.Status)
	require.NotNil(t, assessment.ErrorMessage)
	assert.Equal(t, NoSpeechMessage, *assessment.ErrorMessage)
	assert.Empty(t, f.resultRepo.inserted)
	assert.Zero(t, f.gemini.textCalls)
}

func TestProcessAssessmentTwoHazardSets(t *testing.T) {
	f := newExtractorFixture(t)
	f.stt.transcribe = func(audio []byte, filename, declaredType string) (string, error) {
		return "전선 피복 벗겨짐... 그리고 기름이 끓는데 덮개가 없음", nil
	}

	분류, 원인 := f.itemIDs["분류"], f.itemIDs["원인"]
	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		assert.Zero(t, temperature)
		return fmt.Sprintf("```json\n{\n  \"title\": \"전기·조리 설비 점검\",\n  \"sets\": [\n    {\"results\": [\n      {\"template_item_id\": %q, \"result_value\": \"전기 위험\", \"legal_basis\": \"제301조\", \"solution\": \"피복 교체\"},\n      {\"template_item_id\": %q, \"result_value\": \"전선 피복 손상\", \"legal_basis\": null, \"solution\": null}\n    ]},\n    {\"results\": [\n      {\"template_item_id\": %q, \"result_value\": \"화상 위험\", \"legal_basis\": \"제657조\", \"solution\": \"덮개 설치\"},\n      {\"template_item_id\": %q, \"result_value\": \"가열 설비 덮개 미설치\", \"legal_basis\": null, \"solution\": null}\n    ]}\n  ]\n}\n```", 분류, 원인, 분류, 원인), nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.NoError(t, err)

	// Two sets over two leaves: exactly four rows, two per item id.
	require.Len(t, f.resultRepo.inserted, 4)
	perItem := make(map[uuid.UUID]int)
	for _, row := range f.resultRepo.inserted {
		perItem[row.TemplateItemID]++
	}
	assert.Equal(t, 2, perItem[분류])
	assert.Equal(t, 2, perItem[원인])

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusCompleted, assessment.Status)
	require.NotNil(t, assessment.Title)
	assert.Equal(t, "전기·조리 설비 점검", *assessment.Title)
	require.NotNil(t, assessment.Transcript)
	assert.Contains(t, *assessment.Transcript, "전선 피복")
	assert.Equal(t, []string{"in_progress->analyzing", "analyzing->completed"}, f.assessmentRepo.transitions)
}

func TestProcessAssessmentRetriesOnOverload(t *testing.T) {
	f := newExtractorFixture(t)

	분류 := f.itemIDs["분류"]
	attempts := 0
	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		attempts++
		if attempts < 3 {
			return "", fmt.Errorf("backend returned HTTP 529: overloaded")
		}
		return fmt.Sprintf(`{"sets": [{"results": [{"template_item_id": %q, "result_value": "정상"}]}]}`, 분류), nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.NoError(t, err)

	assert.Equal(t, 3, f.gemini.textCalls)
	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusCompleted, assessment.Status)
	assert.Nil(t, assessment.ErrorMessage)
}

func TestProcessAssessmentZeroSetsStillCompletes(t *testing.T) {
	f := newExtractorFixture(t)
	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		return `{"title": "특이사항 없음", "sets": []}`, nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.NoError(t, err)

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusCompleted, assessment.Status)
	assert.Empty(t, f.resultRepo.inserted)
}

func TestProcessAssessmentDropsDanglingReferences(t *testing.T) {
	f := newExtractorFixture(t)

	분류 := f.itemIDs["분류"]
	unknownID := uuid.New()
	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		return fmt.Sprintf(`{"sets": [{"results": [
			{"template_item_id": %q, "result_value": "유효한 답변"},
			{"template_item_id": %q, "result_value": "스키마에 없는 항목"},
			{"template_item_id": "x", "result_value": "식별자 아님"}
		]}]}`, 분류, unknownID), nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.NoError(t, err)

	require.Len(t, f.resultRepo.inserted, 1)
	assert.Equal(t, 분류, f.resultRepo.inserted[0].TemplateItemID)

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusCompleted, assessment.Status)
}

func TestProcessAssessmentOnlyLeavesReceiveAnswers(t *testing.T) {
	f := newExtractorFixture(t)

	// Give 분류 a child so it stops being a leaf.
	parentID := f.itemIDs["분류"]
	child := &models.TemplateItem{
		TemplateID: f.templateRepo.items[0].TemplateID,
		HeaderName: "세부 분류",
		SortOrder:  0,
		ParentID:   &parentID,
	}
	require.NoError(t, f.templateRepo.InsertItem(child))

	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		return fmt.Sprintf(`{"sets": [{"results": [
			{"template_item_id": %q, "result_value": "부모 항목에 대한 답변"},
			{"template_item_id": %q, "result_value": "자식 항목에 대한 답변"}
		]}]}`, parentID, child.ID), nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.NoError(t, err)

	require.Len(t, f.resultRepo.inserted, 1)
	assert.Equal(t, child.ID, f.resultRepo.inserted[0].TemplateItemID)
}

func TestProcessAssessmentMalformedOutputFails(t *testing.T) {
	f := newExtractorFixture(t)
	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		return "죄송합니다, JSON을 생성할 수 없습니다.", nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.Error(t, err)

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusFailed, assessment.Status)
	require.NotNil(t, assessment.ErrorMessage)
	assert.Empty(t, f.resultRepo.inserted)

	// Transcript committed before extraction survives the failure.
	require.NotNil(t, assessment.Transcript)
}

func TestProcessAssessmentRAGFailureDoesNotAbort(t *testing.T) {
	f := newExtractorFixture(t)

	분류 := f.itemIDs["분류"]
	var promptSeen string
	f.gemini.generateText = func(prompt string, temperature float32) (string, error) {
		promptSeen = prompt
		return fmt.Sprintf(`{"sets": [{"results": [{"template_item_id": %q, "result_value": "정상"}]}]}`, 분류), nil
	}

	// fakeRetrieval with no context mimics a degraded RAG module: the
	// extraction prompt carries the sentinel instruction instead.
	svc := NewExtractorService(
		f.assessmentRepo,
		f.templateRepo,
		f.resultRepo,
		f.stt,
		f.gemini,
		&fakeRetrieval{},
		&fakeStorage{data: []byte("audio-bytes")},
		NewOverloadRetryPolicy(3, time.Millisecond),
	)

	err := svc.ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.NoError(t, err)

	assert.Contains(t, promptSeen, NoRegulationSentinel)
	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusCompleted, assessment.Status)
}

func TestProcessAssessmentDuplicateRunKeepsTerminalState(t *testing.T) {
	f := newExtractorFixture(t)

	committed := "현장 점검 내용"
	a, _ := f.assessmentRepo.FindByID(f.assessmentID)
	require.NoError(t, f.assessmentRepo.SaveTranscript(a.ID, committed))
	require.NoError(t, f.assessmentRepo.TransitionStatus(a.ID, models.StatusInProgress, models.StatusAnalyzing))
	require.NoError(t, f.assessmentRepo.TransitionStatus(a.ID, models.StatusAnalyzing, models.StatusCompleted))

	// A second run against the finished assessment must not touch it.
	f.stt.transcribe = func(audio []byte, filename, declaredType string) (string, error) {
		return "다른 날의 녹음", nil
	}

	err := f.service().ProcessAssessment(context.Background(), f.assessmentID, "recordings/visit.mp3")
	require.ErrorIs(t, err, repositories.ErrStatusConflict)

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusCompleted, assessment.Status)
	assert.Nil(t, assessment.ErrorMessage)
	require.NotNil(t, assessment.Transcript)
	assert.Equal(t, committed, *assessment.Transcript)
	assert.Zero(t, f.gemini.textCalls)
	assert.Empty(t, f.resultRepo.inserted)
}

func TestProcessAssessmentStorageFailureFails(t *testing.T) {
	f := newExtractorFixture(t)

	svc := NewExtractorService(
		f.assessmentRepo,
		f.templateRepo,
		f.resultRepo,
		f.stt,
		f.gemini,
		&fakeRetrieval{},
		&fakeStorage{err: fmt.Errorf("object not found")},
		NewOverloadRetryPolicy(3, time.Millisecond),
	)

	err := svc.ProcessAssessment(context.Background(), f.assessmentID, "recordings/missing.mp3")
	require.Error(t, err)

	assessment, _ := f.assessmentRepo.FindByID(f.assessmentID)
	assert.Equal(t, models.StatusFailed, assessment.Status)
	require.NotNil(t, assessment.ErrorMessage)
	assert.Contains(t, *assessment.ErrorMessage, "object not found")
}
