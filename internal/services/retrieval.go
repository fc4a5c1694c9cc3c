package services

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// NoRegulationSentinel is returned when nothing relevant was retrieved. It is
// a deterministic fallback instruction, never an empty string, so the
// extraction prompt always tells the model what to do without citations.
const NoRegulationSentinel = "관련 법규를 찾지 못했습니다. 일반적인 산업안전보건 원칙을 적용하세요."

const (
	vectorScoreFloor  = 0.35
	vectorResultLimit = 5
	textResultLimit   = 2
	maxContextDocs    = 5
	keywordQueryLimit = 2000
)

// criticalTerms force an exact-match lookup when they appear among the
// extracted keywords. Vector search alone is not trusted for
// compliance-sensitive citations.
var criticalTerms = []string{
	"근골격계", "중량물", "추락", "전도", "감전", "화재", "질식", "소음",
}

// denyTerms are off-topic hazard categories known to surface as vector-search
// false positives on field-visit narration.
var denyTerms = []string{
	"방사선", "잠수", "발파", "광산", "원자력",
}

type RetrievalService interface {
	RetrieveLegalContext(ctx context.Context, transcript string) string
}

type retrievalService struct {
	gemini GeminiService
	vector VectorSearchService
}

func NewRetrievalService(gemini GeminiService, vector VectorSearchService) RetrievalService {
	return &retrievalService{
		gemini: gemini,
		vector: vector,
	}
}

// RetrieveLegalContext implements RetrievalService. Retrieval is an
// enhancement, not a hard dependency: every failure inside degrades to the
// fallback sentinel instead of aborting the pipeline.
func (r *retrievalService) RetrieveLegalContext(ctx context.Context, transcript string) string {
	docs, err := r.retrieve(ctx, transcript)
	if err != nil {
		log.Printf("⚠️ Legal context retrieval failed: %v\n", err)
		return NoRegulationSentinel
	}

	if len(docs) == 0 {
		return NoRegulationSentinel
	}

	if len(docs) > maxContextDocs {
		docs = docs[:maxContextDocs]
	}

	var parts []string
	for i, doc := range docs {
		label := fmt.Sprintf("[관련 법규 %d]", i+1)
		if doc.Article != "" {
			label = fmt.Sprintf("%s %s", label, doc.Article)
		}
		parts = append(parts, label+"\n"+strings.TrimSpace(doc.Text))
	}

	return strings.Join(parts, "\n\n")
}

func (r *retrievalService) retrieve(ctx context.Context, transcript string) ([]RegulationDoc, error) {
	keywords, err := r.translateKeywords(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("keyword translation failed: %w", err)
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	keywordQuery := strings.Join(keywords, ", ")
	log.Printf("🔍 Regulation search keywords: %s\n", keywordQuery)

	embedding, err := r.gemini.GenerateEmbedding(ctx, keywordQuery)
	if err != nil {
		return nil, fmt.Errorf("keyword embedding failed: %w", err)
	}

	vectorDocs, err := r.vector.SearchSimilar(ctx, embedding, vectorScoreFloor, vectorResultLimit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// Recall safety net: critical keywords also run an exact text match so
	// canonically important articles cannot be ranked out.
	var boostedDocs []RegulationDoc
	for _, keyword := range keywords {
		if !containsCriticalTerm(keyword) {
			continue
		}
		textDocs, err := r.vector.SearchText(ctx, keyword, textResultLimit)
		if err != nil {
			log.Printf("⚠️ Text match failed for %q: %v\n", keyword, err)
			continue
		}
		boostedDocs = append(boostedDocs, textDocs...)
	}

	// Vector matches first, then keyword-boosted; dedupe by document id.
	seen := make(map[string]bool)
	var merged []RegulationDoc
	for _, doc := range append(vectorDocs, boostedDocs...) {
		if doc.ID == "" || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		merged = append(merged, doc)
	}

	return filterDenied(merged, keywords), nil
}

// translateKeywords turns informal field narration into canonical regulation
// search keywords via the fast model.
func (r *retrievalService) translateKeywords(ctx context.Context, transcript string) ([]string, error) {
	runes := []rune(transcript)
	if len(runes) > keywordQueryLimit {
		transcript = string(runes[:keywordQueryLimit])
	}

	prompt := fmt.Sprintf(`다음은 안전 컨설턴트의 현장 녹음 내용입니다. 산업안전보건 법규 검색에 쓸 표준 용어 키워드 3~5개로 변환하세요.

[녹음 내용]:
%s

[규칙]:
- 현장 구어체 표현을 법규에 쓰이는 표준 용어로 바꾸세요. (예: "허리 아프다" → "근골격계 부담작업")
- 다음 분야 용어는 검색 오류를 일으키므로 절대 포함하지 마세요: %s
- 키워드만 쉼표로 구분해 한 줄로 답하세요. 다른 설명은 쓰지 마세요.`,
		transcript, strings.Join(denyTerms, ", "))

	response, err := r.gemini.GenerateFastText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var keywords []string
	for _, part := range strings.FieldsFunc(response, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}

	return keywords, nil
}

// filterDenied drops documents containing a blacklisted off-topic term,
// unless that term genuinely appears among the extracted keywords.
func filterDenied(docs []RegulationDoc, keywords []string) []RegulationDoc {
	keywordText := strings.Join(keywords, " ")

	var kept []RegulationDoc
	for _, doc := range docs {
		denied := false
		for _, term := range denyTerms {
			if strings.Contains(doc.Text, term) && !strings.Contains(keywordText, term) {
				denied = true
				break
			}
		}
		if !denied {
			kept = append(kept, doc)
		}
	}

	return kept
}

func containsCriticalTerm(keyword string) bool {
	for _, term := range criticalTerms {
		if strings.Contains(keyword, term) {
			return true
		}
	}
	return false
}
