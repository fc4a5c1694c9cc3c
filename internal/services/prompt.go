package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"safecheck/field-assessment/internal/models"
)

// transcriptMaxRunes bounds the transcript portion of the extraction prompt.
const transcriptMaxRunes = 8000

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// modeDirective pairs the system framing with the mode-specific semantics of
// the three answer fields.
type modeDirective struct {
	Framing string
	Fields  string
}

var modeDirectives = map[models.AiType]modeDirective{
	models.TypeSafety: {
		Framing: `당신은 베테랑 산업안전 컨설턴트의 AI 비서입니다. 현장 녹음 대본에서 위험 요인을 찾아 평가 양식을 채웁니다.`,
		Fields: `- "result_value": 발견된 위험 요인의 분류와 구체적 상태
- "legal_basis": 해당 위험에 적용되는 법규의 구체적 조항. 반드시 "산업안전보건기준에 관한 규칙 제32조"처럼 특정 조문을 명시하세요. "관련 법규 검토 필요" 같은 모호한 표현은 절대 금지합니다.
- "solution": 현장에서 실행 가능한 구체적 개선 대책`,
	},
	models.TypeMeeting: {
		Framing: `당신은 안전보건 회의록을 정리하는 AI 서기입니다. 녹음 대본에서 논의 내용을 추출해 회의록 양식을 채웁니다.`,
		Fields: `- "result_value": 안건별 논의 내용 요약
- "legal_basis": 논의 중 언급된 특이사항이나 참석자 의견
- "solution": 결정된 조치 사항과 담당·기한`,
	},
	models.TypeInspection: {
		Framing: `당신은 설비 점검 보고서를 작성하는 AI 비서입니다. 녹음 대본에서 점검 결과를 추출해 점검표를 채웁니다.`,
		Fields: `- "result_value": 점검 대상의 현재 상태
- "legal_basis": 결함이 있다면 그 원인
- "solution": 필요한 수리·보수 조치`,
	},
}

var styleDirectives = map[models.ResponseStyle]string{
	models.StyleExpert:  `전문가 스타일: 번호를 매긴 간결한 항목, 전문 용어 사용, 명사형 종결. (예: "1. 중량물 인력 운반에 따른 요통 위험 상존")`,
	models.StyleGeneral: `일반 스타일: 누구나 이해할 수 있는 균형 잡힌 서술형 문장.`,
	models.StyleSummary: `요약 스타일: 핵심 키워드 중심의 글머리표(-) 항목만.`,
}

// citationRules encode the one-pick citation discipline for safety
// assessments: one highly specific article, two at most, chosen by hazard
// priority.
const citationRules = `[법규 인용 규칙]:
- 항목당 가장 구체적인 조항 1개만 인용하세요. 정말 필요한 경우에만 2개까지 허용됩니다. 관련 법규를 나열하지 마세요.
- 여러 위험이 겹치면 다음 우선순위로 하나를 고르세요: 근골격계 부담작업 > 중량물 취급 > 추락·전도 > 일반 안전조치.`

const contaminationRules = `[교차 오염 금지]:
- 대본이 여러 장소·대상을 다루면 각각을 별도의 세트(set)로 만드세요.
- 한 대상의 답변이 다른 대상의 세트에 섞이면 안 됩니다. 출력 전에 각 답변이 올바른 세트에 속하는지 스스로 검증하세요.

[유도 질문 주의]:
- 면담자가 제안만 하고 상대가 명확히 인정하지 않은 내용은 사실로 단정하지 마세요.`

// BuildExtractionPrompt assembles the structured-extraction prompt: mode
// framing, transcript, schema as an id→header mapping, legal context, style
// directive, and the output contract.
func (pb *PromptBuilder) BuildExtractionPrompt(
	transcript string,
	items []models.FlatItem,
	aiType models.AiType,
	style models.ResponseStyle,
	legalContext string,
) string {
	mode, ok := modeDirectives[aiType]
	if !ok {
		mode = modeDirectives[models.TypeSafety]
	}

	styleDirective, ok := styleDirectives[style]
	if !ok {
		styleDirective = styleDirectives[models.StyleExpert]
	}

	runes := []rune(transcript)
	if len(runes) > transcriptMaxRunes {
		transcript = string(runes[:transcriptMaxRunes])
	}

	schema, _ := json.MarshalIndent(items, "", "  ")

	extraRules := contaminationRules
	if aiType == models.TypeSafety {
		extraRules = citationRules + "\n\n" + contaminationRules
	}

	return fmt.Sprintf(`%s

[현장 녹음 대본]:
---
%s
---

[평가 양식] (id를 그대로 사용해 답하세요. 헤더 텍스트를 다시 쓰지 마세요):
%s

[참고 법규]:
%s

[답변 필드 의미]:
%s

[답변 스타일]:
%s

%s

[지시 사항]:
대본을 읽고 양식의 빈칸을 채우세요. 헤더를 직접 말하지 않아도 맥락을 추론하여 채워야 합니다.
대본에서 여러 위험 요인 세트를 발견하면 각각 별도 세트로 생성하세요.
답변을 찾을 수 없으면 해당 필드를 null로 두세요. 내용을 지어내지 마세요.
전체 내용을 요약한 짧은 제목도 함께 만드세요.

[출력 형식]:
반드시 아래 형식의 JSON 객체 하나만 응답하세요. 다른 설명은 절대 추가하지 마세요.
`+"```json"+`
{
  "title": "...",
  "sets": [
    {
      "results": [
        { "template_item_id": "...", "result_value": "...", "legal_basis": "...", "solution": "..." }
      ]
    }
  ]
}
`+"```",
		mode.Framing,
		transcript,
		string(schema),
		strings.TrimSpace(legalContext),
		mode.Fields,
		styleDirective,
		extraRules,
	)
}

// BuildStructuringPrompt is the vision prompt that infers a hierarchical
// column schema and a document-type classification from a scanned form.
func (pb *PromptBuilder) BuildStructuringPrompt() string {
	return `당신은 이 이미지에 있는 표(Table)의 구조를 분석하는 AI입니다.
표의 각 **컬럼 헤더(Column Header)**를 순서대로 정확하게 추출해야 합니다.

[중요]: 이미지가 90도 또는 180도 회전되어 있을 수 있습니다. 텍스트를 인식할 때 이 점을 반드시 고려하여, 회전된 상태에서도 표의 헤더를 정확히 읽어주세요.

[분석 목표]:
1.  **헤더 추출:** 헤더 셀은 내용 추측이 아니라 시각적 위치와 굵기로 판별하세요. 표의 헤더를 순서대로 추출합니다. (예: "no", "성함", "부서명", "공정명", "유해인자", "착용 보호구", "비고")
2.  **병합 헤더:** 여러 하위 컬럼을 묶는 병합(그룹) 헤더는 부모로 두고, 하위 컬럼을 'children' 배열로 표현하세요. (예: "위험성" 아래 "빈도", "강도")
3.  **기본값 추출:** '유해인자' 컬럼처럼 특정 컬럼에 "소음"처럼 이미 값이 채워져 있다면, 그 값을 'default_value'로 추출합니다. 값이 비어있다면 null로 설정합니다.
4.  **제외 대상:** 문서 제목, 결재·서명란, 페이지 번호는 컬럼이 아니므로 제외하세요.
5.  **문서 분류:** 문서 전체를 키워드와 레이아웃으로 판단해 "safety"(위험성평가·안전점검), "meeting"(회의록), "inspection"(설비점검) 중 하나로 분류하세요. 애매하면 "safety"로 하세요.

[출력 형식]:
반드시 아래와 같은 JSON 형식으로만 응답해 주세요. 다른 설명은 절대 추가하지 마세요.
` + "```json" + `
{
  "document_type": "safety",
  "columns": [
    { "header_name": "no", "default_value": null },
    { "header_name": "위험성", "default_value": null, "children": [
      { "header_name": "빈도", "default_value": null },
      { "header_name": "강도", "default_value": null }
    ]},
    { "header_name": "유해인자", "default_value": "소음" }
  ]
}
` + "```"
}
