package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodedSets struct {
	Title string `json:"title"`
	Sets  []struct {
		Results []struct {
			TemplateItemID string  `json:"template_item_id"`
			ResultValue    *string `json:"result_value"`
		} `json:"results"`
	} `json:"sets"`
}

const wellFormedPayload = `{
  "title": "전기실 점검",
  "sets": [
    {"results": [{"template_item_id": "item-1", "result_value": "전선 피복 손상"}]},
    {"results": [{"template_item_id": "item-2", "result_value": null}]}
  ]
}`

func TestDecodeModelJSONFencedBlock(t *testing.T) {
	var out decodedSets
	err := DecodeModelJSON("분석 결과입니다.\n```json\n"+wellFormedPayload+"\n```\n끝.", &out)
	require.NoError(t, err)
	assert.Equal(t, "전기실 점검", out.Title)
	assert.Len(t, out.Sets, 2)
}

func TestDecodeModelJSONFencedBlockWithoutLanguageTag(t *testing.T) {
	var out decodedSets
	err := DecodeModelJSON("```\n"+wellFormedPayload+"\n```", &out)
	require.NoError(t, err)
	assert.Len(t, out.Sets, 2)
}

func TestDecodeModelJSONUnfencedWithProse(t *testing.T) {
	var out decodedSets
	err := DecodeModelJSON("요청하신 JSON은 다음과 같습니다:\n"+wellFormedPayload+"\n검증을 마쳤습니다.", &out)
	require.NoError(t, err)
	assert.Equal(t, "전기실 점검", out.Title)
	assert.Len(t, out.Sets, 2)
}

func TestDecodeModelJSONRepairsTruncation(t *testing.T) {
	// Cut mid-way through the second set: the decoder should keep the first
	// complete element and close the structure.
	truncated := `{
  "title": "전기실 점검",
  "sets": [
    {"results": [{"template_item_id": "item-1", "result_value": "전선 피복 손상"}]},
    {"results": [{"template_item_id": "it`

	var out decodedSets
	err := DecodeModelJSON(truncated, &out)
	require.NoError(t, err)
	assert.Equal(t, "전기실 점검", out.Title)
	require.Len(t, out.Sets, 1)
	require.Len(t, out.Sets[0].Results, 1)
	assert.Equal(t, "item-1", out.Sets[0].Results[0].TemplateItemID)
}

func TestDecodeModelJSONEquivalentAcrossWrappings(t *testing.T) {
	inputs := []string{
		"```json\n" + wellFormedPayload + "\n```",
		"서두 설명.\n" + wellFormedPayload,
		wellFormedPayload,
	}

	var reference decodedSets
	require.NoError(t, DecodeModelJSON(inputs[0], &reference))

	for _, input := range inputs[1:] {
		var out decodedSets
		require.NoError(t, DecodeModelJSON(input, &out))
		assert.Equal(t, reference, out)
	}
}

func TestDecodeModelJSONUnrecoverableTruncation(t *testing.T) {
	// No structurally complete element before the cut.
	var out decodedSets
	err := DecodeModelJSON(`{"title": "끊긴 응답 중간에`, &out)
	require.ErrorIs(t, err, ErrResponseTruncated)
}

func TestDecodeModelJSONNoJSONAtAll(t *testing.T) {
	var out decodedSets
	err := DecodeModelJSON("죄송합니다, 분석할 수 없습니다.", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrResponseTruncated)
}

func TestDecodeModelJSONUnclosedFence(t *testing.T) {
	// Token limit can cut the reply before the closing fence.
	truncated := "```json\n" + `{"title": "점검", "sets": [{"results": [{"template_item_id": "item-1", "result_value": "ok"}]}`

	var out decodedSets
	err := DecodeModelJSON(truncated, &out)
	require.NoError(t, err)
	assert.Equal(t, "점검", out.Title)
	require.Len(t, out.Sets, 1)
}

func TestDecodeModelJSONTopLevelArray(t *testing.T) {
	var out []map[string]string
	err := DecodeModelJSON(`[{"a": "1"}, {"b": "2"}]`, &out)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
