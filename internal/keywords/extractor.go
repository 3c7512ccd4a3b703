package keywords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"
)

// ErrEmptyCompletion is returned when the model produced no usable output.
var ErrEmptyCompletion = errors.New("keywords: empty completion")

// Extraction is the keyword set extracted from one text: free-form entities
// and intents from the model, metrics and api_hints strictly from the
// whitelist.
type Extraction struct {
	Entities []string `json:"entities"`
	Metrics  []string `json:"metrics"`
	Intents  []string `json:"intents"`
	APIHints []string `json:"api_hints"`
}

// EntityDetector names locations, industries, and intents found in raw
// meeting text. Its metric output is never trusted; metrics come from the
// whitelist only.
type EntityDetector interface {
	DetectEntities(ctx context.Context, text string) (entities, intents []string, err error)
}

const detectorSystem = "You are a keyword detector for a Korean startup workspace. " +
	"Extract:\n" +
	"1) entities: locations, industries, brand/product names\n" +
	"2) metrics: business metrics (e.g., 임대료, 매출, 유동인구, 공실률, 상권지수)\n" +
	"3) intents: user intents like '원룸 임대료 비교', '신촌 카페 창업', '상권 데이터 확인'\n" +
	"Return strict JSON: {\"entities\":[], \"metrics\":[], \"intents\":[]}"

// OpenAIDetector implements EntityDetector on the OpenAI chat completions
// API with the json_object response format.
type OpenAIDetector struct {
	client openai.Client
	model  string
}

// NewOpenAIDetector constructs a detector bound to one chat model.
func NewOpenAIDetector(apiKey, model string) *OpenAIDetector {
	return &OpenAIDetector{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (d *OpenAIDetector) DetectEntities(ctx context.Context, text string) ([]string, []string, error) {
	completion, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(d.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(detectorSystem),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("keywords: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, nil, ErrEmptyCompletion
	}

	var parsed struct {
		Entities []string `json:"entities"`
		Intents  []string `json:"intents"`
	}
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &parsed); err != nil {
		return nil, nil, fmt.Errorf("keywords: decode completion: %w", err)
	}
	return parsed.Entities, parsed.Intents, nil
}

// extract runs the detector and folds in the rule dictionaries. A failing
// detector degrades to rule-only output; the whitelist metrics survive
// either way.
func extract(ctx context.Context, detector EntityDetector, logger *zap.Logger, text string) Extraction {
	var entities, intents []string
	if detector != nil {
		detected, detectedIntents, err := detector.DetectEntities(ctx, text)
		if err != nil {
			logger.Warn("entity detection failed, falling back to rules", zap.Error(err))
		} else {
			entities = detected
			intents = detectedIntents
		}
	}

	entities = append(entities, ruleEntities(text)...)
	entities = sortedUnique(entities)
	intents = sortedUnique(intents)

	metrics, apiHints := MetricsFromText(text)
	return Extraction{
		Entities: entities,
		Metrics:  metrics,
		Intents:  intents,
		APIHints: apiHints,
	}
}

func sortedUnique(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
