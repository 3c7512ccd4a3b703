package minutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// ErrEmptyCompletion is returned when the model produced no usable output.
var ErrEmptyCompletion = errors.New("minutes: empty completion")

// Summarizer turns transcript text into a structured minutes document.
type Summarizer interface {
	// SummarizeIncremental folds one new transcript segment into the
	// current minutes state and returns the updated full document.
	SummarizeIncremental(ctx context.Context, current Minutes, segment string) (Minutes, error)
	// SummarizeFinal produces the definitive minutes from the complete
	// transcript.
	SummarizeFinal(ctx context.Context, transcript, project, marketArea string) (Minutes, error)
}

const systemLive = "You are an incremental meeting-minutes updater. " +
	"Given current minutes(state) and a new segment, update only changed parts. " +
	"Keep dates/numbers/names verbatim; if missing, use 'TBD'. " +
	"Return a full minutes JSON matching the schema."

const systemFinal = "You are a meeting-minutes extractor for the full transcript. " +
	"Output full JSON matching the schema. No hallucination; verbatim dates/numbers/names."

// minutesSchema is embedded into the system prompt so the json_object
// response mode still produces the full document shape.
const minutesSchema = `{
  "type": "object",
  "properties": {
    "meta": {
      "type": "object",
      "properties": {
        "date": {"type": "string"},
        "time": {"type": "string"},
        "location": {"type": "string"},
        "attendees": {"type": "array", "items": {"type": "string"}},
        "project": {"type": "string"},
        "market_area": {"type": "string"}
      },
      "required": ["date", "time", "location", "attendees"]
    },
    "overall_summary": {"type": "string"},
    "topics": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "topic": {"type": "string"},
          "summary": {"type": "string"},
          "owner": {"type": "string"}
        },
        "required": ["topic", "summary"]
      }
    },
    "decisions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "decision": {"type": "string"},
          "rationale": {"type": "string"}
        },
        "required": ["decision"]
      }
    },
    "action_items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "owner": {"type": "string"},
          "task": {"type": "string"},
          "due": {"type": "string"},
          "status": {"type": "string", "enum": ["Open", "Blocked", "Done"]},
          "priority": {"type": "string", "enum": ["High", "Medium", "Low"]}
        },
        "required": ["owner", "task", "due", "status"]
      }
    },
    "next_topics": {"type": "array", "items": {"type": "string"}},
    "risks": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "risk": {"type": "string"},
          "mitigation": {"type": "string"}
        },
        "required": ["risk"]
      }
    },
    "dependencies": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["meta", "overall_summary", "topics", "decisions", "action_items", "next_topics"],
  "additionalProperties": false
}`

// OpenAISummarizer implements Summarizer on the OpenAI chat completions
// API with the json_object response format.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// NewOpenAISummarizer constructs a summarizer bound to one chat model.
func NewOpenAISummarizer(apiKey, model string) *OpenAISummarizer {
	return &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (s *OpenAISummarizer) SummarizeIncremental(ctx context.Context, current Minutes, segment string) (Minutes, error) {
	userPayload, err := json.Marshal(map[string]any{
		"state":       current,
		"new_segment": segment,
	})
	if err != nil {
		return Minutes{}, fmt.Errorf("minutes: encode summarizer input: %w", err)
	}
	return s.complete(ctx, systemLive, string(userPayload))
}

func (s *OpenAISummarizer) SummarizeFinal(ctx context.Context, transcript, project, marketArea string) (Minutes, error) {
	body := transcript
	if project != "" || marketArea != "" {
		hint, err := json.Marshal(map[string]string{
			"project":     project,
			"market_area": marketArea,
		})
		if err != nil {
			return Minutes{}, fmt.Errorf("minutes: encode meta hint: %w", err)
		}
		body = fmt.Sprintf("[META_HINT]%s\n%s", hint, transcript)
	}
	return s.complete(ctx, systemFinal, body)
}

func (s *OpenAISummarizer) complete(ctx context.Context, systemText, userText string) (Minutes, error) {
	system := fmt.Sprintf("%s\nReturn strictly a single JSON object only. "+
		"The object must follow this JSON Schema (do not include this text in output):\n%s",
		systemText, minutesSchema)

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(userText),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return Minutes{}, fmt.Errorf("minutes: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return Minutes{}, ErrEmptyCompletion
	}

	var doc Minutes
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &doc); err != nil {
		return Minutes{}, fmt.Errorf("minutes: decode completion: %w", err)
	}
	return doc, nil
}
