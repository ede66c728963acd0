package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/finradar/finradar/internal/logging"
	"github.com/finradar/finradar/internal/models"
)

const extractToolName = "report_extraction"

const systemPrompt = `You extract structured financial entities from Russian
and English news items. For every numbered item in the user message, call the
report_extraction tool once, in the same order. Report companies with ticker
hints when you are certain, people with positions, market mentions, financial
metrics, event type tags from the allowed vocabulary, language, urgency and
an overall confidence between 0 and 1. If an item contains nothing of
interest, still call the tool with empty lists and confidence 0.`

// extractionSchema is the tool input schema the model fills per record.
var extractionSchema = map[string]interface{}{
	"item_index": map[string]interface{}{
		"type":        "integer",
		"description": "zero-based index of the news item this extraction belongs to",
	},
	"people": map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "object"},
	},
	"companies": map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "object"},
	},
	"markets": map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "object"},
	},
	"financial_metrics": map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "object"},
	},
	"event_types": map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	},
	"is_advertisement": map[string]interface{}{"type": "boolean"},
	"language":         map[string]interface{}{"type": "string"},
	"urgency":          map[string]interface{}{"type": "string"},
	"confidence":       map[string]interface{}{"type": "number"},
}

// RemoteConfig tunes the Anthropic-backed client.
type RemoteConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// RemoteClient extracts entities through the Anthropic Messages API using a
// forced tool call per record.
type RemoteClient struct {
	client anthropic.Client
	cfg    RemoteConfig
	logger *logging.Logger
}

// NewRemoteClient builds the remote extraction client.
func NewRemoteClient(cfg RemoteConfig) (*RemoteClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrFatal)
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	return &RemoteClient{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
		logger: logging.GetLogger("extraction.remote"),
	}, nil
}

// Name implements Client.
func (c *RemoteClient) Name() string { return "remote" }

// ExtractBatch sends the whole chunk as one message and maps tool calls
// back to inputs by item index.
func (c *RemoteClient) ExtractBatch(ctx context.Context, inputs []Input) ([]models.Extraction, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, in := range inputs {
		fmt.Fprintf(&sb, "### Item %d (source: %s, published: %s)\n%s\n\n",
			i, in.SourceName, in.Timestamp.Format("2006-01-02 15:04"), in.Text)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        extractToolName,
				Description: anthropic.String("Report the structured extraction for one news item"),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: extractionSchema,
					Required:   []string{"item_index", "confidence"},
				},
			},
		}},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAPIError(err)
	}

	// One empty slot per input; tool calls fill them in.
	out := make([]models.Extraction, len(inputs))
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type != "tool_use" || block.Name != extractToolName {
			continue
		}
		var payload struct {
			ItemIndex int `json:"item_index"`
			models.Extraction
		}
		if err := json.Unmarshal(block.Input, &payload); err != nil {
			c.logger.Warn("unparseable tool payload: %v", err)
			continue
		}
		if payload.ItemIndex < 0 || payload.ItemIndex >= len(inputs) {
			c.logger.Warn("tool payload references item %d outside batch of %d", payload.ItemIndex, len(inputs))
			continue
		}
		out[payload.ItemIndex] = payload.Extraction
	}
	return out, nil
}

// classifyAPIError divides API failures into transient and fatal kinds.
func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Network-level failures are transient.
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	switch apiErr.StatusCode {
	case 401, 403:
		return fmt.Errorf("%w: authentication rejected: %v", ErrFatal, err)
	case 429, 500, 502, 503, 504, 529:
		return fmt.Errorf("%w: %v", ErrTransient, err)
	default:
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}
}
