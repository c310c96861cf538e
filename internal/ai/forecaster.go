// Package ai asks an OpenAI model for demand forecasts. The model only sees a summary of
// sale history and current stock; its answer seeds reorder suggestions and nothing else.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
)

const (
	historyWeeks = 12
	pageSize     = 1000
	source       = "openai"
)

// responder is the slice of the OpenAI client the forecaster calls.
type responder interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

type Forecaster struct {
	client responder
	store  core.Querier
	model  string
	log    *zap.Logger
	now    func() time.Time
}

var _ core.Forecaster = (*Forecaster)(nil)

func NewForecaster(apiKey, model string, store core.Querier, log *zap.Logger) *Forecaster {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4oMini)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Forecaster{
		client: &client.Responses,
		store:  store,
		model:  model,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// reply is the structured output the model must produce. Quantities are decimal strings.
type reply struct {
	PredictedDemand     string  `json:"predicted_demand" jsonschema:"description=Units expected to sell during the period as a decimal string"`
	RecommendedOrderQty string  `json:"recommended_order_qty" jsonschema:"description=Units to purchase now as a decimal string; 0 if stock covers demand"`
	Confidence          float64 `json:"confidence" jsonschema:"description=Confidence between 0.0 and 1.0"`
	Reasoning           string  `json:"reasoning"`
}

func (f *Forecaster) Forecast(ctx context.Context, productID uuid.UUID, periodDays int) (core.Forecast, error) {
	if periodDays <= 0 {
		return core.Forecast{}, fmt.Errorf("period_days must be positive, got %d", periodDays)
	}
	weekly, err := f.weeklySales(ctx, productID)
	if err != nil {
		return core.Forecast{}, err
	}
	items, err := f.store.StockItems(ctx, core.StockFilter{ProductID: &productID})
	if err != nil {
		return core.Forecast{}, fmt.Errorf("failed to read stock: %w", err)
	}
	onHand, available := decimal.Zero, decimal.Zero
	for _, it := range items {
		onHand = onHand.Add(it.Qty)
		available = available.Add(it.AvailableQty)
	}

	schemaMap, err := schema()
	if err != nil {
		return core.Forecast{}, err
	}
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(f.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(buildPrompt(productID, periodDays, weekly, onHand, available)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "demand_forecast",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A demand forecast and purchase recommendation for one product"),
				},
			},
		},
	}

	resp, err := f.client.New(ctx, params)
	if err != nil {
		return core.Forecast{}, fmt.Errorf("openai responses error: %w", err)
	}
	fc, err := parseReply(resp.OutputText())
	if err != nil {
		return core.Forecast{}, err
	}
	f.log.Debug("forecast received",
		zap.String("product_id", productID.String()),
		zap.String("predicted", fc.PredictedDemand.String()),
		zap.Float64("confidence", fc.Confidence))
	return fc, nil
}

// weeklySales buckets sale quantity into the last historyWeeks weeks, oldest first.
func (f *Forecaster) weeklySales(ctx context.Context, productID uuid.UUID) ([]decimal.Decimal, error) {
	now := f.now()
	since := now.Add(-historyWeeks * 7 * 24 * time.Hour)
	weeks := make([]decimal.Decimal, historyWeeks)

	filter := core.MoveFilter{ProductID: productID, Limit: pageSize}
	for {
		page, err := f.store.Moves(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to read movement log: %w", err)
		}
		for _, m := range page {
			if m.Reason != core.ReasonSale || m.CreatedAt.Before(since) || m.CreatedAt.After(now) {
				continue
			}
			i := int(m.CreatedAt.Sub(since) / (7 * 24 * time.Hour))
			if i >= historyWeeks {
				i = historyWeeks - 1
			}
			weeks[i] = weeks[i].Add(m.Qty)
		}
		if len(page) < pageSize {
			break
		}
		filter.AfterSeq = page[len(page)-1].Seq
	}
	return weeks, nil
}

func buildPrompt(productID uuid.UUID, periodDays int, weekly []decimal.Decimal, onHand, available decimal.Decimal) string {
	hist := make([]string, len(weekly))
	for i, w := range weekly {
		hist[i] = w.String()
	}
	return fmt.Sprintf(`You are an inventory planner.
Forecast how many units of one product will sell in the next %d days and how many should be purchased now.
Rules:
1. Base the forecast only on the sales history below.
2. Quantities must be non-negative decimal strings (e.g. "12.5").
3. The recommended order quantity should cover predicted demand minus available stock.
4. Provide a confidence score (0.0-1.0).
5. Explain your reasoning briefly.

Product: %s
On hand: %s
Available (not reserved): %s
Units sold per week, oldest first (%d weeks): %s`,
		periodDays, productID, onHand, available, len(weekly), strings.Join(hist, ", "))
}

func parseReply(content string) (core.Forecast, error) {
	if content == "" {
		return core.Forecast{}, fmt.Errorf("empty response content")
	}
	var r reply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return core.Forecast{}, fmt.Errorf("failed to parse completion: %w", err)
	}
	predicted, err := decimal.NewFromString(strings.TrimSpace(r.PredictedDemand))
	if err != nil {
		return core.Forecast{}, fmt.Errorf("invalid predicted_demand %q: %w", r.PredictedDemand, err)
	}
	recommended, err := decimal.NewFromString(strings.TrimSpace(r.RecommendedOrderQty))
	if err != nil {
		return core.Forecast{}, fmt.Errorf("invalid recommended_order_qty %q: %w", r.RecommendedOrderQty, err)
	}
	if predicted.IsNegative() || recommended.IsNegative() {
		return core.Forecast{}, fmt.Errorf("forecast quantities cannot be negative")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return core.Forecast{}, fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	return core.Forecast{
		PredictedDemand:     predicted,
		RecommendedOrderQty: recommended,
		Confidence:          r.Confidence,
		Source:              source,
	}, nil
}

func schema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(reply{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
