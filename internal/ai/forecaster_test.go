package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/memstore"
)

type fakeResponder struct {
	text string
	err  error
	got  responses.ResponseNewParams
}

func (f *fakeResponder) New(_ context.Context, body responses.ResponseNewParams, _ ...option.RequestOption) (*responses.Response, error) {
	f.got = body
	if f.err != nil {
		return nil, f.err
	}
	raw, err := json.Marshal(map[string]any{
		"id":     "resp_test",
		"object": "response",
		"output": []any{map[string]any{
			"type":   "message",
			"id":     "msg_test",
			"role":   "assistant",
			"status": "completed",
			"content": []any{map[string]any{
				"type":        "output_text",
				"text":        f.text,
				"annotations": []any{},
			}},
		}},
	})
	if err != nil {
		return nil, err
	}
	var resp responses.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", `{"predicted_demand":"12.5","recommended_order_qty":"4","confidence":0.8,"reasoning":"steady"}`, false},
		{"empty", ``, true},
		{"not json", `twelve`, true},
		{"bad decimal", `{"predicted_demand":"a lot","recommended_order_qty":"4","confidence":0.5}`, true},
		{"negative", `{"predicted_demand":"-1","recommended_order_qty":"0","confidence":0.5}`, true},
		{"confidence above one", `{"predicted_demand":"1","recommended_order_qty":"0","confidence":1.5}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := parseReply(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("12.5").Equal(fc.PredictedDemand))
			assert.True(t, decimal.NewFromInt(4).Equal(fc.RecommendedOrderQty))
			assert.Equal(t, 0.8, fc.Confidence)
			assert.Equal(t, "openai", fc.Source)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	id := uuid.New()
	weekly := []decimal.Decimal{decimal.NewFromInt(3), decimal.Zero, decimal.RequireFromString("2.5")}
	p := buildPrompt(id, 30, weekly, decimal.NewFromInt(9), decimal.NewFromInt(7))

	assert.Contains(t, p, "next 30 days")
	assert.Contains(t, p, id.String())
	assert.Contains(t, p, "On hand: 9")
	assert.Contains(t, p, "Available (not reserved): 7")
	assert.Contains(t, p, "(3 weeks): 3, 0, 2.5")
}

func TestSchema_ListsReplyFields(t *testing.T) {
	s, err := schema()
	require.NoError(t, err)
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok, "schema has properties")
	for _, k := range []string{"predicted_demand", "recommended_order_qty", "confidence", "reasoning"} {
		assert.Contains(t, props, k)
	}
	assert.Equal(t, false, s["additionalProperties"])
}

func TestForecaster_BucketsSalesAndParsesReply(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := memstore.New(0)
	product := uuid.New()
	loc := uuid.New()
	require.NoError(t, store.InTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		for _, m := range []core.StockMove{
			{Qty: decimal.NewFromInt(5), Reason: core.ReasonSale, CreatedAt: now.Add(-24 * time.Hour)},
			{Qty: decimal.NewFromInt(2), Reason: core.ReasonSale, CreatedAt: now.Add(-48 * time.Hour)},
			{Qty: decimal.NewFromInt(8), Reason: core.ReasonSale, CreatedAt: now.Add(-80 * 24 * time.Hour)},
			{Qty: decimal.NewFromInt(1), Reason: core.ReasonSale, CreatedAt: now.Add(-200 * 24 * time.Hour)},
		} {
			m.ID = uuid.New()
			m.ProductID = product
			m.FromLocationID = &loc
			if err := tx.AppendMove(ctx, &m); err != nil {
				return err
			}
		}
		return nil
	}))

	fake := &fakeResponder{text: `{"predicted_demand":"20","recommended_order_qty":"20","confidence":0.6,"reasoning":"recent uptick"}`}
	f := &Forecaster{client: fake, store: store, model: "gpt-test", log: zap.NewNop(), now: func() time.Time { return now }}

	weekly, err := f.weeklySales(context.Background(), product)
	require.NoError(t, err)
	require.Len(t, weekly, historyWeeks)
	assert.Equal(t, "7", weekly[historyWeeks-1].String())
	assert.Equal(t, "8", weekly[0].String())
	total := decimal.Zero
	for _, w := range weekly {
		total = total.Add(w)
	}
	assert.Equal(t, "15", total.String(), "sales older than the history are ignored")

	fc, err := f.Forecast(context.Background(), product, 14)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(fc.PredictedDemand))
	assert.Equal(t, "openai", fc.Source)
	assert.Equal(t, "gpt-test", string(fake.got.Model))
	require.NotNil(t, fake.got.Text.Format.OfJSONSchema)
	assert.Equal(t, "demand_forecast", fake.got.Text.Format.OfJSONSchema.Name)
	assert.Contains(t, fake.got.Input.OfString.Value, "next 14 days")
}

func TestForecaster_WrapsClientError(t *testing.T) {
	fake := &fakeResponder{err: errors.New("rate limited")}
	f := &Forecaster{client: fake, store: memstore.New(0), model: "m", log: zap.NewNop(), now: time.Now}

	_, err := f.Forecast(context.Background(), uuid.New(), 7)
	require.ErrorIs(t, err, fake.err)
	assert.Contains(t, err.Error(), "openai responses error")

	_, err = f.Forecast(context.Background(), uuid.New(), -1)
	require.Error(t, err)
	assert.Equal(t, fmt.Sprintf("period_days must be positive, got %d", -1), err.Error())
}
