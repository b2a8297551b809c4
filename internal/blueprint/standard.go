// backend-go/internal/blueprint/standard.go
package blueprint

import (
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// defaultMaxHorizon caps forecast methods of the standard catalog.
const defaultMaxHorizon = 36

func intPtr(v int) *int { return &v }

func param(def any, overridable bool, src domain.Source) domain.ParameterSpec {
	return domain.ParameterSpec{Default: def, Overridable: overridable, Source: src}
}

func required(def any, overridable bool, src domain.Source) domain.ParameterSpec {
	p := param(def, overridable, src)
	p.Required = true
	return p
}

// Standard returns a fresh copy of the built-in blueprint for kind.
func Standard(kind domain.Kind) (*domain.Blueprint, bool) {
	switch kind {
	case domain.KindForecast:
		return StandardForecast(), true
	case domain.KindReplenishment:
		return StandardReplenishment(), true
	}
	return nil, false
}

// StandardForecast is the built-in demand forecasting catalog.
func StandardForecast() *domain.Blueprint {
	periods := param(3, true, domain.SourcePolicy)
	return &domain.Blueprint{
		AgentType:     domain.KindForecast,
		DefaultMethod: "moving_average",
		Methods: []domain.MethodSpec{
			{
				Name:        "moving_average",
				Kind:        domain.KindForecast,
				Description: "Mean of the most recent window of sales, held flat over the horizon.",
				Tags:        []string{"statistical", "stable demand"},
				Aliases:     []string{"MA", "Moving Average"},
				Parameters: map[string]domain.ParameterSpec{
					"window":           param(4, true, domain.SourcePolicy),
					"forecast_periods": periods,
				},
				MaxHorizon: intPtr(defaultMaxHorizon),
				IsDefault:  true,
			},
			{
				Name:        "linear_regression",
				Kind:        domain.KindForecast,
				Description: "Least squares trend line over the full sales history.",
				Tags:        []string{"statistical", "trend"},
				Aliases:     []string{"Linear Regression", "trend"},
				Parameters: map[string]domain.ParameterSpec{
					"forecast_periods": periods,
				},
				MaxHorizon: intPtr(defaultMaxHorizon),
			},
			{
				Name:        "exponential_smoothing",
				Kind:        domain.KindForecast,
				Description: "Single exponential smoothing seeded with the first observation.",
				Tags:        []string{"statistical", "noisy demand"},
				Aliases:     []string{"Exponential Smoothing", "SES"},
				Parameters: map[string]domain.ParameterSpec{
					"alpha":            param(0.3, true, domain.SourcePolicy),
					"forecast_periods": periods,
				},
				MaxHorizon: intPtr(defaultMaxHorizon),
			},
			{
				Name:        "seasonal_decomposition",
				Kind:        domain.KindForecast,
				Description: "Sum of the last season mean and the previous season mean.",
				Tags:        []string{"statistical", "seasonal"},
				Aliases:     []string{"Seasonal Decomposition", "seasonal"},
				Parameters: map[string]domain.ParameterSpec{
					"period":           param(12, true, domain.SourcePolicy),
					"forecast_periods": periods,
				},
				MaxHorizon: intPtr(defaultMaxHorizon),
			},
			{
				Name:        "llm",
				Kind:        domain.KindForecast,
				Description: "Forecast delegated to a chat completion model over the trimmed sales history.",
				Tags:        []string{"external", "sparse data"},
				Aliases:     []string{"LLM", "ai"},
				Parameters: map[string]domain.ParameterSpec{
					"context_window":   param(8, true, domain.SourcePolicy),
					"model":            param("", true, domain.SourcePolicy),
					"forecast_periods": periods,
				},
				MaxHorizon: intPtr(12),
			},
			{
				Name:        "custom",
				Kind:        domain.KindForecast,
				Description: "Free text forecasting logic interpreted by a chat completion model.",
				Tags:        []string{"external"},
				Aliases:     []string{"Custom", "custom_logic"},
				Parameters: map[string]domain.ParameterSpec{
					"logic":            param("", true, domain.SourcePolicy),
					"model":            param("", true, domain.SourcePolicy),
					"forecast_periods": periods,
				},
				MaxHorizon: intPtr(12),
			},
		},
	}
}

// StandardReplenishment is the built-in replenishment catalog.
func StandardReplenishment() *domain.Blueprint {
	return &domain.Blueprint{
		AgentType:     domain.KindReplenishment,
		DefaultMethod: "MinMax",
		Methods: []domain.MethodSpec{
			{
				Name:        "MinMax",
				Kind:        domain.KindReplenishment,
				Description: "Order up to the max level whenever stock falls below the min level.",
				Aliases:     []string{"Min-Max", "Min/Max"},
				Parameters: map[string]domain.ParameterSpec{
					"inventory":             required(nil, false, domain.SourceInventory),
					"min_level":             param(50, true, domain.SourcePolicy),
					"max_level":             param(200, true, domain.SourcePolicy),
					"lead_time":             param(7, true, domain.SourcePolicy),
					"lead_time_offset_days": param(0, true, domain.SourcePolicy),
				},
				TriggerCondition: "inventory < min_level",
				ActionExpression: "order_quantity = max_level - inventory",
				IsDefault:        true,
				Customizable:     []string{domain.FieldTriggerCondition, domain.FieldActionLogic, domain.FieldParameters},
			},
			{
				Name:        "ROP",
				Kind:        domain.KindReplenishment,
				Description: "Reorder point from average daily demand over the lead time plus safety stock.",
				Aliases:     []string{"ROP (Reorder Point)", "Reorder Point"},
				Parameters: map[string]domain.ParameterSpec{
					"inventory":             required(nil, false, domain.SourceInventory),
					"avg_daily_demand":      param(10, true, domain.SourceUsage),
					"lead_time":             param(7, true, domain.SourcePolicy),
					"safety_stock":          param(20, true, domain.SourcePolicy),
					"lead_time_offset_days": param(0, true, domain.SourcePolicy),
				},
				TriggerCondition: "inventory < ROP",
				ActionExpression: "ROP = avg_daily_demand * lead_time + safety_stock; order_quantity = ROP - inventory",
				Customizable:     []string{domain.FieldTriggerCondition, domain.FieldActionLogic, domain.FieldParameters},
			},
			{
				Name:        "EOQ",
				Kind:        domain.KindReplenishment,
				Description: "Economic order quantity placed when stock drops below the reorder threshold.",
				Aliases:     []string{"EOQ (Economic Order Quantity)", "Economic Order Quantity"},
				Parameters: map[string]domain.ParameterSpec{
					"inventory":             required(nil, false, domain.SourceInventory),
					"demand_rate":           param(500, true, domain.SourceForecast),
					"order_cost":            param(100, true, domain.SourceFinance),
					"holding_cost":          param(2, true, domain.SourceFinance),
					"reorder_threshold":     param(50, true, domain.SourcePolicy),
					"lead_time":             param(7, true, domain.SourcePolicy),
					"lead_time_offset_days": param(0, true, domain.SourcePolicy),
				},
				TriggerCondition: "inventory < reorder_threshold",
				ActionExpression: "EOQ = sqrt((2 * demand_rate * order_cost) / holding_cost); order_quantity = EOQ",
				Customizable:     []string{domain.FieldParameters},
			},
			{
				Name:        "Consumption-Based",
				Kind:        domain.KindReplenishment,
				Description: "Cover recent daily usage over the lead time plus buffer days.",
				Aliases:     []string{"Consumption Based", "consumption"},
				Parameters: map[string]domain.ParameterSpec{
					"inventory":             required(nil, false, domain.SourceInventory),
					"past_30_day_usage":     param(300, true, domain.SourceUsage),
					"lead_time":             param(5, true, domain.SourcePolicy),
					"buffer_days":           param(2, true, domain.SourcePolicy),
					"lead_time_offset_days": param(0, true, domain.SourcePolicy),
				},
				TriggerCondition: "inventory < (past_30_day_usage / 30) * lead_time",
				ActionExpression: "order_quantity = ((past_30_day_usage / 30) * (lead_time + buffer_days)) - inventory",
				Customizable:     []string{domain.FieldTriggerCondition, domain.FieldParameters},
			},
			{
				Name:        "Fixed-Interval",
				Kind:        domain.KindReplenishment,
				Description: "Top up to the forecast demand on every review interval.",
				Aliases:     []string{"Fixed Interval", "Periodic Review"},
				Parameters: map[string]domain.ParameterSpec{
					"inventory":             required(nil, false, domain.SourceInventory),
					"forecast_demand":       param(100, true, domain.SourceForecast),
					"interval_days":         param(7, true, domain.SourcePolicy),
					"lead_time":             param(7, true, domain.SourcePolicy),
					"lead_time_offset_days": param(0, true, domain.SourcePolicy),
				},
				TriggerCondition: "interval_days > 0",
				ActionExpression: "order_quantity = forecast_demand - inventory",
				Customizable:     []string{domain.FieldParameters},
			},
		},
	}
}
