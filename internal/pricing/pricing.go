package pricing

import (
	"math"

	"tokescope/internal/config"
)

// Price 单个模型每 100 万 token 的美元单价
type Price struct {
	Input  float64
	Output float64
}

// Table 模型定价表，按模型名精确匹配，未命中时使用兜底单价
type Table struct {
	models        map[string]Price
	defaultInput  float64
	defaultOutput float64
}

// 内置定价（可被配置覆盖/扩展）
var builtinPrices = map[string]Price{
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"gpt-4o":      {Input: 5.00, Output: 15.00},
}

// NewTable 构建定价表：内置定价 + 配置覆盖
func NewTable(cfg *config.PricingConfig) *Table {
	t := &Table{
		models:        make(map[string]Price, len(builtinPrices)),
		defaultInput:  1.00,
		defaultOutput: 2.00,
	}
	for model, p := range builtinPrices {
		t.models[model] = p
	}

	if cfg != nil {
		if cfg.DefaultInput > 0 {
			t.defaultInput = cfg.DefaultInput
		}
		if cfg.DefaultOutput > 0 {
			t.defaultOutput = cfg.DefaultOutput
		}
		for model, p := range cfg.Models {
			t.models[model] = Price{Input: p.Input, Output: p.Output}
		}
	}

	return t
}

// Lookup 查询模型单价，未知模型返回兜底单价
// 兜底是有意为之：未收录的模型也要给出成本估算，而不是拒绝入库
func (t *Table) Lookup(model string) Price {
	if p, ok := t.models[model]; ok {
		return p
	}
	return Price{Input: t.defaultInput, Output: t.defaultOutput}
}

// EstimateCostUSD 按 token 用量估算成本（美元）
// cost = prompt/1M * input + completion/1M * output
func (t *Table) EstimateCostUSD(model string, promptTokens, completionTokens int) float64 {
	p := t.Lookup(model)
	return float64(promptTokens)/1_000_000*p.Input + float64(completionTokens)/1_000_000*p.Output
}

// Round6 金额统一保留 6 位小数，保证报表数值稳定
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Round2 延迟均值保留 2 位小数
func Round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}
