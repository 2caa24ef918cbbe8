package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// 配置文档的结构契约：必需节缺失直接中止启动。
// 数值级别的校准检查在 validation.go，这里只管结构。
const documentSchema = `{
  "type": "object",
  "required": [
    "symbol_universe",
    "market_regime",
    "risk_exposure",
    "trade_quality",
    "direction",
    "confidence_scoring",
    "reason_tag_rules",
    "executable_control"
  ],
  "properties": {
    "symbol_universe": {
      "type": "object",
      "required": ["symbols"],
      "properties": {
        "symbols": {"type": "array", "items": {"type": "string"}, "minItems": 1}
      }
    },
    "market_regime":   {"type": "object"},
    "risk_exposure":   {"type": "object"},
    "trade_quality":   {"type": "object"},
    "direction":       {"type": "object"},
    "confidence_scoring": {"type": "object"},
    "reason_tag_rules": {"type": "object"},
    "executable_control": {"type": "object"},
    "auxiliary_tags":  {"type": "object"},
    "multi_timeframe": {"type": "object"},
    "frequency_control": {"type": "object"},
    "dual_timeframe_control": {"type": "object"}
  }
}`

var compiledDocumentSchema = jsonschema.MustCompileString("thresholds.schema.json", documentSchema)

// validateDocumentSchema 对合并后的原始配置做结构校验。
func validateDocumentSchema(settings map[string]any) error {
	// jsonschema 按 JSON 值域校验，经一次 JSON 往返消除 viper 的中间类型。
	buf, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config for schema check failed: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return fmt.Errorf("unmarshaling config for schema check failed: %w", err)
	}
	if err := compiledDocumentSchema.Validate(doc); err != nil {
		return &ValidationError{
			Section: "document",
			Reason:  strings.TrimSpace(err.Error()),
		}
	}
	return nil
}
