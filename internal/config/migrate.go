package config

import (
	"fmt"

	"vigil/internal/logger"
)

// migrateDeprecatedKeys 将旧配置键透明迁移到当前键名。迁移只告警、不失败，
// 保证跨配置 schema 版本的向后兼容；新键显式设置时旧键被忽略。
func (c *Config) migrateDeprecatedKeys(keys keySet) {
	if c == nil {
		return
	}
	if keys.isSet("risk_exposure.liq_cascade_price_drop") && !keys.isSet("risk_exposure.liquidation_price_drop_1h") {
		c.Risk.LiquidationPriceDrop1h = c.Risk.LegacyLiqCascadePriceDrop
		keys.mark("risk_exposure.liquidation_price_drop_1h")
		warnDeprecated("risk_exposure.liq_cascade_price_drop", "risk_exposure.liquidation_price_drop_1h")
	}
	if keys.isSet("risk_exposure.liq_cascade_oi_drop") && !keys.isSet("risk_exposure.liquidation_oi_drop_1h") {
		c.Risk.LiquidationOIDrop1h = c.Risk.LegacyLiqCascadeOIDrop
		keys.mark("risk_exposure.liquidation_oi_drop_1h")
		warnDeprecated("risk_exposure.liq_cascade_oi_drop", "risk_exposure.liquidation_oi_drop_1h")
	}
	if keys.isSet("trade_quality.low_volume_ratio") && !keys.isSet("trade_quality.absorption_volume_ratio") {
		c.Quality.AbsorptionVolumeRatio = c.Quality.LegacyLowVolumeRatio
		keys.mark("trade_quality.absorption_volume_ratio")
		warnDeprecated("trade_quality.low_volume_ratio", "trade_quality.absorption_volume_ratio")
	}
	if keys.isSet("executable_control.min_confidence") && !keys.isSet("executable_control.reduced_min_confidence") {
		c.Executable.ReducedMinConfidence = c.Executable.LegacyMinConfidence
		keys.mark("executable_control.reduced_min_confidence")
		warnDeprecated("executable_control.min_confidence", "executable_control.reduced_min_confidence")
	}
	c.Frequency.Short.migrateCooldownMinutes(keys, "frequency_control.short")
	c.Frequency.Medium.migrateCooldownMinutes(keys, "frequency_control.medium")
}

func (w *FrequencyWindowConfig) migrateCooldownMinutes(keys keySet, prefix string) {
	if w == nil {
		return
	}
	oldKey := prefix + ".cooldown_minutes"
	newKey := prefix + ".cooldown"
	if keys.isSet(oldKey) && !keys.isSet(newKey) && w.LegacyCooldownMinutes > 0 {
		w.Cooldown = fmt.Sprintf("%dm", w.LegacyCooldownMinutes)
		keys.mark(newKey)
		warnDeprecated(oldKey, newKey)
	}
}

func warnDeprecated(oldKey, newKey string) {
	logger.Warnf("配置键 %s 已废弃，请改用 %s（本次已自动迁移）", oldKey, newKey)
}
