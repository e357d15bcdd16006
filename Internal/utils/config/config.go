package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Scanner struct {
		Symbols              []string `yaml:"symbols"`
		Timeframe            string   `yaml:"timeframe"`
		TickIntervalSeconds  int      `yaml:"tick_interval_seconds"`
		CandleLimit          int      `yaml:"candle_limit"`
		MaxConsecutiveErrors int      `yaml:"max_consecutive_errors"`
		ReloadIntervalSecs   int      `yaml:"reload_interval_seconds"`
		// cross-asset reference for the order-flow hint; empty disables it
		CrossRefSymbol string `yaml:"cross_ref_symbol"`
	} `yaml:"scanner"`

	Limits struct {
		MaxTradesPerHour      int `yaml:"max_trades_per_hour"`
		MaxTradesPerDay       int `yaml:"max_trades_per_day"`
		MaxPositionsPerSymbol int `yaml:"max_positions_per_symbol"`
		MaxTotalPositions     int `yaml:"max_total_positions"`
	} `yaml:"limits"`

	Sessions struct {
		Allowed        []string `yaml:"allowed"`         // empty = allow all
		NewsCategories []string `yaml:"news_categories"` // blackout categories to honor
	} `yaml:"sessions"`

	Regimes map[string]RegimeConfig `yaml:"regimes"`

	Strategies map[string]StrategyConfig `yaml:"strategies"`

	Tolerance ToleranceConfig `yaml:"tolerance"`
}

type RegimeConfig struct {
	DetectionThreshold float64 `yaml:"detection_threshold"` // min confidence to classify
	RoutingThreshold   float64 `yaml:"routing_threshold"`   // min confidence to route to the matching checker
}

type StrategyConfig struct {
	ConfluenceWeights map[string]float64 `yaml:"confluence_weights"`
	MinScoreForTrade  float64            `yaml:"min_score_for_trade"`
	MinScoreForAPlus  float64            `yaml:"min_score_for_aplus"`
}

// ToleranceConfig is the single source of truth for every per-symbol
// tolerance constant. The base calculator and the adaptive layer both read
// from here; the constants are never duplicated elsewhere.
type ToleranceConfig struct {
	SmoothingAlpha float64                    `yaml:"smoothing_alpha"`
	Defaults       ToleranceParams            `yaml:"defaults"`
	Symbols        map[string]ToleranceParams `yaml:"symbols"`
}

type ToleranceParams struct {
	ATRMultiplier       float64 `yaml:"atr_multiplier"`        // base tolerance = ATR x this
	MinTolerance        float64 `yaml:"min_tolerance"`         // clamp floor for the base value
	MaxTolerance        float64 `yaml:"max_tolerance"`         // absolute ceiling
	KillSwitchThreshold float64 `yaml:"kill_switch_threshold"` // smoothed sigma above this blocks execution
	ATRRescaleMult      float64 `yaml:"atr_rescale_multiplier"`
	ATRRescaleCap       float64 `yaml:"atr_rescale_cap"` // cap as a multiple of base tolerance
}

// Params returns the tolerance constants for a symbol, falling back to the
// class defaults for any zero-valued override field.
func (tc ToleranceConfig) Params(symbol string) ToleranceParams {
	p := tc.Defaults
	override, ok := tc.Symbols[symbol]
	if !ok {
		return p
	}
	if override.ATRMultiplier > 0 {
		p.ATRMultiplier = override.ATRMultiplier
	}
	if override.MinTolerance > 0 {
		p.MinTolerance = override.MinTolerance
	}
	if override.MaxTolerance > 0 {
		p.MaxTolerance = override.MaxTolerance
	}
	if override.KillSwitchThreshold > 0 {
		p.KillSwitchThreshold = override.KillSwitchThreshold
	}
	if override.ATRRescaleMult > 0 {
		p.ATRRescaleMult = override.ATRRescaleMult
	}
	if override.ATRRescaleCap > 0 {
		p.ATRRescaleCap = override.ATRRescaleCap
	}
	return p
}

// DefaultConfig returns the shipped defaults. Tolerance defaults are tuned
// per instrument class: FX majors get the strictest kill-switch (most
// liquid), volatile commodities like XAUUSD sit in the middle, crypto gets
// the loosest threshold since elevated deviation is its normal state.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Scanner.Symbols = []string{"EURUSD", "XAUUSD", "BTCUSD"}
	cfg.Scanner.Timeframe = "5Min"
	cfg.Scanner.TickIntervalSeconds = 5
	cfg.Scanner.CandleLimit = 100
	cfg.Scanner.MaxConsecutiveErrors = 10
	cfg.Scanner.ReloadIntervalSecs = 30

	cfg.Limits.MaxTradesPerHour = 3
	cfg.Limits.MaxTradesPerDay = 12
	cfg.Limits.MaxPositionsPerSymbol = 2
	cfg.Limits.MaxTotalPositions = 5

	cfg.Regimes = map[string]RegimeConfig{
		"VWAP_REVERSION": {DetectionThreshold: 60, RoutingThreshold: 65},
		"RANGE":          {DetectionThreshold: 50, RoutingThreshold: 55},
		"BALANCED_ZONE":  {DetectionThreshold: 55, RoutingThreshold: 60},
	}

	cfg.Strategies = map[string]StrategyConfig{
		"vwap_reversion": {
			ConfluenceWeights: map[string]float64{
				"structure_shift": 3.0,
				"liquidity_sweep": 2.5,
				"volume_spike":    1.5,
				"absorption_wick": 1.5,
				"vwap_distance":   2.0,
				"flow_alignment":  1.0,
			},
			MinScoreForTrade: 5.0,
			MinScoreForAPlus: 8.0,
		},
		"range_scalp": {
			ConfluenceWeights: map[string]float64{
				"structure_shift": 2.5,
				"liquidity_sweep": 3.0,
				"volume_spike":    1.5,
				"absorption_wick": 2.0,
				"edge_respects":   2.0,
				"flow_alignment":  1.0,
			},
			MinScoreForTrade: 5.5,
			MinScoreForAPlus: 8.5,
		},
		"balanced_zone": {
			ConfluenceWeights: map[string]float64{
				"compression_breakout": 3.0,
				"compression_confirm":  2.0,
				"volume_spike":         2.0,
				"structure_shift":      1.5,
				"equal_extremes":       1.5,
				"flow_alignment":       1.0,
			},
			MinScoreForTrade: 5.0,
			MinScoreForAPlus: 7.5,
		},
		"edge_based": {
			ConfluenceWeights: map[string]float64{
				"structure_shift": 3.0,
				"liquidity_sweep": 2.5,
				"volume_spike":    2.0,
				"absorption_wick": 2.0,
				"flow_alignment":  1.0,
			},
			MinScoreForTrade: 6.5, // fallback checker demands more evidence
			MinScoreForAPlus: 9.0,
		},
	}

	cfg.Tolerance.SmoothingAlpha = 0.3
	cfg.Tolerance.Defaults = ToleranceParams{
		ATRMultiplier:       1.5,
		MinTolerance:        0.0005,
		MaxTolerance:        50.0,
		KillSwitchThreshold: 2.5,
		ATRRescaleMult:      0.5,
		ATRRescaleCap:       1.5,
	}
	cfg.Tolerance.Symbols = map[string]ToleranceParams{
		// FX majors: tight spreads, deviation spikes are genuinely abnormal
		"EURUSD": {ATRMultiplier: 1.2, MaxTolerance: 0.0040, KillSwitchThreshold: 2.2, ATRRescaleMult: 0.6, ATRRescaleCap: 1.2},
		"GBPUSD": {ATRMultiplier: 1.2, MaxTolerance: 0.0050, KillSwitchThreshold: 2.2, ATRRescaleMult: 0.6, ATRRescaleCap: 1.2},
		// volatile commodities
		"XAUUSD": {ATRMultiplier: 0.7, MaxTolerance: 12.0, KillSwitchThreshold: 2.8, ATRRescaleMult: 0.4, ATRRescaleCap: 1.4},
		// crypto: elevated deviation is the normal state
		"BTCUSD": {ATRMultiplier: 1.0, MaxTolerance: 900.0, KillSwitchThreshold: 3.2, ATRRescaleMult: 0.8, ATRRescaleCap: 1.6},
	}

	return cfg
}

// LoadFile reads a YAML config file over the shipped defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
