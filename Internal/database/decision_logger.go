package datafeed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantpulse/regimescout/Internal/types"
)

// LogTradeExecution records a filled or submitted order. No-op on a nil
// Store.
func (s *Store) LogTradeExecution(ctx context.Context, idea *types.TradeIdea, orderID, status string, price decimal.Decimal) error {
	if s == nil || s.db == nil {
		return nil
	}

	volume := decimal.NewFromFloat(idea.Volume)
	totalValue := volume.Mul(price)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (idea_id, symbol, side, volume, price, total_value, strategy, confluence_score, order_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		idea.ID, idea.Symbol, idea.Direction, volume.String(), price.String(),
		totalValue.String(), idea.StrategyName, idea.ConfluenceScore, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to log trade: %w", err)
	}

	s.log.Infof("✅ Trade logged: %s %s x%s @ %s (order %s)",
		idea.Direction, idea.Symbol, volume.String(), price.String(), orderID)
	return nil
}

// LogDecision records one admission decision for later review. No-op on
// a nil Store.
func (s *Store) LogDecision(ctx context.Context, symbol, strategy, regime string, passed bool, score float64, reason string) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (symbol, strategy, regime, passed, confluence_score, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		symbol, strategy, regime, passed, score, reason)
	if err != nil {
		return fmt.Errorf("failed to log decision: %w", err)
	}
	return nil
}
