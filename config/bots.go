package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"botflow/internal/rules"
	"botflow/models"
)

// BotsFile is the YAML document listing every bot strategy the service runs.
type BotsFile struct {
	Bots []models.BotConfig `yaml:"bots"`
}

// LoadBots reads and validates the bot definitions at the given path. Any
// invalid bot fails the whole load: a misconfigured strategy must never
// silently sit inert in the tick loop.
func LoadBots(path string) ([]models.BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bots file: %w", err)
	}

	var file BotsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse bots file: %w", err)
	}
	if len(file.Bots) == 0 {
		return nil, fmt.Errorf("bots file %s defines no bots", path)
	}

	seen := make(map[string]struct{}, len(file.Bots))
	for i := range file.Bots {
		bot := &file.Bots[i]
		if err := ValidateBot(bot); err != nil {
			return nil, fmt.Errorf("bot %q: %w", bot.ID, err)
		}
		if _, dup := seen[bot.ID]; dup {
			return nil, fmt.Errorf("bot id %q is defined twice", bot.ID)
		}
		seen[bot.ID] = struct{}{}
	}

	return file.Bots, nil
}

// ValidateBot checks one bot definition against the constraints the decision
// engine trusts at runtime.
func ValidateBot(bot *models.BotConfig) error {
	if bot.ID == "" {
		return fmt.Errorf("id is required")
	}
	if bot.Pair == "" {
		return fmt.Errorf("pair is required")
	}

	switch bot.ExecutionMode {
	case models.ModeOnceAndWait:
		if bot.BuyQuery == nil || bot.SellQuery == nil {
			return fmt.Errorf("once_and_wait requires both buy_query and sell_query")
		}
	case models.ModeConditionCooldown:
		if bot.CooldownMinutes <= 0 {
			return fmt.Errorf("condition_cooldown requires cooldown_minutes greater than 0")
		}
	default:
		return fmt.Errorf("execution_mode '%s' is not supported", bot.ExecutionMode)
	}

	if bot.BuyQuery == nil && bot.SellQuery == nil {
		return fmt.Errorf("at least one of buy_query and sell_query is required")
	}
	if bot.BuyQuery != nil {
		if err := rules.Validate(bot.BuyQuery); err != nil {
			return fmt.Errorf("buy_query: %w", err)
		}
	}
	if bot.SellQuery != nil {
		if err := rules.Validate(bot.SellQuery); err != nil {
			return fmt.Errorf("sell_query: %w", err)
		}
	}

	if err := validateSizing("buy_sizing", bot.BuySizing); err != nil {
		return err
	}
	if err := validateSizing("sell_sizing", bot.SellSizing); err != nil {
		return err
	}

	if bot.StopLossPct < 0 || bot.StopLossPct > 100 {
		return fmt.Errorf("stop_loss_pct must be within (0,100]")
	}
	if bot.TakeProfitPct < 0 || bot.TakeProfitPct > 100 {
		return fmt.Errorf("take_profit_pct must be within (0,100]")
	}

	return nil
}

func validateSizing(name string, sizing *models.SizingConfig) error {
	if sizing == nil {
		return nil
	}
	switch sizing.Type {
	case models.SizingFixed:
		if sizing.Value <= 0 {
			return fmt.Errorf("%s: fixed amount must be greater than 0", name)
		}
	case models.SizingPercentage:
		if sizing.Value <= 0 || sizing.Value > 100 {
			return fmt.Errorf("%s: percentage must be within (0,100]", name)
		}
	default:
		return fmt.Errorf("%s: type '%s' is not supported", name, sizing.Type)
	}
	return nil
}
