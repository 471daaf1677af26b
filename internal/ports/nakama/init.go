package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"unostake/internal/app"
	"unostake/internal/app/onboarding"
	"unostake/internal/config"
	"unostake/internal/domain"
	"unostake/internal/ledger"
	"unostake/internal/ports"
	"unostake/internal/ports/redis"
)

// InitModule wires RPCs, hooks and the realtime match handler for the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	environment, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if environment == nil {
		environment = map[string]string{}
	}
	cfg, err := config.Load(environment)
	if err != nil {
		return err
	}
	game, err := config.LoadGameConfig(cfg.GameConfigPath, cfg.RewardDecimals)
	if err != nil {
		return err
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	var publisher ports.EventPublisher = ports.NopPublisher{}
	if cfg.RedisAddr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		p, _, err := redis.Dial(dialCtx, cfg.RedisAddr, cfg.RedisChannel)
		cancel()
		if err != nil {
			// Events are best effort; the game runs without them.
			logger.Warn("Redis unavailable, match events disabled: %v", err)
		} else {
			publisher = p
		}
	}

	converter := cfg.Converter()
	coordinator := app.NewCoordinator(gateway, app.Options{
		Publisher:    publisher,
		Converter:    &converter,
		Logger:       slog.New(NewSlogHandler(logger, slog.LevelInfo)),
		HandSize:     game.HandSize,
		DefaultColor: domain.Color(game.DefaultColor),
		StakeTiers:   game.TierStakes(),
		DefaultTier:  game.DefaultTier,
		AutoStake:    cfg.AutoStake,
	})
	onboardingSvc := onboarding.NewService(NewNakamaAccountAdapter(nk), NewNakamaAddressBook(nk), nil)
	module := NewModule(coordinator, onboardingSvc, NewNakamaEconomyAdapter(nk))

	if err := module.RegisterRPCs(initializer); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(module.AfterAuthenticateDevice); err != nil {
		return err
	}
	if err := initializer.RegisterMatch(MatchNameUno, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(coordinator, onboardingSvc), nil
	}); err != nil {
		return err
	}

	logger.Info("UNO stake module loaded (ledger=%s).", cfg.LedgerMode)
	return nil
}

func newGateway(cfg config.Env) (ports.LedgerGateway, error) {
	switch cfg.LedgerMode {
	case config.LedgerMemory:
		return ledger.NewMemory(cfg.ExchangeRate, cfg.Converter()), nil
	case config.LedgerRelayer:
		return ledger.NewRelayer(cfg.RelayerURL, cfg.RelayerSecret, cfg.RelayerIssuer, cfg.LedgerTimeout), nil
	}
	return nil, fmt.Errorf("unknown ledger mode %q", cfg.LedgerMode)
}
