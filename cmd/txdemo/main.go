package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tx-propagation/internal/application"
	"github.com/sanosuguru/go-tx-propagation/internal/config"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/order"
	"github.com/sanosuguru/go-tx-propagation/internal/domain/transaction"
	"github.com/sanosuguru/go-tx-propagation/internal/infrastructure/payment"
	"github.com/sanosuguru/go-tx-propagation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-tx-propagation/internal/pkg/logger"
)

func main() {
	subCmd, flagsCfg, conf := parseCommandLine()

	cfg := config.Load()
	if flagsCfg.Verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}
	log := logger.NewLogger(cfg.App.Env)
	logger.Set(log)
	defer func() { _ = logger.Sync() }()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		printErrorAndExit(err)
	}
	defer db.Close()

	if flagsCfg.Migrate {
		if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
			printErrorAndExit(err)
		}
		if version, _, err := postgres.MigrationVersion(db.DB, cfg.App.MigrationsPath); err == nil {
			logger.Debug("マイグレーション適用済み", zap.Uint("version", version))
		}
	}

	policy := flagsCfg.PolicyFile
	if policy == "" {
		policy = cfg.App.TxPolicyFile
	}
	attrs, err := application.LoadAttributes(policy)
	if err != nil {
		printErrorAndExit(err)
	}

	tm := transaction.NewManager(postgres.NewConnector(db), transaction.WithLogger(log.Named("tx")))
	ctx := transaction.NewScope(context.Background())

	switch subCmd {
	case scenariosSubCmd:
		d := &demo{tm: tm, members: postgres.NewMemberRepository(db)}
		failed := d.run(ctx, conf.(*scenariosConfig).Only)
		if failed > 0 {
			os.Exit(1)
		}

	case joinSubCmd:
		jc := conf.(*joinConfig)
		if jc.NoOuter {
			attrs.Disable(application.AttrMemberJoin)
		}
		if jc.LogRequiresNew {
			opts := attrs.Get(application.AttrLogSave)
			opts.RequiresNew = true
			attrs.Set(application.AttrLogSave, opts)
		}
		svc := application.NewMemberService(tm, attrs,
			postgres.NewMemberRepository(db), postgres.NewLogRepository(db), nil, nil)

		m, err := svc.Join(ctx, jc.Username, application.JoinMode(jc.Mode))
		if err != nil {
			fmt.Printf("join %s: %v\n", jc.Username, err)
		} else {
			fmt.Printf("join %s: ok (id=%s)\n", m.Username, m.ID)
		}
		_, mErr := svc.FindMember(ctx, jc.Username)
		_, lErr := svc.FindLog(ctx, jc.Username)
		fmt.Printf("  member saved: %t\n  log saved:    %t\n", mErr == nil, lErr == nil)

	case orderSubCmd:
		oc := conf.(*orderConfig)
		svc := application.NewOrderService(tm, attrs,
			postgres.NewOrderRepository(db), payment.NewSimulatedGateway(), nil, nil)

		o, err := svc.PlaceOrder(ctx, application.PlaceOrderInput{Username: oc.Username, Amount: oc.Amount})
		switch {
		case err == nil:
			fmt.Printf("order %s: %s\n", o.ID, o.PayStatus)
		case o != nil && errors.Is(err, order.ErrNotEnoughMoney):
			fmt.Printf("order %s: %s (%v)\n", o.ID, o.PayStatus, err)
		default:
			fmt.Printf("order for %s rolled back: %v\n", oc.Username, err)
		}
	}

	logger.Debug("txdemo finished", zap.String("command", subCmd))
}

func printErrorAndExit(err error) {
	fmt.Fprintf(os.Stderr, "%+v\n", err)
	os.Exit(1)
}
