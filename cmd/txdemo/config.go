package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

const (
	scenariosSubCmd = "scenarios"
	joinSubCmd      = "join"
	orderSubCmd     = "order"
)

type configFlags struct {
	PolicyFile string `long:"policy" short:"p" description:"YAML file overriding transaction attributes (defaults to TX_POLICY_FILE)"`
	Migrate    bool   `long:"migrate" description:"Apply database migrations before running"`
	Verbose    bool   `long:"verbose" short:"v" description:"Log transaction begin/commit/rollback"`
}

type scenariosConfig struct {
	Only []string `long:"only" short:"o" description:"Run only the named scenarios (A, B, C, D)"`
}

type joinConfig struct {
	Username string `long:"username" short:"u" description:"Username to join (include logException to make the log save fail)" required:"true"`
	Mode     string `long:"mode" short:"m" description:"v1 propagates the log failure, v2 swallows it" choice:"v1" choice:"v2" default:"v1"`
	// 属性の組み合わせをフラグで切り替える
	NoOuter        bool `long:"no-outer" description:"Run member save and log save without an outer transaction"`
	LogRequiresNew bool `long:"log-requires-new" description:"Save the log in its own transaction"`
}

type orderConfig struct {
	Username string `long:"username" short:"u" description:"Ordering user (exception: payment system error, notEnoughMoney: insufficient balance)" required:"true"`
	Amount   int    `long:"amount" short:"a" description:"Order amount" default:"1000"`
}

func parseCommandLine() (subCommand string, global *configFlags, conf interface{}) {
	cfg := &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)

	scenariosConf := &scenariosConfig{}
	parser.AddCommand(scenariosSubCmd, "Run propagation scenarios A-D",
		"Runs the join/requires-new/recoverable/rollback-for scenarios against the configured database", scenariosConf)

	joinConf := &joinConfig{}
	parser.AddCommand(joinSubCmd, "Join a member",
		"Saves a member and an audit log with the selected propagation settings", joinConf)

	orderConf := &orderConfig{}
	parser.AddCommand(orderSubCmd, "Place an order",
		"Saves an order and runs the simulated payment", orderConf)

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	switch parser.Command.Active.Name {
	case scenariosSubCmd:
		conf = scenariosConf
	case joinSubCmd:
		conf = joinConf
	case orderSubCmd:
		conf = orderConf
	}
	return parser.Command.Active.Name, cfg, conf
}
