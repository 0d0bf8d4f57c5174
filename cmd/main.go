package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/pow-ledger/api"
	"github.com/luca-patrignani/pow-ledger/config"
	"github.com/luca-patrignani/pow-ledger/ledger"
)

const minerAddress = "miner"

type options struct {
	command string
	params  config.Params
	addr    string
}

func main() {
	// Create a new slog handler with the default PTerm logger
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))

	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.command {
	case "demo":
		err = demo(ctx, opts.params, logger)
	case "serve":
		err = serve(ctx, opts, logger)
	}
	if err != nil {
		logger.Error(opts.command+" failed", "error", err)
		os.Exit(1)
	}
}

// parseArgs reads an optional command followed by its flags. Flags given on
// the command line override the config file.
func parseArgs(args []string, output io.Writer) (options, error) {
	opts := options{command: "demo"}
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		opts.command = args[0]
		args = args[1:]
	}
	if opts.command != "demo" && opts.command != "serve" {
		return options{}, fmt.Errorf("unknown command %q, expected demo or serve", opts.command)
	}

	fs := flag.NewFlagSet(opts.command, flag.ContinueOnError)
	fs.SetOutput(output)
	configPath := fs.String("config", "", "path to a YAML config file")
	difficulty := fs.Int("difficulty", ledger.DefaultDifficulty, "leading zero hex digits required in a block hash")
	reward := fs.Float64("reward", ledger.DefaultMiningReward, "amount credited to the miner of each block")
	fs.StringVar(&opts.addr, "addr", ":8080", "listen address for serve")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts.params = config.Default()
	if *configPath != "" {
		p, err := config.Load(*configPath)
		if err != nil {
			return options{}, err
		}
		opts.params = p
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "difficulty":
			opts.params.Difficulty = *difficulty
		case "reward":
			opts.params.MiningReward = *reward
		}
	})
	if err := opts.params.Validate(); err != nil {
		return options{}, err
	}
	return opts, nil
}

func serve(ctx context.Context, opts options, logger *slog.Logger) error {
	chain, err := ledger.NewBlockchain(append(opts.params.Options(), ledger.WithLogger(logger))...)
	if err != nil {
		return err
	}
	pterm.Info.Printfln("Genesis block %s mined at difficulty %d", chain.GetLatest().Hash(), chain.Difficulty())
	return api.NewServer(chain, logger).Run(ctx, opts.addr)
}

// round is one batch of transfers mined into a single block.
type round []ledger.Transaction

var demoRounds = []round{
	{
		{Sender: "Alice", Recipient: "Bob", Amount: 50},
		{Sender: "Bob", Recipient: "Charlie", Amount: 30},
	},
	{
		{Sender: "Charlie", Recipient: "Alice", Amount: 20},
		{Sender: "Bob", Recipient: "Alice", Amount: 10},
	},
}

func demo(ctx context.Context, params config.Params, logger *slog.Logger) error {
	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("PoW ", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("Ledger", pterm.FgDarkGray.ToStyle()),
	).Render()

	spinner, _ := pterm.DefaultSpinner.Start("Mining the genesis block ...")
	chain, err := ledger.NewBlockchain(append(params.Options(), ledger.WithLogger(logger))...)
	if err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success()

	for i, r := range demoRounds {
		for _, tx := range r {
			chain.QueueTransaction(tx.Sender, tx.Recipient, tx.Amount)
		}
		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Mining round %d with %d transactions ...", i+1, len(r)))
		if err := chain.MinePendingContext(ctx, minerAddress); err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success()
	}

	printChain(chain)
	printBalances(chain)
	if err := chain.Verify(); err != nil {
		pterm.Error.Printfln("Chain is invalid: %v", err)
		return err
	}
	pterm.Success.Printfln("Chain of %d blocks is valid", chain.Len())
	return nil
}
