package main

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/pow-ledger/ledger"
)

func printChain(chain *ledger.Blockchain) {
	for _, b := range chain.Blocks() {
		pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1).
			WithTitle(pterm.LightCyan(fmt.Sprintf("|BLOCK %d|", b.Index()))).WithTitleTopCenter().
			Println(blockInfo(b))
	}
}

func blockInfo(b *ledger.Block) string {
	s := pterm.Sprintfln("Hash: %s", pterm.LightGreen(b.Hash()))
	s += pterm.Sprintfln("Previous: %s", b.PreviousHash())
	s += pterm.Sprintfln("Nonce: %d  Timestamp: %.6f", b.Nonce(), b.Timestamp())
	txs := b.Transactions()
	if len(txs) == 0 {
		return s + "No transactions"
	}
	for _, tx := range txs {
		s += pterm.Sprintfln("%s -> %s: %v", tx.Sender, tx.Recipient, tx.Amount)
	}
	return s
}

// balanceTable lists every address seen on the chain, sorted by name.
func balanceTable(chain *ledger.Blockchain) pterm.TableData {
	balances := chain.Balances()
	addresses := make([]string, 0, len(balances))
	for addr := range balances {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	data := pterm.TableData{{"Address", "Balance"}}
	for _, addr := range addresses {
		data = append(data, []string{addr, fmt.Sprint(balances[addr])})
	}
	return data
}

func printBalances(chain *ledger.Blockchain) {
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(balanceTable(chain)).Render(); err != nil {
		pterm.Error.Printfln("failed to render balances: %v", err)
	}
}
