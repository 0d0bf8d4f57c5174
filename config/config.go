// Package config holds the chain parameters of a ledger node and loads them
// from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luca-patrignani/pow-ledger/ledger"
)

// Params are the fixed parameters of one blockchain.
type Params struct {
	// How many leading 0 hex digits form a valid hash.
	Difficulty int `yaml:"DIFFICULTY"`
	// Amount credited to the miner on every mined block.
	MiningReward float64 `yaml:"MINING_REWARD"`
	// Sender of the reward transaction.
	RewardSender string `yaml:"REWARD_SENDER"`
}

// Default returns the parameters a blockchain gets when nothing is configured.
func Default() Params {
	return Params{
		Difficulty:   ledger.DefaultDifficulty,
		MiningReward: ledger.DefaultMiningReward,
		RewardSender: ledger.DefaultRewardSender,
	}
}

// Load reads params from a YAML file. Keys missing from the file keep their
// default value; unknown keys are an error.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes params from YAML and validates them.
func Parse(data []byte) (Params, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate reports parameters no blockchain can be built with.
func (p Params) Validate() error {
	if p.Difficulty < 0 || p.Difficulty > 64 {
		return fmt.Errorf("invalid DIFFICULTY %d: must be in [0, 64]", p.Difficulty)
	}
	if p.RewardSender == "" {
		return errors.New("invalid REWARD_SENDER: must not be empty")
	}
	return nil
}

// Options converts the params into blockchain options.
func (p Params) Options() []ledger.Option {
	return []ledger.Option{
		ledger.WithDifficulty(p.Difficulty),
		ledger.WithMiningReward(p.MiningReward),
		ledger.WithRewardSender(p.RewardSender),
	}
}
