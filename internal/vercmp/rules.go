package vercmp

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// rulesFile is the TOML layout of a rules file:
//
//	[[rule]]
//	name = "dashes"
//	match = '^\d+(?:-\d+)+$'
//	find = '[-_]'
//	replace = '.'
type rulesFile struct {
	Rules []Rule `toml:"rule"`
}

// LoadRules reads normalizer rules from a TOML file.
// The rules replace the built-in set entirely and keep the file order.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and validates TOML rule definitions.
func ParseRules(data []byte) ([]Rule, error) {
	var file rulesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, ErrNoRules
	}
	for i := range file.Rules {
		if err := file.Rules[i].compile(); err != nil {
			return nil, err
		}
	}
	return file.Rules, nil
}

// LoadNormalizer builds a Normalizer from a rules file, or the default rules
// when path is empty.
func LoadNormalizer(path string) (*Normalizer, error) {
	if path == "" {
		return DefaultNormalizer(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return NewNormalizer(rules)
}
