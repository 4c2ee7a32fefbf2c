// Package config reads and validates env based inputs.
package config

import (
	"fmt"

	goenv "github.com/Netflix/go-env"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/go-playground/validator/v10"
)

// InputParser ...
type InputParser interface {
	Parse(input interface{}) error
}

type defaultInputParser struct {
	envRepository env.Repository
	validate      *validator.Validate
}

// NewInputParser ...
func NewInputParser(envRepository env.Repository) InputParser {
	return defaultInputParser{
		envRepository: envRepository,
		validate:      validator.New(),
	}
}

// Parse fills input from the `env` struct tags and checks its `validate`
// tags.
func (p defaultInputParser) Parse(input interface{}) error {
	envSet, err := goenv.EnvironToEnvSet(p.envRepository.List())
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if err := goenv.Unmarshal(envSet, input); err != nil {
		return fmt.Errorf("parse inputs: %w", err)
	}

	if err := p.validate.Struct(input); err != nil {
		return fmt.Errorf("invalid inputs: %w", err)
	}

	return nil
}
