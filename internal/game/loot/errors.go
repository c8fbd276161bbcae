package loot

import "errors"

// Sentinel errors for item generation.
var (
	ErrInvalidDefinition         = errors.New("invalid item definition")
	ErrInvalidInstancingFunction = errors.New("invalid instancing function")
	ErrAffixLevel                = errors.New("affix level calculation failed")
	ErrQualityType               = errors.New("quality type selection failed")
	ErrNoDefinitions             = errors.New("no item definitions resolved")
)
