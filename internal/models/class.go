package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RequestClass is the result of classifying a request URL
type RequestClass string

const (
	ClassStatic  RequestClass = "static"
	ClassDynamic RequestClass = "dynamic"
	ClassBypass  RequestClass = "bypass"
)

// Strategy is the arbitration strategy applied to a request class
type Strategy string

const (
	StrategyCacheFirst   Strategy = "cache_first"
	StrategyNetworkFirst Strategy = "network_first"
	StrategyNetworkOnly  Strategy = "network_only"
)

// UnmarshalYAML implements custom YAML unmarshaling for Strategy
func (s *Strategy) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	switch str {
	case "cache_first", "network_first", "network_only":
		*s = Strategy(str)
		return nil
	default:
		return fmt.Errorf("invalid strategy '%s': must be one of 'cache_first', 'network_first', 'network_only'", str)
	}
}

// Source tells where an arbitrated response came from
type Source string

const (
	SourceCache       Source = "cache"
	SourceNetwork     Source = "network"
	SourceFallback    Source = "fallback"
	SourceSynthesized Source = "synthesized"
)

// Result is the outcome of arbitrating one request
type Result struct {
	Response *ResponseSnapshot
	Source   Source
	Class    RequestClass
	Strategy Strategy
	Stored   bool // the response was written back to the region
}
