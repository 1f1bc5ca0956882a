// Package config loads the orchestrator's recognised configuration options
// (spec.md §6) from a YAML document using gopkg.in/yaml.v3 — the teacher's
// own choice for DSL and configuration documents — and validates the
// decoded document against an embedded JSON Schema using
// github.com/santhosh-tekuri/jsonschema/v6 before defaults are applied.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Orchestrator holds every recognised configuration option from spec.md §6,
// fully defaulted.
type Orchestrator struct {
	// MaxIterations bounds the pipeline retry-wave budget. Default 3.
	MaxIterations int `yaml:"maxIterations"`
	// ParallelCrafters fans out implementors within a wave when true.
	// Default false.
	ParallelCrafters bool `yaml:"parallelCrafters"`

	// Breaker holds circuit-breaker defaults (spec.md §4.4).
	Breaker BreakerConfig `yaml:"breaker"`

	// ReplaySize is the number of recent events delivered to late
	// subscribers regardless of category. Default 32.
	ReplaySize int `yaml:"replaySize"`
	// MaxLogSize caps the in-memory critical event log. Default 500.
	MaxLogSize int `yaml:"maxLogSize"`

	// MaxSessionRecoveryAttempts bounds session-recovery re-invocations.
	// Default 2.
	MaxSessionRecoveryAttempts int `yaml:"maxSessionRecoveryAttempts"`

	// InitialTPM and MaxTPM bound the adaptive per-provider rate limiter's
	// tokens-per-minute budget. Defaults 60000 and 120000.
	InitialTPM float64 `yaml:"initialTPM"`
	MaxTPM     float64 `yaml:"maxTPM"`

	// StalenessThreshold is the health-check staleness window for the
	// sub-process provider. Default 5 minutes.
	StalenessThreshold time.Duration `yaml:"stalenessThresholdMs"`

	// ProviderOverrides carries per-provider overrides of priority and
	// maxConcurrentAgents, keyed by provider name.
	ProviderOverrides map[string]ProviderOverride `yaml:"providerOverrides"`
}

// BreakerConfig holds circuit-breaker defaults shared by every registered
// breaker unless a provider-specific override applies.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	SuccessThreshold int           `yaml:"successThreshold"`
	Timeout          time.Duration `yaml:"timeoutMs"`
	VolumeThreshold  int           `yaml:"volumeThreshold"`
}

// ProviderOverride overrides a provider's advertised priority and/or
// concurrency cap.
type ProviderOverride struct {
	Priority            *int `yaml:"priority"`
	MaxConcurrentAgents *int `yaml:"maxConcurrentAgents"`
}

// Default returns the fully-defaulted configuration, matching every default
// called out in spec.md §6.
func Default() Orchestrator {
	return Orchestrator{
		MaxIterations:    3,
		ParallelCrafters: false,
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          60 * time.Second,
			VolumeThreshold:  10,
		},
		ReplaySize:                 32,
		MaxLogSize:                 500,
		MaxSessionRecoveryAttempts: 2,
		StalenessThreshold:         5 * time.Minute,
		InitialTPM:                 60000,
		MaxTPM:                     120000,
	}
}

// schemaDoc is the embedded JSON Schema used to validate the decoded YAML
// document before it is merged onto defaults, catching typoed option names
// (e.g. "maxIteratons") the same way the DSL validates authored designs.
const schemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "maxIterations": {"type": "integer", "minimum": 1},
    "parallelCrafters": {"type": "boolean"},
    "breaker": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "failureThreshold": {"type": "integer", "minimum": 1},
        "successThreshold": {"type": "integer", "minimum": 1},
        "timeoutMs": {"type": "integer", "minimum": 0},
        "volumeThreshold": {"type": "integer", "minimum": 1}
      }
    },
    "replaySize": {"type": "integer", "minimum": 0},
    "maxLogSize": {"type": "integer", "minimum": 1},
    "maxSessionRecoveryAttempts": {"type": "integer", "minimum": 0},
    "stalenessThresholdMs": {"type": "integer", "minimum": 0},
    "initialTPM": {"type": "number", "minimum": 0},
    "maxTPM": {"type": "number", "minimum": 0},
    "providerOverrides": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "priority": {"type": "integer"},
          "maxConcurrentAgents": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

// rawDoc mirrors Orchestrator's YAML shape but with millisecond integer
// fields, matching the wire format spec.md §6 documents (timeoutMs,
// stalenessThresholdMs) before they are converted to time.Duration.
type rawDoc struct {
	MaxIterations              *int                        `yaml:"maxIterations"`
	ParallelCrafters            *bool                       `yaml:"parallelCrafters"`
	Breaker                     *rawBreaker                 `yaml:"breaker"`
	ReplaySize                  *int                        `yaml:"replaySize"`
	MaxLogSize                  *int                        `yaml:"maxLogSize"`
	MaxSessionRecoveryAttempts  *int                        `yaml:"maxSessionRecoveryAttempts"`
	StalenessThresholdMs        *int                        `yaml:"stalenessThresholdMs"`
	InitialTPM                  *float64                    `yaml:"initialTPM"`
	MaxTPM                      *float64                    `yaml:"maxTPM"`
	ProviderOverrides           map[string]ProviderOverride `yaml:"providerOverrides"`
}

type rawBreaker struct {
	FailureThreshold *int `yaml:"failureThreshold"`
	SuccessThreshold *int `yaml:"successThreshold"`
	TimeoutMs        *int `yaml:"timeoutMs"`
	VolumeThreshold  *int `yaml:"volumeThreshold"`
}

// Load decodes a YAML configuration document, validates it against the
// embedded schema, and merges it onto Default(). An empty or nil document
// returns Default() unchanged.
func Load(doc []byte) (Orchestrator, error) {
	out := Default()
	if len(bytes.TrimSpace(doc)) == 0 {
		return out, nil
	}

	var generic any
	if err := yaml.Unmarshal(doc, &generic); err != nil {
		return Orchestrator{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	// Round-trip through encoding/json so yaml.v3's map[interface{}]any-free
	// decoding (it already yields map[string]any) matches the plain JSON
	// documents jsonschema/v6 validates, exactly as registry/service.go does
	// for tool payload validation.
	normalized, err := json.Marshal(generic)
	if err != nil {
		return Orchestrator{}, fmt.Errorf("config: normalize document: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(normalized, &payloadDoc); err != nil {
		return Orchestrator{}, fmt.Errorf("config: normalize document: %w", err)
	}
	var schemaJSON any
	if err := json.Unmarshal([]byte(schemaDoc), &schemaJSON); err != nil {
		return Orchestrator{}, fmt.Errorf("config: parse embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", schemaJSON); err != nil {
		return Orchestrator{}, fmt.Errorf("config: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("config.json")
	if err != nil {
		return Orchestrator{}, fmt.Errorf("config: compile schema: %w", err)
	}
	if err := compiled.Validate(payloadDoc); err != nil {
		return Orchestrator{}, fmt.Errorf("config: invalid configuration: %w", err)
	}

	var raw rawDoc
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return Orchestrator{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyOverrides(&out, raw)
	return out, nil
}

func applyOverrides(out *Orchestrator, raw rawDoc) {
	if raw.MaxIterations != nil {
		out.MaxIterations = *raw.MaxIterations
	}
	if raw.ParallelCrafters != nil {
		out.ParallelCrafters = *raw.ParallelCrafters
	}
	if raw.Breaker != nil {
		if raw.Breaker.FailureThreshold != nil {
			out.Breaker.FailureThreshold = *raw.Breaker.FailureThreshold
		}
		if raw.Breaker.SuccessThreshold != nil {
			out.Breaker.SuccessThreshold = *raw.Breaker.SuccessThreshold
		}
		if raw.Breaker.TimeoutMs != nil {
			out.Breaker.Timeout = time.Duration(*raw.Breaker.TimeoutMs) * time.Millisecond
		}
		if raw.Breaker.VolumeThreshold != nil {
			out.Breaker.VolumeThreshold = *raw.Breaker.VolumeThreshold
		}
	}
	if raw.ReplaySize != nil {
		out.ReplaySize = *raw.ReplaySize
	}
	if raw.MaxLogSize != nil {
		out.MaxLogSize = *raw.MaxLogSize
	}
	if raw.MaxSessionRecoveryAttempts != nil {
		out.MaxSessionRecoveryAttempts = *raw.MaxSessionRecoveryAttempts
	}
	if raw.StalenessThresholdMs != nil {
		out.StalenessThreshold = time.Duration(*raw.StalenessThresholdMs) * time.Millisecond
	}
	if raw.InitialTPM != nil {
		out.InitialTPM = *raw.InitialTPM
	}
	if raw.MaxTPM != nil {
		out.MaxTPM = *raw.MaxTPM
	}
	if len(raw.ProviderOverrides) > 0 {
		out.ProviderOverrides = raw.ProviderOverrides
	}
}
