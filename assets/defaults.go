// Package assets embeds the default configuration, guardrail rules and knowledge base.
package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// DefaultGuardrailYAML contains the embedded default guardrail rules.
//
//go:embed defaults/guardrail.yaml
var DefaultGuardrailYAML []byte

// DefaultKnowledgeYAML contains the embedded operation catalogue and recognizer rules.
//
//go:embed defaults/knowledge.yaml
var DefaultKnowledgeYAML []byte
