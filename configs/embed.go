// Package configs embeds the configuration templates written by
// 'topicsearch config init'.
//
// Configuration precedence (see internal/config Load):
//  1. Defaults
//  2. User config (~/.config/topicsearch/config.yaml)
//  3. Project config (.topicsearch.yaml)
//  4. TOPICSEARCH_* environment variables
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .topicsearch.yaml template.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// EvalSuiteTemplate is an example evaluation suite.
//
//go:embed eval.example.yaml
var EvalSuiteTemplate string
