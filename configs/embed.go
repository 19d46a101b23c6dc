// Package configs provides the embedded configuration template written
// by 'vibemcp config init'.
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration. Every setting
// appears with its default and its environment variable, so users edit
// the file instead of consulting the docs.
//
//go:embed config.example.yaml
var ConfigTemplate string
