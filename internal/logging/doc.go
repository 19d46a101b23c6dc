// Package logging provides file-based logging with rotation for vibemcp.
// Logs are written as JSON lines to ~/.vibemcp/logs/ so that they stay off
// stdout, which the MCP stdio transport owns exclusively.
//
// Interactive commands may additionally mirror logs to stderr; the serve
// path never does.
package logging
