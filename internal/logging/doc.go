// Package logging writes structured JSON logs to a size-rotated file under
// the data directory (~/.amanread/logs/amanread.log by default).
//
// CLI commands may also mirror logs to stderr. The MCP server never does:
// stdout carries the JSON-RPC stream and stderr is often captured by the
// client as protocol noise.
package logging
