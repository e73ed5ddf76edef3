// Package logx configures tickloop's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Warn-and-above lines rate limited, so a misbehaving frame loop cannot
//     flood the sinks
package logx
