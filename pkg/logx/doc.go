// Package logx configures during's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller) and on stderr,
//     since stdout is inherited by the supervised command
//   - File output JSON-structured
//   - Sinks swappable at runtime (config reload) without re-plumbing loggers
package logx
