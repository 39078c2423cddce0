package http2

import "go.uber.org/zap"

// noopLogger is the default logger every Conn/Client uses absent an
// explicit WithLogger option, so the library stays silent unless asked.
var noopLogger = zap.NewNop()
