package nebulite

import "go.uber.org/zap"

// log is the package-level structured logger. It defaults to a no-op
// logger so importing this package is silent until a host calls SetLogger;
// grounded in the teacher's own debugLog/debugStats pattern (willow's
// debug.go), replaced here with zap's structured fields (spec.md's §7
// expression-compile-failure/NaN-guard diagnostics; no frame stats are
// logged).
var log = zap.NewNop().Sugar()

// SetLogger installs l as the package-level logger. Passing nil restores
// the no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		log = zap.NewNop().Sugar()
		return
	}
	log = l.Sugar()
}
