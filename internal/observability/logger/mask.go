package logger

import "strings"

// MaskDSN hides credentials embedded in a data source name so the DSN
// can be logged at startup. Credential-less DSNs (plain sqlite paths)
// pass through unchanged.
func MaskDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ""
	}
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	head := dsn[:at]
	if idx := strings.Index(head, "://"); idx >= 0 {
		return head[:idx+3] + "***" + dsn[at:]
	}
	return "***" + dsn[at:]
}
