package log

import "sort"

// KV is a set of key-value pairs attached to a log entry.
type KV map[string]any

// kvToArgs flattens the first KV into the alternating key/value slice that
// slog expects. Keys are emitted in sorted order so entries are stable.
func kvToArgs(keyVals ...KV) []any {
	args := []any{}
	if len(keyVals) == 0 {
		return args
	}

	keys := make([]string, 0, len(keyVals[0]))
	for key := range keyVals[0] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		args = append(args, key, keyVals[0][key])
	}
	return args
}

// kvToArgsNs is kvToArgs with the namespace prepended as the "ns" pair.
func kvToArgsNs(namespace string, keyVals ...KV) []any {
	return append([]any{"ns", namespace}, kvToArgs(keyVals...)...)
}
