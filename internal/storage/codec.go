package storage

import (
	"encoding/binary"
	"math"
	"regexp"
	"strings"
)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery sanitizes a search query for FTS5 to prevent injection
// attacks. Escapes special FTS5 operators and characters that could be used
// for SQL injection.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}

	// Replace special characters that have meaning in FTS5
	replacer := strings.NewReplacer(
		`"`, `\"`, // Quote
		`*`, `\*`, // Wildcard
		`(`, `\(`, // Grouping
		`)`, `\)`, // Grouping
	)
	escaped := replacer.Replace(query)

	// Escape Boolean operators to prevent injection
	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})

	return escaped
}

// prefixedPageColumns qualifies pageColumns with a table alias for joins.
func prefixedPageColumns(alias string) string {
	cols := strings.Split(pageColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
