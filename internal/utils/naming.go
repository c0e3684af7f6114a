package utils

import (
	"strings"
	"unicode"
)

// CamelToSnake converts CamelCase to snake_case. Runs of capitals are treated as
// one word: "SomeSDK" -> "some_sdk", "SDKDemo" -> "sdk_demo".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			next := i + 1
			endOfRun := next >= len(runes) || unicode.IsUpper(runes[next])
			if !(unicode.IsUpper(runes[i-1]) && endOfRun) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ToPlural returns the English plural of a singular noun using simple suffix rules.
func ToPlural(word string) string {
	switch {
	case strings.HasSuffix(word, "y"):
		return strings.TrimSuffix(word, "y") + "ies"
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "sh"), strings.HasSuffix(word, "ch"),
		strings.HasSuffix(word, "x"), strings.HasSuffix(word, "z"):
		return word + "es"
	default:
		return word + "s"
	}
}

// ConvertAndPluralize derives a table name from an entity name:
// "Category" -> "categories", "BoxItem" -> "box_items".
func ConvertAndPluralize(name string) string {
	words := strings.Split(CamelToSnake(name), "_")
	words[len(words)-1] = ToPlural(words[len(words)-1])
	return strings.Join(words, "_")
}

// ConstraintName builds a constraint name following the schema convention
// "<prefix>_<table>_<column>", e.g. ConstraintName("uq", "users", "phone_number").
func ConstraintName(prefix, table, column string) string {
	return prefix + "_" + table + "_" + column
}
