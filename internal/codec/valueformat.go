package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// encodeValueSerialized produces the compact, self-describing text form
// used for values with no scalar/collection/binary shape (spec §4.2). The
// encoder always emits strict JSON — any JSON decoder can read it back —
// the permissiveness only lives on the decode side.
func encodeValueSerialized(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("value-serialize %T: %w", v, err)
	}
	return string(b), nil
}

// decodeValueSerialized parses the value-serialized text form back into
// target. Standard JSON decodes directly; a small pre-pass additionally
// tolerates unquoted object keys and bareword strings, the "JSON-superset"
// extension spec §4.2 calls for.
func decodeValueSerialized(text string, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target)
	normalized := quoteBarewords(text)
	if err := json.Unmarshal([]byte(normalized), out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode value-serialized %q into %s: %w", text, target, err)
	}
	return out.Elem(), nil
}

// quoteBarewords rewrites unquoted object keys (`{foo: 1}` -> `{"foo": 1}`)
// so the standard json package can parse the relaxed superset. It is a
// best-effort scanner, not a full JSON5 grammar: it only touches bareword
// tokens that appear where an object key or a bare identifier value is
// syntactically expected. Double-quoted strings pass through untouched;
// single-quoted strings are rewritten with double quotes.
func quoteBarewords(s string) string {
	var b strings.Builder
	inString := false
	var quote byte
	i := 0
	for i < len(s) {
		c := s[i]
		if inString {
			if c == '\\' && i+1 < len(s) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == quote {
				inString = false
				b.WriteByte('"')
			} else {
				b.WriteByte(c)
			}
			i++
			continue
		}
		if c == '"' || c == '\'' {
			inString = true
			quote = c
			b.WriteByte('"')
			i++
			continue
		}
		if isIdentStart(c) {
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			// A lone "e"/"E" right after a digit is a float's exponent
			// marker (json.Marshal can emit 1e+20), not a bareword — quoting
			// it would split the number into invalid JSON like 1"e+20".
			if (word == "e" || word == "E") && i > 0 && isDigit(s[i-1]) {
				k := j
				if k < len(s) && (s[k] == '+' || s[k] == '-') {
					k++
				}
				digitsStart := k
				for k < len(s) && isDigit(s[k]) {
					k++
				}
				if k > digitsStart {
					b.WriteString(s[i:k])
					i = k
					continue
				}
			}
			switch word {
			case "true", "false", "null":
				b.WriteString(word)
			default:
				b.WriteByte('"')
				b.WriteString(word)
				b.WriteByte('"')
			}
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
