package batch

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// paramRefPattern matches a $name reference the same way the validator's
// own extractParamRefs does.
var paramRefPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// inlineParams substitutes every $name in cypher with its literal form,
// per spec §4.1's inlining rule: NULL, a decimal number, an unquoted
// boolean, a single-quoted string with embedded quotes doubled, or a
// bracketed list of the above. The engine connection accepts no native
// bind parameters, so this must run before every query the executor sends.
func inlineParams(cypher string, params map[string]interface{}) (string, error) {
	var firstErr error
	out := paramRefPattern.ReplaceAllStringFunc(cypher, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		name := tok[1:]
		v, ok := params[name]
		if !ok {
			return tok
		}
		lit, err := literal(v)
		if err != nil {
			firstErr = fmt.Errorf("param %q: %w", name, err)
			return tok
		}
		return lit
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func literal(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case []interface{}:
		parts := make([]string, len(x))
		for i, elem := range x {
			lit, err := literal(elem)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		f, ok := asFloat(x)
		if !ok {
			return "", fmt.Errorf("unsupported param type %T", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("non-finite number")
		}
		return fmt.Sprintf("%v", x), nil
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
