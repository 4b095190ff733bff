package reasoning

import "regexp"

// The three sensitive-data patterns from §4.2.4. identityNumberPattern
// matches an 18-character identity number with a digit or X check
// character; creditCardPattern matches a 15-19 digit run; emailPattern is
// a plain email address.
var (
	identityNumberPattern = regexp.MustCompile(`\b\d{17}[\dXx]\b`)
	creditCardPattern     = regexp.MustCompile(`\b\d{15,19}\b`)
	emailPattern          = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

// scanAndMask walks a structured tool result, masking any string leaf that
// matches a sensitive-data pattern and recording one ValidationIssue per
// hit. It returns a new value; the input is not mutated in place.
func scanAndMask(v interface{}, toolCallID, toolName string) (interface{}, []ValidationIssue) {
	var issues []ValidationIssue
	masked := walkAndMask(v, toolCallID, toolName, &issues)
	return masked, issues
}

func walkAndMask(v interface{}, toolCallID, toolName string, issues *[]ValidationIssue) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			out[k] = walkAndMask(elem, toolCallID, toolName, issues)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = walkAndMask(elem, toolCallID, toolName, issues)
		}
		return out
	case string:
		return maskString(val, toolCallID, toolName, issues)
	default:
		return v
	}
}

func maskString(s, toolCallID, toolName string, issues *[]ValidationIssue) string {
	if loc := identityNumberPattern.FindStringIndex(s); loc != nil {
		*issues = append(*issues, ValidationIssue{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			Level:      IssueLevelHigh,
			Kind:       "sensitive_data",
			Message:    "identity number detected and masked",
		})
		s = identityNumberPattern.ReplaceAllStringFunc(s, maskKeepEnds(3, 1))
	}
	if loc := creditCardPattern.FindStringIndex(s); loc != nil {
		*issues = append(*issues, ValidationIssue{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			Level:      IssueLevelHigh,
			Kind:       "sensitive_data",
			Message:    "credit card number detected and masked",
		})
		s = creditCardPattern.ReplaceAllStringFunc(s, maskKeepEnds(4, 4))
	}
	if loc := emailPattern.FindStringIndex(s); loc != nil {
		*issues = append(*issues, ValidationIssue{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			Level:      IssueLevelHigh,
			Kind:       "sensitive_data",
			Message:    "email address detected and masked",
		})
		s = emailPattern.ReplaceAllStringFunc(s, maskEmail)
	}
	return s
}

// maskKeepEnds returns a masking function that preserves the first `keepStart`
// and last `keepEnd` characters of a match, replacing the rest with '*'.
func maskKeepEnds(keepStart, keepEnd int) func(string) string {
	return func(match string) string {
		if len(match) <= keepStart+keepEnd {
			return match
		}
		masked := make([]byte, len(match))
		copy(masked, match[:keepStart])
		for i := keepStart; i < len(match)-keepEnd; i++ {
			masked[i] = '*'
		}
		copy(masked[len(match)-keepEnd:], match[len(match)-keepEnd:])
		return string(masked)
	}
}

func maskEmail(match string) string {
	at := -1
	for i, c := range match {
		if c == '@' {
			at = i
			break
		}
	}
	if at <= 0 {
		return match
	}
	user := match[:at]
	rest := match[at:]
	if len(user) <= 1 {
		return match
	}
	masked := user[:1]
	for range user[1:] {
		masked += "*"
	}
	return masked + rest
}
