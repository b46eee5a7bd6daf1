package graph

import "strings"

// IntrinsicPrefix is the namespace of intrinsic function calls inside
// payload templates, e.g. "States.Format('{}', $.name)".
const IntrinsicPrefix = "States."

// TemplateSuffix marks a payload template key whose value is evaluated as
// a path or intrinsic call instead of taken literally.
const TemplateSuffix = ".$"

// IsTemplateKey reports whether key carries the ".$" suffix.
func IsTemplateKey(key string) bool {
	return strings.HasSuffix(key, TemplateSuffix)
}

// TemplateKeyName strips the ".$" suffix from key.
func TemplateKeyName(key string) string {
	return strings.TrimSuffix(key, TemplateSuffix)
}

// IsIntrinsic reports whether v is an intrinsic function call.
func IsIntrinsic(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), IntrinsicPrefix)
}

// HasTemplateKeys reports whether any object nested in v has a ".$" key.
// Such values cannot be placed into a payload template verbatim.
func HasTemplateKeys(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if IsTemplateKey(k) || HasTemplateKeys(e) {
				return true
			}
		}
	case []any:
		for _, e := range t {
			if HasTemplateKeys(e) {
				return true
			}
		}
	}
	return false
}
