package config

// BoolPtr returns a pointer to b, for optional YAML/JSON fields.
func BoolPtr(b bool) *bool { return &b }

// IntPtr returns a pointer to i, for optional YAML/JSON fields.
func IntPtr(i int) *int { return &i }

// StringPtr returns a pointer to s, for optional YAML/JSON fields.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f, for optional YAML/JSON fields.
func Float64Ptr(f float64) *float64 { return &f }
