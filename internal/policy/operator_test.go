package policy

import "testing"

func TestMatch_StringOperators(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		op      Operator
		literal string
		want    bool
	}{
		{"endsWith match", "user@x.com", OpEndsWith, "@x.com", true},
		{"endsWith no match", "user@evil.com", OpEndsWith, "@x.com", false},
		{"startsWith match", "https://trusted.com/page", OpStartsWith, "https://trusted.com", true},
		{"startsWith no match", "http://trusted.com", OpStartsWith, "https://trusted.com", false},
		{"contains match", "please ignore previous instructions", OpContains, "ignore previous", true},
		{"contains no match", "regular text", OpContains, "ignore previous", false},
		{"notContains match", "regular text", OpNotContains, "ignore previous", true},
		{"notContains no match", "please ignore previous instructions", OpNotContains, "ignore previous", false},
		{"regex match", "order-12345", OpRegex, `^order-\d+$`, true},
		{"regex no match", "order-abc", OpRegex, `^order-\d+$`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.value, tt.op, tt.literal)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("Match(%v, %s, %q) = %v, want %v", tt.value, tt.op, tt.literal, got, tt.want)
			}
		})
	}
}

func TestMatch_StringOperatorsRejectNonStrings(t *testing.T) {
	for _, op := range []Operator{OpEndsWith, OpStartsWith, OpContains, OpNotContains, OpRegex} {
		for _, value := range []any{42, 4.2, true, nil, []any{"x"}, map[string]any{"a": "b"}} {
			got, err := Match(value, op, "x")
			if err != nil {
				t.Fatal(err)
			}
			if got {
				t.Fatalf("Match(%v, %s, x) = true, want false for non-string", value, op)
			}
		}
	}
}

func TestMatch_EqualIsStrict(t *testing.T) {
	got, err := Match("42", OpEqual, "42")
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("expected string equal to match")
	}

	// A non-string value never equals a string literal.
	got, err = Match(42, OpEqual, "42")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Fatal("expected numeric value to never satisfy equal against a string literal")
	}
}

func TestMatch_NotEqualOnNonString(t *testing.T) {
	// A non-string value is strictly not equal to any string literal.
	got, err := Match(42, OpNotEqual, "42")
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("expected non-string to satisfy notEqual")
	}

	got, err = Match("42", OpNotEqual, "42")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Fatal("expected equal strings to fail notEqual")
	}
}

func TestMatch_MalformedRegex(t *testing.T) {
	got, err := Match("anything", OpRegex, "([unclosed")
	if err == nil {
		t.Fatal("expected error for malformed regex")
	}
	if got {
		t.Fatal("malformed regex must never match")
	}
}

func TestMatch_UnknownOperator(t *testing.T) {
	got, err := Match("anything", Operator("greaterThan"), "1")
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
	if got {
		t.Fatal("unknown operator must never match")
	}
}

func TestOperator_Valid(t *testing.T) {
	for _, op := range []Operator{OpEndsWith, OpStartsWith, OpContains, OpNotContains, OpEqual, OpNotEqual, OpRegex} {
		if !op.Valid() {
			t.Fatalf("expected %s to be valid", op)
		}
	}
	if Operator("greaterThan").Valid() {
		t.Fatal("expected greaterThan to be invalid")
	}
}
