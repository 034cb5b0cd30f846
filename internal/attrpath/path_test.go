package attrpath

import (
	"reflect"
	"testing"
)

func TestResolve_SimplePath(t *testing.T) {
	v := map[string]any{"url": "https://example.com"}
	got := Resolve(v, "url")
	if !reflect.DeepEqual(got, []any{"https://example.com"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolve_NestedPath(t *testing.T) {
	v := map[string]any{
		"request": map[string]any{
			"headers": map[string]any{"host": "internal.example.com"},
		},
	}
	got := Resolve(v, "request.headers.host")
	if !reflect.DeepEqual(got, []any{"internal.example.com"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolve_AbsentField(t *testing.T) {
	v := map[string]any{"url": "https://example.com"}
	if got := Resolve(v, "recipient"); len(got) != 0 {
		t.Fatalf("expected empty result for absent field, got %v", got)
	}
}

func TestResolve_PresentButEmptyIsReturned(t *testing.T) {
	// An empty string is present data; only missing fields yield nothing.
	v := map[string]any{"subject": ""}
	got := Resolve(v, "subject")
	if !reflect.DeepEqual(got, []any{""}) {
		t.Fatalf("expected present empty string, got %v", got)
	}
}

func TestResolve_PresentNilIsReturned(t *testing.T) {
	v := map[string]any{"subject": nil}
	got := Resolve(v, "subject")
	if len(got) != 1 || got[0] != nil {
		t.Fatalf("expected present nil value, got %v", got)
	}
}

func TestResolve_Wildcard(t *testing.T) {
	v := map[string]any{
		"emails": []any{
			map[string]any{"from": "a@x.com"},
			map[string]any{"from": "b@x.com"},
		},
	}
	got := Resolve(v, "emails[*].from")
	if !reflect.DeepEqual(got, []any{"a@x.com", "b@x.com"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolve_WildcardDropsElementsWithoutField(t *testing.T) {
	v := map[string]any{
		"emails": []any{
			map[string]any{"from": "a@x.com"},
			map[string]any{"subject": "no sender"},
			map[string]any{"from": "c@x.com"},
		},
	}
	got := Resolve(v, "emails[*].from")
	if !reflect.DeepEqual(got, []any{"a@x.com", "c@x.com"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolve_WildcardOnNonArray(t *testing.T) {
	v := map[string]any{"emails": map[string]any{"from": "a@x.com"}}
	if got := Resolve(v, "emails[*].from"); len(got) != 0 {
		t.Fatalf("expected empty result for non-array prefix, got %v", got)
	}
}

func TestResolve_WildcardWithoutSuffix(t *testing.T) {
	v := map[string]any{"tags": []any{"a", "b"}}
	got := Resolve(v, "tags[*]")
	if !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolve_NestedWildcard(t *testing.T) {
	v := map[string]any{
		"threads": []any{
			map[string]any{"messages": []any{
				map[string]any{"from": "a@x.com"},
				map[string]any{"from": "b@x.com"},
			}},
			map[string]any{"messages": []any{
				map[string]any{"from": "c@x.com"},
			}},
		},
	}
	got := Resolve(v, "threads[*].messages[*].from")
	if !reflect.DeepEqual(got, []any{"a@x.com", "b@x.com", "c@x.com"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestResolve_EmptyArrayYieldsNothing(t *testing.T) {
	v := map[string]any{"emails": []any{}}
	if got := Resolve(v, "emails[*].from"); len(got) != 0 {
		t.Fatalf("expected empty result for empty array, got %v", got)
	}
}

func TestResolve_NonObjectRoot(t *testing.T) {
	if got := Resolve("plain string", "url"); len(got) != 0 {
		t.Fatalf("expected empty result for non-object root, got %v", got)
	}
	if got := Resolve(nil, "url"); len(got) != 0 {
		t.Fatalf("expected empty result for nil root, got %v", got)
	}
}

func TestResolve_EmptyPath(t *testing.T) {
	if got := Resolve(map[string]any{"a": 1}, ""); len(got) != 0 {
		t.Fatalf("expected empty result for empty path, got %v", got)
	}
}
