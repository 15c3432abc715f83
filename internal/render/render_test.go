package render

import "testing"

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"name": "Ada", "amount": "42"}
	got := substitute("Hi {{name}}, you owe {{ amount }}.", vars)
	if got != "Hi Ada, you owe 42." {
		t.Fatalf("got %q", got)
	}
}

func TestSubstituteKeepsUnknownPlaceholders(t *testing.T) {
	got := substitute("Hi {{name}}", nil)
	if got != "Hi {{name}}" {
		t.Fatalf("got %q", got)
	}
}
