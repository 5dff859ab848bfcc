package emailgen

import (
	"regexp"
	"testing"
)

var emailPattern = regexp.MustCompile(`^[a-z]+\d{4}@[a-z]+\.[a-z]+$`)

func TestGenerate(t *testing.T) {
	emails, err := Generate(25)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(emails) != 25 {
		t.Fatalf("len(emails) = %d, want 25", len(emails))
	}
	for _, email := range emails {
		if !emailPattern.MatchString(email) {
			t.Errorf("email %q does not match name+4digits@domain", email)
		}
	}
}

func TestGenerate_InvalidCount(t *testing.T) {
	for _, count := range []int{0, -1, -100} {
		if _, err := Generate(count); err == nil {
			t.Errorf("Generate(%d) should fail", count)
		}
	}
}
