package validation

import "testing"

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{name: "minimum length", password: "pass", valid: true},
		{name: "long", password: "correct horse battery staple", valid: true},
		{name: "multibyte counted as characters", password: "éàüö", valid: true},
		{name: "too short", password: "abc", valid: false},
		{name: "empty", password: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidPassword(tt.password)
			if got != tt.valid {
				t.Fatalf("IsValidPassword(%q) = %v, want %v", tt.password, got, tt.valid)
			}
		})
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{name: "simple", username: "alice", valid: true},
		{name: "accented", username: "aïcha", valid: true},
		{name: "empty", username: "", valid: false},
		{name: "leading space", username: " alice", valid: false},
		{name: "control char", username: "ali\nce", valid: false},
		{name: "too long", username: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidUsername(tt.username)
			if got != tt.valid {
				t.Fatalf("IsValidUsername(%q) = %v, want %v", tt.username, got, tt.valid)
			}
		})
	}
}

func TestIsValidMonthKey(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{name: "valid", key: "2024-06", valid: true},
		{name: "december", key: "1999-12", valid: true},
		{name: "month out of range", key: "2024-13", valid: false},
		{name: "single digit month", key: "2024-6", valid: false},
		{name: "with day", key: "2024-06-01", valid: false},
		{name: "empty", key: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidMonthKey(tt.key)
			if got != tt.valid {
				t.Fatalf("IsValidMonthKey(%q) = %v, want %v", tt.key, got, tt.valid)
			}
		})
	}
}
