package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseDatasetID tests dataset ID parsing
func TestParseDatasetID(t *testing.T) {
	valid := NewDatasetID().String()

	tests := []struct {
		input    string
		expected DatasetID
		hasError bool
	}{
		{valid, DatasetID(valid), false},
		{"  " + valid + " ", DatasetID(valid), false},
		{"", "", true},
		{"   ", "", true},
		{"not-a-uuid", "", true},
	}

	for _, test := range tests {
		result, err := ParseDatasetID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

// TestParseSessionID tests session ID parsing
func TestParseSessionID(t *testing.T) {
	if _, err := ParseSessionID(""); err == nil {
		t.Error("Expected error for empty session ID")
	}
	id := NewSessionID()
	parsed, err := ParseSessionID(id.String())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if parsed != id {
		t.Errorf("Expected %s, got %s", id, parsed)
	}
}

func TestParseColumnKey(t *testing.T) {
	if _, err := ParseColumnKey(" "); err == nil {
		t.Error("Expected error for blank column key")
	}
	key, err := ParseColumnKey("foodA")
	if err != nil || key != ColumnKey("foodA") {
		t.Errorf("ParseColumnKey(foodA) = %q, %v", key, err)
	}
}
