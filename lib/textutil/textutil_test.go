package textutil

import "testing"

func TestCollapse(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"   ", ""},
		{"CMPSC 465", "CMPSC 465"},
		{"  Data   Structures\nand\tAlgorithms ", "Data Structures and Algorithms"},
		{"3 Credits", "3 Credits"},
		{"Enforced  Prerequisite", "Enforced Prerequisite"},
		{"a​b", "a b"},
	}
	for _, test := range testCases {
		got := Collapse(test.in)
		if got != test.expected {
			t.Fatalf("Collapse(%q) = %q, expected %q", test.in, got, test.expected)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"cmpsc", "CMPSC"},
		{" cmp sc ", "CMP SC"},
		{"Acctg", "ACCTG"},
	}
	for _, test := range testCases {
		got := NormalizeCode(test.in)
		if got != test.expected {
			t.Fatalf("NormalizeCode(%q) = %q, expected %q", test.in, got, test.expected)
		}
	}
}
