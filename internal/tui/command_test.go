package tui

import (
	"errors"
	"slices"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"q", Command{Name: "quit"}},
		{"  QUIT ", Command{Name: "quit"}},
		{"h", Command{Name: "help"}},
		{"open Ann Smith", Command{Name: "open", Args: "Ann Smith"}},
		{"rename   New  Name ", Command{Name: "rename", Args: "New  Name"}},
		{"refresh", Command{Name: "refresh"}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if err != nil {
			t.Errorf("ParseCommand(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrUnknownCommand},
		{"frobnicate", ErrUnknownCommand},
		{"open", ErrMissingArgument},
		{"rename   ", ErrMissingArgument},
	}
	for _, tt := range tests {
		if _, err := ParseCommand(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("ParseCommand(%q) error = %v, want %v", tt.in, err, tt.want)
		}
	}
}

func TestCompleteCommand(t *testing.T) {
	names := []string{"Ann", "anna", "Bob", ""}
	tests := []struct {
		in   string
		want []string
	}{
		{"re", []string{"rename", "refresh"}},
		{"Q", []string{"quit"}},
		{"x", nil},
		{"open an", []string{"open Ann", "open anna"}},
		{"open ", []string{"open Ann", "open anna", "open Bob"}},
		{"rename a", nil},
	}
	for _, tt := range tests {
		if got := CompleteCommand(tt.in, names); !slices.Equal(got, tt.want) {
			t.Errorf("CompleteCommand(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
