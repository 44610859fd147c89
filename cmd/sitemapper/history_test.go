package main

import (
	"testing"
)

// TestNewHistoryCmd tests the history command creation.
//
// Note: runHistoryCmd reads the database from the XDG data directory,
// which the xdg library resolves once at package initialization. The
// directory cannot be redirected with t.Setenv, so execution against a
// real database is covered by the database package tests instead.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "history [site]" {
			t.Errorf("expected use 'history [site]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has tree flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("tree") == nil {
			t.Fatal("expected tree flag")
		}
	})

	t.Run("rejects more than one argument", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, []string{"a.example", "b.example"}); err == nil {
			t.Error("expected error for two arguments, got nil")
		}
	})
}
