package ui

import (
	"os"
	"testing"

	"github.com/muesli/termenv"
)

// TestMain pins the color profile so rendered strings carry no escapes.
func TestMain(m *testing.M) {
	SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}
