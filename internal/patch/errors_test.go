package patch

import (
	"errors"
	"fmt"
	"testing"
)

func TestProcessErrorMessage(t *testing.T) {
	err := SecurityErrorf("patch has %d hunks", 101)
	want := "security: patch has 101 hunks"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
		want bool
	}{
		{"matching kind", ValidationError("empty"), KindValidation, true},
		{"different kind", ValidationError("empty"), KindSecurity, false},
		{"wrapped", fmt.Errorf("context: %w", ResolutionError("no target")), KindResolution, true},
		{"plain error", errors.New("boom"), KindValidation, false},
		{"nil", nil, KindValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorKindString(t *testing.T) {
	kinds := map[ErrorKind]string{
		KindValidation: "validation",
		KindResolution: "resolution",
		KindSecurity:   "security",
	}
	for kind, want := range kinds {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
