package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("disk on fire")
	tests := []struct {
		name string
		err  error
		want Kind
		msg  string
	}{
		{"plain error", base, Internal, "Server error"},
		{"classified", New(Validation, "Message cannot be empty"), Validation, "Message cannot be empty"},
		{"wrapped twice", fmt.Errorf("send: %w", Wrap(Upload, "Image upload failed", base)), Upload, "Image upload failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
			if got := Message(tt.err); got != tt.msg {
				t.Errorf("Message() = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestWrapUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(Upload, "upload failed", base)
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped cause")
	}
	if IsKind(nil, Internal) {
		t.Error("nil must not match any kind")
	}
}
