package session

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("app: %w: no files", ErrModelNotReady), "model_not_ready"},
		{ErrAudioPermissionDenied, "audio_permission_denied"},
		{fmt.Errorf("server: connection lost: %w", ErrAudioDevice), "audio_device"},
		{ErrDecodeFailure, "decode_failure"},
		{ErrEmptyResult, "empty_result"},
		{ErrCancelled, "cancelled"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
