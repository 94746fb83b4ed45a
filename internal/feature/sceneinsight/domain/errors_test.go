package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"photo_backend/internal/feature/sceneinsight/domain"
)

func TestPipelineError_Is(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		wantKind domain.Kind
	}{
		{"decode", domain.DecodeError("preprocess", cause), domain.ErrDecode, domain.KindDecode},
		{"inference", domain.InferenceError("classify", cause), domain.ErrInference, domain.KindInference},
		{"generation", domain.GenerationError("generate", cause), domain.ErrGeneration, domain.KindGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, tt.err, cause)

			for _, other := range []error{domain.ErrDecode, domain.ErrInference, domain.ErrGeneration} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other)
				}
			}

			kind, ok := domain.KindOf(fmt.Errorf("wrapped: %w", tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestPipelineError_Error(t *testing.T) {
	t.Parallel()

	err := domain.GenerationError("gemini", context.DeadlineExceeded)

	assert.Equal(t, "gemini: generation error: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKindOf_NotPipelineError(t *testing.T) {
	t.Parallel()

	_, ok := domain.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "decode", domain.KindDecode.String())
	assert.Equal(t, "inference", domain.KindInference.String())
	assert.Equal(t, "generation", domain.KindGeneration.String())
	assert.Equal(t, "unknown", domain.Kind(0).String())
}
