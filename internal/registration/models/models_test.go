package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "hope/pkg/domain"
)

func TestNewDocumentKey(t *testing.T) {
	t.Run("normalizes all identifying fields", func(t *testing.T) {
		a := NewDocumentKey(" NATIONAL_ID ", "pl", "asd-123")
		b := NewDocumentKey("national_id", "PL ", "ASD 123")
		assert.Equal(t, a, b)
		assert.Equal(t, "national_id|PL|ASD123", a.String())
	})

	t.Run("different type does not collide", func(t *testing.T) {
		assert.NotEqual(t,
			NewDocumentKey("national_id", "PL", "ASD123"),
			NewDocumentKey("passport", "PL", "ASD123"))
	})

	t.Run("blank number is zero", func(t *testing.T) {
		assert.True(t, NewDocumentKey("national_id", "PL", " - ").IsZero())
		assert.False(t, NewDocumentKey("national_id", "PL", "1").IsZero())
	})
}

func TestDeduplicationEngineStatus_Transitions(t *testing.T) {
	allowed := []struct{ from, to DeduplicationEngineStatus }{
		{EngineStatusPending, EngineStatusUploaded},
		{EngineStatusPending, EngineStatusUploadError},
		{EngineStatusUploaded, EngineStatusInProgress},
		{EngineStatusUploaded, EngineStatusError},
		{EngineStatusInProgress, EngineStatusFinished},
		{EngineStatusInProgress, EngineStatusError},
		{EngineStatusUploadError, EngineStatusPending},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	forbidden := []struct{ from, to DeduplicationEngineStatus }{
		{EngineStatusPending, EngineStatusInProgress},
		{EngineStatusUploadError, EngineStatusUploaded},
		{EngineStatusFinished, EngineStatusInProgress},
		{EngineStatusInProgress, EngineStatusUploaded},
	}
	for _, tt := range forbidden {
		assert.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDeduplicationResults_Add(t *testing.T) {
	var r DeduplicationResults
	r.Add(DuplicateHit{IndividualID: id.IndividualID(uuid.New()), Score: 0.8})
	r.Add(DuplicateHit{IndividualID: id.IndividualID(uuid.New()), Score: 0.95})
	r.Add(DuplicateHit{IndividualID: id.IndividualID(uuid.New()), Score: 0.7})

	assert.Len(t, r.Duplicates, 3)
	assert.InDelta(t, 0.7, r.ScoreMin, 1e-9)
	assert.InDelta(t, 0.95, r.ScoreMax, 1e-9)
}

func TestNewSimilarityPair_CanonicalOrder(t *testing.T) {
	a := id.IndividualID(uuid.MustParse("00000000-0000-0000-0000-00000000000a"))
	b := id.IndividualID(uuid.MustParse("00000000-0000-0000-0000-00000000000b"))
	program := id.ProgramID(uuid.New())

	assert.Equal(t, NewSimilarityPair(program, a, b, 0.9), NewSimilarityPair(program, b, a, 0.9))
}
