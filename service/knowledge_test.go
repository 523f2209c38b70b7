package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TIANLI0/CaneScan/model"
)

func TestKnowledgeBase_CoversEveryLabel(t *testing.T) {
	kb := NewKnowledgeBase()
	for _, label := range model.Labels {
		rec, ok := kb.Lookup(label)
		require.True(t, ok, label)
		require.False(t, rec.IsEmpty(), label)
	}
	require.Equal(t, model.Labels, kb.Labels())
}

func TestKnowledgeBase_UnknownLabelIsEmpty(t *testing.T) {
	kb := NewKnowledgeBase()
	rec, ok := kb.Lookup("Smut")
	require.False(t, ok)
	require.True(t, rec.IsEmpty())

	rec, ok = kb.Lookup("")
	require.False(t, ok)
	require.True(t, rec.IsEmpty())
}

func TestKnowledgeBase_RustRecord(t *testing.T) {
	rec, _ := NewKnowledgeBase().Lookup(model.LabelRust)
	require.Contains(t, rec.Cause, "Puccinia melanocephala")
}
