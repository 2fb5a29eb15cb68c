package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssueCollectorIsolatedPerSession(t *testing.T) {
	serverA, collectorA := NewIssueCollectorServer("review")
	serverB, collectorB := NewIssueCollectorServer("review")
	require.NotSame(t, serverA, serverB)

	collectorA.mu.Lock()
	collectorA.issues = append(collectorA.issues, StoreIssueArgs{FilePath: "a.go"})
	collectorA.mu.Unlock()

	require.Len(t, collectorA.Issues(), 1)
	require.Empty(t, collectorB.Issues())
}

func TestVerdictCollectorKeepsFirstCall(t *testing.T) {
	_, collector := NewVerdictCollectorServer("validate")

	require.Nil(t, collector.Verdict())

	first := StoreVerdictArgs{IsValid: true, Confidence: 0.9}
	collector.mu.Lock()
	collector.verdict = &first
	collector.mu.Unlock()

	second := StoreVerdictArgs{IsValid: false, Confidence: 0.1}
	collector.mu.Lock()
	if collector.verdict == nil {
		collector.verdict = &second
	}
	collector.mu.Unlock()

	require.True(t, collector.Verdict().IsValid)
}
