package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/pkg/models"
)

func TestNormalizeKindMapsUIFlavoredLabels(t *testing.T) {
	require.Equal(t, models.NodeKindStart, normalizeKind("startNode"))
	require.Equal(t, models.NodeKindTool, normalizeKind("toolNode"))
	require.Equal(t, models.NodeKindTool, normalizeKind("agentNode"))
	require.Equal(t, models.NodeKindMapper, normalizeKind("decisionNode"))
}

func TestResolveToolNameErrorsWhenMissing(t *testing.T) {
	_, err := resolveToolName(models.WorkflowNode{ID: "n1", Kind: models.NodeKindTool})
	require.Error(t, err)
}

func TestResolveToolNamePrefersExplicitToolName(t *testing.T) {
	name, err := resolveToolName(models.WorkflowNode{ID: "n1", Kind: models.NodeKindTool, ToolName: "echo"})
	require.NoError(t, err)
	require.Equal(t, "echo", name)
}

func TestBuildStagesOrdersByDependency(t *testing.T) {
	graph := models.WorkflowGraph{
		Nodes: []models.WorkflowNode{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []models.WorkflowEdge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
		},
	}
	stages, err := buildStages(graph)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, stages.stages)
}

func TestBuildStagesDetectsCycle(t *testing.T) {
	graph := models.WorkflowGraph{
		Nodes: []models.WorkflowNode{{ID: "a"}, {ID: "b"}},
		Edges: []models.WorkflowEdge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}
	_, err := buildStages(graph)
	require.Error(t, err)
}

func TestBuildStagesGroupsIndependentBranches(t *testing.T) {
	graph := models.WorkflowGraph{
		Nodes: []models.WorkflowNode{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []models.WorkflowEdge{
			{Source: "a", Target: "c"},
			{Source: "b", Target: "c"},
		},
	}
	stages, err := buildStages(graph)
	require.NoError(t, err)
	require.Len(t, stages.stages, 2)
	require.ElementsMatch(t, []string{"a", "b"}, stages.stages[0])
	require.Equal(t, []string{"c"}, stages.stages[1])
}
