package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/pkg/models"
)

func TestMarshalYAMLRoundTrips(t *testing.T) {
	wf := models.Workflow{
		ID:          "wf-1",
		DisplayName: "Daily Digest",
		Namespace:   "global",
		Schedule:    &models.Schedule{CronExpr: "0 8 * * *", Enabled: true},
		Graph: models.WorkflowGraph{
			Nodes: []models.WorkflowNode{
				{ID: "start", Kind: models.NodeKindStart},
				{ID: "fetch", Kind: models.NodeKindTool, ToolName: "web_fetch"},
			},
			Edges: []models.WorkflowEdge{
				{ID: "e1", Source: "start", Target: "fetch"},
			},
		},
	}

	raw, err := MarshalYAML(wf)
	require.NoError(t, err)
	require.Contains(t, string(raw), "display_name: Daily Digest")

	parsed, err := UnmarshalYAML(raw)
	require.NoError(t, err)
	require.Equal(t, wf.ID, parsed.ID)
	require.Equal(t, wf.DisplayName, parsed.DisplayName)
	require.Equal(t, wf.Schedule, parsed.Schedule)
	require.Len(t, parsed.Graph.Nodes, 2)
	require.Len(t, parsed.Graph.Edges, 1)
}

func TestUnmarshalYAMLRejectsMissingID(t *testing.T) {
	_, err := UnmarshalYAML([]byte("display_name: no id here\n"))
	require.Error(t, err)
}
