package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gasable/hub/pkg/models"
)

// workflowDoc is the YAML-facing shape of a Workflow: snake_case keys, no
// DB-owned timestamps.
type workflowDoc struct {
	ID          string               `yaml:"id"`
	DisplayName string               `yaml:"display_name"`
	Namespace   string               `yaml:"namespace,omitempty"`
	Schedule    *models.Schedule     `yaml:"schedule,omitempty"`
	Nodes       []models.WorkflowNode `yaml:"nodes"`
	Edges       []models.WorkflowEdge `yaml:"edges"`
}

// MarshalYAML renders a workflow as a YAML manifest, for export.
func MarshalYAML(wf models.Workflow) ([]byte, error) {
	doc := workflowDoc{
		ID:          wf.ID,
		DisplayName: wf.DisplayName,
		Namespace:   wf.Namespace,
		Schedule:    wf.Schedule,
		Nodes:       wf.Graph.Nodes,
		Edges:       wf.Graph.Edges,
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow yaml: %w", err)
	}
	return out, nil
}

// UnmarshalYAML parses a YAML workflow manifest, for import.
func UnmarshalYAML(raw []byte) (models.Workflow, error) {
	var doc workflowDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return models.Workflow{}, fmt.Errorf("parse workflow yaml: %w", err)
	}
	if doc.ID == "" {
		return models.Workflow{}, fmt.Errorf("workflow yaml missing id")
	}
	return models.Workflow{
		ID:          doc.ID,
		DisplayName: doc.DisplayName,
		Namespace:   doc.Namespace,
		Schedule:    doc.Schedule,
		Graph: models.WorkflowGraph{
			Nodes: doc.Nodes,
			Edges: doc.Edges,
		},
	}, nil
}
