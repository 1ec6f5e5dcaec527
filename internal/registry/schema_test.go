package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

const sampleInputSchema = `{
	"type": "object",
	"properties": {"to": {"type": "string"}},
	"required": ["to"]
}`

func TestValidateArgsSkipsToolsWithNoInputSchema(t *testing.T) {
	require.NoError(t, validateArgs(models.ToolSpec{Name: "noop"}, json.RawMessage(`{"anything":1}`)))
}

func TestValidateArgsRejectsMissingRequiredField(t *testing.T) {
	spec := models.ToolSpec{Name: "gmail_send", InputSchema: json.RawMessage(sampleInputSchema)}
	err := validateArgs(spec, json.RawMessage(`{}`))
	require.Error(t, err)
	require.Equal(t, errkind.BadRequest, errkind.Of(err))
}

func TestValidateArgsAcceptsConformingArgs(t *testing.T) {
	spec := models.ToolSpec{Name: "gmail_send", InputSchema: json.RawMessage(sampleInputSchema)}
	require.NoError(t, validateArgs(spec, json.RawMessage(`{"to":"a@b.com"}`)))
}

func TestValidateArgsRejectsMalformedJSON(t *testing.T) {
	spec := models.ToolSpec{Name: "gmail_send", InputSchema: json.RawMessage(sampleInputSchema)}
	err := validateArgs(spec, json.RawMessage(`{not json`))
	require.Error(t, err)
	require.Equal(t, errkind.BadRequest, errkind.Of(err))
}

func TestInvokeRejectsArgsFailingSchemaBeforeDispatch(t *testing.T) {
	reg := New(policy.NewResolver(), &fakeCreds{})
	reg.Register(NewFuncTool(models.ToolSpec{
		Name:        "gmail_send",
		InputSchema: json.RawMessage(sampleInputSchema),
	}, func(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error) {
		t.Fatal("tool should not be invoked when args fail schema validation")
		return ToolResult{}, nil
	}))

	toolPolicy := &policy.Policy{Allow: []string{"gmail_send"}}
	_, err := reg.Invoke(context.Background(), "gmail_send", json.RawMessage(`{}`), toolPolicy, "agent:1")
	require.Error(t, err)
	require.Equal(t, errkind.BadRequest, errkind.Of(err))
}
