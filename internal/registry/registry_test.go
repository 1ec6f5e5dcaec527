package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

type fakeCreds struct {
	values map[string]string
}

func (f *fakeCreds) Get(ctx context.Context, scope, keyName string) (string, error) {
	if v, ok := f.values[keyName]; ok {
		return v, nil
	}
	return "", errNotFound
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "credential not found" }

func echoTool(name, authProvider string) *FuncTool {
	return NewFuncTool(models.ToolSpec{Name: name, AuthProvider: authProvider}, func(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error) {
		return ToolResult{Status: "ok", Output: args}, nil
	})
}

func TestRequiredKeysInfersFromGmailProvider(t *testing.T) {
	keys := RequiredKeys("gmail", nil)
	require.ElementsMatch(t, []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REFRESH_TOKEN"}, keys)
}

func TestRequiredKeysMergesDeclaredAndInferred(t *testing.T) {
	keys := RequiredKeys("gmail", []string{"CUSTOM_KEY"})
	require.Contains(t, keys, "CUSTOM_KEY")
	require.Contains(t, keys, "GOOGLE_CLIENT_ID")
}

func TestInvokeDispatchesWhenAllowedAndCredentialsResolve(t *testing.T) {
	reg := New(policy.NewResolver(), &fakeCreds{values: map[string]string{
		"GOOGLE_CLIENT_ID": "id", "GOOGLE_CLIENT_SECRET": "secret", "GOOGLE_REFRESH_TOKEN": "token",
	}})
	reg.Register(echoTool("gmail_send", "gmail"))

	toolPolicy := &policy.Policy{Allow: []string{"gmail_send"}}
	result, err := reg.Invoke(context.Background(), "gmail_send", json.RawMessage(`{"to":"a@b.com"}`), toolPolicy, "agent:1")
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
}

func TestInvokeRejectsToolNotInAllowlist(t *testing.T) {
	reg := New(policy.NewResolver(), &fakeCreds{})
	reg.Register(echoTool("gmail_send", "gmail"))

	toolPolicy := &policy.Policy{Allow: []string{"other_tool"}}
	_, err := reg.Invoke(context.Background(), "gmail_send", json.RawMessage(`{}`), toolPolicy, "agent:1")
	require.Error(t, err)
}

func TestInvokeFailsOnMissingCredential(t *testing.T) {
	reg := New(policy.NewResolver(), &fakeCreds{values: map[string]string{}})
	reg.Register(echoTool("gmail_send", "gmail"))

	toolPolicy := &policy.Policy{Allow: []string{"gmail_send"}}
	_, err := reg.Invoke(context.Background(), "gmail_send", json.RawMessage(`{}`), toolPolicy, "agent:1")
	require.Error(t, err)
}

func TestInvokeNotFoundForUnknownTool(t *testing.T) {
	reg := New(policy.NewResolver(), nil)
	_, err := reg.Invoke(context.Background(), "missing", json.RawMessage(`{}`), &policy.Policy{Profile: policy.ProfileFull}, "agent:1")
	require.Error(t, err)
}

func TestListEnumeratesRegisteredTools(t *testing.T) {
	reg := New(policy.NewResolver(), nil)
	reg.Register(echoTool("t1", ""))
	reg.Register(echoTool("t2", ""))

	require.Len(t, reg.List(), 2)
}
