package governance

import (
	"context"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{Tool: "search"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test Deny
	engine.DenyTool("refactor")
	req2 := Request{Tool: "refactor"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultPolicyEngine_DenyAction(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	engine.DenyAction("git", "push", "commit")
	ctx := context.Background()

	cases := []struct {
		req  Request
		want Effect
	}{
		{Request{Tool: "git", Action: "push"}, EffectDeny},
		{Request{Tool: "git", Action: "commit"}, EffectDeny},
		{Request{Tool: "git", Action: "log"}, EffectAllow},
		{Request{Tool: "file", Action: "push"}, EffectAllow},
		{Request{Tool: "git"}, EffectAllow},
	}
	for _, c := range cases {
		res, err := engine.Evaluate(ctx, c.req)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if res.Effect != c.want {
			t.Errorf("%s/%s: expected %s, got %s (%s)", c.req.Tool, c.req.Action, c.want, res.Effect, res.Reason)
		}
	}
}

func TestDefaultPolicyEngine_DenyArguments(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	if err := engine.DenyArguments(`rm\s+-rf`); err != nil {
		t.Fatalf("DenyArguments failed: %v", err)
	}
	if err := engine.DenyArguments(`(`); err == nil {
		t.Errorf("Expected an error for an invalid pattern")
	}

	res, err := engine.Evaluate(context.Background(), Request{Tool: "file", Arguments: `{"content":"rm -rf /"}`})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res.Effect)
	}
}
