package main

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestInvitationsList(t *testing.T) {
	newPlatform(t, &platform{})

	out, err := execute(t, "invitations", "list")
	if err != nil {
		t.Fatalf("invitations list error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("output = %q, want header and two rows", out)
	}
	if !strings.HasPrefix(lines[1], "11") || !strings.HasPrefix(lines[2], "10") {
		t.Errorf("rows not newest first:\n%s", out)
	}
	if !strings.Contains(lines[2], "Bob") {
		t.Errorf("row = %q, want inviter Bob", lines[2])
	}
}

func TestInvitationsList_JSON(t *testing.T) {
	newPlatform(t, &platform{})

	out, err := execute(t, "invitations", "list", "--json")
	if err != nil {
		t.Fatalf("invitations list --json error = %v", err)
	}

	var got []struct {
		ID      int64 `json:"id"`
		Inviter *struct {
			DisplayName string `json:"display_name"`
		} `json:"inviter"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 2 || got[0].ID != 11 {
		t.Errorf("got = %+v, want [11 10]", got)
	}
	if got[0].Inviter == nil || got[0].Inviter.DisplayName != "Ada" {
		t.Errorf("got[0].Inviter = %+v, want Ada", got[0].Inviter)
	}
}

func TestInvitationsSend(t *testing.T) {
	p := &platform{}
	newPlatform(t, p)

	out, err := execute(t, "invitations", "send", "cy@example.com")
	if err != nil {
		t.Fatalf("invitations send error = %v", err)
	}
	if !strings.Contains(out, "Invitation sent to cy@example.com (group 5)") {
		t.Errorf("output = %q", out)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.created) != 1 || !strings.Contains(p.created[0], `"group":5`) {
		t.Errorf("created = %v, want one invitation for group 5", p.created)
	}
}

func TestInvitationsSend_ExplicitGroup(t *testing.T) {
	p := &platform{}
	newPlatform(t, p)

	out, err := execute(t, "invitations", "send", "cy@example.com", "--group", "9")
	if err != nil {
		t.Fatalf("invitations send error = %v", err)
	}
	if !strings.Contains(out, "(group 9)") {
		t.Errorf("output = %q, want group 9", out)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.created) != 1 || !strings.Contains(p.created[0], `"group":9`) {
		t.Errorf("created = %v, want one invitation for group 9", p.created)
	}
}

func TestInvitationsSend_RequiresEmail(t *testing.T) {
	newPlatform(t, &platform{})

	if _, err := execute(t, "invitations", "send"); err == nil {
		t.Fatal("send without email error = nil, want args error")
	}
}

func TestInvitationsAccept(t *testing.T) {
	newPlatform(t, &platform{})

	out, err := execute(t, "invitations", "accept", "tok")
	if err != nil {
		t.Fatalf("invitations accept error = %v", err)
	}
	if !strings.Contains(out, "Invitation accepted.") || !strings.Contains(out, "Foodsavers (5)") {
		t.Errorf("output = %q", out)
	}
}

func TestInvitationsAccept_Failure(t *testing.T) {
	newPlatform(t, &platform{acceptFails: true})

	_, err := execute(t, "invitations", "accept", "expired")
	if err == nil {
		t.Fatal("accept error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "accept invitation") {
		t.Errorf("error = %v, want accept invitation context", err)
	}
}

func TestInvitations_MissingConfig(t *testing.T) {
	clearOverrides(t)

	_, err := execute(t, "invitations", "list")
	if err == nil || !strings.Contains(err.Error(), "api.base_url is required") {
		t.Errorf("error = %v, want missing base url", err)
	}
}
