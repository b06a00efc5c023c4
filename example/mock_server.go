package main

import (
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// mockPlatform is an in-memory stand-in for the platform REST API. Other
// members send an invitation every 20-60 seconds so periodic refresh has
// something to pick up.
type mockPlatform struct {
	mu           sync.Mutex
	currentGroup int64
	nextID       int64
	nextInviteAt time.Time
	invitations  []map[string]any
}

var mockGroups = map[int64]map[string]any{
	5: {"id": 5, "name": "Foodsavers", "description": "Saving food in the neighbourhood", "members": []int64{1, 2}},
	7: {"id": 7, "name": "Gardeners", "members": []int64{1, 3}},
}

var mockUsers = []map[string]any{
	{"id": 1, "display_name": "Ada"},
	{"id": 2, "display_name": "Bob"},
	{"id": 3, "display_name": "Cy"},
}

// StartMockPlatform serves the mock API on addr.
// Call this in a goroutine before creating the app.
func StartMockPlatform(addr string) {
	p := &mockPlatform{
		currentGroup: 5,
		nextID:       100,
		nextInviteAt: time.Now().Add(randomDelay()),
	}
	p.invitations = []map[string]any{
		p.newInvitation("welcome@example.com", 5, 2, time.Now().Add(-48*time.Hour)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/user/", p.handleAuthUser)
	mux.HandleFunc("GET /api/groups/{id}/", p.handleGroup)
	mux.HandleFunc("GET /api/users/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mockUsers)
	})
	mux.HandleFunc("GET /api/invitations/", p.handleListInvitations)
	mux.HandleFunc("POST /api/invitations/", p.handleCreateInvitation)
	mux.HandleFunc("POST /api/invitations/{token}/accept/", p.handleAccept)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock platform error", "error", err)
	}
}

func randomDelay() time.Duration {
	return time.Duration(20+rand.Intn(41)) * time.Second
}

// newInvitation must be called with p.mu held or before the server starts.
func (p *mockPlatform) newInvitation(email string, group, invitedBy int64, createdAt time.Time) map[string]any {
	p.nextID++
	return map[string]any{
		"id":         p.nextID,
		"email":      email,
		"group":      group,
		"invited_by": invitedBy,
		"created_at": createdAt.UTC().Format(time.RFC3339),
		"expires_at": createdAt.Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339),
	}
}

func (p *mockPlatform) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	group := p.currentGroup
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":            1,
		"display_name":  "Ada",
		"email":         "ada@example.com",
		"current_group": group,
	})
}

func (p *mockPlatform) handleGroup(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	g, ok := mockGroups[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (p *mockPlatform) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	group, _ := strconv.ParseInt(r.URL.Query().Get("group"), 10, 64)

	p.mu.Lock()
	if time.Now().After(p.nextInviteAt) {
		inv := p.newInvitation("guest"+strconv.FormatInt(p.nextID, 10)+"@example.com", 5, 2, time.Now())
		p.invitations = append(p.invitations, inv)
		p.nextInviteAt = time.Now().Add(randomDelay())
		slog.Info("mock invitation created", "email", inv["email"])
	}
	var out []map[string]any
	for _, inv := range p.invitations {
		if inv["group"] == group {
			out = append(out, inv)
		}
	}
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (p *mockPlatform) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		Group int64  `json:"group"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !strings.Contains(in.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"email": "Enter a valid email address."})
		return
	}

	p.mu.Lock()
	inv := p.newInvitation(in.Email, in.Group, 1, time.Now())
	p.invitations = append(p.invitations, inv)
	p.mu.Unlock()

	writeJSON(w, http.StatusCreated, inv)
}

// handleAccept accepts only the "welcome" token, which moves the user to
// the Gardeners group. Anything else is an expired invitation.
func (p *mockPlatform) handleAccept(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("token") != "welcome" {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	p.mu.Lock()
	p.currentGroup = 7
	p.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
