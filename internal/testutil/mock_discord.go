package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"

	"github.com/parsascontentcorner/phoenix/internal/discord"
)

// RecordedRequest is a request received by the mock Discord API.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	AuditReason   string
	ContentType   string
	Body          []byte   // JSON body, or the payload_json part of a multipart body
	Files         []string // uploaded file names
}

// DecodeJSON decodes the request body into v.
func (r RecordedRequest) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// DiscordErrorResponse represents an error response from Discord.
type DiscordErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MockDiscordServer represents a mock Discord REST API for testing.
// It records every request and keeps guild roles and member role sets in memory.
type MockDiscordServer struct {
	Server     *httptest.Server
	GatewayURL string

	mu            sync.Mutex
	requests      []RecordedRequest
	roles         map[snowflake.ID][]*discord.Role
	members       map[string]*discord.Member
	messages      map[snowflake.ID]*discord.Message
	failures      map[string]int
	rateLimitNext int
	nextID        atomic.Uint64
}

// NewMockDiscordServer creates a new mock Discord API server.
func NewMockDiscordServer() *MockDiscordServer {
	mds := &MockDiscordServer{
		roles:    make(map[snowflake.ID][]*discord.Role),
		members:  make(map[string]*discord.Member),
		messages: make(map[snowflake.ID]*discord.Message),
		failures: make(map[string]int),
	}
	mds.nextID.Store(900000000000000000)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v10/interactions/{id}/{token}/callback", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/v10/webhooks/{app}/{token}", mds.handleMessage)
	mux.HandleFunc("PATCH /api/v10/webhooks/{app}/{token}/messages/@original", mds.handleMessage)
	mux.HandleFunc("POST /api/v10/channels/{channel}/messages", mds.handleMessage)
	mux.HandleFunc("PATCH /api/v10/channels/{channel}/messages/{message}", mds.handleMessage)

	mux.HandleFunc("GET /api/v10/channels/{channel}/messages/{message}", func(w http.ResponseWriter, r *http.Request) {
		messageID, _ := snowflake.Parse(r.PathValue("message"))
		mds.mu.Lock()
		msg, ok := mds.messages[messageID]
		mds.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, DiscordErrorResponse{Code: 10008, Message: "Unknown Message"})
			return
		}
		writeJSON(w, http.StatusOK, msg)
	})

	mux.HandleFunc("GET /api/v10/guilds/{guild}/roles", func(w http.ResponseWriter, r *http.Request) {
		guildID, _ := snowflake.Parse(r.PathValue("guild"))
		mds.mu.Lock()
		roles := mds.roles[guildID]
		mds.mu.Unlock()
		if roles == nil {
			roles = []*discord.Role{}
		}
		writeJSON(w, http.StatusOK, roles)
	})

	mux.HandleFunc("GET /api/v10/guilds/{guild}/members/{user}", func(w http.ResponseWriter, r *http.Request) {
		mds.mu.Lock()
		member, ok := mds.members[memberKey(r.PathValue("guild"), r.PathValue("user"))]
		mds.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, DiscordErrorResponse{Code: 10007, Message: "Unknown Member"})
			return
		}
		writeJSON(w, http.StatusOK, member)
	})

	mux.HandleFunc("PUT /api/v10/guilds/{guild}/members/{user}/roles/{role}", func(w http.ResponseWriter, r *http.Request) {
		roleID, _ := snowflake.Parse(r.PathValue("role"))
		mds.mu.Lock()
		member := mds.memberLocked(r.PathValue("guild"), r.PathValue("user"))
		if !member.HasRole(roleID) {
			member.Roles = append(member.Roles, roleID)
		}
		mds.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("DELETE /api/v10/guilds/{guild}/members/{user}/roles/{role}", func(w http.ResponseWriter, r *http.Request) {
		roleID, _ := snowflake.Parse(r.PathValue("role"))
		mds.mu.Lock()
		member := mds.memberLocked(r.PathValue("guild"), r.PathValue("user"))
		kept := member.Roles[:0]
		for _, id := range member.Roles {
			if id != roleID {
				kept = append(kept, id)
			}
		}
		member.Roles = kept
		mds.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	echoCommands := func(w http.ResponseWriter, r *http.Request) {
		var commands []*discord.ApplicationCommand
		if err := json.Unmarshal(requestBody(r), &commands); err != nil {
			writeJSON(w, http.StatusBadRequest, DiscordErrorResponse{Code: 50035, Message: "Invalid Form Body"})
			return
		}
		for _, cmd := range commands {
			cmd.ID = snowflake.ID(mds.nextID.Add(1))
		}
		writeJSON(w, http.StatusOK, commands)
	}
	mux.HandleFunc("PUT /api/v10/applications/{app}/commands", echoCommands)
	mux.HandleFunc("PUT /api/v10/applications/{app}/guilds/{guild}/commands", echoCommands)

	mux.HandleFunc("GET /api/v10/gateway/bot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, discord.GatewayBot{
			URL:    mds.GatewayURL,
			Shards: 1,
			SessionStartLimit: discord.SessionStartLimit{
				Total: 1000, Remaining: 999, ResetAfter: 0, MaxConcurrency: 1,
			},
		})
	})

	mds.Server = httptest.NewServer(mds.record(mux))
	return mds
}

// record captures every request and applies injected failures before routing.
func (mds *MockDiscordServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method:        r.Method,
			Path:          strings.TrimPrefix(r.URL.Path, "/api/v10"),
			Authorization: r.Header.Get("Authorization"),
			AuditReason:   r.Header.Get("X-Audit-Log-Reason"),
			ContentType:   r.Header.Get("Content-Type"),
		}

		mediaType, params, _ := mime.ParseMediaType(rec.ContentType)
		if mediaType == "multipart/form-data" {
			reader := multipart.NewReader(r.Body, params["boundary"])
			for {
				part, err := reader.NextPart()
				if err != nil {
					break
				}
				data, _ := io.ReadAll(part)
				if part.FormName() == "payload_json" {
					rec.Body = data
				} else {
					rec.Files = append(rec.Files, part.FileName())
				}
			}
		} else {
			rec.Body, _ = io.ReadAll(r.Body)
		}

		mds.mu.Lock()
		mds.requests = append(mds.requests, rec)
		rateLimited := mds.rateLimitNext > 0
		if rateLimited {
			mds.rateLimitNext--
		}
		status, failing := mds.failures[r.Method+" "+rec.Path]
		if failing {
			delete(mds.failures, r.Method+" "+rec.Path)
		}
		mds.mu.Unlock()

		if rateLimited {
			w.Header().Set("Retry-After", "0.01")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"message": "You are being rate limited.", "retry_after": 0.01, "global": false,
			})
			return
		}
		if failing {
			writeJSON(w, status, DiscordErrorResponse{Code: 0, Message: http.StatusText(status)})
			return
		}

		w.Header().Set("X-RateLimit-Limit", "50")
		w.Header().Set("X-RateLimit-Remaining", "49")
		w.Header().Set("X-RateLimit-Reset-After", "1")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, rec.Body)))
	})
}

func (mds *MockDiscordServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	body := requestBody(r)

	var msg discord.Message
	_ = json.Unmarshal(body, &msg)

	if id := r.PathValue("message"); id != "" {
		msg.ID, _ = snowflake.Parse(id)
	} else {
		msg.ID = snowflake.ID(mds.nextID.Add(1))
	}

	// Channel messages are kept so they can be fetched and edited later
	if id := r.PathValue("channel"); id != "" {
		msg.ChannelID, _ = snowflake.Parse(id)

		mds.mu.Lock()
		if stored, ok := mds.messages[msg.ID]; ok && r.Method == http.MethodPatch {
			var edit discord.MessageEdit
			_ = json.Unmarshal(body, &edit)
			if edit.Content != nil {
				stored.Content = *edit.Content
			}
			if edit.Embeds != nil {
				stored.Embeds = *edit.Embeds
			}
			if edit.Components != nil {
				stored.Components = *edit.Components
			}
			msg = *stored
		} else {
			stored := msg
			mds.messages[msg.ID] = &stored
		}
		mds.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, msg)
}

type bodyKey struct{}

func requestBody(r *http.Request) []byte {
	body, _ := r.Context().Value(bodyKey{}).([]byte)
	return body
}

func (mds *MockDiscordServer) memberLocked(guildID, userID string) *discord.Member {
	key := memberKey(guildID, userID)
	member, ok := mds.members[key]
	if !ok {
		id, _ := snowflake.Parse(userID)
		member = &discord.Member{User: &discord.User{ID: id}}
		mds.members[key] = member
	}
	return member
}

func memberKey(guildID, userID string) string {
	return guildID + "/" + userID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Close closes the mock server.
func (mds *MockDiscordServer) Close() {
	if mds.Server != nil {
		mds.Server.Close()
	}
}

// BaseURL returns the REST API base URL to pass to discord.Client.SetBaseURL.
func (mds *MockDiscordServer) BaseURL() string {
	return fmt.Sprintf("%s/api/v10", mds.Server.URL)
}

// SetRoles sets the roles returned for a guild.
func (mds *MockDiscordServer) SetRoles(guildID snowflake.ID, roles ...*discord.Role) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	mds.roles[guildID] = roles
}

// SetMember stores a guild member.
func (mds *MockDiscordServer) SetMember(guildID snowflake.ID, member *discord.Member) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	mds.members[memberKey(guildID.String(), member.User.ID.String())] = member
}

// MemberRoles returns the current role ids of a member.
func (mds *MockDiscordServer) MemberRoles(guildID, userID snowflake.ID) []snowflake.ID {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	member, ok := mds.members[memberKey(guildID.String(), userID.String())]
	if !ok {
		return nil
	}
	return append([]snowflake.ID(nil), member.Roles...)
}

// SetMessage stores a channel message so it can be fetched.
func (mds *MockDiscordServer) SetMessage(msg *discord.Message) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	stored := *msg
	mds.messages[msg.ID] = &stored
}

// Message returns a stored channel message.
func (mds *MockDiscordServer) Message(messageID snowflake.ID) (*discord.Message, bool) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	msg, ok := mds.messages[messageID]
	if !ok {
		return nil, false
	}
	out := *msg
	return &out, true
}

// DeleteMessage forgets a stored channel message.
func (mds *MockDiscordServer) DeleteMessage(messageID snowflake.ID) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	delete(mds.messages, messageID)
}

// FailNext makes the next request to method and path (without the /api/v10 prefix) fail with status.
func (mds *MockDiscordServer) FailNext(method, path string, status int) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	mds.failures[method+" "+path] = status
}

// RateLimitNext answers the next n requests with 429.
func (mds *MockDiscordServer) RateLimitNext(n int) {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	mds.rateLimitNext = n
}

// Requests returns a copy of all recorded requests.
func (mds *MockDiscordServer) Requests() []RecordedRequest {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	return append([]RecordedRequest(nil), mds.requests...)
}

// RequestsTo returns the recorded requests matching method whose path starts with prefix.
func (mds *MockDiscordServer) RequestsTo(method, prefix string) []RecordedRequest {
	var matched []RecordedRequest
	for _, req := range mds.Requests() {
		if req.Method == method && strings.HasPrefix(req.Path, prefix) {
			matched = append(matched, req)
		}
	}
	return matched
}

// ResetRequests clears the recorded requests.
func (mds *MockDiscordServer) ResetRequests() {
	mds.mu.Lock()
	defer mds.mu.Unlock()
	mds.requests = nil
}
