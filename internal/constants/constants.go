package constants

// Context keys shared between middleware and handlers.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUsername  = "username"
	ContextKeyWorkspace = "workspace"
	ContextKeyMember    = "workspace_member"
)

// Validation limits.
const (
	MinPasswordLength = 8
	MaxUsernameLength = 50
)

// Pagination defaults.
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HTTP header carrying an explicit workspace selection. When absent the
// persisted active workspace is used instead.
const WorkspaceHeader = "X-Workspace-ID"
