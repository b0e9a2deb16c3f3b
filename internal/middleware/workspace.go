package middleware

import (
	goerrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moritani/inventory-api/internal/constants"
	"github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/models"
	"github.com/moritani/inventory-api/internal/services"
)

// RequireWorkspace resolves the tenant for the request. The X-Workspace-ID
// header wins when present; otherwise the user's persisted active
// workspace is used, falling back to their first membership when the
// stored pointer is stale. Non-members of an explicitly requested
// workspace get a 404, not a 403, so they cannot probe for workspace ids.
func RequireWorkspace(workspaces *services.WorkspaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			errors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var (
			ws     *models.Workspace
			member *models.WorkspaceMember
			err    error
		)

		if header := c.GetHeader(constants.WorkspaceHeader); header != "" {
			id, parseErr := strconv.ParseUint(header, 10, 64)
			if parseErr != nil {
				errors.BadRequest(c, "Invalid workspace id")
				c.Abort()
				return
			}
			ws, member, err = workspaces.Get(id, userID)
		} else {
			ws, member, err = workspaces.ResolveActive(userID)
		}

		if err != nil {
			switch {
			case goerrors.Is(err, services.ErrWorkspaceNotFound):
				errors.NotFound(c, "Workspace not found")
			case goerrors.Is(err, services.ErrNoWorkspace):
				errors.RespondWithCode(c, http.StatusBadRequest, errors.ErrCodeWorkspaceNotSelected, "No workspace selected")
			default:
				errors.InternalError(c, "")
			}
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyWorkspace, ws)
		c.Set(constants.ContextKeyMember, member)
		c.Next()
	}
}

// GetWorkspace returns the resolved workspace from the context.
func GetWorkspace(c *gin.Context) (*models.Workspace, bool) {
	v, ok := c.Get(constants.ContextKeyWorkspace)
	if !ok {
		return nil, false
	}
	ws, ok := v.(*models.Workspace)
	return ws, ok
}

// GetMember returns the caller's membership in the resolved workspace.
func GetMember(c *gin.Context) (*models.WorkspaceMember, bool) {
	v, ok := c.Get(constants.ContextKeyMember)
	if !ok {
		return nil, false
	}
	member, ok := v.(*models.WorkspaceMember)
	return member, ok
}
