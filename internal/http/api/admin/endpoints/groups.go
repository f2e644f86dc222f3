package endpoints

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// GroupModule mounts /groups. Deleting a group leaves its screens standalone.
func GroupModule(d Deps) api.Module {
	ctl := newAdminController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/groups", ctl.listGroups)
		c.POST("/groups", ctl.createGroup)
		c.GET("/groups/:id", ctl.getGroup)
		c.DELETE("/groups/:id", ctl.deleteGroup)
		c.GET("/groups/:id/screens", ctl.listGroupScreens)
		c.PUT("/groups/:id/default-playlist", ctl.setGroupDefaultPlaylist)
		c.GET("/groups/:id/decision", ctl.previewGroup)
	})
}

// GET /api/admin/groups
func (a *AdminController) listGroups(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	all, err := a.store.ListScreenGroups(user.ID)
	if err != nil {
		return nil, api.FromError(err, "groups")
	}
	out := make([]packets.GroupResponse, 0, len(all))
	for _, g := range all {
		out = append(out, packets.NewGroupResponse(g))
	}
	return out, nil
}

// POST /api/admin/groups
func (a *AdminController) createGroup(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateGroupRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	group, err := a.store.CreateScreenGroup(user.ID, request.Name, request.Description)
	if err != nil {
		return nil, api.FromError(err, "group")
	}
	log.Info().Int("group_id", group.ID).Int("user_id", user.ID).Msg("group created")
	return packets.NewGroupResponse(group), nil
}

// GET /api/admin/groups/:id
func (a *AdminController) getGroup(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	group, apiErr := a.ownGroup(user, id)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewGroupResponse(group), nil
}

// DELETE /api/admin/groups/:id
func (a *AdminController) deleteGroup(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownGroup(user, id); apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.DeleteGroup(ctx, id); err != nil {
		return nil, api.FromError(err, "group")
	}
	return nil, nil
}

// GET /api/admin/groups/:id/screens
func (a *AdminController) listGroupScreens(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownGroup(user, id); apiErr != nil {
		return nil, apiErr
	}
	members, err := a.store.ListScreensInGroup(id)
	if err != nil {
		return nil, api.FromError(err, "screens")
	}
	out := make([]packets.ScreenResponse, 0, len(members))
	for _, s := range members {
		out = append(out, packets.NewScreenResponse(s))
	}
	return out, nil
}

// PUT /api/admin/groups/:id/default-playlist
func (a *AdminController) setGroupDefaultPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownGroup(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.SetDefaultPlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if apiErr := a.optionalPlaylist(user, request.PlaylistID); apiErr != nil {
		return nil, apiErr
	}

	if err := a.svc.SetGroupDefaultPlaylist(ctx, id, request.PlaylistID); err != nil {
		return nil, api.FromError(err, "group")
	}
	group, err := a.store.GetScreenGroupByID(id)
	if err != nil {
		return nil, api.FromError(err, "group")
	}
	return packets.NewGroupResponse(group), nil
}

// GET /api/admin/groups/:id/decision?at=
//
// Resolves the group's own layer, as a screen with no overrides or rules of
// its own would see it.
func (a *AdminController) previewGroup(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownGroup(user, id); apiErr != nil {
		return nil, apiErr
	}
	at, apiErr := a.previewTime(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	decision, err := a.engine.ResolveGroup(a.preview, id, at)
	if err != nil {
		return nil, api.FromError(err, "group")
	}
	return packets.DecisionResponse{At: at.Format(time.RFC3339), Decision: decision}, nil
}
