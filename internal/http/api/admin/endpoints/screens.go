package endpoints

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// ScreenModule mounts all authenticated /screens endpoints.
func ScreenModule(d Deps) api.Module {
	ctl := newAdminController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		// CRUD
		c.GET("/screens", ctl.listScreens)
		c.POST("/screens", ctl.createScreen)
		c.GET("/screens/:id", ctl.getScreen)
		c.PUT("/screens/:id", ctl.updateScreen)
		c.DELETE("/screens/:id", ctl.deleteScreen)

		// pairing, membership and defaults
		c.PUT("/screens/:id/device", ctl.pairScreen)
		c.PUT("/screens/:id/group", ctl.setScreenGroup)
		c.PUT("/screens/:id/default-playlist", ctl.setScreenDefaultPlaylist)

		c.GET("/screens/:id/decision", ctl.previewScreen)
	})
}

// GET /api/admin/screens
func (a *AdminController) listScreens(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	all, err := a.store.ListScreens(user.ID)
	if err != nil {
		return nil, api.FromError(err, "screens")
	}
	out := make([]packets.ScreenResponse, 0, len(all))
	for _, s := range all {
		out = append(out, packets.NewScreenResponse(s))
	}
	return out, nil
}

// POST /api/admin/screens
func (a *AdminController) createScreen(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateScreenRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if request.Timezone != "" {
		if _, err := time.LoadLocation(request.Timezone); err != nil {
			return nil, api.BadRequest("unknown timezone")
		}
	}

	screen, err := a.store.CreateScreen(request.Name, request.Location, request.Timezone, user.ID)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	log.Info().Int("screen_id", screen.ID).Int("user_id", user.ID).Msg("screen created")
	return packets.NewScreenResponse(screen), nil
}

// GET /api/admin/screens/:id
func (a *AdminController) getScreen(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	screen, apiErr := a.ownScreen(user, id)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewScreenResponse(screen), nil
}

// PUT /api/admin/screens/:id
func (a *AdminController) updateScreen(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownScreen(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateScreenRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	if err := a.svc.UpdateScreen(ctx, id, request.Name, request.Location, request.Timezone); err != nil {
		return nil, api.FromError(err, "screen")
	}
	screen, err := a.store.GetScreenByID(id)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	return packets.NewScreenResponse(screen), nil
}

// DELETE /api/admin/screens/:id
func (a *AdminController) deleteScreen(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownScreen(user, id); apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.DeleteScreen(ctx, id); err != nil {
		return nil, api.FromError(err, "screen")
	}
	return nil, nil
}

// PUT /api/admin/screens/:id/device
func (a *AdminController) pairScreen(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownScreen(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.PairScreenRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if err := a.store.PairScreen(id, request.DeviceID); err != nil {
		return nil, api.FromError(err, "screen")
	}
	screen, err := a.store.GetScreenByID(id)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	return packets.NewScreenResponse(screen), nil
}

// PUT /api/admin/screens/:id/group
func (a *AdminController) setScreenGroup(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownScreen(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.SetGroupRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if request.GroupID != nil {
		if _, apiErr := a.ownGroup(user, *request.GroupID); apiErr != nil {
			return nil, apiErr
		}
	}

	if err := a.svc.MoveScreen(ctx, id, request.GroupID); err != nil {
		return nil, api.FromError(err, "screen")
	}
	screen, err := a.store.GetScreenByID(id)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	return packets.NewScreenResponse(screen), nil
}

// PUT /api/admin/screens/:id/default-playlist
func (a *AdminController) setScreenDefaultPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownScreen(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.SetDefaultPlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if apiErr := a.optionalPlaylist(user, request.PlaylistID); apiErr != nil {
		return nil, apiErr
	}

	if err := a.svc.SetScreenDefaultPlaylist(ctx, id, request.PlaylistID); err != nil {
		return nil, api.FromError(err, "screen")
	}
	screen, err := a.store.GetScreenByID(id)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	return packets.NewScreenResponse(screen), nil
}

// GET /api/admin/screens/:id/decision?at=
func (a *AdminController) previewScreen(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownScreen(user, id); apiErr != nil {
		return nil, apiErr
	}
	at, apiErr := a.previewTime(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	decision, err := a.engine.Resolve(a.preview, id, at)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	return packets.DecisionResponse{At: at.Format(time.RFC3339), Decision: decision}, nil
}
