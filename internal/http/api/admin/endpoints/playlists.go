package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

func PlaylistModule(d Deps) api.Module {
	ctl := newAdminController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/playlists", ctl.listPlaylists)
		c.POST("/playlists", ctl.createPlaylist)
		c.GET("/playlists/:id", ctl.getPlaylist)
		c.DELETE("/playlists/:id", ctl.deletePlaylist)

		// items
		c.POST("/playlists/:id/items", ctl.addPlaylistItem)
		c.PUT("/playlists/:id/items/:item_id", ctl.updatePlaylistItem)
		c.DELETE("/playlists/:id/items/:item_id", ctl.removePlaylistItem)
		c.POST("/playlists/:id/reorder", ctl.reorderPlaylist)
	})
}

// GET /api/admin/playlists
func (a *AdminController) listPlaylists(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	all, err := a.store.ListPlaylists(user.ID)
	if err != nil {
		return nil, api.FromError(err, "playlists")
	}
	out := make([]packets.PlaylistResponse, 0, len(all))
	for _, p := range all {
		out = append(out, packets.NewPlaylistResponse(p))
	}
	return out, nil
}

// POST /api/admin/playlists
func (a *AdminController) createPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreatePlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	playlist, err := a.store.CreatePlaylist(request.Name, request.Description, user.ID)
	if err != nil {
		return nil, api.FromError(err, "playlist")
	}
	return packets.NewPlaylistResponse(playlist), nil
}

// GET /api/admin/playlists/:id
func (a *AdminController) getPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	playlist, apiErr := a.ownPlaylist(user, id)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewPlaylistResponse(playlist), nil
}

// DELETE /api/admin/playlists/:id
func (a *AdminController) deletePlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownPlaylist(user, id); apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.DeletePlaylist(ctx, id); err != nil {
		return nil, api.FromError(err, "playlist")
	}
	return nil, nil
}

// POST /api/admin/playlists/:id/items
func (a *AdminController) addPlaylistItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownPlaylist(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.AddPlaylistItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if _, apiErr := a.ownSlide(user, request.SlideID); apiErr != nil {
		return nil, apiErr
	}
	predicate := model.AlwaysPredicate()
	if request.SchedulePredicate != nil {
		predicate = *request.SchedulePredicate
	}

	item, err := a.svc.AddPlaylistItem(ctx, id, request.SlideID, request.Position, request.Duration, predicate)
	if err != nil {
		return nil, api.FromError(err, "playlist")
	}
	return packets.NewPlaylistItemResponse(item), nil
}

// itemOf loads an item and checks it belongs to the playlist in the path.
func (a *AdminController) itemOf(ctx *gin.Context, user *model.User) (model.PlaylistItem, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return model.PlaylistItem{}, apiErr
	}
	itemID, apiErr := paramID(ctx, "item_id")
	if apiErr != nil {
		return model.PlaylistItem{}, apiErr
	}
	if _, apiErr := a.ownPlaylist(user, id); apiErr != nil {
		return model.PlaylistItem{}, apiErr
	}
	item, err := a.store.GetPlaylistItem(itemID)
	if err != nil {
		return model.PlaylistItem{}, api.FromError(err, "playlist item")
	}
	if item.PlaylistID != id {
		return model.PlaylistItem{}, api.NotFound("playlist item not found")
	}
	return item, nil
}

// PUT /api/admin/playlists/:id/items/:item_id
func (a *AdminController) updatePlaylistItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	item, apiErr := a.itemOf(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdatePlaylistItemRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if err := a.svc.UpdatePlaylistItem(ctx, item.ID, request.Position, request.Duration, request.SchedulePredicate); err != nil {
		return nil, api.FromError(err, "playlist item")
	}
	updated, err := a.store.GetPlaylistItem(item.ID)
	if err != nil {
		return nil, api.FromError(err, "playlist item")
	}
	return packets.NewPlaylistItemResponse(updated), nil
}

// DELETE /api/admin/playlists/:id/items/:item_id
func (a *AdminController) removePlaylistItem(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	item, apiErr := a.itemOf(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.RemovePlaylistItem(ctx, item.ID); err != nil {
		return nil, api.FromError(err, "playlist item")
	}
	return nil, nil
}

// POST /api/admin/playlists/:id/reorder
func (a *AdminController) reorderPlaylist(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownPlaylist(user, id); apiErr != nil {
		return nil, apiErr
	}
	var request packets.ReorderPlaylistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if err := a.svc.ReorderPlaylistItems(ctx, id, request.ItemIDs); err != nil {
		return nil, api.FromError(err, "playlist item")
	}
	playlist, err := a.store.GetPlaylistByID(id)
	if err != nil {
		return nil, api.FromError(err, "playlist")
	}
	return packets.NewPlaylistResponse(playlist), nil
}
