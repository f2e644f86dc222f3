package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// SlideModule mounts /slides. Slide bodies are stored and returned as-is.
func SlideModule(d Deps) api.Module {
	ctl := newAdminController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/slides", ctl.listSlides)
		c.POST("/slides", ctl.createSlide)
		c.GET("/slides/:id", ctl.getSlide)
		c.DELETE("/slides/:id", ctl.deleteSlide)
	})
}

// GET /api/admin/slides
func (a *AdminController) listSlides(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	all, err := a.store.ListSlides(user.ID)
	if err != nil {
		return nil, api.FromError(err, "slides")
	}
	out := make([]packets.SlideResponse, 0, len(all))
	for _, s := range all {
		out = append(out, packets.NewSlideResponse(s))
	}
	return out, nil
}

// POST /api/admin/slides
func (a *AdminController) createSlide(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateSlideRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	slide, err := a.store.CreateSlide(request.Name, request.Type, request.Body, user.ID)
	if err != nil {
		return nil, api.FromError(err, "slide")
	}
	return packets.NewSlideResponse(slide), nil
}

// GET /api/admin/slides/:id
func (a *AdminController) getSlide(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	slide, apiErr := a.ownSlide(user, id)
	if apiErr != nil {
		return nil, apiErr
	}
	return packets.NewSlideResponse(slide), nil
}

// DELETE /api/admin/slides/:id
func (a *AdminController) deleteSlide(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownSlide(user, id); apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.DeleteSlide(ctx, id); err != nil {
		return nil, api.FromError(err, "slide")
	}
	return nil, nil
}
