package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// OverrideModule mounts the manual and urgent slots of screens and groups:
// /overrides/:target_type/:target_id/{manual,urgent}.
func OverrideModule(d Deps) api.Module {
	ctl := newAdminController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUT("/overrides/:target_type/:target_id/manual", ctl.setManual)
		c.DELETE("/overrides/:target_type/:target_id/manual", ctl.clearManual)
		c.POST("/overrides/:target_type/:target_id/urgent", ctl.createUrgent)
		c.DELETE("/overrides/:target_type/:target_id/urgent", ctl.clearUrgent)

		c.GET("/urgent", ctl.listUrgent)
	})
}

// ownedTarget parses the target from the path and checks ownership.
func (a *AdminController) ownedTarget(ctx *gin.Context, user *model.User) (model.Target, *api.APIError) {
	id, apiErr := paramID(ctx, "target_id")
	if apiErr != nil {
		return model.Target{}, apiErr
	}
	target := model.Target{Type: model.TargetType(ctx.Param("target_type")), ID: id}
	if apiErr := a.ownTarget(user, target); apiErr != nil {
		return model.Target{}, apiErr
	}
	return target, nil
}

func (a *AdminController) slideParam(user *model.User, slideID int) *api.APIError {
	_, apiErr := a.ownSlide(user, slideID)
	if apiErr != nil && apiErr.Code == http.StatusNotFound {
		return api.BadRequest("unknown slide")
	}
	return apiErr
}

// PUT /api/admin/overrides/:target_type/:target_id/manual
func (a *AdminController) setManual(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	target, apiErr := a.ownedTarget(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.ManualOverrideRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if apiErr := a.slideParam(user, request.SlideID); apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.AssignManual(ctx, target, request.SlideID); err != nil {
		return nil, api.FromError(err, string(target.Type))
	}
	return nil, nil
}

// DELETE /api/admin/overrides/:target_type/:target_id/manual
func (a *AdminController) clearManual(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	target, apiErr := a.ownedTarget(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.ClearManual(ctx, target); err != nil {
		return nil, api.FromError(err, string(target.Type))
	}
	return nil, nil
}

// POST /api/admin/overrides/:target_type/:target_id/urgent
func (a *AdminController) createUrgent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	target, apiErr := a.ownedTarget(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UrgentOverrideRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if apiErr := a.slideParam(user, request.SlideID); apiErr != nil {
		return nil, apiErr
	}

	urgent, err := a.svc.CreateUrgent(ctx, target, request.SlideID, request.StartsAt,
		time.Duration(request.DurationSeconds)*time.Second)
	if err != nil {
		return nil, api.FromError(err, string(target.Type))
	}
	return packets.NewUrgentResponse(urgent), nil
}

// DELETE /api/admin/overrides/:target_type/:target_id/urgent
func (a *AdminController) clearUrgent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	target, apiErr := a.ownedTarget(ctx, user)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.ClearUrgent(ctx, target); err != nil {
		return nil, api.FromError(err, string(target.Type))
	}
	return nil, nil
}

// GET /api/admin/urgent
func (a *AdminController) listUrgent(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	active, err := a.store.ListActiveUrgent(user.ID, a.now())
	if err != nil {
		return nil, api.FromError(err, "urgent overrides")
	}
	out := make([]packets.UrgentResponse, 0, len(active))
	for _, u := range active {
		out = append(out, packets.NewUrgentResponse(u))
	}
	return out, nil
}
