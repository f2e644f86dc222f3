package endpoints

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

func ScheduleModule(d Deps) api.Module {
	ctl := newAdminController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listScheduleRules)
		c.POST("/schedules", ctl.createScheduleRule)
		c.PUT("/schedules/:id", ctl.updateScheduleRule)
		c.DELETE("/schedules/:id", ctl.deleteScheduleRule)
	})
}

func (a *AdminController) ownRule(user *model.User, id int) (model.ScheduleRule, *api.APIError) {
	rule, err := a.store.GetScheduleRule(id)
	if err != nil {
		return model.ScheduleRule{}, api.FromError(err, "schedule rule")
	}
	if rule.CreatedBy != user.ID {
		return model.ScheduleRule{}, forbidden(user, rule.CreatedBy, "schedule rule")
	}
	return rule, nil
}

// GET /api/admin/schedules?target_type=screen&target_id=1
func (a *AdminController) listScheduleRules(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	targetID, err := strconv.Atoi(ctx.Query("target_id"))
	if err != nil {
		return nil, api.BadRequest("target_id is required")
	}
	target := model.Target{Type: model.TargetType(ctx.Query("target_type")), ID: targetID}
	if apiErr := a.ownTarget(user, target); apiErr != nil {
		return nil, apiErr
	}

	rules, err := a.store.ListScheduleRules(target)
	if err != nil {
		return nil, api.FromError(err, "schedule rules")
	}
	out := make([]packets.ScheduleRuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, packets.NewScheduleRuleResponse(r))
	}
	return out, nil
}

// POST /api/admin/schedules
//
// Returns every stored rule: two when an overnight window was split.
func (a *AdminController) createScheduleRule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	var request packets.CreateScheduleRuleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	target := model.Target{Type: request.TargetType, ID: request.TargetID}
	if apiErr := a.ownTarget(user, target); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := a.optionalPlaylist(user, &request.PlaylistID); apiErr != nil {
		return nil, apiErr
	}

	created, err := a.svc.CreateRule(ctx, model.ScheduleRule{
		TargetType: request.TargetType,
		TargetID:   request.TargetID,
		PlaylistID: request.PlaylistID,
		StartTime:  *request.StartTime,
		EndTime:    *request.EndTime,
		Days:       request.DaysOfWeek,
		Priority:   request.Priority,
		CreatedBy:  user.ID,
	}, request.Overnight)
	if err != nil {
		return nil, api.FromError(err, "schedule rule")
	}
	log.Info().Str("target", target.String()).Int("rules", len(created)).Msg("schedule rule created")

	out := make([]packets.ScheduleRuleResponse, 0, len(created))
	for _, r := range created {
		out = append(out, packets.NewScheduleRuleResponse(r))
	}
	return out, nil
}

// PUT /api/admin/schedules/:id
func (a *AdminController) updateScheduleRule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	existing, apiErr := a.ownRule(user, id)
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateScheduleRuleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	if request.PlaylistID != existing.PlaylistID {
		if apiErr := a.optionalPlaylist(user, &request.PlaylistID); apiErr != nil {
			return nil, apiErr
		}
	}

	updated, err := a.svc.UpdateRule(ctx, model.ScheduleRule{
		ID:         id,
		PlaylistID: request.PlaylistID,
		StartTime:  *request.StartTime,
		EndTime:    *request.EndTime,
		Days:       request.DaysOfWeek,
		Priority:   request.Priority,
		CreatedBy:  existing.CreatedBy,
	})
	if err != nil {
		return nil, api.FromError(err, "schedule rule")
	}
	return packets.NewScheduleRuleResponse(updated), nil
}

// DELETE /api/admin/schedules/:id
func (a *AdminController) deleteScheduleRule(ctx *gin.Context, user *model.User) (any, *api.APIError) {
	id, apiErr := paramID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if _, apiErr := a.ownRule(user, id); apiErr != nil {
		return nil, apiErr
	}
	if err := a.svc.DeleteRule(ctx, id); err != nil {
		return nil, api.FromError(err, "schedule rule")
	}
	return nil, nil
}
