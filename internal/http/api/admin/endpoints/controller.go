package endpoints

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/control"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolver"
)

// Deps is what every admin module needs. Reads and creates go straight to
// the store; anything that can change what a screen plays goes through the
// control service so it is invalidated.
type Deps struct {
	Store   db.Store
	Service *control.Service
	Engine  *resolver.Engine
	Now     func() time.Time
}

type AdminController struct {
	store   db.Store
	svc     *control.Service
	engine  *resolver.Engine
	preview *resolver.Loader
	now     func() time.Time
}

func newAdminController(d Deps) *AdminController {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &AdminController{
		store:   d.Store,
		svc:     d.Service,
		engine:  d.Engine,
		preview: resolver.NewLoader(d.Store),
		now:     now,
	}
}

func paramID(ctx *gin.Context, name string) (int, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		log.Error().Err(err).Str("id_raw", ctx.Param(name)).Msg("invalid id in request")
		return 0, api.BadRequest("invalid " + name)
	}
	return id, nil
}

func forbidden(user *model.User, owner int, what string) *api.APIError {
	log.Error().
		Int("user_id", user.ID).
		Int("owner_id", owner).
		Msgf("forbidden access to %s", what)
	return api.Forbidden()
}

func (a *AdminController) ownScreen(user *model.User, id int) (model.Screen, *api.APIError) {
	screen, err := a.store.GetScreenByID(id)
	if err != nil {
		return model.Screen{}, api.FromError(err, "screen")
	}
	if screen.CreatedBy != user.ID {
		return model.Screen{}, forbidden(user, screen.CreatedBy, "screen")
	}
	return screen, nil
}

func (a *AdminController) ownGroup(user *model.User, id int) (model.ScreenGroup, *api.APIError) {
	group, err := a.store.GetScreenGroupByID(id)
	if err != nil {
		return model.ScreenGroup{}, api.FromError(err, "group")
	}
	if group.CreatedBy != user.ID {
		return model.ScreenGroup{}, forbidden(user, group.CreatedBy, "group")
	}
	return group, nil
}

func (a *AdminController) ownPlaylist(user *model.User, id int) (model.Playlist, *api.APIError) {
	playlist, err := a.store.GetPlaylistByID(id)
	if err != nil {
		return model.Playlist{}, api.FromError(err, "playlist")
	}
	if playlist.CreatedBy != user.ID {
		return model.Playlist{}, forbidden(user, playlist.CreatedBy, "playlist")
	}
	return playlist, nil
}

func (a *AdminController) ownSlide(user *model.User, id int) (model.Slide, *api.APIError) {
	slide, err := a.store.GetSlideByID(id)
	if err != nil {
		return model.Slide{}, api.FromError(err, "slide")
	}
	if slide.CreatedBy != user.ID {
		return model.Slide{}, forbidden(user, slide.CreatedBy, "slide")
	}
	return slide, nil
}

func (a *AdminController) ownTarget(user *model.User, t model.Target) *api.APIError {
	switch t.Type {
	case model.TargetScreen:
		_, apiErr := a.ownScreen(user, t.ID)
		return apiErr
	case model.TargetGroup:
		_, apiErr := a.ownGroup(user, t.ID)
		return apiErr
	}
	return api.BadRequest("invalid target type")
}

// optionalPlaylist checks ownership of a playlist about to be referenced.
func (a *AdminController) optionalPlaylist(user *model.User, id *int) *api.APIError {
	if id == nil {
		return nil
	}
	_, apiErr := a.ownPlaylist(user, *id)
	if apiErr != nil && apiErr.Code == http.StatusNotFound {
		return api.BadRequest("unknown playlist")
	}
	return apiErr
}

// previewTime reads ?at= (RFC3339), defaulting to now.
func (a *AdminController) previewTime(ctx *gin.Context) (time.Time, *api.APIError) {
	raw := ctx.Query("at")
	if raw == "" {
		return a.now(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, api.BadRequest("at must be RFC3339")
	}
	return at, nil
}
