package endpoints

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolver"
)

// Deps wires the device-facing endpoints. One-shot decisions read the
// store directly; sessions share Cache and keep it fresh through Bus.
type Deps struct {
	Store        db.Store
	Engine       *resolver.Engine
	Cache        *resolver.Cache
	Bus          bus.Bus
	PollInterval time.Duration
	Now          func() time.Time
}

type TvController struct {
	store  db.Store
	engine *resolver.Engine
	loader *resolver.Loader
	cache  *resolver.Cache
	bus    bus.Bus
	poll   time.Duration
	now    func() time.Time
}

func newTvController(d Deps) *TvController {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &TvController{
		store:  d.Store,
		engine: d.Engine,
		loader: resolver.NewLoader(d.Store),
		cache:  d.Cache,
		bus:    d.Bus,
		poll:   d.PollInterval,
		now:    now,
	}
}

// DeviceModule mounts the unauthenticated /devices endpoints TVs call with
// their paired device id.
func DeviceModule(d Deps) api.Module {
	ctl := newTvController(d)
	return api.ModuleFunc(func(c *api.Controller) {
		c.Public(http.MethodGet, "/devices/:device_id/decision", ctl.getDecision)
		c.Raw(http.MethodGet, "/devices/:device_id/session", ctl.openSession)
	})
}

// GET /api/tv/devices/:device_id/decision
func (t *TvController) getDecision(ctx *gin.Context) (any, *api.APIError) {
	deviceID := ctx.Param("device_id")
	now := t.now()

	screen, err := t.store.GetScreenByDeviceID(deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn().Str("device_id", deviceID).Msg("decision requested by unpaired device")
		return packets.DecisionResponse{ServerTime: now.UTC().Format(time.RFC3339), Decision: model.NoContent()}, nil
	}
	if err != nil {
		return nil, api.FromError(err, "screen")
	}

	decision, err := t.engine.Resolve(t.loader, screen.ID, now)
	if err != nil {
		return nil, api.FromError(err, "screen")
	}
	return packets.DecisionResponse{
		ScreenID:   screen.ID,
		ServerTime: now.UTC().Format(time.RFC3339),
		Decision:   decision,
	}, nil
}
