package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/control"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/endpoints"
	tvapi "github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv/endpoints"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/resolver"
)

// App is everything the routes hang off.
type App struct {
	Config  *config.Config
	Store   db.Store
	Bus     bus.Bus
	Service *control.Service
	Engine  *resolver.Engine
	Cache   *resolver.Cache
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, app App) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "bus": app.Config.BusBackend})
	})

	admin := adminapi.Deps{
		Store:   app.Store,
		Service: app.Service,
		Engine:  app.Engine,
	}
	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Auth:      true,
		SecretKey: app.Config.JWTSecret,
		Users:     app.Store,
	},
		adminapi.ScreenModule(admin),
		adminapi.GroupModule(admin),
		adminapi.PlaylistModule(admin),
		adminapi.SlideModule(admin),
		adminapi.ScheduleModule(admin),
		adminapi.OverrideModule(admin),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/tv",
	},
		tvapi.DeviceModule(tvapi.Deps{
			Store:        app.Store,
			Engine:       app.Engine,
			Cache:        app.Cache,
			Bus:          app.Bus,
			PollInterval: app.Config.FallbackPollInterval,
		}),
	)
}
