package main

import (
	"log"

	"omni-license-server/internal/config"
	"omni-license-server/internal/database"
	"omni-license-server/internal/handler"
	"omni-license-server/internal/license"
	"omni-license-server/internal/middleware"
	"omni-license-server/internal/registry"
	"omni-license-server/internal/service"
	"omni-license-server/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load configuration:", err)
	}

	database.InitDB(cfg)

	codec, err := token.NewCodec(cfg.Secret, cfg.Issuer)
	if err != nil {
		log.Fatal("init token codec:", err)
	}

	reg := registry.New(database.DB, codec, cfg.Plans)
	svc := license.NewService(reg, codec, database.DB, cfg.AccessTTL, cfg.RefreshTTL)

	sheetSync, err := service.NewSheetSyncService(cfg.SheetSyncEnabled, cfg.SheetCredential, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		log.Fatal("init sheet sync:", err)
	}

	sweeper := license.NewSweeper(database.DB, cfg.SweepInterval, cfg.RefreshRetention)
	sweeper.Start()

	h := handler.New(reg, svc, codec, sheetSync)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	api := app.Group("/api/v1")

	// Admin console authentication
	auth := api.Group("/auth")
	auth.Post("/login", h.HandleLogin)
	auth.Post("/register", middleware.Auth(codec), middleware.AdminOnly(), h.HandleRegister)
	auth.Get("/me", middleware.Auth(codec), h.HandleMe)

	// License validation and metadata
	licenses := api.Group("/license")
	licenses.Post("/validate", h.HandleValidate)
	licenses.Get("/info/:client_id", h.HandleInfo)

	// Administrative license operations
	admin := licenses.Group("/", middleware.Auth(codec), middleware.AdminOnly())
	admin.Post("/create", h.HandleCreate)
	admin.Post("/toggle", h.HandleToggle)
	admin.Post("/extend", h.HandleExtend)
	admin.Put("/update-modules", h.HandleUpdateModules)
	admin.Post("/reissue", h.HandleReissue)
	admin.Delete("/delete/:client_id", h.HandleDelete)
	admin.Get("/list", h.HandleList)
	admin.Get("/usage/:client_id", h.HandleUsage)
	admin.Get("/statistics", h.HandleStatistics)
	admin.Get("/logs", h.HandleGetLogs)

	// Access/refresh token pairs
	tokens := api.Group("/token")
	tokens.Post("/issue-pair", middleware.Auth(codec), middleware.AdminOnly(), h.HandleIssuePair)
	tokens.Post("/refresh", h.HandleRefresh)
	tokens.Post("/revoke", h.HandleRevoke)

	log.Fatal(app.Listen(cfg.ListenAddr))
}
