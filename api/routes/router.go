package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendkiosk/kiosk-backend/api/controllers"
	"github.com/vendkiosk/kiosk-backend/api/middleware"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/gateway"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	"github.com/vendkiosk/kiosk-backend/internal/qrauth"
	"github.com/vendkiosk/kiosk-backend/internal/stores"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/redis"
)

// Services groups the domain services the HTTP surfaces dispatch to.
type Services struct {
	Gateway gateway.Service
	QrAuth  qrauth.Service
	Kiosks  kiosks.Service
	Catalog catalog.Service
	Stores  stores.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	var limiter middleware.WindowLimiter
	if redisClient != nil {
		readiness["redis"] = redisClient
		limiter = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/kiosks", func(r chi.Router) {
		r.Post("/handshake", controllers.KioskHandshake(svcs.Gateway, logg))
		r.Route("/{kioskId}", func(r chi.Router) {
			r.Post("/heartbeat", controllers.KioskHeartbeat(svcs.Gateway, logg))
			r.Post("/inventory", controllers.KioskInventoryUpdate(svcs.Gateway, logg))
			r.Get("/inventory", controllers.KioskInventorySnapshot(svcs.Gateway, logg))
			r.Post("/remote-ping", controllers.KioskRemotePing(svcs.Gateway, logg))
		})
	})

	pairPolicy := middleware.IPRateLimitPolicy{
		Name:   "qr-pair",
		Window: cfg.QrAuth.RateLimitWindow,
		Limit:  cfg.QrAuth.PairIPLimit,
	}
	r.Route("/api/qr-auth", func(r chi.Router) {
		r.With(middleware.IPRateLimit(pairPolicy, limiter, logg)).Post("/pair", controllers.QrAuthPair(svcs.QrAuth, logg))
		r.Post("/session", controllers.QrAuthCreateSession(svcs.QrAuth, logg))
		r.Route("/session/{sessionId}", func(r chi.Router) {
			r.Get("/status", controllers.QrAuthStatus(svcs.QrAuth, logg))
			r.Post("/complete", controllers.QrAuthComplete(svcs.QrAuth, logg))
			r.Post("/cancel", controllers.QrAuthCancel(svcs.QrAuth, logg))
			r.Post("/sms", controllers.QrAuthSendCode(svcs.QrAuth, logg))
			r.Post("/sms/verify", controllers.QrAuthVerifyCode(svcs.QrAuth, logg))
		})
	})

	maxUpload := int64(cfg.GCS.MaxUploadMB) << 20
	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
		r.Use(middleware.AdminAuth(cfg.JWT, logg))
		r.Use(middleware.RequireAdminForWrites(logg))

		r.Route("/stores", func(r chi.Router) {
			r.Get("/", controllers.AdminListStores(svcs.Stores, logg))
			r.Post("/", controllers.AdminCreateStore(svcs.Stores, logg))
			r.Get("/{storeId}", controllers.AdminGetStore(svcs.Stores, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(svcs.Catalog, logg))
			r.Post("/", controllers.AdminCreateProduct(svcs.Catalog, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(svcs.Catalog, logg))
		})

		r.Route("/kiosks", func(r chi.Router) {
			r.Get("/", controllers.AdminListKiosks(svcs.Kiosks, logg))
			r.Post("/", controllers.AdminCreateKiosk(svcs.Kiosks, logg))
			r.Route("/{kioskId}", func(r chi.Router) {
				r.Get("/", controllers.AdminGetKiosk(svcs.Kiosks, svcs.Catalog, logg))
				r.Patch("/", controllers.AdminUpdateKiosk(svcs.Kiosks, logg))
				r.Post("/api-key/rotate", controllers.AdminRotateKioskAPIKey(svcs.Kiosks, logg))
				r.Post("/remote-vend", controllers.AdminRemoteVend(svcs.Gateway, logg))
				r.Get("/logs", controllers.AdminListKioskLogs(svcs.Kiosks, logg))

				r.Get("/slots", controllers.AdminListSlots(svcs.Catalog, logg))
				r.Route("/slots/{slotId}", func(r chi.Router) {
					r.Post("/assign", controllers.AdminAssignSlot(svcs.Catalog, logg))
					r.Post("/clear", controllers.AdminClearSlot(svcs.Catalog, logg))
					r.Post("/stock", controllers.AdminAdjustStock(svcs.Catalog, logg))
				})

				r.Get("/products", controllers.AdminListKioskProducts(svcs.Catalog, logg))
				r.Patch("/products/{kioskProductId}", controllers.AdminUpdateKioskProduct(svcs.Catalog, logg))

				r.Route("/screensaver", func(r chi.Router) {
					r.Get("/", controllers.AdminListScreensaver(svcs.Catalog, logg))
					r.Post("/", controllers.AdminUploadScreensaver(svcs.Catalog, maxUpload, logg))
					r.Post("/url", controllers.AdminAddScreensaverURL(svcs.Catalog, logg))
					r.Delete("/{imageId}", controllers.AdminDeleteScreensaver(svcs.Catalog, logg))
				})
			})
		})
	})

	return r
}
