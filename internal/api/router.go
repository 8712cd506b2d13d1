package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/screenfund/backend/internal/api/handlers"
	"github.com/screenfund/backend/internal/auth"
	"github.com/screenfund/backend/internal/config"
	"github.com/screenfund/backend/internal/metrics"
	"github.com/screenfund/backend/internal/middleware"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/services"
)

type RouterDeps struct {
	Cfg          config.Config
	TokenManager *auth.TokenManager
	Users        *services.UserService
	Campaigns    *services.CampaignService
	Waitlist     *services.WaitlistService
	Appointments *services.AppointmentService
	Settlement   *services.SettlementService
	Matching     *services.MatchingService
	Directory    *services.DirectoryService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	authMW := middleware.NewAuthMiddleware(d.TokenManager)
	authH := handlers.NewAuthHandler(d.Users)
	campH := handlers.NewCampaignHandler(d.Campaigns)
	waitH := handlers.NewWaitlistHandler(d.Waitlist)
	apptH := handlers.NewAppointmentHandler(d.Appointments)
	payH := handlers.NewPayoutHandler(d.Settlement)
	dirH := handlers.NewDirectoryHandler(d.Directory)
	adminH := handlers.NewAdminHandler(d.Matching, d.Settlement)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// Donor-facing: anyone can start a donation charge or browse
		// campaigns and the screening catalog.
		r.Post("/donations/initialize", campH.InitializeDonation)
		r.Get("/campaigns", campH.List)
		r.Get("/campaigns/{id}", campH.Get)
		r.Get("/screening-types", dirH.ListScreeningTypes)
		r.Get("/centers", dirH.ListCenters)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			r.Post("/campaigns", campH.Create)
			r.Post("/campaigns/{id}/topup", campH.TopUp)

			r.Post("/waitlist", waitH.Join)
			r.Post("/waitlist/{id}/decline", waitH.Decline)
			r.Get("/patients/{patientID}/waitlist", waitH.ListByPatient)

			r.Post("/appointments", apptH.Book)
			r.Get("/appointments/{id}", apptH.Get)

			r.Post("/patients", dirH.CreatePatient)
			r.Get("/patients/{id}", dirH.GetPatient)

			// Center staff run the appointment status machine and read
			// their settlement position.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleCenterStaff, models.RoleAdmin))
				r.Patch("/appointments/{id}/status", apptH.Transition)
				r.Get("/centers/{centerID}/appointments", apptH.ListByCenter)
				r.Get("/centers/{centerID}/balance", payH.CenterBalance)
				r.Get("/centers/{centerID}/payouts", payH.ListByCenter)
				r.Get("/payouts/{id}", payH.Get)
			})

			// Admin-only money movement and engine triggers.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Delete("/campaigns/{id}", campH.Delete)
				r.Post("/centers", dirH.CreateCenter)
				r.Post("/screening-types", dirH.CreateScreeningType)
				r.Post("/centers/{centerID}/payouts", payH.Build)
				r.Post("/payouts/{id}/submit", payH.Submit)
				r.Post("/payouts/{id}/retry", payH.Retry)
				r.Post("/admin/matching/run", adminH.RunMatching)
				r.Post("/admin/settlement/run", adminH.RunSettlement)
			})
		})
	})

	return r
}
