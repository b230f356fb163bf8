// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/container"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/handlers"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
	"github.com/benjarmc/portal-pji-project-sub000/pkg/config"
)

// Options tune the router for the environment it runs in.
type Options struct {
	Session        middleware.SessionConfig
	AllowedOrigins []string
	StaticDir      string
}

// DefaultOptions reads the router options from config.
func DefaultOptions() Options {
	return Options{
		Session: middleware.SessionConfig{
			CookieName: config.SessionCookieName,
			Secret:     config.SessionSecret,
			Secure:     config.SessionCookieSecure,
			TTL:        config.StateTimeout,
		},
		AllowedOrigins: config.AllowedOrigins,
		StaticDir:      "web/static",
	}
}

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(container.Logger))
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))

	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
	}

	// Initialize handlers
	healthHandlers := handlers.NewHealthHandlers(container.WizardStateService, container.PerfTracker)
	pageHandlers := handlers.NewPageHandlers(container.WizardFlowService, container.PlanService, container.Logger, container.PerfTracker)
	wizardHandlers := handlers.NewWizardHandlers(
		container.WizardFlowService,
		container.WizardStateService,
		container.QuotationService,
		container.ResumeLinkService,
		container.Logger,
		container.PerfTracker,
	)
	streamHandlers := handlers.NewStreamHandlers(container.WizardStateService, opts.AllowedOrigins, container.Logger)
	planHandlers := handlers.NewPlanHandlers(container.PlanService, container.Logger)
	quotationHandlers := handlers.NewQuotationHandlers(
		container.QuotationService,
		container.UserService,
		container.WizardStateService,
		container.WizardFlowService,
		container.Logger,
	)
	paymentHandlers := handlers.NewPaymentHandlers(
		container.PaymentService,
		container.WizardStateService,
		container.WizardFlowService,
		container.Logger,
		container.PerfTracker,
	)
	verificationHandlers := handlers.NewVerificationHandlers(
		container.ValidationService,
		container.InvestigationService,
		container.DocumentService,
		container.WizardStateService,
		container.Logger,
	)

	r.GET("/healthz", healthHandlers.Health)
	r.GET("/healthz/perf", healthHandlers.Stats)

	// Everything below belongs to a browser session
	session := r.Group("/")
	session.Use(middleware.BrowserSession(opts.Session, container.Logger))
	{
		session.GET("/", pageHandlers.Landing)
		session.GET("/wizard", pageHandlers.Wizard)
	}

	api := session.Group("/api/v1")
	{
		wizard := api.Group("/wizard")
		{
			wizard.GET("", wizardHandlers.GetState)
			wizard.PATCH("", wizardHandlers.SaveDraft)
			wizard.DELETE("", wizardHandlers.Clear)
			wizard.GET("/load", wizardHandlers.Load)
			wizard.POST("/next", wizardHandlers.Next)
			wizard.POST("/prev", wizardHandlers.Prev)
			wizard.PUT("/step/:step", wizardHandlers.GoTo)
			wizard.POST("/sync", wizardHandlers.Sync)
			wizard.POST("/activity", wizardHandlers.Ping)
			wizard.POST("/restart", wizardHandlers.Restart)
			wizard.POST("/resume-link", wizardHandlers.SendResumeLink)
			wizard.GET("/summary", wizardHandlers.Summary)
			wizard.GET("/stream", streamHandlers.Stream)
			wizard.POST("/investigations", verificationHandlers.InvestigateParties)
			wizard.POST("/documents", verificationHandlers.UploadDocument)
			wizard.GET("/documents/:id", verificationHandlers.GetDocument)
		}

		plans := api.Group("/plans")
		{
			plans.GET("", planHandlers.ListPlans)
			plans.GET("/estimate", planHandlers.Estimate)
			plans.GET("/:id", planHandlers.GetPlan)
		}

		quotations := api.Group("/quotations")
		{
			quotations.POST("", quotationHandlers.CreateQuotation)
			quotations.GET("/:id", quotationHandlers.GetQuotation)
			quotations.PUT("/:id", quotationHandlers.UpdateQuotation)
			quotations.POST("/:id/email", quotationHandlers.SendQuotationEmail)
			quotations.GET("/:id/investigations", verificationHandlers.ListInvestigations)
		}

		users := api.Group("/users")
		{
			users.POST("", quotationHandlers.CreateUser)
			users.GET("/:id", quotationHandlers.GetUser)
			users.PUT("/:id", quotationHandlers.UpdateUser)
		}

		payments := api.Group("/payments")
		{
			payments.POST("", paymentHandlers.CreatePayment)
			payments.GET("/:id", paymentHandlers.GetPayment)
			payments.POST("/:id/confirm", paymentHandlers.ConfirmPayment)
			payments.POST("/:id/resend-email", paymentHandlers.ResendPaymentEmail)
		}

		validations := api.Group("/validations")
		{
			validations.POST("", verificationHandlers.StartValidation)
			validations.GET("/:id", verificationHandlers.ValidationStatus)
			validations.POST("/:id/resend", verificationHandlers.ResendValidation)
			validations.POST("/:id/verification-email", verificationHandlers.SendVerificationEmail)
			validations.GET("/:id/links", verificationHandlers.VerificationLinks)
		}

		investigations := api.Group("/investigations")
		{
			investigations.POST("", verificationHandlers.CreateInvestigation)
			investigations.GET("/:id", verificationHandlers.GetInvestigation)
			investigations.PUT("/:id", verificationHandlers.UpdateInvestigation)
			investigations.DELETE("/:id", verificationHandlers.DeleteInvestigation)
		}
	}

	return r
}
