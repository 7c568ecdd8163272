package routes

import (
	"net/http"

	"clinicremind-backend/config"
	"clinicremind-backend/controllers"
	"clinicremind-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Dependencies struct {
	Auth           *controllers.AuthController
	Reminders      *controllers.ReminderController
	Patients       *controllers.PatientController
	Gatherer       prometheus.Gatherer
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
		}))
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r.Use(config.RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := r.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)

		auth.GET("/me", utils.AuthMiddleware(deps.JWTSecret), controllers.Me)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(deps.JWTSecret))
	{
		reminders := api.Group("/reminders")
		{
			reminders.POST("/run", deps.Reminders.RunReminders)
			reminders.GET("/sent", deps.Reminders.GetSentNotifications)
		}

		patients := api.Group("/patients")
		{
			patients.POST("", deps.Patients.CreatePatient)
			patients.GET("", deps.Patients.GetPatients)
			patients.GET("/:id", deps.Patients.GetPatient)
			patients.PUT("/:id", deps.Patients.UpdatePatient)
			patients.DELETE("/:id", deps.Patients.DeletePatient)
			patients.POST("/:id/appointments", deps.Patients.AddAppointment)
			patients.PATCH("/:id/appointments/:appointmentId", deps.Patients.UpdateAppointment)
		}
	}

	return r
}
