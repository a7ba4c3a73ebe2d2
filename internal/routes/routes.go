package routes

import (
	"clinic-queue-server/internal/config"
	"clinic-queue-server/internal/handlers"
	"clinic-queue-server/internal/middleware"
	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config,
	service *queue.Service, finder *queue.SlotFinder, sweeper *queue.Sweeper, clock queue.Clock) {

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	doctorHandler := handlers.NewDoctorHandler(db, clock)
	appointmentHandler := handlers.NewAppointmentHandler(db, service, finder, clock)
	queueHandler := handlers.NewQueueHandler(db, sweeper, clock)
	notificationHandler := handlers.NewNotificationHandler(db)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(db)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// User management routes (admin-only)
		userRoutes := private.Group("/users")
		userRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			userRoutes.POST("", userHandler.CreateUser)
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PUT("/:id", userHandler.UpdateUser)
			userRoutes.DELETE("/:id", userHandler.DeleteUser)
		}

		// Doctor directory, availability and reviews
		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.GET("", doctorHandler.GetDoctors)
			doctorRoutes.GET("/:id/reviews", doctorHandler.GetReviews)
			doctorRoutes.POST("/:id/reviews", middleware.RoleAuthMiddleware(models.RolePatient), doctorHandler.AddReview)

			// Doctor self-service routes
			meRoutes := doctorRoutes.Group("/me")
			meRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
			{
				meRoutes.GET("/availability", doctorHandler.GetMyAvailability)
				meRoutes.PUT("/availability", doctorHandler.SetAvailability)
				meRoutes.GET("/appointments", doctorHandler.GetMyAppointments)
			}

			// Admin-only doctor management
			adminDoctorRoutes := doctorRoutes.Group("")
			adminDoctorRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminDoctorRoutes.POST("", doctorHandler.CreateDoctor)
				adminDoctorRoutes.PATCH("/:id/verify", doctorHandler.VerifyDoctor)
			}
		}

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.GET("/available-slots", appointmentHandler.AvailableSlots)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.POST("/:id/start", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.StartConsultation)
			appointmentRoutes.POST("/:id/end", middleware.RoleAuthMiddleware(models.RoleDoctor), appointmentHandler.EndConsultation)
			appointmentRoutes.POST("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentRoutes.POST("/:id/reschedule", appointmentHandler.RescheduleAppointment)
			appointmentRoutes.PATCH("/:id/status", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.DELETE("/:id", appointmentHandler.DeleteAppointment)
		}

		// Queue routes
		queueRoutes := private.Group("/queue")
		{
			queueRoutes.GET("/live", queueHandler.LiveQueue)
			queueRoutes.GET("/status", queueHandler.QueueStatusByDate)
			queueRoutes.POST("/sweep", middleware.RoleAuthMiddleware(models.RoleAdmin), queueHandler.RunSweep)
		}

		// Notification routes
		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationRead)
		}

		// Medical record routes
		medicalRecordRoutes := private.Group("/medical-records")
		{
			medicalRecordRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.CreateMedicalRecord)
			medicalRecordRoutes.GET("", medicalRecordHandler.GetMedicalRecords)
			medicalRecordRoutes.GET("/:id", medicalRecordHandler.GetMedicalRecordByID)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
