package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
)

// NewRouter builds the engine with the global middleware chain and every route.
func NewRouter(svc *services.Services, cfg *config.Config, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
	)

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Sanitize())

	SetupRoutes(router, svc, cfg)
	return router
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, svc *services.Services, cfg *config.Config) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	userHandler := handlers.NewUserHandler(svc.Directory)
	directoryHandler := handlers.NewDirectoryHandler(svc.Directory, svc.Feedback)
	appointmentHandler := handlers.NewAppointmentHandler(svc.Appointments)
	scheduleHandler := handlers.NewScheduleHandler(svc.Schedule)
	medicineHandler := handlers.NewMedicineHandler(svc.Medicines)
	prescriptionHandler := handlers.NewPrescriptionHandler(svc.Prescriptions)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments, svc.Compensation)
	feedbackHandler := handlers.NewFeedbackHandler(svc.Feedback)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(svc.Records)

	admin := middleware.RoleAuthMiddleware(models.RoleAdmin)
	staff := middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleDoctor, models.RolePharmacist)
	patientOnly := middleware.RoleAuthMiddleware(models.RolePatient)
	doctorOrAdmin := middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin)
	pharmacy := middleware.RoleAuthMiddleware(models.RolePharmacist, models.RoleAdmin)

	router.HandleMethodNotAllowed = true
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
			authRoutes.GET("/verify", authHandler.VerifyEmail)
			authRoutes.POST("/otp/request", authHandler.RequestOTP)
			authRoutes.POST("/otp/verify", authHandler.VerifyOTP)
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

		private.GET("/users/doctor-patients", doctorOrAdmin, userHandler.GetDoctorPatients)

		// User management routes (admin only)
		userRoutes := private.Group("/users", admin)
		{
			userRoutes.POST("", userHandler.CreateUser)
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PUT("/:id", userHandler.UpdateUser)
			userRoutes.DELETE("/:id", userHandler.DeleteUser)
		}

		specializationRoutes := private.Group("/specializations")
		{
			specializationRoutes.GET("", directoryHandler.GetSpecializations)
			specializationRoutes.POST("", admin, directoryHandler.CreateSpecialization)
			specializationRoutes.PUT("/:id", admin, directoryHandler.UpdateSpecialization)
			specializationRoutes.DELETE("/:id", admin, directoryHandler.DeleteSpecialization)
		}

		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.GET("", directoryHandler.GetDoctors)
			doctorRoutes.GET("/:id", directoryHandler.GetDoctorByID)
			doctorRoutes.PUT("/:id", doctorOrAdmin, directoryHandler.UpdateDoctor)
			doctorRoutes.GET("/:id/feedback", directoryHandler.GetDoctorFeedback)
			doctorRoutes.GET("/:id/day-offs", scheduleHandler.GetDoctorDayOffs)
		}

		dayOffRoutes := private.Group("/day-offs", doctorOrAdmin)
		{
			dayOffRoutes.POST("", scheduleHandler.DeclareDayOff)
			dayOffRoutes.DELETE("/:id", scheduleHandler.DeleteDayOff)
		}

		patientRoutes := private.Group("/patients")
		{
			patientRoutes.GET("", staff, directoryHandler.GetPatients)
			patientRoutes.GET("/me", patientOnly, directoryHandler.GetMyPatientProfile)
			patientRoutes.PUT("/me", patientOnly, directoryHandler.UpdateMyPatientProfile)
			patientRoutes.GET("/:id", directoryHandler.GetPatientByID)
		}

		pharmacistRoutes := private.Group("/pharmacists")
		{
			pharmacistRoutes.GET("", staff, userHandler.GetPharmacists)
			pharmacistRoutes.GET("/me", middleware.RoleAuthMiddleware(models.RolePharmacist), userHandler.GetMyPharmacistProfile)
		}

		medicineRoutes := private.Group("/medicines")
		{
			medicineRoutes.GET("", staff, medicineHandler.GetMedicines)
			medicineRoutes.GET("/:id", staff, medicineHandler.GetMedicineByID)
			medicineRoutes.POST("", pharmacy, medicineHandler.CreateMedicine)
			medicineRoutes.PUT("/:id", pharmacy, medicineHandler.UpdateMedicine)
			medicineRoutes.POST("/:id/restock", pharmacy, medicineHandler.RestockMedicine)
			medicineRoutes.DELETE("/:id", pharmacy, medicineHandler.DeleteMedicine)
		}

		// Appointment routes. Participation checks happen in the service.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.POST("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentRoutes.PATCH("/:id/reschedule", appointmentHandler.RescheduleAppointment)
			appointmentRoutes.POST("/:id/feedback", patientOnly, feedbackHandler.SubmitFeedback)
		}

		prescriptionRoutes := private.Group("/prescriptions")
		{
			prescriptionRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), prescriptionHandler.CreatePrescription)
			prescriptionRoutes.GET("", prescriptionHandler.GetPrescriptions)
			prescriptionRoutes.GET("/:id", prescriptionHandler.GetPrescriptionByID)
			prescriptionRoutes.POST("/:id/dispense", middleware.RoleAuthMiddleware(models.RolePharmacist), prescriptionHandler.DispensePrescription)
			prescriptionRoutes.POST("/:id/cancel", staff, prescriptionHandler.CancelPrescription)
		}

		paymentRoutes := private.Group("/payments")
		{
			paymentRoutes.POST("", paymentHandler.CreatePayment)
			paymentRoutes.GET("", paymentHandler.GetPayments)
			paymentRoutes.GET("/:id", paymentHandler.GetPaymentByID)
			paymentRoutes.POST("/:id/pay", paymentHandler.PayPayment)
			paymentRoutes.POST("/:id/cancel", paymentHandler.CancelPayment)
		}

		codeRoutes := private.Group("/compensation-codes")
		{
			codeRoutes.POST("", admin, paymentHandler.IssueCode)
			codeRoutes.GET("", patientOnly, paymentHandler.GetMyCodes)
			codeRoutes.GET("/preview/:code", patientOnly, paymentHandler.PreviewCode)
			codeRoutes.GET("/patient/:patientId", pharmacy, paymentHandler.GetPatientCodes)
		}

		medicalRecordRoutes := private.Group("/medical-records")
		{
			medicalRecordRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.CreateMedicalRecord)
			medicalRecordRoutes.GET("/patient/:patientId", medicalRecordHandler.GetMedicalRecordsForPatient)
			medicalRecordRoutes.GET("/:id", medicalRecordHandler.GetMedicalRecordByID)
			medicalRecordRoutes.PUT("/:id", doctorOrAdmin, medicalRecordHandler.UpdateMedicalRecord)
			medicalRecordRoutes.DELETE("/:id", doctorOrAdmin, medicalRecordHandler.DeleteMedicalRecord)
		}
	}

	if cfg.IsDevelopment() {
		debugHandler := handlers.NewDebugHandler(router)
		router.GET("/api/v1/debug/routes", debugHandler.GetRoutes)
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
