package httpserver

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	pkgdb "github.com/intellicog/records/pkg/db"
	"github.com/intellicog/records/pkg/metrics"
	authmw "github.com/intellicog/records/pkg/middleware/auth"
	"github.com/intellicog/records/pkg/tokens"
)

// mriBodyLimit leaves room for multipart framing around an image of
// imaging.MaxUploadBytes.
const mriBodyLimit = "21M"

type Deps struct {
	DB                *gorm.DB
	Tokens            *tokens.Codec
	Metrics           *metrics.Metrics
	AuthHandler       *AuthHTTP
	UserHandler       *UserHTTP
	PatientHandler    *PatientHTTP
	EvaluationHandler *EvaluationHTTP

	// TrustedProxies lists the networks whose X-Forwarded-For is believed.
	// Without any, the client ip is the socket peer.
	TrustedProxies []*net.IPNet

	// BlobDir, when set, is served read-only under /api/v1/<BlobRoute>.
	BlobDir   string
	BlobRoute string
}

func Register(e *echo.Echo, d *Deps) {
	e.IPExtractor = ipExtractor(d.TrustedProxies)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := pkgdb.Ping(c.Request().Context(), d.DB); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", d.Metrics.Handler())
	}

	authMw := authmw.NewBearerAuth(d.Tokens)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to the IntelliCog API"})
	})

	v1 := e.Group("/api/v1")
	if d.BlobDir != "" && d.BlobRoute != "" {
		v1.Static("/"+d.BlobRoute, d.BlobDir)
	}

	auth := v1.Group("/auth")
	auth.POST("/token", d.AuthHandler.Token)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/recover", d.AuthHandler.Recover)
	auth.POST("/recover/confirm", d.AuthHandler.RecoverConfirm)
	auth.POST("/change-password", d.AuthHandler.ChangePassword)
	auth.GET("/logout", d.AuthHandler.Logout, authMw.RequireAuth)

	users := v1.Group("/users", authMw.RequireAuth)
	users.GET("", d.UserHandler.Get)
	users.PUT("", d.UserHandler.Update)
	users.PUT("/password", d.UserHandler.ChangePassword)
	users.DELETE("", d.UserHandler.Delete)
	users.POST("/support", d.UserHandler.Support)

	patients := v1.Group("/patients", authMw.RequireAuth)
	patients.POST("", d.PatientHandler.Create)
	patients.GET("", d.PatientHandler.List)
	patients.GET("/search", d.PatientHandler.Search)
	patients.GET("/dni/:dni", d.PatientHandler.GetByDNI)
	patients.GET("/:id", d.PatientHandler.Get)
	patients.PUT("/:id", d.PatientHandler.Update)
	patients.DELETE("/:id", d.PatientHandler.Delete)
	patients.GET("/:id/comorbilites", d.PatientHandler.GetComorbidities)
	patients.POST("/:id/comorbilites", d.PatientHandler.CreateComorbidities)
	patients.PUT("/:id/comorbilites", d.PatientHandler.UpsertComorbidities)

	evals := v1.Group("/evaluations", authMw.RequireAuth)
	evals.GET("", d.EvaluationHandler.List)
	evals.POST("/patient/:id", d.EvaluationHandler.Create)
	evals.GET("/patient/:id", d.EvaluationHandler.ListByPatient)
	evals.GET("/patient/:id/evaluations/pdf", d.EvaluationHandler.Report)
	evals.GET("/:id", d.EvaluationHandler.Get)
	evals.PUT("/:id", d.EvaluationHandler.Update)
	evals.DELETE("/:id", d.EvaluationHandler.Delete)

	evals.POST("/:id/clinic_data", d.EvaluationHandler.CreateClinicData)
	evals.GET("/:id/clinic_data", d.EvaluationHandler.GetClinicData)
	evals.PUT("/:id/clinic_data", d.EvaluationHandler.UpdateClinicData)
	evals.DELETE("/:id/clinic_data", d.EvaluationHandler.DeleteClinicData)

	uploadLimit := echomw.BodyLimit(mriBodyLimit)
	evals.POST("/:id/mri_image", d.EvaluationHandler.CreateMRIImage, uploadLimit)
	evals.GET("/:id/mri_image", d.EvaluationHandler.GetMRIImage)
	evals.PUT("/:id/mri_image", d.EvaluationHandler.ReplaceMRIImage, uploadLimit)
	evals.DELETE("/:id/mri_image", d.EvaluationHandler.DeleteMRIImage)

	evals.POST("/:id/clinic_results", d.EvaluationHandler.CreateClinicResults)
	evals.GET("/:id/clinic_results", d.EvaluationHandler.GetClinicResults)
	evals.PUT("/:id/clinic_results", d.EvaluationHandler.UpdateClinicResults)
	evals.DELETE("/:id/clinic_results", d.EvaluationHandler.DeleteClinicResults)
}

// ipExtractor decides where c.RealIP comes from. Refresh sessions are bound to
// it, so forwarding headers are only read from trusted proxies.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
