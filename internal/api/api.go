package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/customer-console/internal/app"
	"github.com/hypernova-labs/customer-console/internal/models"
	"github.com/hypernova-labs/customer-console/internal/session"
	"github.com/sirupsen/logrus"
)

// confirmPrompt es el texto de confirmación que la presentación muestra
// antes de un borrado
const confirmPrompt = "Are you sure you want to delete this customer? This action cannot be undone."

// API traduce los intents de la capa de presentación a llamadas del
// orquestador y entrega el snapshot por ciclo de render
type API struct {
	controller *app.Controller
	sessions   *session.Controller
	logger     *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(controller *app.Controller, sessions *session.Controller, logger *logrus.Logger) *API {
	return &API{
		controller: controller,
		sessions:   sessions,
		logger:     logger,
	}
}

// customerFormRequest es el cuerpo de formSubmitted. balance acepta número
// o texto libre; el texto no parseable vale 0.
type customerFormRequest struct {
	Name      string          `json:"name"`
	GroupName string          `json:"group_name"`
	Note      string          `json:"note"`
	Balance   json.RawMessage `json:"balance"`
}

// toFormData convierte el request al modelo de formulario
func (r *customerFormRequest) toFormData() models.CustomerFormData {
	var balance float64
	if len(r.Balance) > 0 {
		var f float64
		if err := json.Unmarshal(r.Balance, &f); err == nil {
			balance = f
		} else {
			var s string
			if err := json.Unmarshal(r.Balance, &s); err == nil {
				balance = models.ParseBalance(s)
			}
		}
	}

	return models.CustomerFormData{
		Name:      r.Name,
		GroupName: r.GroupName,
		Note:      r.Note,
		Balance:   balance,
	}
}

// credentialsRequest es el cuerpo de login y signup
type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SessionRequiredMiddleware rechaza intents de datos sin sesión activa en
// la variante autenticada
func (api *API) SessionRequiredMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !api.sessions.Authenticated() {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedErrorResponse("Sign in to manage customers"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetState entrega el snapshot de presentación actual
func (api *API) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// Refresh reconstruye la cache desde el gateway a pedido
func (api *API) Refresh(c *gin.Context) {
	if err := api.controller.Refresh(c.Request.Context()); err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// CreateClicked atiende el intent create-clicked
func (api *API) CreateClicked(c *gin.Context) {
	api.controller.CreateClicked()
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// EditClicked atiende el intent edit-clicked(id)
func (api *API) EditClicked(c *gin.Context) {
	if err := api.controller.EditClicked(c.Param("id")); err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// FormCancelled atiende el intent cancel
func (api *API) FormCancelled(c *gin.Context) {
	api.controller.FormCancelled()
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// FormSubmitted atiende el intent formSubmitted: alta o edición según el
// registro llevado por la vista
func (api *API) FormSubmitted(c *gin.Context) {
	var req customerFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.WithError(err).Error("Error binding form submission")
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	if err := api.controller.FormSubmitted(c.Request.Context(), req.toFormData()); err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// DeleteClicked atiende el intent delete-clicked(id); exige la confirmación
// explícita de la presentación, y sin ella responde el texto a confirmar
func (api *API) DeleteClicked(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"

	err := api.controller.Delete(c.Request.Context(), c.Param("id"), confirmed)
	if errors.Is(err, models.ErrConfirmationDeclined) {
		c.JSON(http.StatusConflict, gin.H{
			"confirmation_required": true,
			"prompt":                confirmPrompt,
		})
		return
	}
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// SignUp atiende el intent signupSubmitted; el éxito no abre sesión, la
// confirmación llega por correo
func (api *API) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Invalid credentials format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	if err := api.sessions.SignUp(c.Request.Context(), req.Email, req.Password); err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Check your email for the confirmation link!",
	})
}

// SignIn atiende el intent loginSubmitted
func (api *API) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Invalid credentials format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	if err := api.sessions.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// SignOut atiende el intent logoutClicked
func (api *API) SignOut(c *gin.Context) {
	if err := api.sessions.SignOut(c.Request.Context()); err != nil {
		// La sesión local ya fue descartada; se reporta igualmente
		api.logger.WithError(err).Warn("Gateway sign out reported an error")
	}
	c.JSON(http.StatusOK, api.controller.Snapshot())
}

// respondError mapea la taxonomía de errores del core a respuestas HTTP
func (api *API) respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Validation failed", []models.ErrorDetail{
			{Field: ve.Field, Issue: ve.Issue},
		}))
		return
	}

	switch {
	case errors.Is(err, models.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedErrorResponse("Sign in to manage customers"))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.NewNotFoundErrorResponse("Customer not found"))
	case errors.Is(err, models.ErrOperationInFlight):
		c.JSON(http.StatusConflict, models.NewConflictErrorResponse("Another operation is in flight, try again"))
	case models.IsGateway(err):
		api.logger.WithError(err).Error("Gateway call failed")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse(err.Error()))
	default:
		api.logger.WithError(err).Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Unexpected error"))
	}
}
