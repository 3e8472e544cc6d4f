package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/macrofit/macrofit-api/internal/ai"
	"github.com/macrofit/macrofit-api/internal/auth"
	"github.com/macrofit/macrofit-api/internal/models"
	"github.com/macrofit/macrofit-api/internal/payment"
	"github.com/macrofit/macrofit-api/internal/plans"
	"github.com/macrofit/macrofit-api/internal/profile"
	"github.com/macrofit/macrofit-api/internal/subscription"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

// Vision runs the body-photo analysis, implemented by ai.Client.
type Vision interface {
	AnalyzeBodyImage(ctx context.Context, imageURL string) (*ai.BodyAnalysis, error)
}

// UserStore looks up account records for payment payer details.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Handler owns every HTTP route. Dependencies come in as interfaces so the
// handler tests run against mocks.
type Handler struct {
	auth     *auth.Service
	users    UserStore
	profiles *profile.Service
	plans    *plans.Service
	subs     *subscription.Service
	vision   Vision
	pix      PixWebhookGateway
	card     CardWebhookGateway
	logger   *logger.Logger
}

type HandlerDeps struct {
	Auth     *auth.Service
	Users    UserStore
	Profiles *profile.Service
	Plans    *plans.Service
	Subs     *subscription.Service
	Vision   Vision
	Pix      PixWebhookGateway
	Card     CardWebhookGateway
	Logger   *logger.Logger
}

func NewHandler(d HandlerDeps) *Handler {
	return &Handler{
		auth:     d.Auth,
		users:    d.Users,
		profiles: d.Profiles,
		plans:    d.Plans,
		subs:     d.Subs,
		vision:   d.Vision,
		pix:      d.Pix,
		card:     d.Card,
		logger:   d.Logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.auth.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req profile.SaveProfileParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.profiles.Save(r.Context(), userID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	result, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleMacros(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	targets, err := h.profiles.Targets(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, targets)
}

type analyzeImageRequest struct {
	ImageURL string `json:"image_url"`
}

func (h *Handler) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req analyzeImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageURL == "" {
		respondWithError(w, http.StatusBadRequest, "image_url is required")
		return
	}

	analysis, err := h.vision.AnalyzeBodyImage(r.Context(), req.ImageURL)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, analysis)
}

func (h *Handler) handleGeneratePlans(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	view, err := h.plans.Generate(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetPlans(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	view, err := h.plans.View(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

type createPaymentRequest struct {
	PlanID string `json:"plan_id"`
}

func (h *Handler) paymentParams(r *http.Request) (subscription.CreatePaymentParams, error) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return subscription.CreatePaymentParams{}, models.ErrInvalidInput
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		return subscription.CreatePaymentParams{}, err
	}

	return subscription.CreatePaymentParams{
		UserID: userID,
		Email:  user.Email,
		Name:   user.Name,
		PlanID: req.PlanID,
	}, nil
}

func (h *Handler) handleCreatePixPayment(w http.ResponseWriter, r *http.Request) {
	params, err := h.paymentParams(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.subs.CreatePixPayment(r.Context(), params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCreateCardPayment(w http.ResponseWriter, r *http.Request) {
	params, err := h.paymentParams(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.subs.CreateCardPayment(r.Context(), params)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	ent, err := h.subs.Entitlement(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ent)
}

func (h *Handler) handlePlans(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, subscription.Plans())
}

type progressRequest struct {
	Date             string  `json:"date"`
	WeightKg         float64 `json:"weight_kg"`
	WorkoutCompleted bool    `json:"workout_completed"`
	ProteinIntakeG   int     `json:"protein_intake_g"`
	CarbsIntakeG     int     `json:"carbs_intake_g"`
	FatsIntakeG      int     `json:"fats_intake_g"`
	Notes            string  `json:"notes"`
}

func (h *Handler) handleAddProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	entry := &models.ProgressEntry{
		UserID:           userID,
		Date:             date,
		WeightKg:         req.WeightKg,
		WorkoutCompleted: req.WorkoutCompleted,
		ProteinIntakeG:   req.ProteinIntakeG,
		CarbsIntakeG:     req.CarbsIntakeG,
		FatsIntakeG:      req.FatsIntakeG,
		Notes:            req.Notes,
	}
	if err := h.profiles.AddProgress(r.Context(), entry); err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	summary, err := h.profiles.Progress(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

var _ PixWebhookGateway = (*payment.MercadoPagoClient)(nil)
var _ CardWebhookGateway = (*payment.StripeClient)(nil)
