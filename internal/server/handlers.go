package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/mealchat-go/internal/db"
	"github.com/raphaelgruber/mealchat-go/internal/models"
	"github.com/raphaelgruber/mealchat-go/internal/nutrition"
)

// welcomeText is seeded as the first assistant message of a new conversation.
const welcomeText = "Start a conversation! Send a message or upload a photo of your meal."

// defaultListLimit caps list responses when the client gives no limit.
const defaultListLimit = 200

// MessageDTO is the wire shape of a message. Record IDs are flattened to
// "table:id" strings.
type MessageDTO struct {
	ID                string         `json:"id"`
	Role              string         `json:"role"`
	Kind              string         `json:"kind"`
	Text              string         `json:"text,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	ImageURL          *string        `json:"image_url,omitempty"`
	FoodItems         []string       `json:"food_items,omitempty"`
	EstimatedCalories *int           `json:"estimated_calories,omitempty"`
	ConfidenceScore   *float64       `json:"confidence_score,omitempty"`
	MealLogged        bool           `json:"meal_logged,omitempty"`
	MealID            *string        `json:"meal_id,omitempty"`
	Macros            *models.Macros `json:"macros,omitempty"`
}

// MealDTO is the wire shape of a meal record.
type MealDTO struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	FoodItems         []string       `json:"food_items"`
	EstimatedCalories int            `json:"estimated_calories"`
	Macros            *models.Macros `json:"macros,omitempty"`
	CreatedAt         time.Time      `json:"created"`
}

// DailyTotalsDTO is the aggregate response for today's meals.
type DailyTotalsDTO struct {
	Meals         []MealDTO     `json:"meals"`
	TotalCalories int           `json:"total_calories"`
	Macros        models.Macros `json:"macros"`
}

func toMessageDTO(m models.Message) MessageDTO {
	id, _ := models.RecordIDString(m.ID)
	return MessageDTO{
		ID:                id,
		Role:              m.Role,
		Kind:              string(m.Kind),
		Text:              m.Text,
		Timestamp:         m.Timestamp,
		ImageURL:          m.ImageURL,
		FoodItems:         m.FoodItems,
		EstimatedCalories: m.EstimatedCalories,
		ConfidenceScore:   m.ConfidenceScore,
		MealLogged:        m.MealLogged,
		MealID:            m.MealID,
		Macros:            m.Macros,
	}
}

func toMealDTO(m models.Meal) MealDTO {
	id, _ := models.RecordIDString(m.ID)
	items := m.FoodItems
	if items == nil {
		items = []string{}
	}
	return MealDTO{
		ID:                id,
		UserID:            m.UserID,
		FoodItems:         items,
		EstimatedCalories: m.EstimatedCalories,
		Macros:            m.Macros,
		CreatedAt:         m.CreatedAt,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return limit, nil
}

// ensureConversation creates the conversation on first access and seeds the
// welcome message into it.
func (s *Server) ensureConversation(r *http.Request, userID string) error {
	created, err := s.store.EnsureConversation(r.Context(), userID)
	if err != nil {
		return err
	}
	if created {
		if _, err := s.feed.Append(r.Context(), userID, models.Message{
			Role: models.RoleAssistant,
			Kind: models.KindText,
			Text: welcomeText,
		}); err != nil {
			return err
		}
		s.logger.Info("conversation created", "user", userID)
	}
	return nil
}

type postMessageRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	if req.Text == "" && req.ImageURL == "" {
		respondError(w, http.StatusBadRequest, "text or image_url is required")
		return
	}

	if err := s.ensureConversation(r, userID); err != nil {
		s.logger.Error("ensure conversation", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	msg := models.Message{
		Role: models.RoleUser,
		Kind: models.KindText,
		Text: req.Text,
	}
	if req.ImageURL != "" {
		msg.Kind = models.KindImage
		msg.ImageURL = &req.ImageURL
	}

	created, err := s.feed.Append(r.Context(), userID, msg)
	if err != nil {
		s.logger.Error("append message", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	respondJSON(w, http.StatusCreated, toMessageDTO(*created))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ensureConversation(r, userID); err != nil {
		s.logger.Error("ensure conversation", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("list messages", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	out := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageDTO(m))
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	deleted, err := s.store.ClearMessages(r.Context(), userID)
	if err != nil {
		s.logger.Error("clear messages", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	s.logger.Info("conversation cleared", "user", userID, "deleted", deleted)
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	meals, err := s.store.ListMeals(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("list meals", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	out := make([]MealDTO, 0, len(meals))
	for _, m := range meals {
		out = append(out, toMealDTO(m))
	}
	respondJSON(w, http.StatusOK, map[string]any{"meals": out})
}

func (s *Server) handleMealsToday(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	meals, err := s.store.MealsSince(r.Context(), userID, startOfDay)
	if err != nil {
		s.logger.Error("meals since", "user", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	totals := DailyTotalsDTO{Meals: make([]MealDTO, 0, len(meals))}
	for _, m := range meals {
		totals.Meals = append(totals.Meals, toMealDTO(m))
		totals.TotalCalories += m.EstimatedCalories
	}
	if totals.TotalCalories > 0 {
		totals.Macros = nutrition.EstimateMacros(totals.TotalCalories)
	}
	respondJSON(w, http.StatusOK, totals)
}

func (s *Server) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	mealID := chi.URLParam(r, "mealID")

	meal, err := s.store.GetMeal(r.Context(), mealID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "meal not found")
			return
		}
		s.logger.Error("get meal", "meal", mealID, "error", err)
		respondError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	respondJSON(w, http.StatusOK, toMealDTO(*meal))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.Snapshot())
}
