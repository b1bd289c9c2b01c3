// Package handlers implements the HTTP handlers for the FinSight
// boundary collaborators: the input surface (inputs/goals), the
// presentation surface (snapshot, scenarios, actions, insights,
// intervention log, agent state) and the controller triggers
// (manual run, response events).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/finsight/finsight/internal/intervention"
	"github.com/finsight/finsight/internal/pipeline"
	"github.com/finsight/finsight/internal/schedule"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store       store.Store
	Pipeline    *pipeline.Orchestrator
	Controller  *intervention.Controller
	Scheduler   *schedule.Scheduler
	ReviewDelay time.Duration
}

// New creates a new Handlers instance.
func New(s store.Store, p *pipeline.Orchestrator, c *intervention.Controller, sched *schedule.Scheduler, reviewDelay time.Duration) *Handlers {
	return &Handlers{
		Store:       s,
		Pipeline:    p,
		Controller:  c,
		Scheduler:   sched,
		ReviewDelay: reviewDelay,
	}
}

// ── Inputs & Goals ──────────────────────────────────────────

func (h *Handlers) GetInputs(w http.ResponseWriter, r *http.Request) {
	in, err := h.Store.GetInputs(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, in)
}

// PutInputs stores the edited inputs, reruns the pipeline, and arms the
// post-snapshot review timer.
func (h *Handlers) PutInputs(w http.ResponseWriter, r *http.Request) {
	var in models.FinancialInputs
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.UpdatedAt = time.Now().UTC()

	if err := h.Store.PutInputs(r.Context(), &in); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := h.Pipeline.Run(r.Context(), in)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.Scheduler != nil {
		// The timer fires after this handler returns, when net/http has
		// already canceled the request context.
		h.Scheduler.ArmReviewTimer(context.WithoutCancel(r.Context()), h.ReviewDelay)
	}

	log.Info().Int("health_score", res.Snapshot.HealthScore).Msg("Inputs updated, pipeline rerun")
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetGoals(w http.ResponseWriter, r *http.Request) {
	g, err := h.Store.GetGoals(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

// PutGoals stores the edited goals and reruns the pipeline with the
// current inputs, since goals shape the action plan and drift target.
func (h *Handlers) PutGoals(w http.ResponseWriter, r *http.Request) {
	var g models.Goals
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	g.UpdatedAt = time.Now().UTC()

	if err := h.Store.PutGoals(r.Context(), &g); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if in, err := h.Store.GetInputs(r.Context()); err == nil {
		if _, err := h.Pipeline.Run(r.Context(), *in); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if h.Scheduler != nil {
			h.Scheduler.ArmReviewTimer(context.WithoutCancel(r.Context()), h.ReviewDelay)
		}
	}

	respondJSON(w, http.StatusOK, g)
}

// ── Derived artifacts ───────────────────────────────────────

func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.GetSnapshot(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) GetScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.Store.GetScenarios(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if scenarios == nil {
		scenarios = []models.Scenario{}
	}
	respondJSON(w, http.StatusOK, scenarios)
}

func (h *Handlers) GetActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.Store.GetActions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if actions == nil {
		actions = []models.WeeklyAction{}
	}
	respondJSON(w, http.StatusOK, actions)
}

// CompleteAction flips the completion flag on one weekly action.
func (h *Handlers) CompleteAction(w http.ResponseWriter, r *http.Request) {
	actionID := chi.URLParam(r, "actionId")

	actions, err := h.Store.GetActions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	found := false
	for i := range actions {
		if actions[i].ID == actionID {
			actions[i].Completed = true
			found = true
			break
		}
	}
	if !found {
		respondError(w, http.StatusNotFound, "action not found: "+actionID)
		return
	}

	if err := h.Store.PutActions(r.Context(), actions); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "completed", "id": actionID})
}

func (h *Handlers) GetInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.Store.GetInsights(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if insights == nil {
		insights = []models.AgentInsight{}
	}
	respondJSON(w, http.StatusOK, insights)
}

// ── Interventions & controller ──────────────────────────────

func (h *Handlers) ListInterventions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ivs, err := h.Store.ListInterventions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ivs == nil {
		ivs = []models.Intervention{}
	}
	respondJSON(w, http.StatusOK, ivs)
}

// RespondIntervention forwards a user engagement signal (e.g.
// "notification tapped") into the controller.
func (h *Handlers) RespondIntervention(w http.ResponseWriter, r *http.Request) {
	interventionID := chi.URLParam(r, "interventionId")

	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Channel == "" {
		req.Channel = "unknown"
	}

	err := h.Controller.RecordResponse(r.Context(), interventionID, req.Channel)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "responded", "id": interventionID})
	case errors.Is(err, intervention.ErrAlreadyResponded):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, intervention.ErrResponseWindowElapsed):
		respondError(w, http.StatusGone, err.Error())
	default:
		respondStoreErr(w, err)
	}
}

// RunController is the manual "run now" trigger.
func (h *Handlers) RunController(w http.ResponseWriter, r *http.Request) {
	out, err := h.Controller.RunCycle(r.Context(), "manual")
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetAgentState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Store.GetAgentState(r.Context())
	if err != nil {
		respondStoreErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondStoreErr(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
