package http

import (
	"math/rand"
	"net/http"
	"time"

	"fincoach/internal/core"
	"fincoach/internal/log"
	"fincoach/internal/sample"
	"fincoach/internal/services"
)

func (s *Server) handleSeedSample(w http.ResponseWriter, r *http.Request) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	txs := sample.Transactions(rng, time.Now())

	if err := s.coach.ImportTransactions(r.Context(), txs); err != nil {
		s.logger.ErrorContext(r.Context(), "Sample import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to seed sample data")
		return
	}

	s.structured.LogTransactionsImported(r.Context(), len(txs))
	s.summaryCache.Delete(summaryCacheKey)
	writeJSON(w, http.StatusCreated, map[string]int{"imported": len(txs)})
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	var txs []core.Transaction
	if err := decodeJSON(w, r, &txs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(txs) == 0 {
		writeError(w, http.StatusBadRequest, "empty transaction batch")
		return
	}

	if err := s.coach.ImportTransactions(r.Context(), txs); err != nil {
		if isInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Transaction import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to import transactions")
		return
	}

	s.structured.LogTransactionsImported(r.Context(), len(txs))
	s.summaryCache.Delete(summaryCacheKey)
	writeJSON(w, http.StatusCreated, map[string]int{"imported": len(txs)})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.lister.ListTransactions(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.coach.ResetAll(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset data")
		return
	}

	s.summaryCache.Delete(summaryCacheKey)
	w.WriteHeader(http.StatusNoContent)
}

const summaryCacheKey = "summary"

type summaryResponse struct {
	TotalSpent       float64            `json:"totalSpent"`
	EstimatedIncome  float64            `json:"estimatedIncome"`
	EstimatedSavings float64            `json:"estimatedSavings"`
	CategoryTotals   map[string]float64 `json:"categoryTotals"`
	ActiveSubCount   int                `json:"activeSubscriptionCount"`
	ActiveSubCost    float64            `json:"activeSubscriptionCost"`
	TransactionCount int                `json:"transactionCount"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if cached, found := s.summaryCache.Get(summaryCacheKey); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	txs, err := s.lister.ListTransactions(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}

	window, err := services.FilterWindow(txs, services.DefaultWindowDays, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	total := services.Total(window)
	income := services.EstimateIncome(total)

	subs, err := s.coach.Subscriptions(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary subscription load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	active := services.ActiveSubscriptions(subs)
	var subCost float64
	for _, sub := range active {
		subCost += sub.Amount
	}

	resp := summaryResponse{
		TotalSpent:       total,
		EstimatedIncome:  income,
		EstimatedSavings: income - total,
		CategoryTotals:   services.AggregateByCategory(window),
		ActiveSubCount:   len(active),
		ActiveSubCost:    subCost,
		TransactionCount: len(txs),
	}

	s.summaryCache.Set(summaryCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result, err := s.coach.AnalyzeSpending(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Analysis failed",
			"error", err,
			log.FieldOperation, log.OpAnalyze)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.coach.Insights(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Insight load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load insights")
		return
	}
	if insights == nil {
		insights = []core.Insight{}
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.coach.Subscriptions(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Subscription load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load subscriptions")
		return
	}
	if subs == nil {
		subs = []core.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing subscription id")
		return
	}

	if err := s.coach.CancelSubscription(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	opts, err := s.coach.OptimizeSubscriptions(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleOptimizations(w http.ResponseWriter, r *http.Request) {
	opts, err := s.coach.Optimizations(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Optimization load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load optimizations")
		return
	}
	if opts == nil {
		opts = []core.SubscriptionOptimization{}
	}
	writeJSON(w, http.StatusOK, opts)
}

type stressTestRequest struct {
	CurrentFund float64 `json:"currentFund"`
}

func (s *Server) handleStressTest(w http.ResponseWriter, r *http.Request) {
	var req stressTestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := s.coach.StressTest(r.Context(), req.CurrentFund)
	if err != nil {
		if isInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Stress test failed",
			"error", err,
			log.FieldOperation, log.OpSimulate)
		writeError(w, http.StatusInternalServerError, "stress test failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleEmergencyFund(w http.ResponseWriter, r *http.Request) {
	analysis, found, err := s.coach.EmergencyFund(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Emergency fund load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load emergency fund analysis")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no stress test run yet")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type whatIfRequest struct {
	Scenario        core.ScenarioType `json:"scenario"`
	Rent            float64           `json:"rent,omitempty"`
	CustomIncome    float64           `json:"customIncome,omitempty"`
	CustomExpense   float64           `json:"customExpense,omitempty"`
	TimeframeMonths int               `json:"timeframeMonths,omitempty"`
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	var req whatIfRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sim, err := s.coach.WhatIf(r.Context(), services.ScenarioChoice{
		Type:            req.Scenario,
		Rent:            req.Rent,
		CustomIncome:    req.CustomIncome,
		CustomExpense:   req.CustomExpense,
		TimeframeMonths: req.TimeframeMonths,
	})
	if err != nil {
		if isInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "What-if simulation failed",
			"error", err,
			log.FieldOperation, log.OpSimulate)
		writeError(w, http.StatusInternalServerError, "simulation failed")
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

type createGoalRequest struct {
	Name         string  `json:"name"`
	TargetAmount float64 `json:"targetAmount"`
	Months       int     `json:"months"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	forecast, err := s.coach.CreateGoal(r.Context(), req.Name, req.TargetAmount, req.Months)
	if err != nil {
		if isInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Goal creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create goal")
		return
	}
	writeJSON(w, http.StatusCreated, forecast)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.coach.Goals(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Goal list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.coach.Chat(r.Context(), req.Message)
	if err != nil {
		if isInputError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.coach.ChatHistory(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Chat history load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	if history == nil {
		history = []core.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.coach.ClearChat(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Chat clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
