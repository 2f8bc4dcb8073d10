package api

import (
	"net/http"
)

// ─── Session & Credits API ──────────────────────────────────────────────────
//
// GET    /api/session            current user
// POST   /api/session            record a sign-in {user_id}
// DELETE /api/session            sign out
// GET    /api/credits            last published balance and local error
// POST   /api/credits/refresh    re-run reconciliation
// POST   /api/credits/grant      add test credits {amount}
// POST   /api/credits/checkout   payment redirect URL {pack}
// POST   /api/credits/complete   refresh after the payment flow returns

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       s.app.Session.UserID(),
		"authenticated": s.app.Session.Authenticated(),
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	s.app.Session.SignIn(req.UserID)
	s.app.Start(r.Context())
	s.handleSession(w, r)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.app.Session.SignOut()
	s.handleSession(w, r)
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Ledger.Snapshot())
}

func (s *Server) handleCreditsRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.Ledger.Refresh(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Ledger.Snapshot())
}

func (s *Server) handleCreditsGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive integer")
		return
	}
	if _, err := s.app.Ledger.GrantTestCredits(r.Context(), req.Amount); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Ledger.Snapshot())
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pack string `json:"pack"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid checkout request")
		return
	}
	url, err := s.app.Ledger.StartCheckout(r.Context(), req.Pack)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleCheckoutComplete(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.Ledger.CompletePurchase(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Ledger.Snapshot())
}

func (s *Server) handleProfileReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Profiles.Reload(r.Context(), s.app.Session.UserID())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
