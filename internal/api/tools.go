package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adstudio/studio/internal/app/invocation"
	"github.com/adstudio/studio/internal/app/results"
	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/domain/payload"
	"github.com/adstudio/studio/internal/infra/gateway"
)

// ─── Tools API ──────────────────────────────────────────────────────────────
//
// GET  /api/tools                catalog with each tool's current state
// GET  /api/tools/{id}           one tool's state
// POST /api/tools/{id}/submit    run the tool with the posted inputs
// POST /api/tools/{id}/save      persist the current result
// POST /api/tools/{id}/prefill   set inputs without running
// POST /api/ads/{id}             run an ad tool with an explicit ad request
// GET  /api/results/{id}         saved generation records, newest first

type toolView struct {
	domain.Tool
	State domain.ToolInvocationState `json:"state"`
	Phase string                     `json:"phase"`
}

// submitResponse carries the settled state. CreditError is set when the
// generation succeeded but recording the usage did not.
type submitResponse struct {
	State       domain.ToolInvocationState `json:"state"`
	Result      *resultView                `json:"result,omitempty"`
	CreditError string                     `json:"credit_error,omitempty"`
}

type resultView struct {
	Kind  domain.ResultKind `json:"kind"`
	Title string            `json:"title"`
	Value any               `json:"value"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	tools := domain.Tools()
	out := make([]toolView, 0, len(tools))
	for _, t := range tools {
		st, _ := s.app.Invocations.State(t.ID)
		out = append(out, toolView{Tool: t, State: st, Phase: string(st.Phase())})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) handleToolState(w http.ResponseWriter, r *http.Request) {
	id := domain.ToolID(chi.URLParam(r, "id"))
	tool, ok := domain.LookupTool(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+string(id))
		return
	}
	st, _ := s.app.Invocations.State(id)
	writeJSON(w, http.StatusOK, toolView{Tool: tool, State: st, Phase: string(st.Phase())})
}

func (s *Server) handleToolSubmit(w http.ResponseWriter, r *http.Request) {
	id := domain.ToolID(chi.URLParam(r, "id"))
	var inputs domain.Inputs
	if err := decodeBody(w, r, &inputs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid inputs: "+err.Error())
		return
	}
	st, err := s.app.Invocations.Submit(r.Context(), id, inputs)
	s.writeSubmit(w, id, st, err)
}

func (s *Server) handleGenerateAd(w http.ResponseWriter, r *http.Request) {
	id := domain.ToolID(chi.URLParam(r, "id"))
	var req gateway.AdRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid ad request: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	st, err := s.app.Invocations.GenerateAd(r.Context(), id, req)
	s.writeSubmit(w, id, st, err)
}

func (s *Server) writeSubmit(w http.ResponseWriter, id domain.ToolID, st domain.ToolInvocationState, err error) {
	resp := submitResponse{State: st}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDeductionFailed):
		resp.CreditError = err.Error()
	case invocation.IsSuperseded(err):
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		s.writeDomainError(w, err)
		return
	}
	if st.Result != nil {
		res := payload.Parse(id, st.Result)
		resp.Result = &resultView{
			Kind:  res.Kind(),
			Title: payload.DisplayTitle(id, st.Result, nil),
			Value: res,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToolSave(w http.ResponseWriter, r *http.Request) {
	id := domain.ToolID(chi.URLParam(r, "id"))
	genID, err := s.app.Invocations.Save(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"generation_id": genID})
}

func (s *Server) handleToolPrefill(w http.ResponseWriter, r *http.Request) {
	id := domain.ToolID(chi.URLParam(r, "id"))
	var inputs domain.Inputs
	if err := decodeBody(w, r, &inputs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid inputs: "+err.Error())
		return
	}
	if err := s.app.Invocations.Prefill(id, inputs); err != nil {
		s.writeDomainError(w, err)
		return
	}
	st, _ := s.app.Invocations.State(id)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := domain.ToolID(chi.URLParam(r, "id"))
	if _, ok := domain.LookupTool(id); !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+string(id))
		return
	}
	userID := s.app.Session.UserID()
	if userID == "" {
		s.writeDomainError(w, domain.ErrNotAuthenticated)
		return
	}
	recs, err := s.app.Results.List(r.Context(), id, userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	type item struct {
		domain.GenerationRecord
		Title string `json:"title"`
	}
	out := make([]item, 0, len(recs))
	for _, rec := range recs {
		out = append(out, item{GenerationRecord: rec, Title: results.Title(rec)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
