package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"luacrypt/store"
)

type verifyResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

// handleVerify checks the shared dashboard password. A token is only
// issued when sessions are enforced server-side.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	var credential struct {
		Password *string `json:"password"`
	}

	if err := decodeJSON(w, r, &credential); err != nil {
		writeError(w, r, ValidationError(msgInvalidRequest, err), msgInvalidRequest)
		return
	}

	if credential.Password == nil || !s.checkPassword(*credential.Password) {
		writeError(w, r, AuthError(msgInvalidPassword, nil), "")
		return
	}

	resp := verifyResponse{Success: true}

	if s.config.Auth.Enforce {
		token, err := s.issueToken(time.Now())
		if err != nil {
			writeError(w, r, fmt.Errorf("sign token: %w", err), "")
			return
		}
		resp.Token = token
	}

	log.Info().Msg("Dashboard password verified")

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateScript(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())
	log := zerolog.Ctx(ctx)

	var body struct {
		Name    *string `json:"name"`
		Content *string `json:"content"`
	}

	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, ValidationError(msgInvalidScriptData, err), msgInvalidScriptData)
		return
	}

	if body.Name == nil || body.Content == nil {
		writeError(w, r, ValidationError(msgInvalidScriptData, nil), msgInvalidScriptData)
		return
	}

	script, err := s.store.scriptStore.Create(ctx, requestID, *body.Name, *body.Content)
	if err != nil {
		writeError(w, r, err, msgInvalidScriptData)
		return
	}

	log.Info().Msgf("Script %d created", script.ID)

	writeJSON(w, http.StatusCreated, script)
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())

	scripts, err := s.store.scriptStore.List(ctx, requestID, store.ScriptFilter{
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())

	id, err := parseID(r)
	if err != nil {
		writeError(w, r, ValidationError(msgInvalidID, err), msgInvalidID)
		return
	}

	script, err := s.store.scriptStore.Get(ctx, requestID, id)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	if script == nil {
		writeError(w, r, NotFoundError(msgScriptNotFound), "")
		return
	}

	writeJSON(w, http.StatusOK, script)
}

func (s *Server) handleUpdateScript(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())
	log := zerolog.Ctx(ctx)

	id, err := parseID(r)
	if err != nil {
		writeError(w, r, ValidationError(msgInvalidID, err), msgInvalidID)
		return
	}

	var patch store.ScriptPatch
	if err = decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, ValidationError(msgInvalidScriptData, err), msgInvalidScriptData)
		return
	}

	script, err := s.store.scriptStore.Update(ctx, requestID, id, patch)
	if err != nil {
		writeError(w, r, err, msgInvalidScriptData)
		return
	}

	if script == nil {
		writeError(w, r, NotFoundError(msgScriptNotFound), "")
		return
	}

	log.Info().Msgf("Script %d updated", id)

	writeJSON(w, http.StatusOK, script)
}

func (s *Server) handleDeleteScript(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())
	log := zerolog.Ctx(ctx)

	id, err := parseID(r)
	if err != nil {
		writeError(w, r, ValidationError(msgInvalidID, err), msgInvalidID)
		return
	}

	removed, err := s.store.scriptStore.Delete(ctx, requestID, id)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	if !removed {
		writeError(w, r, NotFoundError(msgScriptNotFound), "")
		return
	}

	log.Info().Msgf("Script %d deleted with its access logs", id)

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleLoaderSnippet returns the one-line Lua loader that fetches the
// script through /raw/{id}.
func (s *Server) handleLoaderSnippet(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())

	id, err := parseID(r)
	if err != nil {
		writeError(w, r, ValidationError(msgInvalidID, err), msgInvalidID)
		return
	}

	script, err := s.store.scriptStore.Get(ctx, requestID, id)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	if script == nil {
		writeError(w, r, NotFoundError(msgScriptNotFound), "")
		return
	}

	url := fmt.Sprintf("%s/raw/%d", baseURL(r, s.config.HTTP.PublicURL, s.config.HTTP.TrustProxy), script.ID)

	writeJSON(w, http.StatusOK, struct {
		URL    string `json:"url"`
		Loader string `json:"loader"`
	}{
		URL:    url,
		Loader: fmt.Sprintf("loadstring(game:HttpGet('%s'))()", url),
	})
}

// handleRaw serves script content to the game client. Every fetch of an
// existing script is logged before the classifier decides whether the
// body is the content or empty.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())
	log := zerolog.Ctx(ctx)

	id, err := parseID(r)
	if err != nil {
		writeText(w, http.StatusNotFound, msgNotFound)
		return
	}

	script, err := s.store.scriptStore.Get(ctx, requestID, id)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to load script %d", id)
		writeText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if script == nil {
		writeText(w, http.StatusNotFound, msgNotFound)
		return
	}

	var ip, userAgent *string
	if v := clientIP(r, s.config.HTTP.TrustProxy); v != "" {
		ip = &v
	}
	if _, ok := r.Header["User-Agent"]; ok {
		ua := r.UserAgent()
		userAgent = &ua
	}

	if _, err = s.store.accessLogStore.Create(ctx, requestID, id, ip, userAgent); err != nil {
		log.Error().Err(err).Msgf("Failed to record access to script %d", id)
		writeText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	verdict := s.classifier.Classify(r.UserAgent())

	log.Info().
		Int64("script_id", id).
		Str("verdict", verdict.String()).
		Msg("Raw script fetched")

	if !s.classifier.ShouldServe(r.UserAgent()) {
		writeText(w, http.StatusOK, "")
		return
	}

	writeText(w, http.StatusOK, script.Content)
}

func (s *Server) handleObfuscate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}

	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, ValidationError(msgNoCode, err), msgNoCode)
		return
	}

	if body.Code == "" {
		writeError(w, r, ValidationError(msgNoCode, nil), msgNoCode)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Code string `json:"code"`
	}{
		Code: s.obfuscator.Obfuscate(body.Code),
	})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())
	query := r.URL.Query()

	var filter store.AccessLogFilter

	if v := query.Get("scriptId"); v != "" {
		scriptID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, ValidationError("Invalid script ID", err), "")
			return
		}
		filter.ScriptID = &scriptID
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, r, ValidationError("Invalid limit", err), "")
			return
		}
		filter.Limit = limit
	}

	logs, err := s.store.accessLogStore.List(ctx, requestID, filter)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := r.Context(), requestIDFrom(r.Context())

	scripts, err := s.store.scriptStore.Count(ctx, requestID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	accesses, err := s.store.accessLogStore.Count(ctx, requestID)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, store.Stats{Scripts: scripts, Accesses: accesses})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.sqlDB != nil {
		if err := s.sqlDB.PingContext(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Database ping failed")
			writeJSON(w, http.StatusServiceUnavailable, struct {
				Status string `json:"status"`
			}{Status: "unavailable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}
