package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/gebo/internal/apperr"
	"github.com/halvard/gebo/internal/forms"
	"github.com/halvard/gebo/internal/i18n"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/metadata"
	"github.com/halvard/gebo/internal/publish"
	"github.com/halvard/gebo/internal/pubservice"
	"github.com/halvard/gebo/internal/session"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Handler holds API route handlers.
type Handler struct {
	svc      *pubservice.Service
	sessions *session.Manager
	catalog  *i18n.Catalog
}

// NewHandler creates a new Handler.
func NewHandler(svc *pubservice.Service, sessions *session.Manager, catalog *i18n.Catalog) *Handler {
	return &Handler{svc: svc, sessions: sessions, catalog: catalog}
}

// lang picks the response language from the Accept-Language header.
func lang(r *http.Request) string {
	al := r.Header.Get("Accept-Language")
	if al == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(al, ",")[0])
	return strings.SplitN(first, ";", 2)[0]
}

// author resolves the acting identity from the session, or reports the
// missing-profile failure the same way the publish workflow does.
func (h *Handler) author(w http.ResponseWriter, r *http.Request) (metadata.Author, bool) {
	s, ok := h.sessions.Current()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errResponse{
			Error:   "profile null",
			Display: h.catalog.WrapError(lang(r), "profile null"),
		})
		return metadata.Author{}, false
	}
	return metadata.Author{Address: s.Address, ProfileID: s.ProfileID}, true
}

// Login handles POST /session.
//
//	@Summary		Bind a wallet address and profile to the session
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Identity to act as"
//	@Success		200		{object}	Session
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Address == "" || req.ProfileID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("address and profile_id are required"))
		return
	}
	s := h.sessions.Login(req.Address, req.ProfileID, req.Handle)
	writeJSON(w, http.StatusOK, s)
}

// Session handles GET /session.
//
//	@Summary		Get the current session
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	Session
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Current()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("not logged in"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Logout handles DELETE /session.
//
//	@Summary	Clear the current session
//	@Tags		session
//	@Success	204	"Logged out"
//	@Security	BearerAuth
//	@Router		/session [delete]
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// publishForm reads the multipart opportunity form: text fields as draft
// values, the optional "image" part as the attachment.
func publishForm(r *http.Request) (forms.Values, *media.Attachment, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, err
	}
	values := make(forms.Values)
	for name, vals := range r.MultipartForm.Value {
		if len(vals) > 0 {
			values[name] = vals[0]
		}
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return values, nil, nil
		}
		return nil, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}
	return values, &media.Attachment{Filename: header.Filename, Data: data}, nil
}

// writeResult maps a terminal publish result to the response. A failed
// attempt carries the raw reason plus the localized display string.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res publish.Result) {
	resp := PublishResponse{
		State:     res.State,
		Reference: res.Reference,
		RecordID:  res.Record.ID,
		Reason:    res.Reason,
	}
	if res.State == publish.StateSucceeded {
		writeJSON(w, http.StatusCreated, resp)
		return
	}
	resp.Display = h.catalog.WrapError(lang(r), res.Reason)
	writeJSON(w, http.StatusBadGateway, resp)
}

// writePublishErr maps errors raised before or instead of a terminal result.
func (h *Handler) writePublishErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *pubservice.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for name, key := range verr.Fields {
			fields[name] = h.catalog.T(lang(r), key)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "validation failed", Fields: fields})
	case errors.Is(err, apperr.ErrInFlight):
		writeJSON(w, http.StatusConflict, errorBody("a submission is already in flight"))
	case errors.Is(err, apperr.ErrNoProfile):
		writeJSON(w, http.StatusUnauthorized, errResponse{
			Error:   "profile null",
			Display: h.catalog.WrapError(lang(r), "profile null"),
		})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		slog.Error("publish failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// CreateOpportunity handles POST /opportunities (multipart/form-data).
//
//	@Summary		Publish a volunteer opportunity
//	@Tags			opportunities
//	@Accept			mpfd
//	@Produce		json
//	@Param			name	formData	string	true	"Opportunity name"
//	@Param			image	formData	file	false	"Optional cover image"
//	@Success		201		{object}	PublishResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	PublishResponse
//	@Security		BearerAuth
//	@Router			/opportunities [post]
func (h *Handler) CreateOpportunity(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	values, att, err := publishForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}

	res, err := h.svc.PublishOpportunity(r.Context(), author, values, att)
	if err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// UpdateOpportunity handles PUT /opportunities/{id} (multipart/form-data).
// The "priorImage" field carries the existing media reference; when no new
// image part is sent it is republished unchanged.
//
//	@Summary		Republish an opportunity under its original record id
//	@Tags			opportunities
//	@Accept			mpfd
//	@Produce		json
//	@Param			id			path		string	true	"Record id"
//	@Param			priorImage	formData	string	false	"Existing media reference"
//	@Param			image		formData	file	false	"Replacement image"
//	@Success		201			{object}	PublishResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/opportunities/{id} [put]
func (h *Handler) UpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	recordID := chi.URLParam(r, "id")
	if recordID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("record id is required"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	values, att, err := publishForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	prior := values["priorImage"]
	delete(values, "priorImage")

	res, err := h.svc.ModifyOpportunity(r.Context(), author, recordID, prior, values, att)
	if err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// LatestOpportunity handles GET /opportunities/latest.
//
//	@Summary		Get the session profile's most recent opportunity post
//	@Tags			opportunities
//	@Produce		json
//	@Success		200	{object}	metadata.Record
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/opportunities/latest [get]
func (h *Handler) LatestOpportunity(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.LatestOpportunity(r.Context(), author.ProfileID)
	if err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateGoal handles POST /goals.
//
//	@Summary		Publish a reward goal
//	@Tags			goals
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GoalRequest	true	"Goal form"
//	@Success		201		{object}	PublishResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/goals [post]
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	res, err := h.svc.PublishGoal(r.Context(), author, forms.Values{
		"goal":     req.Goal,
		"goalDate": req.GoalDate,
	})
	if err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	h.writeResult(w, r, res)
}

// CreateProfile handles POST /profiles.
//
//	@Summary		Register a new profile handle
//	@Tags			profiles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateProfileRequest	true	"Handle to register"
//	@Success		201		{object}	Profile
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles [post]
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Address == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("address is required"))
		return
	}

	p, err := h.svc.CreateProfile(r.Context(), req.Address, req.Handle)
	if err != nil {
		if errors.Is(err, apperr.ErrSubmitRejected) {
			reason := strings.TrimPrefix(err.Error(), apperr.ErrSubmitRejected.Error()+": ")
			writeJSON(w, http.StatusBadGateway, errResponse{
				Error:   reason,
				Display: h.catalog.WrapError(lang(r), reason),
			})
			return
		}
		h.writePublishErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProfile handles GET /profiles/{id}.
//
//	@Summary		Fetch a profile
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		string	true	"Profile id"
//	@Success		200	{object}	Profile
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Follow handles POST /profiles/{id}/follow.
//
//	@Summary		Follow a profile as the session profile
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		string	true	"Profile id"
//	@Success		200	{object}	FollowResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id}/follow [post]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	if err := h.svc.Follow(r.Context(), author, chi.URLParam(r, "id")); err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{Following: true})
}

// Unfollow handles DELETE /profiles/{id}/follow.
//
//	@Summary		Unfollow a profile
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		string	true	"Profile id"
//	@Success		200	{object}	FollowResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id}/follow [delete]
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	if err := h.svc.Unfollow(r.Context(), author, chi.URLParam(r, "id")); err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{Following: false})
}

// IsFollowing handles GET /profiles/{id}/follow.
//
//	@Summary		Report whether the session profile follows a profile
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		string	true	"Profile id"
//	@Success		200	{object}	FollowResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id}/follow [get]
func (h *Handler) IsFollowing(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	following, err := h.svc.IsFollowing(r.Context(), author, chi.URLParam(r, "id"))
	if err != nil {
		h.writePublishErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FollowResponse{Following: following})
}

// VHRSummary handles GET /dashboard/vhr.
//
//	@Summary		Reward-token balance and goal progress for the session profile
//	@Tags			dashboard
//	@Produce		json
//	@Success		200	{object}	Summary
//	@Security		BearerAuth
//	@Router			/dashboard/vhr [get]
func (h *Handler) VHRSummary(w http.ResponseWriter, r *http.Request) {
	author, ok := h.author(w, r)
	if !ok {
		return
	}
	s, err := h.svc.VHRSummary(r.Context(), author.Address, author.ProfileID)
	if err != nil {
		slog.Error("vhr summary failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("balance unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Submissions handles GET /submissions.
//
//	@Summary		List recent terminal publish attempts
//	@Tags			submissions
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	SubmissionsResponse
//	@Security		BearerAuth
//	@Router			/submissions [get]
func (h *Handler) Submissions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	subs, err := h.svc.Submissions(limit)
	if err != nil {
		slog.Error("list submissions failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if subs == nil {
		subs = []Submission{}
	}
	writeJSON(w, http.StatusOK, SubmissionsResponse{Submissions: subs})
}
