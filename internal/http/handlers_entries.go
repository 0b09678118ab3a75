package http

import (
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type createEntryRequest struct {
	Date     string         `json:"date"`
	Type     core.EntryType `json:"type"`
	Category string         `json:"category"`
	Amount   core.Money     `json:"amount"`
	Method   string         `json:"method"`
	Concept  string         `json:"concept"`
}

// updateEntryRequest holds the optional replacement fields. ID, when sent,
// must match the path.
type updateEntryRequest struct {
	ID       string          `json:"_id,omitempty"`
	Date     *string         `json:"date,omitempty"`
	Type     *core.EntryType `json:"type,omitempty"`
	Category *string         `json:"category,omitempty"`
	Amount   *core.Money     `json:"amount,omitempty"`
	Method   *string         `json:"method,omitempty"`
	Concept  *string         `json:"concept,omitempty"`
}

type transferRequest struct {
	Date   string            `json:"date"`
	Type   core.TransferKind `json:"type"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Amount core.Money        `json:"amount"`
}

type transferResponse struct {
	Message       string   `json:"message"`
	MovementID    string   `json:"movement_id"`
	UpdatedMonths []string `json:"updated_months"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := requiredField("concept", sanitizeInput(req.Concept)); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.ledger.CreateEntry(r.Context(), TenantFromContext(r.Context()), core.EntryInput{
		Date:     date,
		Type:     req.Type,
		Category: sanitizeInput(req.Category),
		Amount:   req.Amount,
		Method:   sanitizeInput(req.Method),
		Note:     sanitizeInput(req.Concept),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/finances/transactions/"+e.ID).
		Body(newEntryView(e)).
		Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.Entry(r.Context(), TenantFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryView(e)).Write(w)
}

// handleListEntries lists entries with optional inclusive from/to dates and
// category or method filters.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseOptionalDate(q, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseOptionalDate(q, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from.Time) {
		writeError(w, r, core.InvalidArgument("to must not precede from"))
		return
	}

	filter := storage.EntryFilter{
		From:     from,
		Category: sanitizeInput(q.Get("category")),
		Method:   sanitizeInput(q.Get("method")),
	}
	if !to.IsZero() {
		filter.To = dayAfter(to)
	}

	entries, err := s.ledger.Entries(r.Context(), TenantFromContext(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryViews(entries)).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID != "" && req.ID != id {
		writeError(w, r, core.InvalidArgument("body _id %q does not match path id %q", req.ID, id))
		return
	}

	patch := core.EntryPatch{
		Type:     req.Type,
		Category: sanitizePtr(req.Category),
		Amount:   req.Amount,
		Method:   sanitizePtr(req.Method),
		Note:     sanitizePtr(req.Concept),
	}
	if req.Date != nil {
		d, err := parseDateField("date", *req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Date = &d
	}

	e, err := s.ledger.UpdateEntry(r.Context(), TenantFromContext(r.Context()), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryView(e)).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveEntry(r.Context(), TenantFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.ledger.Transfer(r.Context(), TenantFromContext(r.Context()), core.TransferInput{
		Date:   date,
		From:   sanitizeInput(req.From),
		To:     sanitizeInput(req.To),
		Amount: req.Amount,
		Kind:   req.Type,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "Transfer registered successfully"
	if req.Type == core.KindPay {
		msg = "Payment registered successfully"
	}
	NewJSONResponse().Status(http.StatusCreated).Body(transferResponse{
		Message:       msg,
		MovementID:    res.Entry.ID,
		UpdatedMonths: res.UpdatedKeys(),
	}).Write(w)
}
