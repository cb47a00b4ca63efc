package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"medistock/m/domain"
	"medistock/m/internal/cart"
	"medistock/m/internal/receipt"
	"medistock/m/internal/store"
	"medistock/m/internal/validate"
)

type ctxKey string

const ctxPharmacy ctxKey = "pharmacy"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store   *store.Manager
	cart    *cart.Service
	secret  string
	taxRate float64
}

// New constructs a Handler. taxRate is the default GST percentage
// applied when a request does not carry its own.
func New(st *store.Manager, crt *cart.Service, secret string, taxRate float64) *Handler {
	return &Handler{store: st, cart: crt, secret: secret, taxRate: taxRate}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/logout", h.logout)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/inventory", func(r chi.Router) {
			r.Post("/sweep", h.sweepExpired)
			r.Post("/import", h.importInventory)
			r.Route("/{kind}", func(r chi.Router) {
				r.Post("/", h.addItem)
				r.Get("/", h.listItems)
				r.Get("/search", h.searchItems)
				r.Get("/suggest", h.suggestItems)
				r.Get("/archive", h.listArchived)
				r.Put("/{id}", h.updateItem)
				r.Delete("/{id}", h.deleteItem)
			})
		})

		pr.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/lines", h.addCartLine)
			r.Delete("/lines/{index}", h.removeCartLine)
			r.Post("/clear", h.clearCart)
		})

		pr.Post("/receipt", h.buildReceipt)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	Pharmacy string `json:"pharmacy"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(pharmacy string) (string, error) {
	claims := authClaims{
		Pharmacy: pharmacy,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok || claims.Pharmacy == "" {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxPharmacy, claims.Pharmacy)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) pharmacy(r *http.Request) string {
	return r.Context().Value(ctxPharmacy).(string)
}

// Auth handlers

type registerRequest struct {
	PharmacyName string `json:"pharmacy_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	PhoneNumber  string `json:"phone_number" validate:"required,numeric,min=7"`
	Password     string `json:"password" validate:"required,min=4"`
}

type authResponse struct {
	Token        string `json:"token"`
	PharmacyName string `json:"pharmacy_name"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := validate.Struct(req); fieldErrs != nil {
		respondFieldErrors(w, fieldErrs)
		return
	}

	if err := h.store.RegisterUser(r.Context(), req.PharmacyName, req.Email, req.PhoneNumber, req.Password); err != nil {
		respondStoreError(w, err)
		return
	}

	tenant, err := store.NormalizeTenant(req.PharmacyName)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	// Create the pharmacy's database and tables up front so the first
	// inventory call does not pay for it.
	if err := h.store.Open(tenant); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to initialize pharmacy storage")
		return
	}

	token, err := h.generateToken(tenant)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, PharmacyName: tenant})
}

type loginRequest struct {
	EmailOrPhone string `json:"email_or_phone" validate:"required"`
	Password     string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := validate.Struct(req); fieldErrs != nil {
		respondFieldErrors(w, fieldErrs)
		return
	}

	pharmacy, err := h.store.ValidateLogin(r.Context(), req.EmailOrPhone, req.Password)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	token, err := h.generateToken(pharmacy)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, PharmacyName: pharmacy})
}

// logout releases the pharmacy's database handle, the teardown half of
// the open-on-login lifecycle.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.store.Close(h.pharmacy(r))
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Inventory handlers

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	pharmacy := h.pharmacy(r)
	switch chi.URLParam(r, "kind") {
	case domain.KindMedicines:
		var med domain.Medicine
		if err := decodeJSON(r, &med); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fieldErrs := validate.Struct(med); fieldErrs != nil {
			respondFieldErrors(w, fieldErrs)
			return
		}
		created, err := h.store.AddMedicine(r.Context(), pharmacy, med)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, created)
	case domain.KindGeneralItems:
		var item domain.GeneralItem
		if err := decodeJSON(r, &item); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fieldErrs := validate.Struct(item); fieldErrs != nil {
			respondFieldErrors(w, fieldErrs)
			return
		}
		created, err := h.store.AddGeneralItem(r.Context(), pharmacy, item)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, created)
	default:
		respondError(w, http.StatusBadRequest, "kind must be medicines or general_items")
	}
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.List(r.Context(), h.pharmacy(r), chi.URLParam(r, "kind"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	pharmacy := h.pharmacy(r)
	switch chi.URLParam(r, "kind") {
	case domain.KindMedicines:
		var med domain.Medicine
		if err := decodeJSON(r, &med); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fieldErrs := validate.Struct(med); fieldErrs != nil {
			respondFieldErrors(w, fieldErrs)
			return
		}
		med.ID = id
		if err := h.store.UpdateMedicine(r.Context(), pharmacy, med); err != nil {
			respondStoreError(w, err)
			return
		}
	case domain.KindGeneralItems:
		var item domain.GeneralItem
		if err := decodeJSON(r, &item); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fieldErrs := validate.Struct(item); fieldErrs != nil {
			respondFieldErrors(w, fieldErrs)
			return
		}
		item.ID = id
		if err := h.store.UpdateGeneralItem(r.Context(), pharmacy, item); err != nil {
			respondStoreError(w, err)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "kind must be medicines or general_items")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	if err := h.store.Delete(r.Context(), h.pharmacy(r), chi.URLParam(r, "kind"), id); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) searchItems(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	rows, err := h.store.Search(r.Context(), h.pharmacy(r), chi.URLParam(r, "kind"), query)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) suggestItems(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		respondJSON(w, http.StatusOK, []string{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	names, err := h.store.Suggest(r.Context(), h.pharmacy(r), chi.URLParam(r, "kind"), prefix, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

func (h *Handler) listArchived(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListArchived(r.Context(), h.pharmacy(r), chi.URLParam(r, "kind"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) sweepExpired(w http.ResponseWriter, r *http.Request) {
	asOf := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if asOf == "" {
		asOf = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", asOf); err != nil {
		respondError(w, http.StatusBadRequest, "as_of must be in YYYY-MM-DD format")
		return
	}
	result, err := h.store.SweepExpired(r.Context(), h.pharmacy(r), asOf)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) importInventory(w http.ResponseWriter, r *http.Request) {
	inserted, err := h.store.ImportMedicines(r.Context(), h.pharmacy(r), r.Body)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"imported": inserted})
}

// Cart handlers

type cartResponse struct {
	Lines  []domain.CartLine `json:"lines"`
	Totals cart.Totals       `json:"totals"`
}

func (h *Handler) effectiveTaxRate(r *http.Request) float64 {
	if raw := r.URL.Query().Get("tax_rate"); raw != "" {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil && rate >= 0 {
			return rate
		}
	}
	return h.taxRate
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.cart.Load(h.pharmacy(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cart")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Lines: lines, Totals: cart.ComputeTotals(lines, h.effectiveTaxRate(r))})
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	var line domain.CartLine
	if err := decodeJSON(r, &line); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lines, err := h.cart.AddLine(r.Context(), h.pharmacy(r), line)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse{Lines: lines, Totals: cart.ComputeTotals(lines, h.effectiveTaxRate(r))})
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid line index")
		return
	}
	lines, err := h.cart.RemoveLine(r.Context(), h.pharmacy(r), index)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Lines: lines, Totals: cart.ComputeTotals(lines, h.effectiveTaxRate(r))})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(h.pharmacy(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to clear cart")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Receipt

type receiptRequest struct {
	DoctorName  string   `json:"doctor_name"`
	PatientName string   `json:"patient_name"`
	GSTNo       string   `json:"gst_no"`
	TaxRate     *float64 `json:"tax_rate,omitempty"`
}

func (h *Handler) buildReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	pharmacy := h.pharmacy(r)
	lines, err := h.cart.Load(pharmacy)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load cart")
		return
	}
	taxRate := h.taxRate
	if req.TaxRate != nil && *req.TaxRate >= 0 {
		taxRate = *req.TaxRate
	}

	rec := receipt.New(pharmacy, lines, taxRate)
	rec.DoctorName = req.DoctorName
	rec.PatientName = req.PatientName
	rec.GSTNo = req.GSTNo

	data, err := receipt.Render(rec)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to render receipt")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="receipt.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondFieldErrors(w http.ResponseWriter, fieldErrs []validate.FieldError) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fieldErrs,
	})
}

// respondStoreError maps the store's sentinel errors onto HTTP statuses;
// anything unrecognized is a storage-layer failure and stays generic.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, cart.ErrNoSuchLine):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrBadTenant), errors.Is(err, store.ErrBadKind),
		errors.Is(err, cart.ErrBadLine):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "storage failure")
	}
}
