package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"medistock/m/domain"
	"medistock/m/internal/cart"
	"medistock/m/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	manager, err := store.NewManager(dir)
	require.NoError(t, err)
	t.Cleanup(manager.CloseAll)
	storage, err := cart.NewStorage(filepath.Join(dir, "local"))
	require.NoError(t, err)
	h := New(manager, cart.NewService(storage, manager), "test_secret", 5)
	return h.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"pharmacy_name": "wellness",
		"email":         "a@b.com",
		"phone_number":  "9999999999",
		"password":      "secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token        string `json:"token"`
		PharmacyName string `json:"pharmacy_name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "wellness", resp.PharmacyName)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"pharmacy_name": "wellness",
		"email":         "not-an-email",
		"phone_number":  "abc",
		"password":      "x",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "fields")
}

func TestRegisterConflict(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"pharmacy_name": "other",
		"email":         "a@b.com",
		"phone_number":  "1111111111",
		"password":      "secret",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email_or_phone": "a@b.com",
		"password":       "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "wellness")

	rec = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email_or_phone": "9999999999",
		"password":       "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email_or_phone": "a@b.com",
		"password":       "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/inventory/medicines/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddListMedicine(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	med := domain.Medicine{
		Name: "Paracetamol", Type: "Tablet", Quantity: "10",
		ExpiryDate: "2099-01-01", BatchNo: "B1", Price: 20,
	}
	rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []store.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "Paracetamol", rows[0].Name)
}

func TestAddMedicineFieldErrors(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, domain.Medicine{Name: "X"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "fields")
}

func TestUpdateAndDeleteMedicine(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	med := domain.Medicine{
		Name: "Paracetamol", Type: "Tablet", Quantity: "10",
		ExpiryDate: "2099-01-01", BatchNo: "B1", Price: 20,
	}
	rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Medicine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	created.Price = 22
	rec = doJSON(t, router, http.MethodPut, "/inventory/medicines/1", token, created)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPut, "/inventory/medicines/999", token, created)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/inventory/medicines/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/inventory/medicines/1", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchAndSuggest(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	for _, med := range []domain.Medicine{
		{Name: "Paracetamol", Type: "Tablet", Quantity: "10", ExpiryDate: "2099-01-01", BatchNo: "B1", Price: 20},
		{Name: "Ibuprofen", Type: "Tablet", Quantity: "6", ExpiryDate: "2099-01-01", BatchNo: "B2", Price: 30},
	} {
		rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/inventory/medicines/search?q=Para", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []store.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)

	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/search", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/suggest?q=I", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	require.Equal(t, []string{"Ibuprofen"}, names)
}

func TestSweepEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	med := domain.Medicine{
		Name: "OldMed", Type: "Tablet", Quantity: "10",
		ExpiryDate: "2000-01-01", BatchNo: "B1", Price: 20,
	}
	rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/inventory/sweep?as_of=2025-01-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result store.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, int64(1), result.Medicines)

	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var archived []store.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &archived))
	require.Len(t, archived, 1)

	rec = doJSON(t, router, http.MethodPost, "/inventory/sweep?as_of=not-a-date", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	csv := "name,type,quantity,expiry_date,batch_no,price\nParacetamol,Tablet,10,2099-01-01,B1,20\n"
	req := httptest.NewRequest(http.MethodPost, "/inventory/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"imported":1`)
}

func TestCartFlow(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	med := domain.Medicine{
		Name: "Paracetamol", Type: "Tablet", Quantity: "10",
		ExpiryDate: "2099-01-01", BatchNo: "B1", Price: 100,
	}
	rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Medicine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	line := domain.CartLine{
		ID: created.ID, Name: created.Name, Quantity: 2, Price: created.Price,
		Discount: 10, Type: domain.KindMedicines, BatchNo: created.BatchNo,
	}
	rec = doJSON(t, router, http.MethodPost, "/cart/lines", token, line)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/cart/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 1)
	require.Equal(t, 180.0, resp.Totals.Subtotal)
	require.Equal(t, 9.0, resp.Totals.Tax)
	require.Equal(t, 189.0, resp.Totals.GrandTotal)

	// Stock was decremented on add.
	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/", token, nil)
	var rows []store.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Equal(t, "8", rows[0].Quantity)

	rec = doJSON(t, router, http.MethodDelete, "/cart/lines/0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Equal(t, "10", rows[0].Quantity)

	rec = doJSON(t, router, http.MethodPost, "/cart/clear", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReceiptEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	med := domain.Medicine{
		Name: "Paracetamol", Type: "Tablet", Quantity: "10",
		ExpiryDate: "2099-01-01", BatchNo: "B1", Price: 100,
	}
	rec := doJSON(t, router, http.MethodPost, "/inventory/medicines/", token, med)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Medicine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPost, "/cart/lines", token, domain.CartLine{
		ID: created.ID, Name: created.Name, Quantity: 1, Price: created.Price, Type: domain.KindMedicines,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/receipt", token, map[string]any{
		"doctor_name":  "Dr. Rao",
		"patient_name": "A. Kumar",
		"gst_no":       "29ABCDE1234F1Z5",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, "%PDF", rec.Body.String()[:4])
}

func TestLogout(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The token is still valid; the database handle simply reopens.
	rec = doJSON(t, router, http.MethodGet, "/inventory/medicines/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
