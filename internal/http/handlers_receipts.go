package http

import (
	"fmt"
	"net/http"
	"time"

	"scontrini/internal/core"
)

const dateLayout = "2006-01-02"

type itemPayload struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	// Quantity defaults to 1 when omitted; an explicit 0 is still invalid.
	Quantity *int64 `json:"quantity,omitempty"`
	Category string `json:"category,omitempty"`
}

type receiptPayload struct {
	StoreName    string        `json:"store_name,omitempty"`
	PurchaseDate string        `json:"purchase_date,omitempty"`
	Total        float64       `json:"total,omitempty"`
	Items        []itemPayload `json:"items"`
}

type itemView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Category string  `json:"category,omitempty"`
}

type receiptView struct {
	ID           int64      `json:"id"`
	StoreName    string     `json:"store_name,omitempty"`
	PurchaseDate *string    `json:"purchase_date,omitempty"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	Total        float64    `json:"total"`
	Items        []itemView `json:"items"`
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	var payload receiptPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, items, err := payload.toDomain()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.receipts.Create(r.Context(), userID, receipt, items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	_, storedItems, err := s.receipts.Get(r.Context(), userID, created.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newReceiptView(created, storedItems))
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request, userID string) {
	receipts, itemsByReceipt, err := s.receipts.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]receiptView, 0, len(receipts))
	for _, receipt := range receipts {
		views = append(views, newReceiptView(receipt, itemsByReceipt[receipt.ID]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt id")
		return
	}

	receipt, items, err := s.receipts.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptView(receipt, items))
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt id")
		return
	}

	if err := s.receipts.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p receiptPayload) toDomain() (core.Receipt, []core.Item, error) {
	var receipt core.Receipt
	receipt.StoreName = p.StoreName

	if p.PurchaseDate != "" {
		purchased, err := time.Parse(dateLayout, p.PurchaseDate)
		if err != nil {
			return core.Receipt{}, nil, fmt.Errorf("invalid purchase_date %q: want YYYY-MM-DD", p.PurchaseDate)
		}
		receipt.PurchaseDate = purchased.UTC()
	}

	totalCents, err := core.CentsFromFloat(p.Total)
	if err != nil {
		return core.Receipt{}, nil, err
	}
	receipt.Total = core.Money{Cents: totalCents}

	items := make([]core.Item, 0, len(p.Items))
	for _, it := range p.Items {
		priceCents, err := core.CentsFromFloat(it.Price)
		if err != nil {
			return core.Receipt{}, nil, err
		}
		quantity := int64(1)
		if it.Quantity != nil {
			quantity = *it.Quantity
		}
		items = append(items, core.Item{
			Name:     it.Name,
			Price:    core.Money{Cents: priceCents},
			Quantity: quantity,
			Category: it.Category,
		})
	}

	return receipt, items, nil
}

func newReceiptView(receipt core.Receipt, items []core.Item) receiptView {
	view := receiptView{
		ID:         receipt.ID,
		StoreName:  receipt.StoreName,
		UploadedAt: receipt.UploadedAt,
		Total:      receipt.Total.Amount(),
		Items:      make([]itemView, 0, len(items)),
	}
	if receipt.HasPurchaseDate() {
		formatted := receipt.PurchaseDate.Format(dateLayout)
		view.PurchaseDate = &formatted
	}
	for _, it := range items {
		view.Items = append(view.Items, itemView{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price.Amount(),
			Quantity: it.Quantity,
			Category: it.Category,
		})
	}
	return view
}
