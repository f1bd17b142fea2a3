package http

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/krobus00/price-feed-service/internal/service/pricing"
)

type InstrumentsResponse struct {
	Instruments []entity.Instrument `json:"instruments"`
}

type PriceResponse struct {
	Symbol entity.Instrument `json:"symbol"`
	Price  string            `json:"price"`
}

type PricesResponse struct {
	Prices []PriceResponse `json:"prices"`
}

type Handler struct {
	store *pricing.PriceStore
}

func NewPriceFeedHTTPHandler(store *pricing.PriceStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/price-feed/v1/instruments", h.ListInstruments)
	mux.HandleFunc("/price-feed/v1/prices", h.ListPrices)
}

func (h *Handler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, InstrumentsResponse{Instruments: h.store.Instruments()})
}

// ListPrices returns the current snapshot. An optional symbols query, e.g.
// ?symbols=GOOG,TSLA, narrows it; unknown symbols are rejected.
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	instruments := h.store.Instruments()
	if raw := strings.TrimSpace(r.URL.Query().Get("symbols")); raw != "" {
		known := h.store.InstrumentSet()
		instruments = instruments[:0]
		for _, symbol := range strings.Split(raw, ",") {
			instrument := entity.Instrument(strings.TrimSpace(symbol))
			if !known.Contains(instrument) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown symbol: " + string(instrument)})
				return
			}
			instruments = append(instruments, instrument)
		}
		entity.SortInstruments(instruments)
		instruments = dedupe(instruments)
	}

	snapshot := h.store.Snapshot(instruments)
	resp := PricesResponse{Prices: make([]PriceResponse, 0, len(instruments))}
	for _, instrument := range instruments {
		resp.Prices = append(resp.Prices, PriceResponse{
			Symbol: instrument,
			Price:  snapshot[instrument].StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// dedupe expects sorted input.
func dedupe(instruments []entity.Instrument) []entity.Instrument {
	out := instruments[:0]
	for i, instrument := range instruments {
		if i > 0 && instrument == instruments[i-1] {
			continue
		}
		out = append(out, instrument)
	}

	return out
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
