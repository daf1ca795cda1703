package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type codeResult struct {
	Repo   string  `json:"repo"`
	File   string  `json:"file"`
	Symbol string  `json:"symbol"`
	Line   int     `json:"line"`
	Score  float64 `json:"score"`
}

type callEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Depth int    `json:"depth"`
}

var symbols = map[string]codeResult{
	"CarrierClient.Post": {Repo: "label-service", File: "internal/carrier/client.go", Symbol: "CarrierClient.Post", Line: 88, Score: 0.92},
	"Handler.Submit":     {Repo: "label-service", File: "internal/api/handler.go", Symbol: "Handler.Submit", Line: 41, Score: 0.88},
	"Validator.Check":    {Repo: "label-service", File: "internal/validate/validator.go", Symbol: "Validator.Check", Line: 17, Score: 0.8},
}

var edges = []callEdge{
	{From: "Handler.Submit", To: "Validator.Check", Depth: 1},
	{From: "Handler.Submit", To: "CarrierClient.Post", Depth: 1},
	{From: "CarrierClient.Post", To: "HTTPClient.Do", Depth: 2},
}

func main() {
	addr := os.Getenv("MOCK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// VictoriaLogs LogsQL endpoint: JSON lines, one record per line.
	mux.HandleFunc("/select/logsql/query", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		start, err1 := time.Parse(time.RFC3339, r.PostForm.Get("start"))
		end, err2 := time.Parse(time.RFC3339, r.PostForm.Get("end"))
		if err1 != nil || err2 != nil || !end.After(start) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit, _ := strconv.Atoi(r.PostForm.Get("limit"))
		if limit <= 0 || limit > 200 {
			limit = 200
		}
		w.Header().Set("Content-Type", "application/stream+json")
		enc := json.NewEncoder(w)
		for _, line := range syntheticLogs(start, end, limit) {
			_ = enc.Encode(line)
		}
	})

	// Live status API.
	mux.HandleFunc("/api/v1/entities/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/entities/")
		if id == "" || strings.HasPrefix(id, "E-404") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{
			"entity_id":  id,
			"state":      "label_pending",
			"updated_at": time.Now().UTC().Add(-5 * time.Minute),
			"attributes": map[string]string{"carrier": "ups"},
		})
	})

	mux.HandleFunc("/api/v1/code/search", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req struct {
			Symbol string `json:"symbol"`
			Limit  int    `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var results []codeResult
		for name, res := range symbols {
			if name == req.Symbol || strings.HasSuffix(name, "."+req.Symbol) {
				results = append(results, res)
			}
		}
		writeJSON(w, map[string]any{"results": results})
	})

	mux.HandleFunc("/api/v1/code/graph", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req struct {
			Symbol string `json:"symbol"`
			Depth  int    `json:"depth"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Symbol != "Handler.Submit" {
			writeJSON(w, map[string]any{"root": req.Symbol, "edges": []callEdge{}})
			return
		}
		writeJSON(w, map[string]any{"root": req.Symbol, "edges": edges})
	})

	logger := log.New(log.Writer(), "backends-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// syntheticLogs spreads carrier timeouts and their successful retries evenly over [start, end).
func syntheticLogs(start, end time.Time, limit int) []map[string]string {
	step := end.Sub(start) / time.Duration(limit)
	out := make([]map[string]string, 0, limit)
	for i := 0; i < limit; i++ {
		ts := start.Add(time.Duration(i) * step)
		tracking := fmt.Sprintf("1Z999AA1%010d", 123456784+i%5)
		rec := map[string]string{
			"_time":          ts.UTC().Format(time.RFC3339Nano),
			"service":        "label-service",
			"tracking_id":    tracking,
			"correlation_id": fmt.Sprintf("corr-%04d", i%7),
		}
		if i%3 == 0 {
			rec["level"] = "info"
			rec["_msg"] = fmt.Sprintf("CarrierClient.Post retry succeeded for tracking %s after %d attempts", tracking, 2+i%2)
		} else {
			rec["level"] = "error"
			rec["_msg"] = fmt.Sprintf("CarrierClient.Post upstream timeout after %d ms for tracking %s", 3000+i%4*500, tracking)
		}
		out = append(out, rec)
	}
	return out
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
