package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"finrecon/internal/discrepancy"
	"finrecon/internal/store"
)

const defaultAddr = "127.0.0.1:18744"
const defaultRunLimit = 50
const maxRunLimit = 1000

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -store <path-to-sqlite>\n", os.Args[0])
		flag.PrintDefaults()
	}

	storePath := flag.String("store", os.Getenv("RECON_STORE_PATH"), "Path to the sqlite run history")
	addr := flag.String("addr", defaultAddr, "HTTP listen address")
	flag.Parse()

	if *storePath == "" {
		log.Fatal("missing -store")
	}
	if _, err := os.Stat(*storePath); err != nil {
		log.Fatalf("sqlite path error: %v", err)
	}

	s, err := store.Open(*storePath)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	log.Printf("recon-server listening on %s (store=%s)", *addr, *storePath)
	if err := http.ListenAndServe(*addr, newMux(s)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newMux(s *store.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit, ok := parseLimitQueryParam(r, "limit", defaultRunLimit)
		if !ok {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		runs, err := s.ListRuns(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			log.Printf("list runs error: %v", err)
			return
		}
		writeJSON(w, runs)
	})
	mux.HandleFunc("/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, sub, ok := parseRunPath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch sub {
		case "":
			run, err := s.GetRun(r.Context(), id)
			if errors.Is(err, store.ErrRunNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				log.Printf("get run error: %v", err)
				return
			}
			writeJSON(w, run)
		case "discrepancies":
			recs, err := s.Discrepancies(r.Context(), id)
			if errors.Is(err, store.ErrRunNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				log.Printf("discrepancies error: %v", err)
				return
			}
			if sev := strings.TrimSpace(r.URL.Query().Get("severity")); sev != "" {
				recs = filterSeverity(recs, discrepancy.Severity(strings.ToLower(sev)))
			}
			writeJSON(w, recs)
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

// parseRunPath splits /runs/{id}[/{sub}].
func parseRunPath(path string) (id, sub string, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(path, "/runs/"), "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func parseLimitQueryParam(r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	if n > maxRunLimit {
		n = maxRunLimit
	}
	return n, true
}

func filterSeverity(recs []discrepancy.Record, sev discrepancy.Severity) []discrepancy.Record {
	out := []discrepancy.Record{}
	for _, d := range recs {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("encode error: %v", err)
	}
}
