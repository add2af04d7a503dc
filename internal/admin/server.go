package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/repository"
	"github.com/suchenyang0910-glitch/usdt-telegram-membership-sub000/internal/service"
)

// Server is the operator-facing JSON API: health snapshot, unmatched
// transfers, manual invite re-send and address-pool maintenance.
type Server struct {
	addr      string
	username  string
	password  string
	log       *slog.Logger
	users     *repository.UserRepository
	transfers *repository.TransferRepository
	addresses *repository.AddressRepository
	audit     *repository.AuditRepository
	health    *service.HealthService
	messenger service.Messenger
	router    *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, users *repository.UserRepository, transfers *repository.TransferRepository, addresses *repository.AddressRepository, audit *repository.AuditRepository, health *service.HealthService, messenger service.Messenger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:      addr,
		username:  username,
		password:  password,
		log:       log,
		users:     users,
		transfers: transfers,
		addresses: addresses,
		audit:     audit,
		health:    health,
		messenger: messenger,
		router:    r,
	}
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/health", s.handleHealth)
		protected.Get("/transfers/unmatched", s.handleUnmatched)
		protected.Get("/audit", s.handleAudit)
		protected.Get("/address-pool", s.handleListAddresses)
		protected.Post("/address-pool/{addr}/release", s.handleReleaseAddress)
		protected.Post("/invites/resend", s.handleResendInvite)
	})
	return s
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	age, err := s.health.LastCreditAge(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	payload := map[string]any{"status": "ok"}
	if age != nil {
		payload["last_credit_age_seconds"] = int64(age.Seconds())
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.transfers.ListUnmatched(r.Context(), 100)
	if err != nil {
		s.internalError(w, err)
		return
	}
	type row struct {
		TxID      string    `json:"tx_id"`
		Addr      string    `json:"addr"`
		FromAddr  string    `json:"from_addr"`
		Amount    string    `json:"amount"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]row, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, row{
			TxID:      t.TxID,
			Addr:      t.Addr,
			FromAddr:  t.FromAddr,
			Amount:    t.Amount.String(),
			CreatedAt: t.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.audit.List(r.Context(), 200)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	entries, err := s.addresses.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReleaseAddress(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	entry, err := s.addresses.Get(r.Context(), addr)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if entry == nil {
		http.Error(w, "address not found", http.StatusNotFound)
		return
	}
	if err := s.addresses.Release(r.Context(), addr); err != nil {
		s.internalError(w, err)
		return
	}
	if err := s.audit.Insert(r.Context(), "address/release", 0, addr); err != nil {
		s.log.Error("audit address release", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type resendRequest struct {
	TelegramID int64 `json:"telegram_id"`
}

// handleResendInvite re-issues the invite link after a delivery failure.
func (s *Server) handleResendInvite(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramID == 0 {
		http.Error(w, "telegram_id required", http.StatusBadRequest)
		return
	}
	user, err := s.users.FindByTelegramID(r.Context(), req.TelegramID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if user.Expired(time.Now().UTC()) {
		http.Error(w, "membership not active", http.StatusConflict)
		return
	}
	if err := s.messenger.SendInvite(r.Context(), user, *user.PaidUntil); err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="membership"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
