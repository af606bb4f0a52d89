package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/shared/units"
	"github.com/radieske/crylot/internal/wallet-service/dto"
	"github.com/radieske/crylot/internal/wallet-service/repo"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, address string) (walletID string, balance *big.Int, err error)
	Deposit(ctx context.Context, address string, amount *big.Int, externalRef string) (walletID string, newBalance *big.Int, err error)
	Reserve(ctx context.Context, address string, amount *big.Int, externalRef string) (reservationID string, err error)
	Commit(ctx context.Context, address, externalRef string) error
	Refund(ctx context.Context, address, externalRef string) error
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wallet", s.getWallet) // ?address=0x...
	mux.HandleFunc("POST /wallet/deposit", s.deposit)
	mux.HandleFunc("POST /wallet/reserve", s.reserve)
	mux.HandleFunc("POST /wallet/commit", s.commit)
	mux.HandleFunc("POST /wallet/refund", s.refund)
	return mux
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r.URL.Query().Get("address"))
	if !ok {
		writeErr(w, http.StatusBadRequest, "address required")
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), addr)
	if err != nil {
		s.log.Error("get wallet", zap.String("address", addr), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{Address: addr, WalletID: walletID, BalanceWei: bal.String()})
}

// deposit credita a carteira; usado também para pagar prêmios (ref payout:<id>)
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	addr, ok := parseAddress(req.Address)
	amount, err := units.ParseWei(req.AmountWei)
	if !ok || err != nil || amount.Sign() <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid payload")
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), addr, amount, req.ExternalRef)
	if err != nil {
		s.log.Error("deposit", zap.String("address", addr), zap.String("ref", req.ExternalRef), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{Address: addr, WalletID: walletID, BalanceWei: bal.String()})
}

// reserve cria uma reserva de saldo (bloqueio) para o stake
func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var req dto.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	addr, ok := parseAddress(req.Address)
	amount, err := units.ParseWei(req.AmountWei)
	if !ok || err != nil || amount.Sign() <= 0 || req.ExternalRef == "" {
		writeErr(w, http.StatusBadRequest, "invalid payload")
		return
	}
	resID, err := s.repo.Reserve(r.Context(), addr, amount, req.ExternalRef)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto.ReservationResponse{ReservationID: resID, Status: "PENDING"})
	case errors.Is(err, sql.ErrNoRows):
		writeErr(w, http.StatusNotFound, "wallet not found")
	case errors.Is(err, repo.ErrInsufficientFunds):
		writeErr(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("reserve", zap.String("address", addr), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, "COMMITTED", s.repo.Commit)
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, "REFUNDED", s.repo.Refund)
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request, status string, fn func(context.Context, string, string) error) {
	var req dto.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	addr, ok := parseAddress(req.Address)
	if !ok || req.ExternalRef == "" {
		writeErr(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := fn(r.Context(), addr, req.ExternalRef); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, repo.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeErr(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dto.ReservationResponse{Status: status})
}

// parseAddress normaliza para o formato checksum
func parseAddress(s string) (string, bool) {
	if !common.IsHexAddress(s) {
		return "", false
	}
	return common.HexToAddress(s).Hex(), true
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, dto.ErrorResponse{Error: msg})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
