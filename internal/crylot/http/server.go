package httpapi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/dto"
	"github.com/radieske/crylot/internal/crylot/wallet"
	"github.com/radieske/crylot/internal/shared/callerauth"
	"github.com/radieske/crylot/internal/shared/units"
	"github.com/radieske/crylot/pkg/contracts/events"
)

// CallerHeader identifica quem chama. O serviço confia no header: o api-gateway
// descarta o valor enviado pelo cliente e só o preenche com o endereço
// recuperado da assinatura (ver callerauth). O serviço não deve ser exposto
// fora da rede interna.
const CallerHeader = callerauth.AddressHeader

// Escrow reserva o stake do jogador no wallet-service enquanto o bet é admitido
type Escrow interface {
	Reserve(ctx context.Context, player common.Address, amount *big.Int, externalRef string) (string, error)
	Commit(ctx context.Context, player common.Address, externalRef string) error
	Refund(ctx context.Context, player common.Address, externalRef string) error
}

// BetPublisher recebe as apostas admitidas
type BetPublisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// BoundsReader é o cache de leitura dos limites
type BoundsReader interface {
	Get(ctx context.Context) (crylot.StakeBounds, bool, error)
}

// API expõe os entry points do contrato em REST
type API struct {
	Contract *crylot.Contract
	Escrow   Escrow       // opcional: sem ele o valor do bet não passa pela carteira
	Cache    BoundsReader // opcional
	Events   BetPublisher // opcional
	Log      *zap.Logger
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/bounds", a.getBounds)
	r.Get("/v1/bounds/min", a.getMinBet)
	r.Get("/v1/bounds/max", a.getMaxBet)
	r.Put("/v1/bounds/min", a.setMinBet)
	r.Put("/v1/bounds/max", a.setMaxBet)

	r.Post("/v1/bets", a.placeBet)
	r.Get("/v1/bets/{id}", a.getBet)
	r.Post("/v1/payouts/{id}/retry", a.retryPayout)

	r.Get("/v1/admins/{address}", a.isAdmin)
	r.Post("/v1/admins", a.grantAdmin)
	r.Delete("/v1/admins/{address}", a.revokeAdmin)

	r.Post("/v1/fund", a.fund)
	r.Get("/v1/balance", a.balance)
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf mapeia o tipo de rejeição do contrato para o status HTTP
func statusOf(k crylot.Kind) int {
	switch k {
	case crylot.KindNotAuthorized, crylot.KindNotCoordinator:
		return http.StatusForbidden
	case crylot.KindUnknownRequest:
		return http.StatusNotFound
	case crylot.KindInvalidBound, crylot.KindBetTooLow, crylot.KindBetTooHigh,
		crylot.KindInvalidGuess, crylot.KindInvalidAmount:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	k := crylot.KindOf(err)
	code := statusOf(k)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("reqId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		if errors.Is(err, crylot.ErrTransferFailed) {
			msg = crylot.ErrTransferFailed.Error()
		} else {
			msg = "internal error"
		}
	}
	writeJSON(w, code, dto.ErrorResponse{Error: msg, Kind: k.String()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: msg, Kind: "BadRequest"})
}

func caller(r *http.Request) (common.Address, bool) {
	h := r.Header.Get(CallerHeader)
	if !common.IsHexAddress(h) {
		return common.Address{}, false
	}
	return common.HexToAddress(h), true
}

func parseAmount(in dto.AmountRequest) (*big.Int, error) {
	if in.ValueWei != "" {
		return units.ParseWei(in.ValueWei)
	}
	if in.ValueEth != "" {
		return units.ParseEther(in.ValueEth)
	}
	return nil, errors.New("value_wei or value_eth required")
}

func parseRequestID(r *http.Request) (*big.Int, bool) {
	id, ok := new(big.Int).SetString(chi.URLParam(r, "id"), 10)
	if !ok || id.Sign() < 0 {
		return nil, false
	}
	return id, true
}

func amount(v *big.Int) dto.AmountResponse {
	return dto.AmountResponse{Wei: v.String(), Eth: units.FormatEther(v)}
}

// ---------- Limites ----------

// bounds lê do cache quando possível; o cache é atualizado pelo Broadcaster
func (a *API) bounds(ctx context.Context) (crylot.StakeBounds, error) {
	if a.Cache != nil {
		if b, ok, err := a.Cache.Get(ctx); err == nil && ok {
			return b, nil
		}
	}
	return a.Contract.Bounds(ctx)
}

func (a *API) getBounds(w http.ResponseWriter, r *http.Request) {
	b, err := a.bounds(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BoundsResponse{
		MinBetWei: b.MinBet.String(),
		MaxBetWei: b.MaxBet.String(),
		MinBetEth: units.FormatEther(b.MinBet),
		MaxBetEth: units.FormatEther(b.MaxBet),
	})
}

func (a *API) getMinBet(w http.ResponseWriter, r *http.Request) {
	b, err := a.bounds(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amount(b.MinBet))
}

func (a *API) getMaxBet(w http.ResponseWriter, r *http.Request) {
	b, err := a.bounds(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amount(b.MaxBet))
}

func (a *API) setMinBet(w http.ResponseWriter, r *http.Request) {
	a.setBound(w, r, a.Contract.SetMinBet)
}

func (a *API) setMaxBet(w http.ResponseWriter, r *http.Request) {
	a.setBound(w, r, a.Contract.SetMaxBet)
}

func (a *API) setBound(w http.ResponseWriter, r *http.Request, set func(context.Context, common.Address, *big.Int) error) {
	who, ok := caller(r)
	if !ok {
		badRequest(w, CallerHeader+" required")
		return
	}
	var req dto.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	v, err := parseAmount(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := set(r.Context(), who, v); err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.getBounds(w, r)
}

// ---------- Apostas ----------

// placeBet reserva o stake na carteira, chama o contrato e efetiva ou devolve
// a reserva conforme o resultado
func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	player, ok := caller(r)
	if !ok {
		badRequest(w, CallerHeader+" required")
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	value, err := parseAmount(req.AmountRequest)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	ref, ok := a.reserve(w, r, player, value, "bet")
	if !ok {
		return
	}

	id, err := a.Contract.Bet(ctx, player, req.Guess, value)
	if err != nil {
		a.refund(player, ref)
		a.writeErr(w, r, err)
		return
	}
	a.commit(player, ref, zap.String("requestId", id.String()))
	if a.Events != nil {
		// best effort: o bet já está no ledger
		if err := a.Events.PublishBetPlaced(ctx, events.BetPlaced{
			RequestID:   id.String(),
			Player:      player.Hex(),
			Guess:       req.Guess,
			StakeWei:    value.String(),
			ReservedRef: ref,
			TsUnixMs:    time.Now().UnixMilli(),
		}); err != nil {
			a.Log.Warn("publish bet_placed failed", zap.String("requestId", id.String()), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusAccepted, dto.PlaceBetResponse{
		RequestID:   id.String(),
		ReservedRef: ref,
		Status:      "PENDING_RANDOMNESS",
	})
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(r)
	if !ok {
		badRequest(w, "invalid request id")
		return
	}
	ctx := r.Context()

	bet, err := a.Contract.PendingBet(ctx, id)
	if err == nil {
		writeJSON(w, http.StatusOK, dto.BetResponse{
			RequestID: id.String(),
			Player:    bet.Player.Hex(),
			Guess:     bet.Guess,
			StakeWei:  bet.Stake.String(),
			Status:    "PENDING_RANDOMNESS",
		})
		return
	}
	if crylot.KindOf(err) != crylot.KindUnknownRequest {
		a.writeErr(w, r, err)
		return
	}

	o, err := a.Contract.Outcome(ctx, id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(o))
}

func outcomeResponse(o crylot.Outcome) dto.BetResponse {
	won := o.Won
	at := o.ResolvedAt
	return dto.BetResponse{
		RequestID:    o.RequestID.String(),
		Player:       o.Player.Hex(),
		Guess:        o.Guess,
		StakeWei:     o.Stake.String(),
		Status:       "RESOLVED",
		Rolled:       o.Rolled,
		Won:          &won,
		PayoutWei:    o.Payout.String(),
		PayoutStatus: string(o.PayoutStatus),
		ResolvedAt:   &at,
	}
}

func (a *API) retryPayout(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(r)
	if !ok {
		badRequest(w, CallerHeader+" required")
		return
	}
	id, ok := parseRequestID(r)
	if !ok {
		badRequest(w, "invalid request id")
		return
	}
	o, err := a.Contract.RetryPayout(r.Context(), who, id)
	if err != nil && !errors.Is(err, crylot.ErrTransferFailed) {
		a.writeErr(w, r, err)
		return
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, outcomeResponse(o))
}

// ---------- Admins ----------

func (a *API) isAdmin(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		badRequest(w, "invalid address")
		return
	}
	account := common.HexToAddress(addr)
	ok, err := a.Contract.IsAdmin(r.Context(), account)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminResponse{Address: account.Hex(), Admin: ok})
}

func (a *API) grantAdmin(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(r)
	if !ok {
		badRequest(w, CallerHeader+" required")
		return
	}
	var req dto.AdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.Address) {
		badRequest(w, "invalid address")
		return
	}
	account := common.HexToAddress(req.Address)
	if err := a.Contract.GrantAdmin(r.Context(), who, account); err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminResponse{Address: account.Hex(), Admin: true})
}

func (a *API) revokeAdmin(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(r)
	if !ok {
		badRequest(w, CallerHeader+" required")
		return
	}
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		badRequest(w, "invalid address")
		return
	}
	account := common.HexToAddress(addr)
	if err := a.Contract.RevokeAdmin(r.Context(), who, account); err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminResponse{Address: account.Hex(), Admin: false})
}

// ---------- Saldo da casa ----------

func (a *API) fund(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(r)
	if !ok {
		badRequest(w, CallerHeader+" required")
		return
	}
	var req dto.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	v, err := parseAmount(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ref, ok := a.reserve(w, r, who, v, "fund")
	if !ok {
		return
	}
	if err := a.Contract.Fund(r.Context(), who, v); err != nil {
		a.refund(who, ref)
		a.writeErr(w, r, err)
		return
	}
	a.commit(who, ref)
	a.balance(w, r)
}

// reserve debita o valor da carteira de quem chama antes de tocar no contrato.
// Sem Escrow configurado devolve ref vazia.
func (a *API) reserve(w http.ResponseWriter, r *http.Request, who common.Address, value *big.Int, kind string) (string, bool) {
	if a.Escrow == nil {
		return "", true
	}
	ref := kind + ":" + uuid.NewString()
	if _, err := a.Escrow.Reserve(r.Context(), who, value, ref); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			code = http.StatusConflict
		}
		a.Log.Info("wallet reserve failed", zap.String("kind", kind), zap.Stringer("caller", who), zap.Error(err))
		writeJSON(w, code, dto.ErrorResponse{Error: "wallet reserve failed", Kind: "Wallet"})
		return "", false
	}
	return ref, true
}

// refund usa contexto próprio: precisa acontecer mesmo se o cliente cair
func (a *API) refund(who common.Address, ref string) {
	if ref == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), escrowTimeout)
	defer cancel()
	if err := a.Escrow.Refund(ctx, who, ref); err != nil {
		a.Log.Error("wallet refund failed", zap.String("ref", ref), zap.Error(err))
	}
}

const (
	escrowTimeout  = 5 * time.Second
	commitAttempts = 4
)

var commitBackoff = 200 * time.Millisecond

// commit confirma a reserva depois que o contrato já contou o valor. O estado
// do contrato não volta atrás, então insiste com backoff fora do contexto da
// requisição.
func (a *API) commit(who common.Address, ref string, fields ...zap.Field) {
	if ref == "" {
		return
	}
	fields = append(fields, zap.String("ref", ref))
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), escrowTimeout)
		err = a.Escrow.Commit(ctx, who, ref)
		cancel()
		if err == nil {
			return
		}
		a.Log.Warn("wallet commit failed", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		if attempt < commitAttempts {
			time.Sleep(commitBackoff * time.Duration(attempt))
		}
	}
	a.Log.Error("wallet commit gave up, reservation left RESERVED", append(fields, zap.Error(err))...)
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	b, err := a.Contract.Balance(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amount(b))
}
