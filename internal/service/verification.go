package service

import (
	"context"
	"log/slog"

	"github.com/punchamoorthee/nobreverify/internal/commerce"
	"github.com/punchamoorthee/nobreverify/internal/domain"
	"github.com/punchamoorthee/nobreverify/internal/store"
)

type Status string

const (
	StatusVerified        Status = "verified"
	StatusMissingIdentity Status = "missing_identity"
	StatusUnknownInvoker  Status = "unknown_invoker"
	StatusAuthError       Status = "auth_error"
	StatusOrdersError     Status = "orders_error"
	StatusNotPurchaser    Status = "not_purchaser"
	StatusAlreadyUsed     Status = "already_used"
	StatusLedgerError     Status = "ledger_error"
)

var messages = map[Status]string{
	StatusVerified:        "E-mail confirmado com sucesso!",
	StatusMissingIdentity: "Não consegui encontrar o seu email ou ID.",
	StatusUnknownInvoker:  "Não consegui identificar o seu usuário.",
	StatusAuthError:       "Erro ao obter token de autenticação.",
	StatusOrdersError:     "Erro ao buscar pedidos. Tente novamente mais tarde.",
	StatusNotPurchaser:    "Este e-mail não está associado a nenhum dos nossos produtos.",
	StatusAlreadyUsed:     "Este e-mail já foi utilizado para verificação e não pode ser mais usado.",
	StatusLedgerError:     "Erro ao registrar a verificação. Tente novamente mais tarde.",
}

// Message is the text shown to the invoking user for a status.
func (s Status) Message() string {
	return messages[s]
}

// Commerce is the purchase lookup the workflow depends on.
type Commerce interface {
	GetAccessToken(ctx context.Context) (string, error)
	FetchOrders(ctx context.Context, token string) ([]domain.Order, error)
}

// Chat is the platform side effects of a successful verification.
type Chat interface {
	GrantRole(ctx context.Context, userID, roleID string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// Result describes how far a verification got. RoleErr and NotifyErr are
// only set for StatusVerified, where the ledger already holds the identity.
type Result struct {
	Status    Status
	Identity  string
	RoleErr   error
	NotifyErr error
}

func (r Result) Message() string {
	return r.Status.Message()
}

// Partial reports a recorded identity whose grant or notification failed.
func (r Result) Partial() bool {
	return r.Status == StatusVerified && (r.RoleErr != nil || r.NotifyErr != nil)
}

type VerificationService struct {
	ledger   store.Ledger
	commerce Commerce
	chat     Chat
	roleID   string
	welcome  string
	logger   *slog.Logger
}

func NewVerificationService(ledger store.Ledger, c Commerce, chat Chat, roleID, welcome string, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		ledger:   ledger,
		commerce: c,
		chat:     chat,
		roleID:   roleID,
		welcome:  welcome,
		logger:   logger,
	}
}

// Verify checks that identity bought one of the configured products and has
// not been used before, then records it and grants access to userID.
func (s *VerificationService) Verify(ctx context.Context, identity, userID string) Result {
	identity = domain.NormalizeIdentity(identity)
	if identity == "" {
		return Result{Status: StatusMissingIdentity}
	}
	log := s.logger.With("identity", identity, "user_id", userID)
	if userID == "" {
		log.Warn("verification without invoker id")
		return Result{Status: StatusUnknownInvoker, Identity: identity}
	}

	// 1. Commerce Auth
	token, err := s.commerce.GetAccessToken(ctx)
	if err != nil || token == "" {
		log.Error("verification aborted: no commerce token", "error", err)
		return Result{Status: StatusAuthError, Identity: identity}
	}

	// 2. Purchase Lookup
	orders, err := s.commerce.FetchOrders(ctx, token)
	if err != nil {
		log.Error("verification aborted: orders unavailable", "error", err)
		return Result{Status: StatusOrdersError, Identity: identity}
	}
	if _, ok := commerce.ExtractEmails(orders)[identity]; !ok {
		log.Info("identity not among purchasers", "orders", len(orders))
		return Result{Status: StatusNotPurchaser, Identity: identity}
	}

	// 3. Ledger Check
	used, err := s.ledger.Contains(ctx, identity)
	if err != nil {
		log.Error("ledger lookup failed", "error", err)
		return Result{Status: StatusLedgerError, Identity: identity}
	}
	if used {
		log.Info("identity already used")
		return Result{Status: StatusAlreadyUsed, Identity: identity}
	}

	// 4. Ledger Reservation. A concurrent request may have recorded the
	// identity since the check above.
	inserted, err := s.ledger.InsertIfAbsent(ctx, identity)
	if err != nil {
		log.Error("ledger insert failed", "error", err)
		return Result{Status: StatusLedgerError, Identity: identity}
	}
	if !inserted {
		log.Info("identity recorded by a concurrent request")
		return Result{Status: StatusAlreadyUsed, Identity: identity}
	}

	// 5. Grant & Notify. Failures are reported but do not undo the ledger entry.
	res := Result{Status: StatusVerified, Identity: identity}
	res.RoleErr = s.chat.GrantRole(ctx, userID, s.roleID)
	res.NotifyErr = s.chat.SendDirectMessage(ctx, userID, s.welcome)

	if res.RoleErr != nil {
		log.Error("identity recorded but role grant failed",
			"role_id", s.roleID, "error", res.RoleErr)
	}
	if res.NotifyErr != nil {
		log.Warn("identity recorded but welcome message failed", "error", res.NotifyErr)
	}
	if !res.Partial() {
		log.Info("identity verified")
	}
	return res
}
