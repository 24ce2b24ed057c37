package accounts

import (
	"errors"
	"fmt"

	"github.com/krt-cliente/contas/internal/platform/httpx"
)

var (
	// ErrNotFound reports a missing account or an empty filtered result.
	ErrNotFound = fmt.Errorf("account: %w", httpx.ErrNotFound)
	// ErrInvalidRequest reports malformed input or a rejected state transition.
	ErrInvalidRequest = fmt.Errorf("account: %w", httpx.ErrValidation)
	// ErrConcurrencyConflict is returned by Repository.Update when no row was
	// written.
	ErrConcurrencyConflict = errors.New("account: concurrency conflict")
)

// Messages returned to clients.
const (
	msgAccountNotFound   = "Conta não encontrada."
	msgNoActive          = "Nenhuma conta ativa encontrada."
	msgNoInactive        = "Nenhuma conta inativa encontrada."
	msgNoYearTotals      = "Nenhuma conta encontrada para os anos informados."
	msgNoPeriod          = "Nenhuma conta encontrada no período informado."
	msgNoDeleted         = "Nenhuma conta deletada encontrada."
	msgYearsRequired     = "Informe pelo menos um ano. Exemplo: /v1/accounts/totals-by-year?years=2024&years=2025"
	msgIDMismatch        = "O id da rota difere do id informado no corpo da requisição."
	msgAlreadyActive     = "A conta já está ativa."
	msgAlreadyInactive   = "A conta já está inativa."
	msgNotDeleted        = "A conta não está marcada como deletada."
	msgActivated         = "Conta ativada com sucesso."
	msgDeactivated       = "Conta inativada com sucesso."
	msgSoftDeleted       = "Conta marcada como deletada."
	msgRestored          = "Conta restaurada com sucesso."
	msgInvalidPeriod     = "Informe as datas de início e fim do período."
	msgInvalidPeriodDate = "Data inválida. Use o formato AAAA-MM-DD ou RFC3339."
	msgInvalidYear       = "Ano inválido. Informe anos numéricos, por exemplo years=2024."
	msgInvalidID         = "Identificador de conta inválido."
	msgInvalidBody       = "Corpo da requisição inválido."
	msgValidationFailed  = "Um ou mais campos são inválidos."
)

// Error carries a client-facing message alongside its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func badRequest(msg string) error {
	return &Error{Kind: ErrInvalidRequest, Message: msg}
}
