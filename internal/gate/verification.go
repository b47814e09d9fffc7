package gate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/backend"
	"github.com/mmeshcher/investdash/internal/metrics"
	"github.com/mmeshcher/investdash/internal/model"
)

// VerificationClient запрашивает текущий статус KYC.
type VerificationClient interface {
	KYC(ctx context.Context, auth backend.Auth) (*model.Verification, error)
}

// Override содержит явную пару required/completed от вызывающего кода.
type Override struct {
	Required  bool
	Completed bool
}

// OverrideFromUser извлекает пару из профиля, если бэкенд прислал флаг kyc_required.
func OverrideFromUser(u *model.User) *Override {
	if u == nil || u.KYCRequired == nil {
		return nil
	}
	o := &Override{Required: *u.KYCRequired}
	if u.KYCCompleted != nil {
		o.Completed = *u.KYCCompleted
	}
	return o
}

// Banner описывает состояние баннера активации.
type Banner string

const (
	BannerHidden Banner = "hidden"
	BannerShown  Banner = "shown"
)

// Result содержит итог проверки верификации.
type Result struct {
	Required  bool                     `json:"required"`
	Completed bool                     `json:"completed"`
	Status    model.VerificationStatus `json:"status,omitempty"`
	// FailedOpen выставляется, когда статус не удалось получить.
	FailedOpen bool `json:"failed_open,omitempty"`
}

// Banner вычисляет состояние баннера только по required && !completed.
func (r Result) Banner() Banner {
	if r.Required && !r.Completed {
		return BannerShown
	}
	return BannerHidden
}

var openResult = Result{Required: false, Completed: true}

// VerificationGate вычисляет, требуется ли от пользователя пройти KYC.
type VerificationGate struct {
	client VerificationClient
	logger *zap.Logger
}

// NewVerificationGate создаёт проверку статуса верификации.
func NewVerificationGate(client VerificationClient, logger *zap.Logger) *VerificationGate {
	return &VerificationGate{client: client, logger: logger}
}

// Evaluate запрашивает статус и вычисляет результат. Статус approved
// означает, что баннер не нужен. Для остальных статусов используется
// override, а без него открытый результат. Ошибка запроса, в том числе
// 401, всегда даёт открытый результат: override в этом случае не применяется.
func (g *VerificationGate) Evaluate(ctx context.Context, auth backend.Auth, override *Override) Result {
	v, err := g.client.KYC(ctx, auth)
	if err != nil {
		metrics.GateFailOpen.Inc()
		level := g.logger.Warn
		if errors.Is(err, backend.ErrUnauthorized) {
			level = g.logger.Info
		}
		level("verification status unavailable, banner suppressed", zap.Error(err))

		res := openResult
		res.FailedOpen = true
		return res
	}

	return Decide(v, override)
}

// Decide вычисляет результат по уже полученной записи верификации.
func Decide(v *model.Verification, override *Override) Result {
	var status model.VerificationStatus
	if v != nil {
		status = v.Status
	}

	if status == model.VerificationApproved {
		return Result{Required: false, Completed: true, Status: status}
	}

	if override != nil {
		return Result{Required: override.Required, Completed: override.Completed, Status: status}
	}

	res := openResult
	res.Status = status
	return res
}
