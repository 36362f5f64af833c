// Package checkout реализует HTTP-обработчик создания checkout-сессии
// у платёжного провайдера.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/forex-signals/internal/apperrors"
	"github.com/magabrotheeeer/forex-signals/internal/http/response"
	"github.com/magabrotheeeer/forex-signals/internal/lib/sl"
	"github.com/magabrotheeeer/forex-signals/internal/paymentprovider"
)

// Request — структура входных данных создания сессии. Email опционален:
// аноним может начать оплату без учётной записи.
type Request struct {
	Email string `json:"email,omitempty"`
}

// ProviderClient описывает используемую операцию клиента провайдера.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, req paymentprovider.CreateCheckoutSessionRequest) (*paymentprovider.CheckoutSession, error)
}

// Handler обрабатывает HTTP-запросы создания checkout-сессии.
type Handler struct {
	log      *slog.Logger
	provider ProviderClient
	priceID  string
	appURL   string
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, provider ProviderClient, priceID, appURL string) *Handler {
	return &Handler{
		log:      log,
		provider: provider,
		priceID:  priceID,
		appURL:   appURL,
	}
}

// ServeHTTP godoc
// @Summary Создание checkout-сессии
// @Description Создаёт у провайдера checkout-сессию на подписку и возвращает URL страницы оплаты.
// @Tags Subscription
// @Accept  json
// @Produce  json
// @Param request body Request true "Email покупателя (опционально)"
// @Success 200 {object} response.Response "Сессия создана"
// @Failure 502 {object} response.ErrorResponse "Провайдер недоступен"
// @Router /checkout/create-session [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.checkout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if r.Body != nil {
		// Тело опционально, ошибки декодирования пустого тела не фатальны.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	providerReq := paymentprovider.CreateCheckoutSessionRequest{
		PriceID:    h.priceID,
		SuccessURL: h.appURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.appURL + "/subscription/cancel",
	}
	if req.Email != "" {
		providerReq.Metadata = map[string]string{"email": req.Email}
	}

	session, err := h.provider.CreateCheckoutSession(r.Context(), providerReq)
	if err != nil {
		if errors.Is(err, apperrors.ErrProviderUnavailable) {
			log.Error("payment provider unavailable", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider is temporarily unavailable"))
			return
		}
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("checkout session created", slog.String("session_id", session.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	}))
}
