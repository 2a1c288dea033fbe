package controllers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/lvollmer/bazaarnode/api/responses"
	"github.com/lvollmer/bazaarnode/api/validators"
	pkgauth "github.com/lvollmer/bazaarnode/pkg/auth"
	"github.com/lvollmer/bazaarnode/pkg/config"
	"github.com/lvollmer/bazaarnode/pkg/enums"
	pkgerrors "github.com/lvollmer/bazaarnode/pkg/errors"
	"github.com/lvollmer/bazaarnode/pkg/logger"
)

type tokenRequest struct {
	BootstrapKey string `json:"bootstrap_key" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=buyer seller"`
}

type tokenResponse struct {
	Token       string `json:"token"`
	NodeAddress string `json:"node_address"`
	Role        string `json:"role"`
	ExpiresIn   int    `json:"expires_in_seconds"`
}

// TokenMint exchanges the node's bootstrap key for a role-scoped JWT. The
// token always carries this node's own address; there are no user accounts.
func TokenMint(cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if subtle.ConstantTimeCompare([]byte(req.BootstrapKey), []byte(cfg.JWT.BootstrapKey)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid bootstrap key"))
			return
		}

		role, err := enums.ParseActorRole(req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now().UTC(), pkgauth.AccessTokenPayload{
			NodeAddress: cfg.Protocol.NodeAddress,
			Role:        role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting token"))
			return
		}

		responses.WriteSuccess(w, tokenResponse{
			Token:       token,
			NodeAddress: cfg.Protocol.NodeAddress,
			Role:        role.String(),
			ExpiresIn:   cfg.JWT.ExpirationMinutes * 60,
		})
	}
}
