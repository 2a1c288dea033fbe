package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/lvollmer/bazaarnode/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	NodeAddress string
	Role        enums.ActorRole
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to local clients.
type AccessTokenClaims struct {
	NodeAddress string          `json:"node_address"`
	Role        enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
