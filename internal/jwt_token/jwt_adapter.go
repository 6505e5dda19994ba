package jwttoken

import (
	id "chariblock/pkg/domain"
	authmw "chariblock/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) (*authmw.JWTClaims, error) {
	wallet, err := id.ParseWalletAddress(claims.Wallet)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		Wallet:    wallet,
		SessionID: claims.SessionID,
		JTI:       claims.ID, // JWT ID for revocation tracking
	}, nil
}

// JWTServiceAdapter exposes JWTService as the middleware's validator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
