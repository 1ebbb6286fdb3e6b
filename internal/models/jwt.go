package models

// TokenClaims holds the identity claims read from a verified access token
type TokenClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Issuer  string `json:"iss"`
	Expiry  int64  `json:"exp"`
}
